// Copyright (c) 2025 Stefano Scafiti
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package xbox

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/ostafen/discproc/pkg/extents"
	"github.com/ostafen/discproc/pkg/image"
	"github.com/ostafen/discproc/pkg/resume"
	"github.com/ostafen/discproc/pkg/scsidev"
)

// Phase names the three read phases of §4.8, in the fixed order Pipeline
// always runs them.
type Phase uint8

const (
	PhaseGame Phase = iota
	PhaseMiddleZone
	PhaseVideoL1
)

func (p Phase) String() string {
	switch p {
	case PhaseGame:
		return "game partition"
	case PhaseMiddleZone:
		return "middle zone"
	case PhaseVideoL1:
		return "video layer 1"
	default:
		return "unknown"
	}
}

// Progress reports a Pipeline's position within the current phase.
type Progress struct {
	Phase     Phase
	NextBlock uint64
	Total     uint64
}

// ProgressFunc receives periodic Progress updates, called synchronously
// from the dump goroutine (§5) — it must not call back into the
// pipeline.
type ProgressFunc func(Progress)

// Pipeline drives one full XGD dump: geometry discovery followed by the
// game/middle-zone/video-layer-1 read order of §4.8.
type Pipeline struct {
	Device     scsidev.Device
	Image      image.Writable
	Resume     *resume.Manager
	BlockSize  uint32
	OnProgress ProgressFunc
	Aborted    *atomic.Bool

	Geometry  Geometry
	badExtent extents.Set
}

// New returns a Pipeline ready to Run. aborted may be nil, in which case
// the pipeline is never externally cancellable.
func New(dev scsidev.Device, img image.Writable, rm *resume.Manager, blockSize uint32, onProgress ProgressFunc, aborted *atomic.Bool) *Pipeline {
	if aborted == nil {
		aborted = &atomic.Bool{}
	}
	return &Pipeline{Device: dev, Image: img, Resume: rm, BlockSize: blockSize, OnProgress: onProgress, Aborted: aborted}
}

func (p *Pipeline) aborted() bool { return p.Aborted.Load() }

// Run discovers geometry and executes all three read phases in order.
// Each phase persists progress through Resume as it goes, so cancelling
// at any point and re-running Run resumes exactly where the previous
// run left off (§4.8 "cancellation... persists progress... idempotent on
// restart").
func (p *Pipeline) Run(ctx context.Context) error {
	g, err := DiscoverGeometry(ctx, p.Device)
	if err != nil {
		return err
	}
	p.Geometry = g

	if err := p.readGamePartition(ctx); err != nil {
		return fmt.Errorf("xbox: game partition: %w", err)
	}
	if p.aborted() {
		return p.Resume.Sync()
	}

	if err := p.readMiddleZone(ctx); err != nil {
		return fmt.Errorf("xbox: middle zone: %w", err)
	}
	if p.aborted() {
		return p.Resume.Sync()
	}

	if err := p.readVideoLayer1(ctx); err != nil {
		return fmt.Errorf("xbox: video layer 1: %w", err)
	}
	return p.Resume.Sync()
}

func (p *Pipeline) report(phase Phase, next, total uint64) {
	if p.OnProgress == nil {
		return
	}
	p.OnProgress(Progress{Phase: phase, NextBlock: next, Total: total})
}

// readGamePartition implements §4.8 phase 1: extract the security
// sector, convert its PSN extents to LBA, and walk the game partition
// sector-by-sector — writing zeroes without reading inside a burned
// extent (still marked good, since these sectors are unreadable by
// design, not bad media) and reading normally outside one.
func (p *Pipeline) readGamePartition(ctx context.Context) error {
	data, senseBuf, err := p.Device.ExtractSecuritySector(ctx)
	if err != nil {
		return fmt.Errorf("extract security sector: %w", err)
	}
	if senseBuf != nil {
		return fmt.Errorf("extract security sector: drive returned sense")
	}
	raw := parseSecurityExtents(data)
	p.badExtent = badExtentsToLBA(raw, p.Geometry.Layer0EndPSN)

	total := p.Geometry.GameSize
	start := p.Resume.Store.NextBlock
	for lba := start; lba < total; lba++ {
		if p.aborted() {
			return nil
		}

		var sector []byte
		if p.badExtent.Contains(lba) {
			sector = make([]byte, p.BlockSize)
		} else {
			data, senseBuf, _, err := p.Device.Read12(ctx, lba, 1, p.BlockSize, false, false)
			if err != nil {
				return err
			}
			if senseBuf != nil {
				return fmt.Errorf("read game partition lba %d: drive returned sense", lba)
			}
			sector = data
		}

		if err := p.Image.WriteSectors(lba, sector); err != nil {
			return err
		}
		p.Resume.Store.Advance(lba + 1)
		if err := p.Resume.Sync(); err != nil {
			return err
		}
		p.report(PhaseGame, lba+1, total)
	}
	return nil
}

// readMiddleZone implements §4.8 phase 2: the middle zone is physically
// empty, so it is written as zeroes outright with no read attempt.
// Resume.NextBlock is tracked relative to the middle zone's own origin
// (the game partition's end), matching the game-partition phase's
// block-relative bookkeeping.
func (p *Pipeline) readMiddleZone(ctx context.Context) error {
	total := 2 * p.Geometry.MiddleZone
	base := p.Geometry.GameSize
	start := relativeStart(p.Resume.Store.NextBlock, base, total)

	zero := make([]byte, p.BlockSize)
	for i := start; i < total; i++ {
		if p.aborted() {
			return nil
		}
		if err := p.Image.WriteSectors(base+i, zero); err != nil {
			return err
		}
		p.Resume.Store.Advance(base + i + 1)
		if err := p.Resume.Sync(); err != nil {
			return err
		}
		p.report(PhaseMiddleZone, i+1, total)
	}
	return nil
}

// readVideoLayer1 implements §4.8 phase 3: re-lock the drive into the
// video-unlocked state and read l0_video..l0_video+l1_video, writing the
// result at the same logical LBA range as the original disc layout
// ("written at the same logical LBAs as if continuous").
func (p *Pipeline) readVideoLayer1(ctx context.Context) error {
	if _, senseBuf, err := p.Device.VendorUnlockVideo(ctx); err != nil {
		return fmt.Errorf("Kreon.Lock: %w", err)
	} else if senseBuf != nil {
		return fmt.Errorf("Kreon.Lock: drive returned sense")
	}

	base := p.Geometry.GameSize + 2*p.Geometry.MiddleZone
	total := p.Geometry.L1Video
	start := relativeStart(p.Resume.Store.NextBlock, base, total)

	for i := start; i < total; i++ {
		if p.aborted() {
			return nil
		}

		lba := p.Geometry.L0Video + i
		data, senseBuf, _, err := p.Device.Read12(ctx, lba, 1, p.BlockSize, false, false)
		if err != nil {
			return err
		}
		if senseBuf != nil {
			return fmt.Errorf("read video layer 1 lba %d: drive returned sense", lba)
		}

		if err := p.Image.WriteSectors(base+i, data); err != nil {
			return err
		}
		p.Resume.Store.Advance(base + i + 1)
		if err := p.Resume.Sync(); err != nil {
			return err
		}
		p.report(PhaseVideoL1, i+1, total)
	}
	return nil
}

// relativeStart recovers how far into [base, base+total) an already
// in-progress NextBlock has advanced, clamped to [0, total] so a resume
// checkpoint left over from an earlier phase never under- or overflows.
func relativeStart(nextBlock, base, total uint64) uint64 {
	if nextBlock <= base {
		return 0
	}
	rel := nextBlock - base
	if rel > total {
		return total
	}
	return rel
}
