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

// Package tape implements the sequential-media dump pipeline of §4.9:
// drive initialization, block-size discovery, a main read loop branching
// on the filemark/end-of-medium/ILI sense table, and locate-gated resume
// and retry. Grounded on RoseOO/TapeBackarr's internal/tape/service.go
// for the overall "position is state, not an address" read-loop shape —
// the pack's only genuine sequential-tape service — and on
// coreos/go-tcmu's scsi_defs.go SSC opcode constants pkg/scsidev already
// carries (Space, ReadPosition, WriteFilemarks).
package tape

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/ostafen/discproc/pkg/extents"
	"github.com/ostafen/discproc/pkg/image"
	"github.com/ostafen/discproc/pkg/resume"
	"github.com/ostafen/discproc/pkg/scsidev"
)

// Progress reports a Pipeline's current block position. TotalBlocks is
// left at 0 when unknown, which it almost always is for tape (there is
// no capacity query the way there is for block/optical media).
type Progress struct {
	NextBlock   uint64
	TotalBlocks uint64
	BadBlocks   uint64
	FileNumber  int
	Partition   int
}

// ProgressFunc receives periodic Progress updates, called synchronously
// from the dump goroutine (§5) — it must not call back into the
// pipeline.
type ProgressFunc func(Progress)

// Config parameterizes one run of the pipeline.
type Config struct {
	// Force governs what happens when resume.Store.NextBlock > 0 but
	// neither LOCATE form is supported, or LOCATE succeeds but READ
	// POSITION afterward disagrees: with Force, the dump restarts from
	// block 0; without it, Run returns an error (§4.9: "otherwise either
	// restart from zero or abort, governed by a force flag").
	Force      bool
	RetryPasses int
	OnProgress  ProgressFunc
}

// Pipeline drives one sequential-media dump: initialization, block-size
// discovery, the main read loop, and an optional locate-gated retry
// phase.
type Pipeline struct {
	Device  scsidev.Device
	Image   image.TapeWritable
	Resume  *resume.Manager
	Cfg     Config
	Aborted *atomic.Bool

	blockSize uint32
	fixed     bool
	caps      Capabilities

	position   uint64
	partition  int
	partStart  uint64
	fileNumber int
	fileStart  uint64

	extents extents.Set
}

// New returns a Pipeline ready to Run. aborted may be nil, in which case
// the pipeline is never externally cancellable.
func New(dev scsidev.Device, img image.TapeWritable, rm *resume.Manager, cfg Config, aborted *atomic.Bool) *Pipeline {
	if aborted == nil {
		aborted = &atomic.Bool{}
	}
	return &Pipeline{Device: dev, Image: img, Resume: rm, Cfg: cfg, Aborted: aborted}
}

func (p *Pipeline) aborted() bool { return p.Aborted.Load() }

func (p *Pipeline) report() {
	if p.Cfg.OnProgress == nil {
		return
	}
	p.Cfg.OnProgress(Progress{
		NextBlock:  p.Resume.Store.NextBlock,
		BadBlocks:  p.Resume.Store.BadBlocks.Count(),
		FileNumber: p.fileNumber,
		Partition:  p.partition,
	})
}

// Run executes the full pipeline: initialize, discover the block size,
// resume to the last checkpoint if one exists, run the main loop, and
// (if configured) the retry phase.
func (p *Pipeline) Run(ctx context.Context) error {
	p.Image.SetTape()

	caps, err := p.initialize(ctx)
	if err != nil {
		return fmt.Errorf("tape: initialize: %w", err)
	}
	p.caps = caps

	blockSize, fixed, err := p.discoverBlockSize(ctx)
	if err != nil {
		return fmt.Errorf("tape: %w", err)
	}
	p.blockSize = blockSize
	p.fixed = fixed

	if p.Resume.Store.NextBlock > 0 {
		if err := p.resumeToCheckpoint(ctx); err != nil {
			if !p.Cfg.Force {
				return fmt.Errorf("tape: resume: %w", err)
			}
			p.position = 0
		}
	}

	if err := p.mainLoop(ctx); err != nil {
		return fmt.Errorf("tape: main loop: %w", err)
	}

	if p.Cfg.RetryPasses > 0 && !p.aborted() {
		if err := p.runRetryPasses(ctx); err != nil {
			return fmt.Errorf("tape: retry passes: %w", err)
		}
	}

	return p.Resume.Sync()
}

// resumeToCheckpoint implements §4.9's resume rule: if either LOCATE
// form is supported, locate to the checkpointed block and verify READ
// POSITION agrees before trusting it.
func (p *Pipeline) resumeToCheckpoint(ctx context.Context) error {
	target := p.Resume.Store.NextBlock
	if !p.caps.CanLocate && !p.caps.CanLocateLong {
		return fmt.Errorf("drive supports neither LOCATE nor LOCATE LONG")
	}

	if p.caps.CanLocateLong {
		if senseBuf, err := p.Device.LocateLong(ctx, 0, target); err != nil {
			return err
		} else if senseBuf != nil {
			return fmt.Errorf("LOCATE LONG to block %d failed", target)
		}
		pos, senseBuf, err := p.Device.ReadPositionLong(ctx)
		if err != nil {
			return err
		}
		if senseBuf != nil || pos.BlockNumber != target {
			return fmt.Errorf("READ POSITION after LOCATE LONG disagrees with block %d", target)
		}
	} else {
		if senseBuf, err := p.Device.Locate(ctx, target); err != nil {
			return err
		} else if senseBuf != nil {
			return fmt.Errorf("LOCATE to block %d failed", target)
		}
		pos, senseBuf, err := p.Device.ReadPositionShort(ctx)
		if err != nil {
			return err
		}
		if senseBuf != nil || pos.BlockNumber != target {
			return fmt.Errorf("READ POSITION after LOCATE disagrees with block %d", target)
		}
	}

	p.position = target
	return nil
}
