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

// Package block implements the sector-range dump pipeline of §4.7: a
// binary-halving stride probe, a main read/skip pass, an optional trim
// pass, and an optional multi-pass retry phase, all writing through an
// image.Writable and checkpointing through a resume.Manager. Grounded on
// the teacher's format.Scanner.Scan block-at-a-time loop
// (internal/format/scanner.go) generalized from "scan for file signatures"
// to "read/retry/trim sectors", with pbar.ProgressBarState's speed/ETA
// accounting (pkg/pbar) split out into speedWindow.
package block

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ostafen/discproc/pkg/image"
	"github.com/ostafen/discproc/pkg/resume"
	"github.com/ostafen/discproc/pkg/scsidev"
	"github.com/ostafen/discproc/pkg/sense"
)

// Progress is passed to a Config.OnProgress callback synchronously from
// the dump goroutine (§5): it must not call back into the pipeline.
type Progress struct {
	NextBlock    uint64
	TotalBlocks  uint64
	BadBlocks    uint64
	CurrentSpeed float64
	MinSpeed     float64
	MaxSpeed     float64
}

// ProgressFunc receives periodic Progress updates.
type ProgressFunc func(Progress)

// Config parameterizes one run of the pipeline.
type Config struct {
	TotalBlocks uint64
	BlockSize   uint32

	// ProbeStartStride is the initial READ(12) block count the binary
	// halving probe tries; spec.md §4.7 fixes this at 64.
	ProbeStartStride uint32

	// Skip is the user-configured burst skip applied when a batch read
	// fails; never used below the probed stride.
	Skip uint32

	// NoTrim disables the trim phase even when the main pass created new
	// bad blocks.
	NoTrim bool

	// RetryPasses is the number of alternating forward/reverse passes
	// over the bad-block list; 0 disables the retry phase.
	RetryPasses int

	// Persistent enables the Read-Retry-Count MODE SELECT toggle around
	// the retry phase.
	Persistent bool

	// RetryPage is the mode page holding the Read-Retry-Count field;
	// spec.md leaves the page number unstated, so this defaults to 0x01
	// (SPC "Read-Write Error Recovery" page) when zero.
	RetryPage byte

	OnProgress ProgressFunc
}

func (c Config) skip(stride uint32) uint32 {
	if c.Skip < stride {
		return stride
	}
	return c.Skip
}

// Pipeline runs one dump against Device, writing sectors into Image and
// checkpointing through Resume. The Device and Image are exclusively held
// for the pipeline's duration (§4.5's shared-resources rule) — callers
// must not use either concurrently while Run is in flight.
type Pipeline struct {
	Device  scsidev.Device
	Image   image.Writable
	Resume  *resume.Manager
	Cfg     Config
	Aborted *atomic.Bool

	stride uint32
	speed  *speedWindow
}

// New returns a Pipeline ready to Run. aborted may be nil, in which case
// the pipeline is never externally cancellable.
func New(dev scsidev.Device, img image.Writable, rm *resume.Manager, cfg Config, aborted *atomic.Bool) *Pipeline {
	if aborted == nil {
		aborted = &atomic.Bool{}
	}
	return &Pipeline{Device: dev, Image: img, Resume: rm, Cfg: cfg, Aborted: aborted}
}

func (p *Pipeline) aborted() bool {
	return p.Aborted.Load()
}

func (p *Pipeline) reportProgress() {
	if p.Cfg.OnProgress == nil {
		return
	}
	min, max := p.speed.MinMax()
	p.Cfg.OnProgress(Progress{
		NextBlock:    p.Resume.Store.NextBlock,
		TotalBlocks:  p.Cfg.TotalBlocks,
		BadBlocks:    p.Resume.Store.BadBlocks.Count(),
		CurrentSpeed: p.speed.Current(),
		MinSpeed:     min,
		MaxSpeed:     max,
	})
}

// Run executes the full state machine: probe, main pass, trim, retry.
func (p *Pipeline) Run(ctx context.Context) error {
	p.speed = newSpeedWindow(time.Now())

	if err := p.probeStride(ctx); err != nil {
		return fmt.Errorf("block: stride probe: %w", err)
	}

	newTrim, err := p.mainPass(ctx)
	if err != nil {
		return fmt.Errorf("block: main pass: %w", err)
	}

	if newTrim && !p.aborted() && !p.Cfg.NoTrim {
		if err := p.trimPass(ctx); err != nil {
			return fmt.Errorf("block: trim pass: %w", err)
		}
	}

	if p.Cfg.RetryPasses > 0 && !p.aborted() {
		if err := p.runRetryPasses(ctx); err != nil {
			return fmt.Errorf("block: retry passes: %w", err)
		}
	}

	return p.Resume.Sync()
}

// probeStride finds the largest READ(12) block count the device accepts,
// starting at Cfg.ProbeStartStride (64 if zero) and halving on error until
// the device either succeeds or stride reaches 1.
func (p *Pipeline) probeStride(ctx context.Context) error {
	stride := p.Cfg.ProbeStartStride
	if stride == 0 {
		stride = 64
	}
	if uint64(stride) > p.Cfg.TotalBlocks && p.Cfg.TotalBlocks > 0 {
		stride = uint32(p.Cfg.TotalBlocks)
	}

	for stride > 1 {
		_, senseBuf, _, err := p.Device.Read12(ctx, 0, stride, p.Cfg.BlockSize, false, false)
		if err != nil {
			return err
		}
		if senseBuf == nil {
			break
		}
		stride /= 2
	}
	if stride == 0 {
		stride = 1
	}
	p.stride = stride
	return nil
}

// mainPass implements the state diagram of §4.7: read a stride-sized
// batch; on success write it through and advance; on error write zeroes
// across the configured skip, mark it bad, and advance past it, setting
// newTrim so a trim pass runs afterward.
func (p *Pipeline) mainPass(ctx context.Context) (newTrim bool, err error) {
	skip := p.Cfg.skip(p.stride)

	for i := p.Resume.Store.NextBlock; i < p.Cfg.TotalBlocks; {
		if p.aborted() {
			return newTrim, p.Resume.Sync()
		}

		n := p.stride
		if remaining := p.Cfg.TotalBlocks - i; uint64(n) > remaining {
			n = uint32(remaining)
		}

		data, senseBuf, _, err := p.Device.Read12(ctx, i, n, p.Cfg.BlockSize, false, false)
		if err != nil {
			return newTrim, err
		}

		if senseBuf != nil {
			s := sense.Decode(senseBuf)
			p.Resume.Store.AppendAttempt(resume.Attempt{
				LBA: i, Command: "READ(12)", Sense: s, Outcome: "error", Time: time.Now(),
			})

			skipLen := skip
			if remaining := p.Cfg.TotalBlocks - i; uint64(skipLen) > remaining {
				skipLen = uint32(remaining)
			}
			if err := p.writeZeroes(i, skipLen); err != nil {
				return newTrim, err
			}
			p.Resume.Store.MarkBad(i, uint64(skipLen))
			newTrim = true
			i += uint64(skipLen)
		} else {
			if err := p.Image.WriteSectors(i, data); err != nil {
				return newTrim, err
			}
			i += uint64(n)
		}

		p.Resume.Store.Advance(i)
		p.speed.Add(len(data), time.Now())
		if err := p.Resume.Sync(); err != nil {
			return newTrim, err
		}
		p.reportProgress()
	}
	return newTrim, nil
}

func (p *Pipeline) writeZeroes(lba uint64, n uint32) error {
	zero := make([]byte, uint64(n)*uint64(p.Cfg.BlockSize))
	return p.Image.WriteSectors(lba, zero)
}
