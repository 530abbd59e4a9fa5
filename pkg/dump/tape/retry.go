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

package tape

import (
	"context"
	"fmt"

	"github.com/ostafen/discproc/pkg/resume"
	"github.com/ostafen/discproc/pkg/sense"
)

// runRetryPasses implements §4.9's locate-gated retry phase: a tape
// drive without LOCATE of either form cannot seek back to a bad block
// without re-reading everything ahead of it, so the retry phase is
// skipped silently rather than attempted the hard way.
func (p *Pipeline) runRetryPasses(ctx context.Context) error {
	if !p.caps.CanLocate && !p.caps.CanLocateLong {
		return nil
	}

	for pass := 0; pass < p.Cfg.RetryPasses; pass++ {
		for _, lba := range p.Resume.Store.BadBlocks.Sorted() {
			if p.aborted() {
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := p.retryOne(ctx, lba, pass); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Pipeline) retryOne(ctx context.Context, lba uint64, pass int) error {
	if err := p.locateTo(ctx, lba); err != nil {
		return err
	}

	data, senseBuf, _, err := p.Device.Read6(ctx, lba, 1, p.blockSize, p.fixed)
	if err != nil {
		return fmt.Errorf("tape retry#%d: read block %d: %w", pass, lba, err)
	}
	if senseBuf != nil {
		s := sense.Decode(senseBuf)
		p.Resume.Store.AppendAttempt(resume.Attempt{
			LBA:     lba,
			Command: fmt.Sprintf("READ(6) retry#%d", pass),
			Sense:   s,
			Outcome: "still bad",
		})
		return p.Resume.Sync()
	}

	if err := p.Image.WriteSectors(lba, data); err != nil {
		return fmt.Errorf("tape retry#%d: write block %d: %w", pass, lba, err)
	}
	p.Resume.Store.MarkGood(lba)
	p.Resume.Store.AppendAttempt(resume.Attempt{
		LBA:     lba,
		Command: fmt.Sprintf("READ(6) retry#%d", pass),
		Outcome: "recovered",
	})
	return p.Resume.Sync()
}

// locateTo positions the tape at block lba, preferring LOCATE LONG when
// available since it addresses by partition + block number explicitly.
func (p *Pipeline) locateTo(ctx context.Context, lba uint64) error {
	if p.caps.CanLocateLong {
		senseBuf, err := p.Device.LocateLong(ctx, uint32(p.partition), lba)
		if err != nil {
			return fmt.Errorf("tape retry: locate long to block %d: %w", lba, err)
		}
		if senseBuf != nil {
			s := sense.Decode(senseBuf)
			return fmt.Errorf("tape retry: locate long to block %d: %s", lba, s.Triple())
		}
		return nil
	}

	senseBuf, err := p.Device.Locate(ctx, lba)
	if err != nil {
		return fmt.Errorf("tape retry: locate to block %d: %w", lba, err)
	}
	if senseBuf != nil {
		s := sense.Decode(senseBuf)
		return fmt.Errorf("tape retry: locate to block %d: %s", lba, s.Triple())
	}
	return nil
}
