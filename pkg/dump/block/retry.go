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

package block

import (
	"context"
	"fmt"
	"time"

	"github.com/ostafen/discproc/pkg/resume"
	"github.com/ostafen/discproc/pkg/scsidev"
	"github.com/ostafen/discproc/pkg/sense"
)

// eerBit is bit 3 of the Read-Write Error Recovery page's byte 2 (§4.7
// "enable EER"): Enable Early Recovery, which tells the drive to report a
// recovered error back to the host instead of silently retrying forever.
const eerBit = 0x08

// retryCountOffset is the Read Retry Count field's offset within the
// page, counted from the page code byte (byte 0 = page code/PS, byte 1 =
// page length, byte 2 = flags, byte 3 = Read Retry Count).
const retryCountOffset = 3

// runRetryPasses drives Cfg.RetryPasses alternating forward/reverse sweeps
// over the current bad-block list. In persistent mode the Read-Retry-Count
// page is pushed to its maximum and EER enabled for the duration of the
// phase, then restored exactly as found — a drive that silently retries
// for tens of seconds per sector defeats the whole point of a fast bad
// block triage pass.
func (p *Pipeline) runRetryPasses(ctx context.Context) error {
	if p.Cfg.Persistent {
		restore, err := p.enablePersistentRetry(ctx)
		if err != nil {
			return fmt.Errorf("enable persistent retry: %w", err)
		}
		defer func() {
			if restore != nil {
				_ = restore(ctx)
			}
		}()
	}

	for pass := 0; pass < p.Cfg.RetryPasses; pass++ {
		if p.aborted() {
			return p.Resume.Sync()
		}

		bad := p.Resume.Store.BadBlocks.Sorted()
		if len(bad) == 0 {
			break
		}
		if pass%2 == 1 {
			reverse(bad)
		}

		for _, lba := range bad {
			if p.aborted() {
				return p.Resume.Sync()
			}
			if err := p.retryOne(ctx, lba, pass); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Pipeline) retryOne(ctx context.Context, lba uint64, pass int) error {
	data, senseBuf, _, err := p.Device.Read12(ctx, lba, 1, p.Cfg.BlockSize, false, false)
	if err != nil {
		return err
	}

	if senseBuf != nil {
		s := sense.Decode(senseBuf)
		p.Resume.Store.AppendAttempt(resume.Attempt{
			LBA: lba, Command: fmt.Sprintf("READ(12) retry#%d", pass), Sense: s, Outcome: "still-bad", Time: time.Now(),
		})
		return nil
	}

	if err := p.Image.WriteSectors(lba, data); err != nil {
		return err
	}
	p.Resume.Store.MarkGood(lba)
	p.Resume.Store.AppendAttempt(resume.Attempt{
		LBA: lba, Command: fmt.Sprintf("READ(12) retry#%d", pass), Outcome: "recovered", Time: time.Now(),
	})
	if err := p.Resume.Sync(); err != nil {
		return err
	}
	p.speed.Add(len(data), time.Now())
	p.reportProgress()
	return nil
}

func reverse(s []uint64) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// enablePersistentRetry reads the current Read-Write Error Recovery page,
// pushes Read Retry Count to 255 and sets EER, writes it back, and returns
// a closure that restores the page to the bytes it observed. It returns a
// nil restore func (with no error) if the drive does not expose the page
// at all, since §4.7 makes persistent mode a best-effort enhancement, not
// a precondition for retrying.
func (p *Pipeline) enablePersistentRetry(ctx context.Context) (func(context.Context) error, error) {
	page := p.Cfg.RetryPage
	if page == 0 {
		page = 0x01
	}

	original, senseBuf, err := p.Device.ModeSense6(ctx, page, 0, scsidev.PageControlCurrent)
	if err != nil {
		return nil, err
	}
	if senseBuf != nil || len(original) == 0 {
		return nil, nil
	}

	patched, ok := patchRetryPage(original, page)
	if !ok {
		return nil, nil
	}

	if senseBuf, err := p.Device.ModeSelect(ctx, patched, true, false); err != nil {
		return nil, err
	} else if senseBuf != nil {
		return nil, nil
	}

	restore := func(ctx context.Context) error {
		senseBuf, err := p.Device.ModeSelect(ctx, original, true, false)
		if err != nil {
			return err
		}
		if senseBuf != nil {
			s := sense.Decode(senseBuf)
			return fmt.Errorf("restore retry page: %s", s.Triple())
		}
		return nil
	}
	return restore, nil
}

// patchRetryPage locates page within a MODE SENSE(6) response (4-byte
// mode parameter header, then an optional block descriptor, then the
// page itself) and returns a copy with Read Retry Count set to 255 and
// EER enabled.
func patchRetryPage(data []byte, page byte) ([]byte, bool) {
	if len(data) < 4 {
		return nil, false
	}
	blockDescLen := int(data[3])
	off := 4 + blockDescLen
	if off+retryCountOffset+1 > len(data) {
		return nil, false
	}
	if data[off]&0x3f != page {
		return nil, false
	}

	patched := append([]byte(nil), data...)
	patched[off+2] |= eerBit
	patched[off+retryCountOffset] = 0xff
	return patched, true
}
