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
	"time"

	"github.com/ostafen/discproc/pkg/resume"
	"github.com/ostafen/discproc/pkg/sense"
)

// trimPass re-reads every bad block one sector at a time: the stride that
// failed during mainPass may have spanned several good sectors around a
// single bad one, and a single-sector READ(12) can succeed where the
// batched read did not. Sectors that come back clean are written through
// and moved out of the bad-block list; sectors that fail stay bad.
func (p *Pipeline) trimPass(ctx context.Context) error {
	bad := p.Resume.Store.BadBlocks.Sorted()

	for _, lba := range bad {
		if p.aborted() {
			return p.Resume.Sync()
		}

		data, senseBuf, _, err := p.Device.Read12(ctx, lba, 1, p.Cfg.BlockSize, false, false)
		if err != nil {
			return err
		}

		if senseBuf != nil {
			s := sense.Decode(senseBuf)
			p.Resume.Store.AppendAttempt(resume.Attempt{
				LBA: lba, Command: "READ(12) trim", Sense: s, Outcome: "still-bad", Time: time.Now(),
			})
			continue
		}

		if err := p.Image.WriteSectors(lba, data); err != nil {
			return err
		}
		p.Resume.Store.MarkGood(lba)
		p.Resume.Store.AppendAttempt(resume.Attempt{
			LBA: lba, Command: "READ(12) trim", Outcome: "recovered", Time: time.Now(),
		})

		if err := p.Resume.Sync(); err != nil {
			return err
		}
		p.speed.Add(len(data), time.Now())
		p.reportProgress()
	}
	return nil
}
