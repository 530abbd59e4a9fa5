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

	"github.com/ostafen/discproc/pkg/image"
	"github.com/ostafen/discproc/pkg/resume"
	"github.com/ostafen/discproc/pkg/sense"
)

// mainLoop implements §4.9's per-block branch table. Each successful
// READ(6) advances position by one block; a filemark closes the current
// file and opens the next; end-of-medium closes the current file,
// advances to the next partition if one exists, or finishes; any other
// sense marks the block bad and zero-fills it rather than aborting the
// whole dump.
func (p *Pipeline) mainLoop(ctx context.Context) error {
	p.fileStart = p.position
	p.partStart = p.position

	for {
		if p.aborted() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		data, senseBuf, _, err := p.Device.Read6(ctx, p.position, 1, p.blockSize, p.fixed)
		if err != nil {
			return fmt.Errorf("read block %d: %w", p.position, err)
		}

		if senseBuf == nil {
			if err := p.Image.WriteSectors(p.position, data); err != nil {
				return fmt.Errorf("write block %d: %w", p.position, err)
			}
			p.extents.Add(p.position)
			p.position++
			p.Resume.Store.Advance(p.position)
			if err := p.Resume.Sync(); err != nil {
				return err
			}
			p.report()
			continue
		}

		s := sense.Decode(senseBuf)

		switch {
		case s.Key == sense.BlankCheck && p.position == p.partStart:
			return fmt.Errorf("blank tape: partition %d has no data", p.partition)

		case s.Key == sense.BlankCheck && (s.ASCQ == 0x02 || s.ASCQ == 0x05 || s.EOM):
			return p.endOfMedium(ctx)

		case (s.Key == sense.NoSense || s.Key == sense.Recovered) && (s.ASCQ == 0x02 || s.ASCQ == 0x05 || s.EOM):
			return p.endOfMedium(ctx)

		case (s.Key == sense.NoSense || s.Key == sense.Recovered) && (s.ASCQ == 0x01 || s.Filemark):
			if err := p.closeCurrentFile(); err != nil {
				return err
			}
			p.position++
			p.fileNumber++
			p.fileStart = p.position
			p.Resume.Store.Advance(p.position)
			if err := p.Resume.Sync(); err != nil {
				return err
			}
			p.report()

		case s.ASC == 0x00 && s.ASCQ == 0x00 && s.ILI && s.InfoValid:
			adjusted := p.blockSize - uint32(int32(s.Info))
			if adjusted == 0 || adjusted > p.blockSize {
				return fmt.Errorf("block %d: implausible ILI-adjusted block size %d", p.position, adjusted)
			}
			p.blockSize = adjusted
			if err := p.spaceBack(ctx); err != nil {
				return err
			}

		default:
			p.Resume.Store.MarkBad(p.position, 1)
			p.Resume.Store.AppendAttempt(resume.Attempt{
				LBA:     p.position,
				Command: "READ(6)",
				Sense:   s,
				Outcome: "bad block, zero-filled",
			})
			if err := p.Image.WriteSectors(p.position, make([]byte, p.blockSize)); err != nil {
				return fmt.Errorf("write zero block %d: %w", p.position, err)
			}
			p.position++
			p.Resume.Store.Advance(p.position)
			if err := p.Resume.Sync(); err != nil {
				return err
			}
			p.report()
		}
	}
}

// closeCurrentFile records the file just ended by a filemark, provided
// it is non-empty (a filemark immediately following another filemark
// delimits a zero-length file, which tar/dd-style tape images still
// represent but which carries nothing for AddFile to describe beyond
// the boundary already implied by the adjacent file records).
func (p *Pipeline) closeCurrentFile() error {
	if p.position <= p.fileStart {
		return nil
	}
	return p.Image.AddFile(image.TapeFile{
		FileNumber: p.fileNumber,
		FirstBlock: p.fileStart,
		LastBlock:  p.position,
	})
}

// endOfMedium closes out the current file and partition, then attempts
// to LOCATE into the next partition; a drive with only one partition (or
// one lacking LOCATE LONG) simply fails that attempt, which ends the
// dump cleanly rather than erroring (§4.9: "no further partition is the
// normal, successful end of the dump").
func (p *Pipeline) endOfMedium(ctx context.Context) error {
	if err := p.closeCurrentFile(); err != nil {
		return err
	}
	if err := p.Image.AddPartition(image.TapePartition{
		PartitionNumber: p.partition,
		FirstBlock:      p.partStart,
		LastBlock:       p.position,
	}); err != nil {
		return err
	}

	if !p.caps.CanLocateLong {
		return nil
	}

	next := uint32(p.partition + 1)
	senseBuf, err := p.Device.LocateLong(ctx, next, 0)
	if err != nil || senseBuf != nil {
		return nil
	}
	if err := p.pollUntilStationary(ctx); err != nil {
		return nil
	}

	p.partition = int(next)
	p.partStart = p.position
	p.fileStart = p.position
	return p.mainLoop(ctx)
}
