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

	"github.com/ostafen/discproc/pkg/scsidev"
	"github.com/ostafen/discproc/pkg/sense"
)

// maxBlockSizeAttempts bounds the FirstRead -> AdjustBlockSize -> ReadLoop
// cycle of DESIGN NOTES §9: real tape drives converge within one or two
// ILI corrections, so a drive that never converges is a fatal condition.
const maxBlockSizeAttempts = 8

// seedBlockSize reads the MODE SENSE(6) block descriptor's Block Length
// field (page 0x00, the block descriptor itself rather than a named
// page) as the initial block-size guess, falling back to 1 when the
// drive doesn't expose it (§4.9: "seeded from the MODE SENSE block
// descriptor, or 1 if absent").
func (p *Pipeline) seedBlockSize(ctx context.Context) uint32 {
	data, senseBuf, err := p.Device.ModeSense6(ctx, 0x00, 0, scsidev.PageControlCurrent)
	if err != nil || senseBuf != nil || len(data) < 12 {
		return 1
	}
	size := uint32(data[9])<<16 | uint32(data[10])<<8 | uint32(data[11])
	if size == 0 {
		return 1
	}
	return size
}

// discoverBlockSize implements §4.9's block-size discovery state
// machine: read at the current seed; a drive that demands fixed-length
// mode reports ILLEGAL REQUEST, so switch to fixed=true, length=1 and
// retry; a drive that tolerates variable-length but disagrees on size
// reports ILI with the residual byte count, from which the true block
// length is derived. Either branch backs the tape up one block before
// retrying, since the failed READ(6) already consumed the block
// position.
func (p *Pipeline) discoverBlockSize(ctx context.Context) (uint32, bool, error) {
	blockSize := p.seedBlockSize(ctx)
	fixed := false

	for attempt := 0; attempt < maxBlockSizeAttempts; attempt++ {
		_, senseBuf, _, err := p.Device.Read6(ctx, p.position, 1, blockSize, fixed)
		if err != nil {
			return 0, false, fmt.Errorf("tape: block-size discovery: %w", err)
		}
		if senseBuf == nil {
			return blockSize, fixed, nil
		}

		s := sense.Decode(senseBuf)
		switch {
		case s.Key == sense.IllegalRequest:
			if err := p.spaceBack(ctx); err != nil {
				return 0, false, err
			}
			fixed = true
			blockSize = 1

		case s.ASC == 0x00 && s.ASCQ == 0x00 && s.ILI && s.InfoValid:
			blockSize = blockSize - uint32(int32(s.Info))
			if err := p.spaceBack(ctx); err != nil {
				return 0, false, err
			}

		default:
			return 0, false, fmt.Errorf("tape: block-size discovery: unexpected sense %s", s.Triple())
		}
	}
	return 0, false, fmt.Errorf("tape: block-size discovery: did not converge after %d attempts", maxBlockSizeAttempts)
}

func (p *Pipeline) spaceBack(ctx context.Context) error {
	if senseBuf, err := p.Device.Space(ctx, scsidev.SpaceBlocks, -1); err != nil {
		return fmt.Errorf("tape: space back one block: %w", err)
	} else if senseBuf != nil {
		s := sense.Decode(senseBuf)
		return fmt.Errorf("tape: space back one block: %s", s.Triple())
	}
	return nil
}
