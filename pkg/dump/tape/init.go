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

	"github.com/ostafen/discproc/pkg/sense"
)

// maxRepositionPolls bounds the "poll sense until the drive stops
// repositioning" loops of §4.9 step 2/3: a real drive clears ASC 0x00/
// ASCQ 0x19 or 0x1A within a few seconds; a drive that never does is a
// fatal condition, not an infinite wait.
const maxRepositionPolls = 10000

// Capabilities records which LOCATE/READ POSITION forms the drive
// actually honors, detected once during initialize and consulted by
// both Run's resume step and the retry phase (§4.9: "retry phase
// requires locate; if neither locate is supported, retries are skipped
// silently").
type Capabilities struct {
	CanLocate     bool
	CanLocateLong bool
}

// initialize runs §4.9's four-step sequence: classify the drive's
// current sense, rewind and wait for repositioning to finish, verify
// partition 0, then probe LOCATE/LOCATE LONG support.
func (p *Pipeline) initialize(ctx context.Context) (Capabilities, error) {
	if err := p.classifySense(ctx); err != nil {
		return Capabilities{}, err
	}
	if err := p.rewindAndWait(ctx); err != nil {
		return Capabilities{}, err
	}
	if err := p.verifyPartitionZero(ctx); err != nil {
		return Capabilities{}, err
	}
	return p.detectLocateCapability(ctx)
}

// classifySense implements §4.9 step 1: a drive reporting anything other
// than ASC 0x00 with ASCQ 0x00 or 0x04 (still in progress/becoming
// ready) is not in a state this pipeline can start from.
func (p *Pipeline) classifySense(ctx context.Context) error {
	senseBuf, _, err := p.Device.TestUnitReady(ctx)
	if err != nil {
		return fmt.Errorf("tape: request sense: %w", err)
	}
	s := sense.Decode(senseBuf)
	if s.ASC != 0x00 || (s.ASCQ != 0x00 && s.ASCQ != 0x04) {
		return fmt.Errorf("tape: request sense: %s", s.Triple())
	}
	return nil
}

// rewindAndWait implements §4.9 step 2. The Device contract has no
// dedicated REWIND command, so rewinding is expressed as a LOCATE to
// block 0 of the current partition — spec.md names `space(logical_block,
// 0)` as one of two acceptable mechanisms and LOCATE is the more direct
// of the two given what scsidev.Device exposes.
func (p *Pipeline) rewindAndWait(ctx context.Context) error {
	if senseBuf, err := p.Device.Locate(ctx, 0); err != nil {
		return fmt.Errorf("tape: rewind: %w", err)
	} else if senseBuf != nil {
		s := sense.Decode(senseBuf)
		return fmt.Errorf("tape: rewind: %s", s.Triple())
	}
	return p.pollUntilStationary(ctx)
}

// pollUntilStationary polls TestUnitReady until the drive no longer
// reports ASC 0x00 with ASCQ 0x19 ("still repositioning to end of
// data") or 0x1A ("still rewinding").
func (p *Pipeline) pollUntilStationary(ctx context.Context) error {
	for i := 0; i < maxRepositionPolls; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		senseBuf, _, err := p.Device.TestUnitReady(ctx)
		if err != nil {
			return fmt.Errorf("tape: poll position: %w", err)
		}
		s := sense.Decode(senseBuf)
		if s.ASC != 0x00 || (s.ASCQ != 0x19 && s.ASCQ != 0x1a) {
			return nil
		}
	}
	return fmt.Errorf("tape: drive never stopped repositioning")
}

// verifyPartitionZero implements §4.9 step 3.
func (p *Pipeline) verifyPartitionZero(ctx context.Context) error {
	pos, senseBuf, err := p.Device.ReadPositionShort(ctx)
	if err != nil {
		return fmt.Errorf("tape: read position: %w", err)
	}
	if senseBuf != nil {
		s := sense.Decode(senseBuf)
		return fmt.Errorf("tape: read position: %s", s.Triple())
	}
	if pos.Partition == 0 {
		return nil
	}

	if senseBuf, err := p.Device.LocateLong(ctx, 0, 0); err != nil {
		return fmt.Errorf("tape: relocate to partition 0: %w", err)
	} else if senseBuf != nil {
		s := sense.Decode(senseBuf)
		return fmt.Errorf("tape: relocate to partition 0: %s", s.Triple())
	}
	return p.pollUntilStationary(ctx)
}

// detectLocateCapability implements §4.9 step 4: probe LOCATE LONG and
// LOCATE independently, each by moving to block 1 and reading the
// position back. Both probes leave the drive at block 1 of partition 0
// on success; the function then locates back to block 0 before it
// returns.
func (p *Pipeline) detectLocateCapability(ctx context.Context) (Capabilities, error) {
	var caps Capabilities

	if senseBuf, err := p.Device.LocateLong(ctx, 0, 1); err == nil && senseBuf == nil {
		if pos, senseBuf, err := p.Device.ReadPositionLong(ctx); err == nil && senseBuf == nil {
			caps.CanLocateLong = pos.BlockNumber == 1
		}
	}

	if senseBuf, err := p.Device.Locate(ctx, 1); err == nil && senseBuf == nil {
		if pos, senseBuf, err := p.Device.ReadPositionShort(ctx); err == nil && senseBuf == nil {
			caps.CanLocate = pos.BlockNumber == 1
		}
	}

	if senseBuf, err := p.Device.Locate(ctx, 0); err != nil {
		return caps, fmt.Errorf("tape: reset position after capability probe: %w", err)
	} else if senseBuf != nil {
		s := sense.Decode(senseBuf)
		return caps, fmt.Errorf("tape: reset position after capability probe: %s", s.Triple())
	}
	return caps, nil
}
