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

package identify

import (
	"context"

	"github.com/ostafen/discproc/pkg/scsidev"
)

// tapeMediumEntry is one row of the bundled manufacturer/model/medium/
// density/blocks table (§4.3 step 8).
type tapeMediumEntry struct {
	manufacturer string
	model        string
	medium       byte
	density      byte
	blocks       uint64
}

// tapeMediumTable maps known drive+medium+density combinations to their
// native uncompressed block count. probeTape matches on manufacturer,
// model, medium and density only; the block count is carried in the table
// but not compared with the capacity probeCapacity recorded. Entries
// cover the LTO family and DDS,
// the two tape families the dump/tape pipeline targets (§4.9).
var tapeMediumTable = []tapeMediumEntry{
	{"HP", "Ultrium", 0x00, 0x40, 1 << 40 / 8}, // LTO-1
	{"HP", "Ultrium", 0x00, 0x42, 1 << 41 / 8}, // LTO-2
	{"HP", "Ultrium", 0x00, 0x44, 1 << 42 / 8}, // LTO-3
	{"IBM", "Ultrium", 0x00, 0x46, 1 << 43 / 8}, // LTO-4
	{"Sony", "DDS", 0x8c, 0x13, 1 << 32 / 8},
}

// probeTape implements §4.3 step 8: read the mode page carrying the
// medium/density type (mode page 0x00's MEDIUM TYPE and the block
// descriptor's DENSITY CODE, both exposed by MODE SENSE(6) on sequential
// devices) and look it up in the bundled table.
func probeTape(ctx context.Context, dev scsidev.Device, opts Options, res *Result) (bool, error) {
	data, senseBuf, err := dev.ModeSense6(ctx, 0x00, 0x00, scsidev.PageControlCurrent)
	if err != nil {
		if decodeSense(senseBuf).ASC != 0 {
			return false, nil
		}
		return false, err
	}
	if len(data) < 8 {
		return false, nil
	}
	res.setTag(TagModePage2A, data)

	mediumType := data[2]
	blockDescLen := data[3]
	if blockDescLen < 4 {
		return false, nil
	}
	densityCode := data[4]

	for _, e := range tapeMediumTable {
		if (opts.Manufacturer != "" && e.manufacturer != opts.Manufacturer) ||
			(opts.Model != "" && e.model != opts.Model) {
			continue
		}
		if e.medium != mediumType && e.medium != 0x00 {
			continue
		}
		if e.density != densityCode {
			continue
		}
		res.MediaType = Tape
		return true, nil
	}

	// Unrecognized manufacturer/model combination but the device still
	// answered MODE SENSE with a sequential-access block descriptor: a
	// tape drive is present even if we can't name the exact medium.
	if len(data) >= 1 && data[2] != 0 {
		res.MediaType = Tape
		return true, nil
	}

	return false, nil
}
