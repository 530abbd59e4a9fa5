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

// Package xbox implements the Xbox Game Disc (XGD) dump pipeline of
// §4.8: a three-phase Kreon unlock/geometry discovery state machine
// followed by a three-phase read order (game partition, middle zone,
// video layer 1). Grounded on the named drive-unlock states of DESIGN
// NOTES §9 and on sargunv/screenscraper-go's lib/roms/xbox/xbe for
// struct/field naming texture on Xbox disc layouts; the teacher itself
// never touches Xbox media, so the field layer here leans on the pack's
// one Xbox-disc-shaped reference rather than on the teacher directly.
package xbox

import (
	"context"
	"fmt"

	"github.com/ostafen/discproc/pkg/scsidev"
)

// layerBreakLBA is the well-known PSN→LBA origin offset XGD media share
// with ordinary DVD-ROM (§4.8's extent formula also subtracts it).
const layerBreakLBA = 0x30000

// Geometry is the derived XGD layout of §4.8: four partition sizes plus
// the two values computed from them.
type Geometry struct {
	L0Video    uint64
	L1Video    uint64
	MiddleZone uint64
	GameSize   uint64

	TotalSize  uint64
	LayerBreak uint64

	// Layer0EndPSN is the raw Physical Sector Number the Physical Format
	// Information block reports as layer 0's last sector — a disc-wide
	// physical property, not a partition size, kept here because
	// psnToLBA (security.go) needs it verbatim rather than derived from
	// L0Video.
	Layer0EndPSN uint64
}

// pfiExtent is the pair of physical-format-information fields every
// geometry step needs: the data area's starting PSN and layer 0's ending
// PSN, both 24-bit fields per MMC's Physical Format Information block.
type pfiExtent struct {
	dataAreaStart uint32
	layer0End     uint32
}

func readPFI(ctx context.Context, dev scsidev.Device) (pfiExtent, error) {
	data, senseBuf, err := dev.ReadDiscStructure(ctx, scsidev.MediaDVD, scsidev.FormatPhysicalInfo, 0, 0)
	if err != nil {
		return pfiExtent{}, fmt.Errorf("xbox: read PFI: %w", err)
	}
	if senseBuf != nil {
		return pfiExtent{}, fmt.Errorf("xbox: read PFI: drive returned sense")
	}
	// data carries READ DISC STRUCTURE's 4-byte length/reserved header
	// before the Physical Format Information block itself.
	body := data
	if len(body) >= 4 {
		body = body[4:]
	}
	if len(body) < 16 {
		return pfiExtent{}, fmt.Errorf("xbox: PFI payload too short (%d bytes)", len(body))
	}

	return pfiExtent{
		dataAreaStart: be24(body[5:8]),
		layer0End:     be24(body[13:16]),
	}, nil
}

func be24(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

func readCapacityBlocks(ctx context.Context, dev scsidev.Device) (uint64, error) {
	blocks, _, senseBuf, err := dev.ReadCapacity16(ctx)
	if err != nil {
		return 0, fmt.Errorf("xbox: read capacity: %w", err)
	}
	if senseBuf != nil {
		return 0, fmt.Errorf("xbox: read capacity: drive returned sense")
	}
	return blocks, nil
}

// DiscoverGeometry drives the three-phase unlock state machine of §4.8
// and returns the derived XGD geometry. It leaves the drive in the
// Wxripper-unlocked state, which is also the state the game-partition
// read phase requires — callers proceed directly from here into
// readGamePartition without re-unlocking.
func DiscoverGeometry(ctx context.Context, dev scsidev.Device) (Geometry, error) {
	var g Geometry

	if _, senseBuf, err := dev.VendorUnlockVideo(ctx); err != nil {
		return g, fmt.Errorf("xbox: Kreon.Lock: %w", err)
	} else if senseBuf != nil {
		return g, fmt.Errorf("xbox: Kreon.Lock: drive returned sense")
	}
	videoTotal, err := readCapacityBlocks(ctx, dev)
	if err != nil {
		return g, err
	}
	pfi, err := readPFI(ctx, dev)
	if err != nil {
		return g, err
	}
	g.L0Video = uint64(pfi.layer0End) - uint64(pfi.dataAreaStart) + 1
	g.L1Video = videoTotal - g.L0Video + 1
	g.Layer0EndPSN = uint64(pfi.layer0End)

	if _, senseBuf, err := dev.UnlockXtreme(ctx); err != nil {
		return g, fmt.Errorf("xbox: Kreon.UnlockXtreme: %w", err)
	} else if senseBuf != nil {
		return g, fmt.Errorf("xbox: Kreon.UnlockXtreme: drive returned sense")
	}
	g.GameSize, err = readCapacityBlocks(ctx, dev)
	if err != nil {
		return g, err
	}

	if _, senseBuf, err := dev.UnlockWxripper(ctx); err != nil {
		return g, fmt.Errorf("xbox: Kreon.UnlockWxripper: %w", err)
	} else if senseBuf != nil {
		return g, fmt.Errorf("xbox: Kreon.UnlockWxripper: drive returned sense")
	}
	discTotal, err := readCapacityBlocks(ctx, dev)
	if err != nil {
		return g, err
	}
	pfi2, err := readPFI(ctx, dev)
	if err != nil {
		return g, err
	}
	videoArea := uint64(pfi2.layer0End) - uint64(pfi2.dataAreaStart) + 1
	g.MiddleZone = discTotal - videoArea - g.GameSize + 1

	g.TotalSize = g.L0Video + g.L1Video + 2*g.MiddleZone + g.GameSize
	g.LayerBreak = g.L0Video + g.MiddleZone + g.GameSize/2

	return g, nil
}
