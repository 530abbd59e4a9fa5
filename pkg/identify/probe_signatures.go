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
	"bytes"
	"context"

	"github.com/ostafen/discproc/pkg/scsidev"
)

// signature is one fixed magic byte sequence matched at a fixed offset
// within a sampled sector window.
type signature struct {
	mediaType MediaType
	offset    int
	magic     []byte
}

// fixedSectorSignatures are probed against a plain cooked read of sector
// 0 (§4.3 step 7). Offsets are relative to the start of the sector.
var fixedSectorSignatures = []signature{
	{ThreeDO, 0, []byte{0x01, 0x5a, 0x5a, 0x5a, 0x5a, 0x5a, 0x5a, 0x01}},
	{PCEngine, 0, []byte("PC Engine CD-ROM SYSTEM")},
	{PCFX, 0, []byte("PC-FX:Hu_CD-ROM")},
	{AtariJaguar, 0, []byte("ATARI APPROVED DATA HEADER ATRI")},
	{FMTowns, 0, []byte("FM TOWNS")},
	{Playdia, 0, []byte("PLAYDIA ")},
}

// dreamcastMILSignature replaces the usual "SEGA SEGAKATANA" hardware ID
// string a retail Dreamcast IP.BIN carries when the disc is a MIL-CD
// (license-circumventing mixed-mode CD), found at sector 16.
var dreamcastMILSignature = []byte("SEGA LIMITED TEST APPLICATION FOR MIL-CD")

const (
	sectorSizeCooked = 2048
	dreamcastIPBinLBA = 16

	videoNowColorSectors = 9
)

// videoNowColorFingerprint is matched against the concatenation of nine
// consecutive cooked sectors starting at LBA 0.
var videoNowColorFingerprint = []byte{0x56, 0x4e, 0x43, 0x01} // "VNC" + format byte

// probeSectorSignatures implements §4.3 step 7: fixed-offset sector
// signature matching for legacy optical console formats, Dreamcast
// MIL-CD, VideoNow Color, and the PS2/PS3/PS4 boot-region hash family.
// Runs ahead of the generic TOC-based CD classification in the cascade
// so a console-specific match takes priority over the generic "CD"
// verdict probeCDTOC would otherwise assign (an Open Question resolution
// recorded in the design ledger: the spec's step ordering describes
// presentation order, not cascade priority, since every one of these
// formats also has a perfectly valid TOC).
func probeSectorSignatures(ctx context.Context, dev scsidev.Device, opts Options, res *Result) (bool, error) {
	sector0, _, err := dev.ReadCD(ctx, 0, 1, scsidev.SectorAny, scsidev.HeaderNone, false, scsidev.SubchannelNone)
	if err != nil || len(sector0) < sectorSizeCooked {
		return false, nil
	}

	for _, sig := range fixedSectorSignatures {
		if sig.offset+len(sig.magic) > len(sector0) {
			continue
		}
		if bytes.Equal(sector0[sig.offset:sig.offset+len(sig.magic)], sig.magic) {
			res.MediaType = sig.mediaType
			return true, nil
		}
	}

	if ipbin, _, err := dev.ReadCD(ctx, dreamcastIPBinLBA, 1, scsidev.SectorAny, scsidev.HeaderNone, false, scsidev.SubchannelNone); err == nil && len(ipbin) >= sectorSizeCooked {
		if bytes.Contains(ipbin[:sectorSizeCooked], dreamcastMILSignature) {
			res.MediaType = DreamcastMIL
			return true, nil
		}
	}

	if handled, err := probePS2BootRegion(ctx, dev, res); err != nil {
		return false, err
	} else if handled {
		return true, nil
	}

	if handled := probeVideoNowColor(sector0, ctx, dev, res); handled {
		return true, nil
	}

	return false, nil
}

func probeVideoNowColor(sector0 []byte, ctx context.Context, dev scsidev.Device, res *Result) bool {
	buf := make([]byte, 0, videoNowColorSectors*sectorSizeCooked)
	buf = append(buf, sector0...)
	for lba := uint64(1); lba < videoNowColorSectors; lba++ {
		data, _, err := dev.ReadCD(ctx, lba, 1, scsidev.SectorAny, scsidev.HeaderNone, false, scsidev.SubchannelNone)
		if err != nil || len(data) < sectorSizeCooked {
			return false
		}
		buf = append(buf, data...)
	}
	if len(buf) < len(videoNowColorFingerprint) {
		return false
	}
	if bytes.Equal(buf[:len(videoNowColorFingerprint)], videoNowColorFingerprint) {
		res.MediaType = VideoNowColor
		return true
	}
	return false
}
