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

// physicalFormatInfo is the decoded Physical Format Information block
// (the payload of READ DISC STRUCTURE / PhysicalInformation, stripped of
// its 4-byte length/reserved header).
type physicalFormatInfo struct {
	diskCategory byte // book type, high nibble of byte 0
	partVersion  byte // low nibble of byte 0
	discSize80mm bool
}

// diskCategoryNintendo is the book-type nibble GameCube/Wii media report
// in practice, distinct from the standard DVD-ROM/-R/-RW/+R/+RW values.
const diskCategoryNintendo = 0xe

func decodePFI(pfi []byte) physicalFormatInfo {
	var f physicalFormatInfo
	if len(pfi) < 2 {
		return f
	}
	f.diskCategory = pfi[0] >> 4
	f.partVersion = pfi[0] & 0x0f
	f.discSize80mm = pfi[1]>>6 == 1
	return f
}

// probeDVDStructure implements §4.3 step 4: for any DVD/HD-DVD profile,
// read the Physical Format Information and refine MediaType from
// DiskCategory x PartVersion x DiscSize. GameCube/Wii discs are
// distinguished from a standard DVD-ROM here purely by DiskCategory and
// disc size; the DMI probe in §4.3 step 5 only runs for ordinary
// DVD-ROM media afterward.
func probeDVDStructure(ctx context.Context, dev scsidev.Device, opts Options, res *Result) (bool, error) {
	if !isDVDProfile(res.mmcProfile) {
		return false, nil
	}

	data, senseBuf, err := dev.ReadDiscStructure(ctx, scsidev.MediaDVD, scsidev.FormatPhysicalInfo, 0, 0)
	if err != nil {
		if decodeSense(senseBuf).ASC != 0 {
			return false, nil
		}
		return false, err
	}
	if len(data) < 4 {
		return false, nil
	}
	res.setTag(TagDVDPFI, data)

	pfi := decodePFI(data[4:])

	switch {
	case pfi.diskCategory == diskCategoryNintendo && pfi.discSize80mm:
		res.MediaType = GameCubeDisc
		return true, nil
	case pfi.diskCategory == diskCategoryNintendo:
		res.MediaType = WiiDisc
		return true, nil
	case res.MediaType == DVDR && pfi.partVersion == 6:
		res.MediaType = DVDRDL
		return true, nil
	}

	return false, nil
}
