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

// xboxDMISignature is the vendor string Xbox Game Discs carry at the
// start of their DMI (Disc Manufacturing Information) block.
var xboxDMISignature = []byte("MICROSOFT*XBOX*MEDIA")

// xgd3BlockCounts are the three total-block counts that discriminate
// XGD3 media from XGD1/XGD2 once the DMI signature has already matched
// (§4.3 step 5).
var xgd3BlockCounts = map[uint64]bool{
	25063:   true,
	4229664: true,
	4246304: true,
}

// probeXGD implements §4.3 step 5: for DVD-ROM, read DMI and inspect it
// for the Xbox vendor signature, then discriminate XGD3 from XGD1/2 by
// total block count.
func probeXGD(ctx context.Context, dev scsidev.Device, opts Options, res *Result) (bool, error) {
	if res.mmcProfile != 0x0010 { // DVD-ROM only
		return false, nil
	}

	data, senseBuf, err := dev.ReadDiscStructure(ctx, scsidev.MediaDVD, scsidev.FormatDMI, 0, 0)
	if err != nil {
		if decodeSense(senseBuf).ASC != 0 {
			return false, nil
		}
		return false, err
	}
	if len(data) < 4+len(xboxDMISignature) {
		return false, nil
	}
	res.setTag(TagDVDDMI, data)

	body := data[4:]
	if !bytes.HasPrefix(body, xboxDMISignature) {
		return false, nil
	}

	if xgd3BlockCounts[res.Blocks] {
		res.MediaType = XGD3
		return true, nil
	}

	res.MediaType = XGD2
	return true, nil
}
