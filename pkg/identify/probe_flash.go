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

// floppyModePage is the MODE SENSE flexible disk page (0x05) code, whose
// presence on a USB mass-storage device with no other classification
// indicates a flash drive identifying itself through a legacy
// floppy-emulation mode page (§4.3 step 9).
const floppyModePage = 0x05

func probeFlashDrive(ctx context.Context, dev scsidev.Device, opts Options, res *Result) (bool, error) {
	if !opts.USB {
		return false, nil
	}

	_, senseBuf, err := dev.ModeSense6(ctx, floppyModePage, 0x00, scsidev.PageControlCurrent)
	if err != nil {
		if decodeSense(senseBuf).ASC != 0 {
			return false, nil
		}
		return false, err
	}

	res.MediaType = FlashDrive
	return true, nil
}
