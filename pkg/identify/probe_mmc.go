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

	"github.com/ostafen/discproc/pkg/scsi"
	"github.com/ostafen/discproc/pkg/scsidev"
)

// mmcProfileTable maps a GET CONFIGURATION current profile to an initial
// MediaType (§4.3 step 3). Later steps (DVD structure, XGD, CD TOC) may
// refine this further.
var mmcProfileTable = map[uint16]MediaType{
	scsi.ProfileCDROM:  CD,
	scsi.ProfileCDR:    CDR,
	scsi.ProfileCDRW:   CDRW,
	scsi.ProfileDVDROM: DVDROM,
	scsi.ProfileDVDR:   DVDR,
	scsi.ProfileDVDRAM: DVDRAM,
	scsi.ProfileDVDRW:  DVDRW,
	scsi.ProfileDVDRDL: DVDRDL,
	scsi.ProfileBDROM:  BDROM,
	scsi.ProfileBDR:    BDR,
	scsi.ProfileBDRE:   BDRE,
	scsi.ProfileHDDVD:  HDDVD,
}

// isDVDProfile reports whether profile is any DVD/HD-DVD family current
// profile, used to gate the READ DISC STRUCTURE probe (§4.3 step 4).
func isDVDProfile(profile uint16) bool {
	switch profile {
	case scsi.ProfileDVDROM, scsi.ProfileDVDR, scsi.ProfileDVDRAM,
		scsi.ProfileDVDRW, scsi.ProfileDVDRDL, scsi.ProfileHDDVD:
		return true
	}
	return false
}

func isCDProfile(profile uint16) bool {
	switch profile {
	case scsi.ProfileCDROM, scsi.ProfileCDR, scsi.ProfileCDRW:
		return true
	}
	return false
}

// probeMMCProfile is never itself a terminal match: it seeds res with an
// initial guess from the current profile and always returns handled=false
// so later, more specific probes still run.
func probeMMCProfile(ctx context.Context, dev scsidev.Device, opts Options, res *Result) (bool, error) {
	_, current, senseBuf, err := dev.GetConfiguration(ctx, scsidev.ProfileFilterCurrent)
	if err != nil {
		s := decodeSense(senseBuf)
		if s.ASC != 0 {
			// Drive doesn't support GET CONFIGURATION (e.g. a plain SCSI
			// block device or tape): not fatal, just means no MMC guess.
			return false, nil
		}
		return false, err
	}

	res.mmcProfile = current
	if mt, ok := mmcProfileTable[current]; ok {
		res.MediaType = mt
	}
	return false, nil
}
