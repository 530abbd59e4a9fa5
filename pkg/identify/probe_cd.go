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

// tocTrackDescriptor is one 8-byte entry of a format-0 TOC (after the
// 4-byte header), laid out per MMC: reserved, ADR/control nibbles,
// track number, reserved, 4-byte address.
type tocTrackDescriptor struct {
	adr     byte
	control byte
	track   byte
}

func parseTOCTracks(toc []byte) []tocTrackDescriptor {
	if len(toc) < 4 {
		return nil
	}
	body := toc[4:]
	var out []tocTrackDescriptor
	for len(body) >= 8 {
		out = append(out, tocTrackDescriptor{
			adr:     body[1] >> 4,
			control: body[1] & 0x0f,
			track:   body[2],
		})
		body = body[8:]
	}
	return out
}

const (
	controlDataTrack  = 0x04
	pointA0LeadOut    = 0xa0
	pointA0PSecCDI    = 0x10
	pointA0PSecCDROMX = 0x20
)

// probeCDTOC implements §4.3 step 6: CD profiles and anything the MMC
// probe could not classify fall through here. TOC presence alone settles
// plain CD; ATIP further distinguishes CD-R/CD-RW; the full TOC's A0
// point PSEC byte distinguishes CD-I and CD-ROM XA; a first audio
// session followed by a later data session makes it CD+.
func probeCDTOC(ctx context.Context, dev scsidev.Device, opts Options, res *Result) (bool, error) {
	if res.mmcProfile != 0 && !isCDProfile(res.mmcProfile) {
		return false, nil
	}

	toc, tocSense, err := dev.ReadTOCPMAATIP(ctx, 0x00, 0, false)
	if err != nil {
		if decodeSense(tocSense).ASC != 0 {
			return false, nil
		}
		return false, err
	}
	if len(toc) < 4 {
		return false, nil
	}
	res.MediaType = CD

	if atip, atipSense, err := dev.ReadATIP(ctx); err == nil && len(atip) >= 4+13 {
		res.setTag(TagATIP, atip)
		discTypeBit := atip[4+2]&0x40 != 0 // byte index 2 of the ATIP body, bit 6
		if discTypeBit {
			res.MediaType = CDRW
		} else {
			res.MediaType = CDR
		}
	} else if decodeSense(atipSense).ASC == 0 && err != nil {
		return false, err
	}

	if fullTOC, ftSense, err := dev.ReadFullTOC(ctx); err == nil && len(fullTOC) > 4 {
		res.setTag(TagFullTOC, fullTOC)
		if psec, ok := findA0PSec(fullTOC); ok {
			switch psec {
			case pointA0PSecCDI:
				res.MediaType = CDI
			case pointA0PSecCDROMX:
				res.MediaType = CDROMXA
			}
		}
	} else if decodeSense(ftSense).ASC == 0 && err != nil {
		return false, err
	}

	if isCDPlus(toc) {
		res.MediaType = CDPlus
	}

	return true, nil
}

// findA0PSec scans a full-format TOC's raw descriptors for the lead-out
// area's point A0 and returns its PSEC byte (the track-start-time second
// field, repurposed by MMC to carry the disc-format indicator).
func findA0PSec(fullTOC []byte) (byte, bool) {
	if len(fullTOC) < 4 {
		return 0, false
	}
	body := fullTOC[4:]
	for len(body) >= 11 {
		point := body[3]
		if point == pointA0LeadOut {
			return body[9], true
		}
		body = body[11:]
	}
	return 0, false
}

// isCDPlus reports session count > 1 with the first session holding an
// audio track and a later session holding a data track.
func isCDPlus(toc []byte) bool {
	tracks := parseTOCTracks(toc)
	if len(tracks) < 2 {
		return false
	}
	firstIsAudio := tracks[0].control&controlDataTrack == 0
	if !firstIsAudio {
		return false
	}
	for _, t := range tracks[1:] {
		if t.control&controlDataTrack != 0 {
			return true
		}
	}
	return false
}
