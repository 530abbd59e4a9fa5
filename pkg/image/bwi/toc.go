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

package bwi

import (
	"encoding/binary"

	"github.com/ostafen/discproc/pkg/image"
)

// tocEntry is one non-header record of a reconstructed FullTOC (§4.5):
// 11 bytes, (session, (adr<<4)|ctl, 0x00, point, min, sec, frame, zero,
// pmin, psec, pframe).
type tocEntry struct {
	session byte
	adr     byte
	control byte
	point   byte
	min     byte
	sec     byte
	frame   byte
	pmin    byte
	psec    byte
	pframe  byte
}

const (
	pointLeadOut  = 0xa0
	pointLeadOutB = 0xb0
	pointFirstNonTrack = 0xa0
)

func (e tocEntry) marshal() []byte {
	return []byte{
		e.session,
		(e.adr << 4) | e.control,
		0x00,
		e.point,
		e.min, e.sec, e.frame,
		0x00,
		e.pmin, e.psec, e.pframe,
	}
}

// msf converts a zero-based LBA to BCD-free binary minute/second/frame,
// using the Red Book 150-sector lead-in offset and 75 sectors/second.
func msf(lba int64) (min, sec, frame byte) {
	total := lba + 150
	if total < 0 {
		total = 0
	}
	frame = byte(total % 75)
	total /= 75
	sec = byte(total % 60)
	total /= 60
	min = byte(total)
	return
}

// buildFullTOC reconstructs a Red Book FullTOC for the given sessions'
// track descriptors: one entry per track in session order, following
// §4.5's reconstruction rule. Tracks with a point value ≥ 0xA0 are
// metadata points (lead-out, lead-in-of-next-session, etc.) rather than
// allocatable tracks — they still appear in the TOC but the caller must
// not create a Partition for them.
func buildFullTOC(sessions []sessionDesc) []byte {
	var entries []tocEntry
	firstSession := byte(1)
	lastSession := byte(1)
	if len(sessions) > 0 {
		firstSession = byte(sessions[0].sequence)
		lastSession = byte(sessions[len(sessions)-1].sequence)
	}

	for _, s := range sessions {
		for _, t := range s.tracks {
			min, sec, frame := msf(int64(t.track.FirstLBA))
			point := byte(t.track.Sequence)
			control := t.core.Control
			if control == 0 && t.track.Kind != image.TrackAudio {
				control = 0x04 // data track, Red Book control nibble
			}
			entries = append(entries, tocEntry{
				session: byte(s.sequence),
				adr:     1,
				control: control,
				point:   point,
				min:     0, sec: 0, frame: 0,
				pmin: min, psec: sec, pframe: frame,
			})
		}
		// Lead-out point (0xA2 in Red Book terms, simplified to 0xA0 family
		// per §4.5's "points >= 0xA0 are metadata" rule).
		min, sec, frame := msf(int64(s.leadOut))
		entries = append(entries, tocEntry{
			session: byte(s.sequence),
			adr:      1,
			point:   pointLeadOut,
			pmin:    min, psec: sec, pframe: frame,
		})
	}

	buf := make([]byte, 4, 4+len(entries)*11)
	size := uint16(2 + len(entries)*11)
	binary.BigEndian.PutUint16(buf[0:2], size)
	buf[2] = firstSession
	buf[3] = lastSession
	for _, e := range entries {
		buf = append(buf, e.marshal()...)
	}
	return buf
}

// sessionDesc is the in-memory parse result for one session's header
// plus its track descriptors, used both to build Session/Track/Partition
// slices and to reconstruct the FullTOC.
type sessionDesc struct {
	sequence   uint16
	start, end int32
	firstTrack uint16
	lastTrack  uint16
	tracks     []parsedTrack
	leadOut    uint64
}

type parsedTrack struct {
	core  trackDescCore
	track image.Track
}
