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

package xbox

import (
	"encoding/binary"

	"github.com/ostafen/discproc/pkg/extents"
)

// maxSecurityExtents is the Xbox Security Sector's fixed capacity: up to
// 16 PSN ranges describing bad/erased regions deliberately burned into
// the game partition at press time (§4.8).
const maxSecurityExtents = 16

// securityRecordSize is one extent record's width within the security
// sector payload: a 4-byte starting PSN followed by a 4-byte ending PSN,
// big-endian, zero-padded when fewer than maxSecurityExtents are in use.
const securityRecordSize = 8

// psnExtent is one raw (start, end) Physical Sector Number pair read
// from the security sector, before PSN→LBA translation.
type psnExtent struct {
	startPSN uint32
	endPSN   uint32
}

// parseSecurityExtents decodes up to maxSecurityExtents (start, end) PSN
// pairs out of a security sector payload, stopping at the first
// all-zero record (an unused slot).
func parseSecurityExtents(data []byte) []psnExtent {
	var out []psnExtent
	for i := 0; i < maxSecurityExtents; i++ {
		off := i * securityRecordSize
		if off+securityRecordSize > len(data) {
			break
		}
		start := binary.BigEndian.Uint32(data[off : off+4])
		end := binary.BigEndian.Uint32(data[off+4 : off+8])
		if start == 0 && end == 0 {
			break
		}
		out = append(out, psnExtent{startPSN: start, endPSN: end})
	}
	return out
}

// psnToLBA converts a Physical Sector Number to an absolute LBA per
// §4.8's piecewise formula: PSNs on layer 0 subtract the XGD base offset
// directly; PSNs on layer 1 are stored ones-complement-reflected (a DVD
// dual-layer opposite-track-path convention) and must be un-reflected
// through layer0End first.
func psnToLBA(psn uint32, layer0End uint64) uint64 {
	if uint64(psn) <= layer0End {
		return uint64(psn) - layerBreakLBA
	}
	return (layer0End+1)*2 - uint64((psn^0xFFFFFF)+1) - layerBreakLBA
}

// badExtentsToLBA converts a security sector's raw PSN extents into an
// extents.Set of absolute LBA ranges, so the game-partition read phase
// can test "is this LBA inside a burned extent" with a single Contains
// call instead of re-deriving the formula per sector.
func badExtentsToLBA(raw []psnExtent, layer0End uint64) extents.Set {
	var set extents.Set
	for _, e := range raw {
		startLBA := psnToLBA(e.startPSN, layer0End)
		endLBA := psnToLBA(e.endPSN, layer0End)
		if endLBA < startLBA {
			startLBA, endLBA = endLBA, startLBA
		}
		set.AddRange(startLBA, endLBA-startLBA+1)
	}
	return set
}
