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

// Package bwi implements the "Blocked Wrapped Image" container: a
// from-scratch multi-session optical image reader/writer. Layout, byte
// order, and the mode2A[1] -= 2 quirk all follow §4.5.
package bwi

import (
	"encoding/binary"
	"fmt"

	"github.com/ostafen/discproc/pkg/identify"
)

const (
	headerSize = 260
	signature  = "BWIMAGE\x00"
)

// header is the container's fixed 260-byte preamble: magic, profile,
// session count, and the length of every variable-length blob that
// follows it in the file. Field layout follows the teacher's
// fixed-offset-struct-plus-String() texture (internal/disk/mbr.go's
// MBR/MBRPartitionEntry), generalized to this container's own field set
// since spec.md only constrains field order, not byte offsets.
type header struct {
	Version      uint32
	Profile      uint16
	MediaType    identify.MediaType
	SessionCount uint8
	Mode2ALen    uint32
	UnkLen       uint32
	PMALen       uint32
	ATIPLen      uint32
	CDTextLen    uint32
	BCALen       uint32
	DiscInfoLen  uint32
	TotalBlocks  uint64
	BlockSize    uint32
}

func (h *header) String() string {
	return fmt.Sprintf("bwi header: profile=0x%04x media=%s sessions=%d blocks=%d blockSize=%d",
		h.Profile, h.MediaType, h.SessionCount, h.TotalBlocks, h.BlockSize)
}

func parseHeader(buf []byte) (*header, error) {
	if len(buf) < headerSize {
		return nil, fmt.Errorf("bwi: header too short: %d bytes", len(buf))
	}
	if string(buf[:8]) != signature {
		return nil, fmt.Errorf("bwi: bad signature %q", buf[:8])
	}

	le := binary.LittleEndian
	h := &header{
		Version:      le.Uint32(buf[0x08:0x0C]),
		Profile:      le.Uint16(buf[0x0C:0x0E]),
		MediaType:    identify.MediaType(buf[0x0E]),
		SessionCount: buf[0x0F],
		Mode2ALen:    le.Uint32(buf[0x10:0x14]),
		UnkLen:       le.Uint32(buf[0x14:0x18]),
		PMALen:       le.Uint32(buf[0x18:0x1C]),
		ATIPLen:      le.Uint32(buf[0x1C:0x20]),
		CDTextLen:    le.Uint32(buf[0x20:0x24]),
		BCALen:       le.Uint32(buf[0x24:0x28]),
		DiscInfoLen:  le.Uint32(buf[0x28:0x2C]),
		TotalBlocks:  le.Uint64(buf[0x2C:0x34]),
		BlockSize:    le.Uint32(buf[0x34:0x38]),
	}
	return h, nil
}

func (h *header) marshal() []byte {
	buf := make([]byte, headerSize)
	copy(buf[:8], signature)

	le := binary.LittleEndian
	le.PutUint32(buf[0x08:0x0C], h.Version)
	le.PutUint16(buf[0x0C:0x0E], h.Profile)
	buf[0x0E] = byte(h.MediaType)
	buf[0x0F] = h.SessionCount
	le.PutUint32(buf[0x10:0x14], h.Mode2ALen)
	le.PutUint32(buf[0x14:0x18], h.UnkLen)
	le.PutUint32(buf[0x18:0x1C], h.PMALen)
	le.PutUint32(buf[0x1C:0x20], h.ATIPLen)
	le.PutUint32(buf[0x20:0x24], h.CDTextLen)
	le.PutUint32(buf[0x24:0x28], h.BCALen)
	le.PutUint32(buf[0x28:0x2C], h.DiscInfoLen)
	le.PutUint64(buf[0x2C:0x34], h.TotalBlocks)
	le.PutUint32(buf[0x34:0x38], h.BlockSize)
	return buf
}

// dvdFrameSize is the fixed frame DMI(2050)+PFI(2048) share, per §4.5:
// PFI lives at offset 0x802 within the frame.
const (
	dvdDMISize    = 2050
	dvdPFIOffset  = 0x802
	dvdPFISize    = 2048
	dvdFrameSize  = dvdPFIOffset + dvdPFISize
	dvdSynthetic0 = 0x08
	dvdSynthetic1 = 0x02
)

// footerSize is the trailing fixed-size record; spec.md calls for 16
// bytes with a lenient-but-logged overrun policy.
const footerSize = 16
