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
	"fmt"

	"github.com/ostafen/discproc/pkg/image"
	"github.com/ostafen/discproc/pkg/scsidev"
)

// subchannelKind infers the per-sector subchannel width from the delta
// between the on-disk sector size and the bare 2352-byte raw sector,
// per §4.5: 0 => none, 16 => interleaved Q subchannel, 96 => the full
// packed/interleaved P-W subchannel. Any other delta is a fatal format
// error — the container is corrupt or from an unsupported variant.
func subchannelKind(sectorSizeOnDisk, raw uint32) (scsidev.SubchannelKind, error) {
	delta := int64(sectorSizeOnDisk) - int64(raw)
	switch delta {
	case 0:
		return scsidev.SubchannelNone, nil
	case 16:
		return scsidev.SubchannelQ16, nil
	case 96:
		return scsidev.SubchannelRW96, nil
	default:
		return 0, fmt.Errorf("bwi: unsupported subchannel delta %d (size=%d raw=%d)", delta, sectorSizeOnDisk, raw)
	}
}

// dataFileEntry is one record of the data-file descriptor table (§4.5):
// a back-reference from a stored byte range to the side-car file that
// holds it, plus the LBA range it covers.
type dataFileEntry struct {
	Type        uint32
	Length      uint32
	Unknown1    [4]uint32
	Offset      uint32
	Unknown2    [3]uint32
	StartLBA    int32
	SectorCount int32
	Filename    string
	Unknown3    uint32
}

const dataFileEntryFixedSize = 4 + 4 + 4*4 + 4 + 3*4 + 4 + 4 + 4 // up to and including filename_len

// parseDataFileEntry decodes one entry starting at buf[0] and returns
// the number of bytes consumed.
func parseDataFileEntry(buf []byte) (dataFileEntry, int, error) {
	if len(buf) < dataFileEntryFixedSize {
		return dataFileEntry{}, 0, fmt.Errorf("bwi: data file entry truncated")
	}
	le := binary.LittleEndian
	e := dataFileEntry{
		Type:   le.Uint32(buf[0:4]),
		Length: le.Uint32(buf[4:8]),
	}
	for i := 0; i < 4; i++ {
		e.Unknown1[i] = le.Uint32(buf[8+i*4 : 12+i*4])
	}
	e.Offset = le.Uint32(buf[24:28])
	for i := 0; i < 3; i++ {
		e.Unknown2[i] = le.Uint32(buf[28+i*4 : 32+i*4])
	}
	e.StartLBA = int32(le.Uint32(buf[40:44]))
	e.SectorCount = int32(le.Uint32(buf[44:48]))
	filenameLen := int(le.Uint32(buf[48:52]))

	off := dataFileEntryFixedSize
	name, err := readUTF16(buf[off:], filenameLen)
	if err != nil {
		return dataFileEntry{}, 0, err
	}
	e.Filename = name
	off += filenameLen * 2

	if len(buf) < off+4 {
		return dataFileEntry{}, 0, fmt.Errorf("bwi: data file entry missing trailing field")
	}
	e.Unknown3 = le.Uint32(buf[off : off+4])
	off += 4

	return e, off, nil
}

func (e dataFileEntry) marshal() []byte {
	nameBytes := writeUTF16(e.Filename)
	buf := make([]byte, dataFileEntryFixedSize+len(nameBytes)+4)
	le := binary.LittleEndian

	le.PutUint32(buf[0:4], e.Type)
	le.PutUint32(buf[4:8], e.Length)
	for i := 0; i < 4; i++ {
		le.PutUint32(buf[8+i*4:12+i*4], e.Unknown1[i])
	}
	le.PutUint32(buf[24:28], e.Offset)
	for i := 0; i < 3; i++ {
		le.PutUint32(buf[28+i*4:32+i*4], e.Unknown2[i])
	}
	le.PutUint32(buf[40:44], uint32(e.StartLBA))
	le.PutUint32(buf[44:48], uint32(e.SectorCount))
	le.PutUint32(buf[48:52], uint32(len(nameBytes)/2))

	off := dataFileEntryFixedSize
	copy(buf[off:], nameBytes)
	off += len(nameBytes)
	le.PutUint32(buf[off:off+4], e.Unknown3)
	return buf
}

// trackDescCore is the 64-byte portion every track descriptor carries;
// data tracks on non-DVD media append an 8-byte streamCursor trailer to
// reach the full 72-byte record (§4.5's documented quirk).
type trackDescCore struct {
	SessionNum       uint8
	Sequence         uint8
	Kind             image.TrackKind
	Control          uint8
	ADR              uint8
	Pregap           uint32
	StartLBA         int32
	EndLBA           int32
	SectorSizeOnDisk uint32
	FileOffset       uint64
	Unknown          [8]uint32
}

const trackDescCoreSize = 64
const trackDescFullSize = 72

func parseTrackDesc(buf []byte) (trackDescCore, image.Track, int, error) {
	if len(buf) < trackDescCoreSize {
		return trackDescCore{}, image.Track{}, 0, fmt.Errorf("bwi: track descriptor truncated")
	}
	le := binary.LittleEndian
	c := trackDescCore{
		SessionNum:       buf[0],
		Sequence:         buf[1],
		Kind:             image.TrackKind(buf[2]),
		Control:          buf[3],
		ADR:              buf[4],
		Pregap:           le.Uint32(buf[8:12]),
		StartLBA:         int32(le.Uint32(buf[12:16])),
		EndLBA:           int32(le.Uint32(buf[16:20])),
		SectorSizeOnDisk: le.Uint32(buf[20:24]),
		FileOffset:       le.Uint64(buf[24:32]),
	}
	for i := 0; i < 8; i++ {
		c.Unknown[i] = le.Uint32(buf[32+i*4 : 36+i*4])
	}

	// Only a real Mode 1 data track carries the trailing 8-byte stream
	// cursor; DVD tracks and every non-data (audio/Mode 2) track use the
	// trimmed 64-byte record (§4.5).
	consumed := trackDescCoreSize
	if c.Kind == image.TrackData {
		consumed = trackDescFullSize
	}

	raw, cooked, err := trackByteLayout(c.Kind)
	if err != nil {
		return trackDescCore{}, image.Track{}, 0, err
	}

	tr := image.Track{
		Sequence:             int(c.Sequence),
		Session:              int(c.SessionNum),
		Kind:                 c.Kind,
		FirstLBA:             uint64(c.StartLBA),
		LastLBA:              uint64(c.EndLBA),
		Pregap:               c.Pregap,
		RawBytesPerSector:    raw,
		CookedBytesPerSector: cooked,
		FileOffset:           int64(c.FileOffset),
	}

	subch, err := subchannelKind(c.SectorSizeOnDisk, raw)
	if err != nil {
		return trackDescCore{}, image.Track{}, 0, err
	}
	tr.Subchannel = subch

	return c, tr, consumed, nil
}

// trackByteLayout translates a TrackKind into (raw, cooked)
// bytes-per-sector per §4.5's track-type table.
func trackByteLayout(kind image.TrackKind) (raw, cooked uint32, err error) {
	switch kind {
	case image.TrackAudio:
		return 2352, 2352, nil
	case image.TrackData:
		return 2352, 2048, nil
	case image.TrackMode2Formless:
		return 2352, 2336, nil
	case image.TrackMode2Form1:
		return 2352, 2048, nil
	case image.TrackMode2Form2:
		return 2352, 2324, nil
	case image.TrackDVD:
		return 2048, 2048, nil
	default:
		return 0, 0, fmt.Errorf("bwi: unknown track kind %d", kind)
	}
}
