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
	"io"
	"log/slog"
	"sort"

	"github.com/ostafen/discproc/pkg/identify"
	"github.com/ostafen/discproc/pkg/image"
)

// Image is the in-memory parse of one bwi container: every blob and
// table is materialized up front, the same "slurp the whole structure,
// then serve random-access reads against it" approach the teacher's
// internal/format readers use for their (much smaller) file headers.
type Image struct {
	filter image.Filter

	h *header

	mode2A, unk         []byte
	pma, atip, cdtext   []byte
	bca, dmi, pfi       []byte
	discInfo            []byte

	dataPath    string
	dataFiles   []dataFileEntry
	sessions    []sessionDesc

	tracks     []image.Track
	partitions []image.Partition
	fullTOC    []byte

	dpm    []byte
	footer []byte

	metadata image.Metadata
	hw       image.DumpHardwareInfo

	// memoryBacked images come from Create: sector data lives in sectorBuf
	// until Close flushes the container and its single side-car data file
	// to disk. Parsed-from-file images instead stream reads through the
	// Filter (see read.go) and never set this.
	memoryBacked bool
	path         string
	createOpts   Options
	sectorBuf    []byte
	tagsOut      map[identify.MediaTagKind][]byte
}

const createDataFileName = "data.bin"

// Options configures how a bwi image is opened or created.
type Options struct {
	// StrictFooter rejects a container whose trailing 16-byte footer
	// was truncated or overrun instead of logging and continuing.
	StrictFooter bool
}

// Open parses the container addressed by name through filter and
// resolves every track's side-car data file through the same filter.
func Open(name string, filter image.Filter, opts Options) (*Image, error) {
	f, err := filter.Open(name)
	if err != nil {
		return nil, fmt.Errorf("bwi: open %s: %w", name, err)
	}
	defer f.Close()

	buf, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("bwi: read %s: %w", name, err)
	}

	img, err := parse(buf, opts)
	if err != nil {
		return nil, err
	}
	img.filter = filter
	return img, nil
}

func parse(buf []byte, opts Options) (*Image, error) {
	h, err := parseHeader(buf)
	if err != nil {
		return nil, err
	}

	img := &Image{h: h}
	off := headerSize

	take := func(n uint32) ([]byte, error) {
		end := off + int(n)
		if end > len(buf) {
			return nil, fmt.Errorf("bwi: truncated container at offset %d (need %d more bytes)", off, n)
		}
		b := buf[off:end]
		off = end
		return b, nil
	}

	if img.mode2A, err = take(h.Mode2ALen); err != nil {
		return nil, err
	}
	// §4.5 / DESIGN NOTES §9: decrement byte 1 before the page is treated
	// as decoded. Undocumented upstream; preserved as a compatibility quirk.
	if len(img.mode2A) > 1 {
		img.mode2A[1] -= 2
	}

	if img.unk, err = take(h.UnkLen); err != nil {
		return nil, err
	}
	if img.pma, err = take(h.PMALen + 4); err != nil {
		return nil, err
	}
	if img.atip, err = take(h.ATIPLen + 4); err != nil {
		return nil, err
	}
	if img.cdtext, err = take(h.CDTextLen + 4); err != nil {
		return nil, err
	}
	if img.bca, err = take(h.BCALen); err != nil {
		return nil, err
	}

	dvdFrame, err := take(uint32(dvdFrameSize))
	if err != nil {
		return nil, err
	}
	img.dmi = withSyntheticHeader(dvdFrame[:dvdDMISize])
	img.pfi = withSyntheticHeader(dvdFrame[dvdPFIOffset : dvdPFIOffset+dvdPFISize])

	if img.discInfo, err = take(h.DiscInfoLen); err != nil {
		return nil, err
	}

	if off+4 > len(buf) {
		return nil, fmt.Errorf("bwi: truncated container before data block count")
	}
	dataBlockCount := binary.LittleEndian.Uint32(buf[off : off+4])
	off += 4

	if off+4 > len(buf) {
		return nil, fmt.Errorf("bwi: truncated container before data path length")
	}
	pathLen := int(binary.LittleEndian.Uint32(buf[off : off+4]))
	off += 4
	dataPath, err := readUTF16(buf[off:], pathLen)
	if err != nil {
		return nil, err
	}
	img.dataPath = dataPath
	off += pathLen * 2

	for i := uint32(0); i < dataBlockCount; i++ {
		e, n, err := parseDataFileEntry(buf[off:])
		if err != nil {
			return nil, fmt.Errorf("bwi: data file entry %d: %w", i, err)
		}
		img.dataFiles = append(img.dataFiles, e)
		off += n
	}

	for s := uint8(0); s < h.SessionCount; s++ {
		if off+16 > len(buf) {
			return nil, fmt.Errorf("bwi: truncated container before session %d header", s)
		}
		sd := sessionDesc{
			sequence:   binary.LittleEndian.Uint16(buf[off : off+2]),
			start:      int32(binary.LittleEndian.Uint32(buf[off+4 : off+8])),
			end:        int32(binary.LittleEndian.Uint32(buf[off+8 : off+12])),
			firstTrack: binary.LittleEndian.Uint16(buf[off+12 : off+14]),
			lastTrack:  binary.LittleEndian.Uint16(buf[off+14 : off+16]),
		}
		entries := buf[off+2]
		off += 16

		for e := uint8(0); e < entries; e++ {
			core, tr, n, err := parseTrackDesc(buf[off:])
			if err != nil {
				return nil, fmt.Errorf("bwi: session %d track %d: %w", sd.sequence, e, err)
			}
			tr.Session = int(sd.sequence)
			assignFileRef(&tr, img.dataFiles)
			sd.tracks = append(sd.tracks, parsedTrack{core: core, track: tr})
			img.tracks = append(img.tracks, tr)
			off += n
		}
		if len(sd.tracks) > 0 {
			sd.leadOut = sd.tracks[len(sd.tracks)-1].track.LastLBA + 1
		}
		img.sessions = append(img.sessions, sd)
	}

	sort.Slice(img.tracks, func(i, j int) bool { return img.tracks[i].FirstLBA < img.tracks[j].FirstLBA })
	img.partitions = buildPartitions(img.tracks)
	img.fullTOC = buildFullTOC(img.sessions)

	remaining := len(buf) - off
	dpmLen := remaining - 4 - footerSize
	if dpmLen < 0 {
		if opts.StrictFooter {
			return nil, fmt.Errorf("bwi: container too short for footer: %d bytes remain after tables", remaining)
		}
		slog.Warn("bwi: footer overrun, continuing without trailing DPM/footer", "remaining", remaining)
		img.dpm = nil
		img.footer = nil
		return img, nil
	}

	img.dpm = buf[off : off+dpmLen]
	off += dpmLen + 4 // skip the u32 "unused" field
	img.footer = buf[off : off+footerSize]

	return img, nil
}

// withSyntheticHeader prepends the [08 02 00 00] header §4.5 requires
// on every DMI/PFI blob returned through ReadMediaTag.
func withSyntheticHeader(b []byte) []byte {
	out := make([]byte, 4+len(b))
	out[0], out[1] = dvdSynthetic0, dvdSynthetic1
	copy(out[4:], b)
	return out
}

// assignFileRef finds the data-file entry containing tr's first LBA and
// records its path on the track. Tracks whose bytes are split across
// multiple data-file entries are not modeled (§4.5's Non-goals: single
// bin-per-track layouts are what this container targets).
func assignFileRef(tr *image.Track, entries []dataFileEntry) {
	for _, e := range entries {
		if int64(tr.FirstLBA) >= int64(e.StartLBA) && int64(tr.FirstLBA) < int64(e.StartLBA)+int64(e.SectorCount) {
			tr.FileRef = e.Filename
			return
		}
	}
}

func buildPartitions(tracks []image.Track) []image.Partition {
	parts := make([]image.Partition, 0, len(tracks))
	for _, t := range tracks {
		parts = append(parts, image.Partition{
			Track:      t.Sequence,
			FirstLBA:   t.FirstLBA,
			LastLBA:    t.LastLBA,
			ByteOffset: t.FileOffset,
		})
	}
	return parts
}

// Sectors / SectorSize / Sessions / Tracks / Partitions implement the
// read-only facet of image.Readable.
func (img *Image) Sectors() uint64     { return img.h.TotalBlocks }
func (img *Image) SectorSize() uint32  { return img.h.BlockSize }
func (img *Image) Tracks() []image.Track { return img.tracks }
func (img *Image) Partitions() []image.Partition { return img.partitions }

func (img *Image) Sessions() []image.Session {
	out := make([]image.Session, 0, len(img.sessions))
	for _, s := range img.sessions {
		out = append(out, image.Session{
			Number:     int(s.sequence),
			FirstTrack: int(s.firstTrack),
			LastTrack:  int(s.lastTrack),
			LeadIn:     uint64(s.start),
			LeadOut:    s.leadOut,
		})
	}
	return out
}
