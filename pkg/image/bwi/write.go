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
	"os"
	"path/filepath"
	"sort"

	"github.com/ostafen/discproc/pkg/identify"
	"github.com/ostafen/discproc/pkg/image"
)

// Create makes a fresh, memory-backed bwi image of the given geometry.
// Sector data accumulates in memory as the dump pipeline writes it;
// Close serializes the full container plus a single side-car data file
// to disk (§4.5).
func Create(path string, mediaType identify.MediaType, opts image.CreateOptions, blocks uint64, blockSize uint32) (*Image, error) {
	img := &Image{
		h: &header{
			Version:      1,
			MediaType:    mediaType,
			TotalBlocks:  blocks,
			BlockSize:    blockSize,
			SessionCount: 1,
		},
		memoryBacked: true,
		path:         path,
		createOpts:   Options{StrictFooter: opts.StrictFooter},
		sectorBuf:    make([]byte, blocks*uint64(blockSize)),
		tagsOut:      make(map[identify.MediaTagKind][]byte),
	}
	return img, nil
}

func (img *Image) writeAt(lba uint64, data []byte) error {
	size := int64(img.h.BlockSize)
	start := int64(lba) * size
	if start < 0 || start+int64(len(data)) > int64(len(img.sectorBuf)) {
		return fmt.Errorf("bwi: write at lba %d out of bounds", lba)
	}
	copy(img.sectorBuf[start:], data)
	return nil
}

// WriteSector writes one cooked sector's worth of data at lba.
func (img *Image) WriteSector(lba uint64, data []byte) error {
	return img.writeAt(lba, data)
}

// WriteSectors writes data (which may span several sectors) starting at lba.
func (img *Image) WriteSectors(lba uint64, data []byte) error {
	return img.writeAt(lba, data)
}

// WriteSectorLong writes a full raw sector; bwi.Create's buffer is
// already sized to the caller's chosen blockSize, so a raw write simply
// overwrites the same region as a cooked one would (images created with
// raw geometry pass blockSize=2352 at Create time).
func (img *Image) WriteSectorLong(lba uint64, data []byte) error {
	return img.writeAt(lba, data)
}

// WriteSectorTag is a Non-goal for memory-backed images created fresh
// (§4.4's capability-query contract): bwi doesn't track per-sector
// subchannel/ECC side channels independently of the cooked payload for
// a dump in progress, only once SetTracks below has fixed the track
// table and ReadSectorTag starts serving from the finalized container.
func (img *Image) WriteSectorTag(lba uint64, tag image.SectorTagKind, data []byte) error {
	return image.ErrFeatureNotImplemented
}

// WriteMediaTag stores a complete media tag blob (PMA, ATIP, CD-Text,
// DMI, PFI, ...) for inclusion at Close time.
func (img *Image) WriteMediaTag(kind identify.MediaTagKind, data []byte) error {
	if img.tagsOut == nil {
		img.tagsOut = make(map[identify.MediaTagKind][]byte)
	}
	img.tagsOut[kind] = data
	return nil
}

// SetTracks installs the final track table, regroups tracks into
// sessions, and rebuilds the derived partition/TOC views.
func (img *Image) SetTracks(tracks []image.Track) error {
	sorted := make([]image.Track, len(tracks))
	copy(sorted, tracks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].FirstLBA < sorted[j].FirstLBA })
	img.tracks = sorted
	img.partitions = buildPartitions(sorted)

	bySession := map[int][]parsedTrack{}
	var seqs []int
	for _, t := range sorted {
		if _, ok := bySession[t.Session]; !ok {
			seqs = append(seqs, t.Session)
		}
		bySession[t.Session] = append(bySession[t.Session], parsedTrack{track: t})
	}
	sort.Ints(seqs)

	img.sessions = img.sessions[:0]
	for _, seq := range seqs {
		ts := bySession[seq]
		sd := sessionDesc{sequence: uint16(seq), tracks: ts}
		if len(ts) > 0 {
			sd.firstTrack = uint16(ts[0].track.Sequence)
			sd.lastTrack = uint16(ts[len(ts)-1].track.Sequence)
			sd.leadOut = ts[len(ts)-1].track.LastLBA + 1
		}
		img.sessions = append(img.sessions, sd)
	}
	img.h.SessionCount = uint8(len(img.sessions))
	img.fullTOC = buildFullTOC(img.sessions)
	return nil
}

// SetDumpHardware / SetMetadata record forensic-audit fields the dump
// pipeline attaches at completion. bwi has no on-disk slot for either
// (§4.5's layout is exhaustively enumerated and neither field appears in
// it); the resume side-car (pkg/resume) is the durable home for this
// information, so these setters only keep it in memory for the result
// package's accessors during the same process.
func (img *Image) SetDumpHardware(info image.DumpHardwareInfo) error {
	img.hw = info
	return nil
}

func (img *Image) SetMetadata(meta image.Metadata) error {
	img.metadata = meta
	return nil
}

// Close flushes a memory-backed image: the side-car data file first,
// then the container with every table pointing at it.
func (img *Image) Close() error {
	if !img.memoryBacked {
		return nil
	}

	dir := filepath.Dir(img.path)
	dataPath := filepath.Join(dir, createDataFileName)
	if err := os.WriteFile(dataPath, img.sectorBuf, 0o644); err != nil {
		return fmt.Errorf("bwi: write data file: %w", err)
	}

	for i := range img.tracks {
		img.tracks[i].FileRef = createDataFileName
		img.tracks[i].FileOffset = int64(img.tracks[i].FirstLBA) * int64(img.h.BlockSize)
	}
	img.dataFiles = []dataFileEntry{{
		StartLBA:    0,
		SectorCount: int32(img.h.TotalBlocks),
		Filename:    createDataFileName,
		Length:      uint32(len(img.sectorBuf)),
	}}
	img.dataPath = createDataFileName

	buf, err := img.marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(img.path, buf, 0o644)
}

// marshal serializes the full container layout of §4.5 in field order.
func (img *Image) marshal() ([]byte, error) {
	h := *img.h
	h.Mode2ALen = uint32(len(img.mode2A))
	h.UnkLen = uint32(len(img.unk))
	h.PMALen = uint32(maxInt(len(img.tagsOut[identify.TagPMA])-4, 0))
	h.ATIPLen = uint32(maxInt(len(img.tagsOut[identify.TagATIP])-4, 0))
	h.CDTextLen = uint32(maxInt(len(img.tagsOut[identify.TagCDText])-4, 0))
	h.BCALen = uint32(len(img.tagsOut[identify.TagDVDBCA]))
	h.DiscInfoLen = uint32(len(img.discInfo))

	var buf []byte
	buf = append(buf, h.marshal()...)
	buf = append(buf, img.mode2A...)
	buf = append(buf, img.unk...)
	buf = append(buf, padTo(img.tagsOut[identify.TagPMA], int(h.PMALen)+4)...)
	buf = append(buf, padTo(img.tagsOut[identify.TagATIP], int(h.ATIPLen)+4)...)
	buf = append(buf, padTo(img.tagsOut[identify.TagCDText], int(h.CDTextLen)+4)...)
	buf = append(buf, img.tagsOut[identify.TagDVDBCA]...)

	dvdFrame := make([]byte, dvdFrameSize)
	copy(dvdFrame[:dvdDMISize], stripSyntheticHeader(img.tagsOut[identify.TagDVDDMI]))
	copy(dvdFrame[dvdPFIOffset:dvdPFIOffset+dvdPFISize], stripSyntheticHeader(img.tagsOut[identify.TagDVDPFI]))
	buf = append(buf, dvdFrame...)

	buf = append(buf, img.discInfo...)

	dataBlockCount := make([]byte, 4)
	binary.LittleEndian.PutUint32(dataBlockCount, uint32(len(img.dataFiles)))
	buf = append(buf, dataBlockCount...)

	pathBytes := writeUTF16(img.dataPath)
	pathLen := make([]byte, 4)
	binary.LittleEndian.PutUint32(pathLen, uint32(len(pathBytes)/2))
	buf = append(buf, pathLen...)
	buf = append(buf, pathBytes...)

	for _, e := range img.dataFiles {
		buf = append(buf, e.marshal()...)
	}

	for _, s := range img.sessions {
		sh := make([]byte, 16)
		binary.LittleEndian.PutUint16(sh[0:2], s.sequence)
		sh[2] = uint8(len(s.tracks))
		binary.LittleEndian.PutUint32(sh[4:8], uint32(s.start))
		binary.LittleEndian.PutUint32(sh[8:12], uint32(s.end))
		binary.LittleEndian.PutUint16(sh[12:14], s.firstTrack)
		binary.LittleEndian.PutUint16(sh[14:16], s.lastTrack)
		buf = append(buf, sh...)

		for _, t := range s.tracks {
			buf = append(buf, marshalTrackDesc(t.track)...)
		}
	}

	buf = append(buf, img.dpm...)
	buf = append(buf, make([]byte, 4)...) // unused
	if len(img.footer) == footerSize {
		buf = append(buf, img.footer...)
	} else {
		buf = append(buf, make([]byte, footerSize)...)
	}

	return buf, nil
}

func marshalTrackDesc(t image.Track) []byte {
	raw, cooked, _ := trackByteLayout(t.Kind)
	sub := subchannelWidth(t.Subchannel)
	sectorSizeOnDisk := raw + uint32(sub)
	_ = cooked

	full := make([]byte, trackDescFullSize)
	full[0] = byte(t.Session)
	full[1] = byte(t.Sequence)
	full[2] = byte(t.Kind)
	le := binary.LittleEndian
	le.PutUint32(full[8:12], t.Pregap)
	le.PutUint32(full[12:16], uint32(t.FirstLBA))
	le.PutUint32(full[16:20], uint32(t.LastLBA))
	le.PutUint32(full[20:24], sectorSizeOnDisk)
	le.PutUint64(full[24:32], uint64(t.FileOffset))

	if t.Kind == image.TrackData {
		return full
	}
	return full[:trackDescCoreSize]
}

func padTo(b []byte, n int) []byte {
	if len(b) >= n {
		return b[:n]
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

func stripSyntheticHeader(b []byte) []byte {
	if len(b) >= 4 {
		return b[4:]
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
