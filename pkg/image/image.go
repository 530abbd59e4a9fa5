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

// Package image is the disc-image plugin contract (§4.4): a Readable
// optical/block image exposes random-access sector reads, track/session/
// partition tables, and media tags; a Writable adds the dump-time mutation
// surface. Capability queries use the optional-interface idiom
// (`if w, ok := img.(Writable); ok`) rather than a class hierarchy, per
// DESIGN NOTES §9 — generalized from the teacher's format.FileScanner
// interface-over-struct pattern.
package image

import (
	"io"

	"github.com/ostafen/discproc/pkg/identify"
	"github.com/ostafen/discproc/pkg/scsidev"
)

// SectorTagKind indexes a per-sector side channel (subchannel, ECC,
// sync/header bytes) distinct from the cooked sector payload.
type SectorTagKind uint8

const (
	TagSubchannel SectorTagKind = iota
	TagSyncHeader
	TagEDCECC
)

// TrackKind is the track's content type.
type TrackKind uint8

const (
	TrackData TrackKind = iota
	TrackAudio
	TrackMode2Formless
	TrackMode2Form1
	TrackMode2Form2
	TrackDVD
)

// Track is one ordered entry of a session's track list (§3).
type Track struct {
	Sequence             int
	Session              int
	Kind                 TrackKind
	FirstLBA, LastLBA    uint64
	Pregap               uint32
	RawBytesPerSector    uint32
	CookedBytesPerSector uint32
	Subchannel           scsidev.SubchannelKind
	FileOffset           int64
	FileRef              string
}

// Session is an ordered set of tracks (§3).
type Session struct {
	Number              int
	FirstTrack          int
	LastTrack           int
	LeadIn, LeadOut     uint64
}

// Partition is a contiguous LBA range within one track (§3).
type Partition struct {
	Track      int
	FirstLBA   uint64
	LastLBA    uint64
	ByteOffset int64
}

// DumpHardwareInfo records the device/drive identity a dump ran against,
// for forensic audit in the side-car and DFXML trail.
type DumpHardwareInfo struct {
	Manufacturer string
	Model        string
	Firmware     string
	Serial       string
}

// Metadata is free-form image-level description set by the dump
// pipeline at completion time (§4.4 "set_metadata").
type Metadata struct {
	Title   string
	Comment string
}

// TapeFile / TapePartition are sequential regions on a tape image,
// delimited by filemarks (§3).
type TapeFile struct {
	FileNumber int
	FirstBlock uint64
	LastBlock  uint64
}

type TapePartition struct {
	PartitionNumber int
	FirstBlock      uint64
	LastBlock       uint64
}

// CreateOptions carries Creator.Create's format-specific knobs (e.g. the
// bwi footer strictness flag, §4.5).
type CreateOptions struct {
	StrictFooter bool
}

// Readable is the read side of the image plugin contract (§4.4).
type Readable interface {
	Sectors() uint64
	SectorSize() uint32
	Sessions() []Session
	Tracks() []Track
	Partitions() []Partition
	ReadSector(lba uint64) ([]byte, error)
	ReadSectors(lba uint64, n uint32) ([]byte, error)
	ReadSectorLong(lba uint64) ([]byte, error)
	ReadSectorTag(lba uint64, tag SectorTagKind) ([]byte, error)
	ReadMediaTag(kind identify.MediaTagKind) ([]byte, error)
	Close() error
}

// Writable is the dump-time mutation surface layered over Readable
// (§4.4).
type Writable interface {
	Readable
	WriteSector(lba uint64, data []byte) error
	WriteSectors(lba uint64, data []byte) error
	WriteSectorLong(lba uint64, data []byte) error
	WriteSectorTag(lba uint64, tag SectorTagKind, data []byte) error
	WriteMediaTag(kind identify.MediaTagKind, data []byte) error
	SetTracks(tracks []Track) error
	SetDumpHardware(info DumpHardwareInfo) error
	SetMetadata(meta Metadata) error
}

// TapeWritable extends Writable with sequential-media bookkeeping.
type TapeWritable interface {
	Writable
	SetTape()
	AddFile(TapeFile) error
	AddPartition(TapePartition) error
}

// Opener opens an already-created image. name is the container's own
// entry (its main metadata file), resolved through filter; any side-car
// data file a track references is resolved through the same filter.
type Opener interface {
	Open(name string, filter Filter) (Readable, error)
}

// Creator creates a new, empty image of the given media type and
// geometry.
type Creator interface {
	Create(path string, mediaType identify.MediaType, opts CreateOptions, blocks uint64, blockSize uint32) (Writable, error)
}

// Filter is the seekable-byte-stream abstraction every plugin opens its
// backing file(s) through (§4.5, §6), letting tests substitute an
// in-memory filesystem without touching any plugin code.
type Filter interface {
	Open(name string) (io.ReadCloser, error)
}
