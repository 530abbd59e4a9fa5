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

// Package scsidev is the narrow Device capability interface the core
// depends on (§4.1). It models a block/optical/tape transport, not a full
// SCSI library: one method per command the rest of the core actually
// issues.
package scsidev

import (
	"context"
	"time"
)

// SectorKind selects the MMC READ CD sector-data portion to return.
type SectorKind uint8

const (
	SectorAny SectorKind = iota
	SectorCDDA
	SectorMode1
	SectorMode2Formless
	SectorMode2Form1
	SectorMode2Form2
)

// HeaderCodes selects which header fields READ CD includes in the
// returned data (sync/header/sub-header).
type HeaderCodes uint8

const (
	HeaderNone HeaderCodes = iota
	HeaderOnly
	SubHeaderOnly
	AllHeaders
)

// SubchannelKind selects the subchannel data READ CD appends.
type SubchannelKind uint8

const (
	SubchannelNone SubchannelKind = iota
	SubchannelRaw
	SubchannelQ16
	SubchannelRW96
)

// MediaKind distinguishes the physical carrier a READ DISC STRUCTURE call
// targets.
type MediaKind uint8

const (
	MediaDVD MediaKind = iota
	MediaBD
)

// DiscStructureFormat is the "format" field of READ DISC STRUCTURE.
type DiscStructureFormat uint8

const (
	FormatPhysicalInfo DiscStructureFormat = 0x00
	FormatDMI          DiscStructureFormat = 0x08
	FormatBCA          DiscStructureFormat = 0x03
)

// ProfileFilter narrows GET CONFIGURATION's feature reporting.
type ProfileFilter uint8

const (
	ProfileFilterAll ProfileFilter = iota
	ProfileFilterCurrent
)

// PageControl is the MODE SENSE PC field.
type PageControl uint8

const (
	PageControlCurrent PageControl = iota
	PageControlChangeable
	PageControlDefault
	PageControlSaved
)

// SpaceKind is the tape SPACE command's "code" field.
type SpaceKind uint8

const (
	SpaceBlocks SpaceKind = iota
	SpaceFilemarks
	SpaceEndOfData
	SpaceSequentialFilemarks
)

// TapePosition is the decoded response to READ POSITION (short or long
// form): both forms project onto the same fields.
type TapePosition struct {
	Partition    uint32
	BlockNumber  uint64
	BOP, EOP     bool
	BlockLimit   bool
}

// Device is the capability set every dump pipeline and the media
// identification engine talk to. Every method takes a context.Context
// first argument and must honor cancellation/deadline (§5). err is
// non-nil only for transport-fatal conditions (timeout, device gone);
// a SCSI CHECK CONDITION is reported through the returned sense bytes,
// decoded by pkg/sense, never through err.
type Device interface {
	TestUnitReady(ctx context.Context) (senseBuf []byte, d time.Duration, err error)

	ReadCapacity10(ctx context.Context) (blocks uint32, blockSize uint32, senseBuf []byte, err error)
	ReadCapacity16(ctx context.Context) (blocks uint64, blockSize uint32, senseBuf []byte, err error)

	Read6(ctx context.Context, lba uint64, blocks uint32, blockSize uint32, fixed bool) (data, senseBuf []byte, d time.Duration, err error)
	Read10(ctx context.Context, lba uint64, blocks uint32, blockSize uint32, fua, dpo bool) (data, senseBuf []byte, d time.Duration, err error)
	Read12(ctx context.Context, lba uint64, blocks uint32, blockSize uint32, fua, dpo bool) (data, senseBuf []byte, d time.Duration, err error)
	Read16(ctx context.Context, lba uint64, blocks uint32, blockSize uint32, fua, dpo bool) (data, senseBuf []byte, d time.Duration, err error)

	ReadCD(ctx context.Context, lba uint64, blocks uint32, kind SectorKind, headerCodes HeaderCodes, includeEDCECC bool, sub SubchannelKind) (data, senseBuf []byte, err error)
	ReadLong10(ctx context.Context, lba uint64, byteCount uint32) (data, senseBuf []byte, err error)

	ReadDiscStructure(ctx context.Context, mediaKind MediaKind, format DiscStructureFormat, layer uint8, agid uint8) (data, senseBuf []byte, err error)

	ReadTOCPMAATIP(ctx context.Context, format uint8, track uint8, msf bool) (data, senseBuf []byte, err error)
	ReadFullTOC(ctx context.Context) (data, senseBuf []byte, err error)
	ReadATIP(ctx context.Context) (data, senseBuf []byte, err error)
	ReadPMA(ctx context.Context) (data, senseBuf []byte, err error)
	ReadCDText(ctx context.Context) (data, senseBuf []byte, err error)
	ReadMCN(ctx context.Context) (data, senseBuf []byte, err error)
	ReadISRC(ctx context.Context, track uint8) (data, senseBuf []byte, err error)

	GetConfiguration(ctx context.Context, filter ProfileFilter) (profiles []uint16, current uint16, senseBuf []byte, err error)

	ModeSense6(ctx context.Context, page, subpage byte, pc PageControl) (data, senseBuf []byte, err error)
	ModeSense10(ctx context.Context, page, subpage byte, pc PageControl) (data, senseBuf []byte, err error)
	ModeSelect(ctx context.Context, data []byte, pageFormat, saveParams bool) (senseBuf []byte, err error)

	ReadPositionShort(ctx context.Context) (TapePosition, []byte, error)
	ReadPositionLong(ctx context.Context) (TapePosition, []byte, error)
	Locate(ctx context.Context, lba uint64) (senseBuf []byte, err error)
	LocateLong(ctx context.Context, partition uint32, lba uint64) (senseBuf []byte, err error)
	Space(ctx context.Context, kind SpaceKind, count int32) (senseBuf []byte, err error)
	WriteFilemarks(ctx context.Context, count uint32) (senseBuf []byte, err error)

	VendorUnlockVideo(ctx context.Context) (data, senseBuf []byte, err error)
	UnlockXtreme(ctx context.Context) (data, senseBuf []byte, err error)
	UnlockWxripper(ctx context.Context) (data, senseBuf []byte, err error)
	ExtractSecuritySector(ctx context.Context) (data, senseBuf []byte, err error)
}
