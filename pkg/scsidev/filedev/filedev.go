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

// Package filedev backs scsidev.Device with a plain *os.File/byte-slice,
// with no ioctls, so the dump pipelines and media identification engine
// can be exercised by tests on any OS. Errors and sense bytes are
// synthesized from an injectable fault table rather than real hardware,
// following the teacher's os.File.ReadAt-based disk.DiskInfo access
// pattern (internal/disk/stat.go) generalized to the Device interface.
package filedev

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"time"

	"github.com/ostafen/discproc/pkg/scsidev"
)

// Fault lets a test inject a sense response for a specific LBA instead of
// reading real data, simulating a bad sector or a unit-attention event.
type Fault struct {
	LBA   uint64
	Sense []byte
}

// Device is an in-memory or flat-file backed scsidev.Device. BlockSize
// and the backing reader are fixed at construction; Faults can be
// registered per-LBA to simulate read errors deterministically.
type Device struct {
	r          io.ReaderAt
	size       int64
	blockSize  uint32
	faults     map[uint64][]byte
	tapePos    scsidev.TapePosition
	profile    uint16
	modePage2A []byte

	discStructures map[scsidev.DiscStructureFormat][]byte
	tocFormats     map[uint8][]byte
	fullTOC        []byte
	atip           []byte
	cdSectors      map[uint64][]byte
	modePages      map[byte][]byte
}

// New wraps r (size bytes total) as a Device with the given block size.
func New(r io.ReaderAt, size int64, blockSize uint32) *Device {
	return &Device{
		r:         r,
		size:      size,
		blockSize: blockSize,
		faults:    make(map[uint64][]byte),
	}
}

// NewFromBytes is a convenience constructor over an in-memory image.
func NewFromBytes(data []byte, blockSize uint32) *Device {
	return New(bytes.NewReader(data), int64(len(data)), blockSize)
}

// SetFault registers a canned sense response to return instead of reading
// the LBA's real bytes.
func (d *Device) SetFault(lba uint64, sense []byte) {
	d.faults[lba] = sense
}

// SetProfile fixes the value GetConfiguration reports as the current
// profile, letting identify tests exercise the MMC profile table (§4.3
// step 3) without a real drive.
func (d *Device) SetProfile(profile uint16) {
	d.profile = profile
}

func (d *Device) blockCount() uint64 {
	return uint64(d.size) / uint64(d.blockSize)
}

func (d *Device) readBlocks(lba uint64, n uint32) ([]byte, []byte, error) {
	if sense, ok := d.faults[lba]; ok {
		return nil, sense, nil
	}

	off := int64(lba) * int64(d.blockSize)
	buf := make([]byte, int64(n)*int64(d.blockSize))
	read, err := d.r.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return nil, nil, err
	}
	return buf[:read], nil, nil
}

func (d *Device) TestUnitReady(ctx context.Context) ([]byte, time.Duration, error) {
	return nil, 0, ctx.Err()
}

func (d *Device) ReadCapacity10(ctx context.Context) (uint32, uint32, []byte, error) {
	blocks := d.blockCount()
	if blocks > 0 {
		blocks--
	}
	if blocks > 0xFFFFFFFE {
		return 0xFFFFFFFF, d.blockSize, nil, ctx.Err()
	}
	return uint32(blocks), d.blockSize, nil, ctx.Err()
}

func (d *Device) ReadCapacity16(ctx context.Context) (uint64, uint32, []byte, error) {
	blocks := d.blockCount()
	if blocks > 0 {
		blocks--
	}
	return blocks, d.blockSize, nil, ctx.Err()
}

func (d *Device) Read6(ctx context.Context, lba uint64, blocks uint32, blockSize uint32, fixed bool) ([]byte, []byte, time.Duration, error) {
	data, sense, err := d.readBlocks(lba, blocks)
	return data, sense, 0, err
}

func (d *Device) Read10(ctx context.Context, lba uint64, blocks uint32, blockSize uint32, fua, dpo bool) ([]byte, []byte, time.Duration, error) {
	data, sense, err := d.readBlocks(lba, blocks)
	return data, sense, 0, err
}

func (d *Device) Read12(ctx context.Context, lba uint64, blocks uint32, blockSize uint32, fua, dpo bool) ([]byte, []byte, time.Duration, error) {
	data, sense, err := d.readBlocks(lba, blocks)
	return data, sense, 0, err
}

func (d *Device) Read16(ctx context.Context, lba uint64, blocks uint32, blockSize uint32, fua, dpo bool) ([]byte, []byte, time.Duration, error) {
	data, sense, err := d.readBlocks(lba, blocks)
	return data, sense, 0, err
}

func (d *Device) ReadCD(ctx context.Context, lba uint64, blocks uint32, kind scsidev.SectorKind, headerCodes scsidev.HeaderCodes, includeEDCECC bool, sub scsidev.SubchannelKind) ([]byte, []byte, error) {
	if blocks == 1 {
		if data, ok := d.cdSectors[lba]; ok {
			return data, nil, nil
		}
	}
	data, sense, err := d.readBlocks(lba, blocks)
	return data, sense, err
}

func (d *Device) ReadLong10(ctx context.Context, lba uint64, byteCount uint32) ([]byte, []byte, error) {
	off := int64(lba) * int64(d.blockSize)
	buf := make([]byte, byteCount)
	n, err := d.r.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return nil, nil, err
	}
	return buf[:n], nil, nil
}

func (d *Device) ReadDiscStructure(ctx context.Context, mediaKind scsidev.MediaKind, format scsidev.DiscStructureFormat, layer uint8, agid uint8) ([]byte, []byte, error) {
	if data, ok := d.discStructures[format]; ok {
		return data, nil, nil
	}
	return nil, unsupportedCommandSense(), nil
}

func (d *Device) ReadTOCPMAATIP(ctx context.Context, format uint8, track uint8, msf bool) ([]byte, []byte, error) {
	if data, ok := d.tocFormats[format&0x0f]; ok {
		return data, nil, nil
	}
	return nil, unsupportedCommandSense(), nil
}

func (d *Device) ReadFullTOC(ctx context.Context) ([]byte, []byte, error) {
	if d.fullTOC != nil {
		return d.fullTOC, nil, nil
	}
	return nil, unsupportedCommandSense(), nil
}

func (d *Device) ReadATIP(ctx context.Context) ([]byte, []byte, error) {
	if d.atip != nil {
		return d.atip, nil, nil
	}
	return nil, unsupportedCommandSense(), nil
}

func (d *Device) ReadPMA(ctx context.Context) ([]byte, []byte, error) {
	return nil, unsupportedCommandSense(), nil
}

func (d *Device) ReadCDText(ctx context.Context) ([]byte, []byte, error) {
	return nil, unsupportedCommandSense(), nil
}

func (d *Device) ReadMCN(ctx context.Context) ([]byte, []byte, error) {
	return nil, unsupportedCommandSense(), nil
}

func (d *Device) ReadISRC(ctx context.Context, track uint8) ([]byte, []byte, error) {
	return nil, unsupportedCommandSense(), nil
}

func (d *Device) GetConfiguration(ctx context.Context, filter scsidev.ProfileFilter) ([]uint16, uint16, []byte, error) {
	return []uint16{d.profile}, d.profile, nil, nil
}

func (d *Device) ModeSense6(ctx context.Context, page, subpage byte, pc scsidev.PageControl) ([]byte, []byte, error) {
	if page == 0x2a && d.modePage2A != nil {
		return d.modePage2A, nil, nil
	}
	if data, ok := d.modePages[page]; ok {
		return data, nil, nil
	}
	return nil, unsupportedCommandSense(), nil
}

func (d *Device) ModeSense10(ctx context.Context, page, subpage byte, pc scsidev.PageControl) ([]byte, []byte, error) {
	return d.ModeSense6(ctx, page, subpage, pc)
}

func (d *Device) ModeSelect(ctx context.Context, data []byte, pageFormat, saveParams bool) ([]byte, error) {
	return nil, nil
}

func (d *Device) ReadPositionShort(ctx context.Context) (scsidev.TapePosition, []byte, error) {
	return d.tapePos, nil, nil
}

func (d *Device) ReadPositionLong(ctx context.Context) (scsidev.TapePosition, []byte, error) {
	return d.tapePos, nil, nil
}

func (d *Device) Locate(ctx context.Context, lba uint64) ([]byte, error) {
	d.tapePos.BlockNumber = lba
	return nil, nil
}

func (d *Device) LocateLong(ctx context.Context, partition uint32, lba uint64) ([]byte, error) {
	d.tapePos.Partition = partition
	d.tapePos.BlockNumber = lba
	return nil, nil
}

func (d *Device) Space(ctx context.Context, kind scsidev.SpaceKind, count int32) ([]byte, error) {
	switch kind {
	case scsidev.SpaceBlocks:
		d.tapePos.BlockNumber = uint64(int64(d.tapePos.BlockNumber) + int64(count))
	}
	return nil, nil
}

func (d *Device) WriteFilemarks(ctx context.Context, count uint32) ([]byte, error) {
	return nil, nil
}

func (d *Device) VendorUnlockVideo(ctx context.Context) ([]byte, []byte, error) {
	return nil, nil, nil
}

func (d *Device) UnlockXtreme(ctx context.Context) ([]byte, []byte, error) {
	return nil, nil, nil
}

func (d *Device) UnlockWxripper(ctx context.Context) ([]byte, []byte, error) {
	return nil, nil, nil
}

func (d *Device) ExtractSecuritySector(ctx context.Context) ([]byte, []byte, error) {
	return nil, nil, nil
}

// unsupportedCommandSense builds a fixed-format ILLEGAL REQUEST / INVALID
// COMMAND OPERATION CODE sense buffer, the canned stand-in for "this
// optional response was never configured" — matching the real Device
// contract, where an unsupported command surfaces through sense bytes
// with err left nil, never through a Go error.
func unsupportedCommandSense() []byte {
	buf := make([]byte, 14)
	buf[0] = 0x70
	buf[2] = 0x05 // ILLEGAL REQUEST
	buf[12] = 0x20 // ASC: invalid command operation code
	return buf
}

// SetModePage2A installs a canned MODE SENSE page 2A payload, returned in
// preference to any page 0x2a set through SetModePage.
func (d *Device) SetModePage2A(buf []byte) {
	d.modePage2A = buf
}

// SetModePage installs a canned MODE SENSE(6) response for an arbitrary
// page code, used by the media identification tests to exercise the
// tape and flash-drive probes (floppy page 0x05, tape page 0x00).
func (d *Device) SetModePage(page byte, buf []byte) {
	if d.modePages == nil {
		d.modePages = make(map[byte][]byte)
	}
	d.modePages[page] = buf
}

// SetDiscStructure installs a canned READ DISC STRUCTURE response for a
// given format, used by the DVD/XGD identification tests.
func (d *Device) SetDiscStructure(format scsidev.DiscStructureFormat, buf []byte) {
	if d.discStructures == nil {
		d.discStructures = make(map[scsidev.DiscStructureFormat][]byte)
	}
	d.discStructures[format] = buf
}

// SetTOC installs a canned READ TOC/PMA/ATIP response for a given
// format nibble (0x00 = plain TOC).
func (d *Device) SetTOC(format uint8, buf []byte) {
	if d.tocFormats == nil {
		d.tocFormats = make(map[uint8][]byte)
	}
	d.tocFormats[format&0x0f] = buf
}

// SetFullTOC installs the canned full-format TOC response.
func (d *Device) SetFullTOC(buf []byte) {
	d.fullTOC = buf
}

// SetATIP installs the canned ATIP response.
func (d *Device) SetATIP(buf []byte) {
	d.atip = buf
}

// SetCDSector installs a canned single-sector READ CD response,
// overriding the backing reader for that LBA.
func (d *Device) SetCDSector(lba uint64, buf []byte) {
	if d.cdSectors == nil {
		d.cdSectors = make(map[uint64][]byte)
	}
	d.cdSectors[lba] = buf
}

// encodeTapePosition is a helper for building canned READ POSITION LONG
// payloads (32-byte form, §4.1).
func encodeTapePosition(p scsidev.TapePosition) []byte {
	buf := make([]byte, 32)
	buf[0] = 0
	if p.BOP {
		buf[0] |= 0x80
	}
	if p.EOP {
		buf[0] |= 0x40
	}
	binary.BigEndian.PutUint32(buf[4:8], p.Partition)
	binary.BigEndian.PutUint64(buf[8:16], p.BlockNumber)
	return buf
}
