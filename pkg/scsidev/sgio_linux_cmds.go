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

//go:build linux

// Per-command CDB builders for SGDevice. One small function per Device
// method, each building the exact T10 command descriptor block and
// calling sendCDB; parameter widths (LBA, FUA, DPO, block count) match
// the relevant standard, per §6.
package scsidev

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/ostafen/discproc/pkg/scsi"
)

func (d *SGDevice) TestUnitReady(ctx context.Context) ([]byte, time.Duration, error) {
	cdb := make([]byte, 6)
	cdb[0] = scsi.OpTestUnitReady
	_, sense, elapsed, err := d.sendCDB(ctx, cdb, nil, false, 0)
	return sense, elapsed, err
}

func (d *SGDevice) ReadCapacity10(ctx context.Context) (uint32, uint32, []byte, error) {
	cdb := make([]byte, 10)
	cdb[0] = scsi.OpReadCapacity10
	data, sense, _, err := d.sendCDB(ctx, cdb, make([]byte, 8), false, 0)
	if err != nil || len(data) < 8 {
		return 0, 0, sense, err
	}
	lastLBA := binary.BigEndian.Uint32(data[0:4])
	blockSize := binary.BigEndian.Uint32(data[4:8])
	return lastLBA, blockSize, sense, nil
}

func (d *SGDevice) ReadCapacity16(ctx context.Context) (uint64, uint32, []byte, error) {
	cdb := make([]byte, 16)
	cdb[0] = scsi.OpReadCapacity16
	cdb[1] = scsi.SaiReadCapacity16
	binary.BigEndian.PutUint32(cdb[10:14], 32)
	data, sense, _, err := d.sendCDB(ctx, cdb, make([]byte, 32), false, 0)
	if err != nil || len(data) < 12 {
		return 0, 0, sense, err
	}
	lastLBA := binary.BigEndian.Uint64(data[0:8])
	blockSize := binary.BigEndian.Uint32(data[8:12])
	return lastLBA, blockSize, sense, nil
}

func read10Like(d *SGDevice, ctx context.Context, op byte, lba uint64, blocks uint32, blockSize uint32, fua, dpo bool) ([]byte, []byte, time.Duration, error) {
	cdb := make([]byte, 10)
	cdb[0] = op
	if fua {
		cdb[1] |= 0x08
	}
	if dpo {
		cdb[1] |= 0x10
	}
	binary.BigEndian.PutUint32(cdb[2:6], uint32(lba))
	binary.BigEndian.PutUint16(cdb[7:9], uint16(blocks))

	buf := make([]byte, int64(blocks)*int64(blockSize))
	data, sense, elapsed, err := d.sendCDB(ctx, cdb, buf, false, 0)
	return data, sense, elapsed, err
}

func (d *SGDevice) Read6(ctx context.Context, lba uint64, blocks uint32, blockSize uint32, fixed bool) ([]byte, []byte, time.Duration, error) {
	cdb := make([]byte, 6)
	cdb[0] = scsi.OpRead6
	cdb[1] = byte(lba >> 16 & 0x1f)
	cdb[2] = byte(lba >> 8)
	cdb[3] = byte(lba)
	cdb[4] = byte(blocks)

	buf := make([]byte, int64(blocks)*int64(blockSize))
	data, sense, elapsed, err := d.sendCDB(ctx, cdb, buf, false, 0)
	return data, sense, elapsed, err
}

func (d *SGDevice) Read10(ctx context.Context, lba uint64, blocks uint32, blockSize uint32, fua, dpo bool) ([]byte, []byte, time.Duration, error) {
	return read10Like(d, ctx, scsi.OpRead10, lba, blocks, blockSize, fua, dpo)
}

func (d *SGDevice) Read12(ctx context.Context, lba uint64, blocks uint32, blockSize uint32, fua, dpo bool) ([]byte, []byte, time.Duration, error) {
	cdb := make([]byte, 12)
	cdb[0] = scsi.OpRead12
	if fua {
		cdb[1] |= 0x08
	}
	if dpo {
		cdb[1] |= 0x10
	}
	binary.BigEndian.PutUint32(cdb[2:6], uint32(lba))
	binary.BigEndian.PutUint32(cdb[6:10], blocks)

	buf := make([]byte, int64(blocks)*int64(blockSize))
	data, sense, elapsed, err := d.sendCDB(ctx, cdb, buf, false, 0)
	return data, sense, elapsed, err
}

func (d *SGDevice) Read16(ctx context.Context, lba uint64, blocks uint32, blockSize uint32, fua, dpo bool) ([]byte, []byte, time.Duration, error) {
	cdb := make([]byte, 16)
	cdb[0] = scsi.OpRead16
	if fua {
		cdb[1] |= 0x08
	}
	if dpo {
		cdb[1] |= 0x10
	}
	binary.BigEndian.PutUint64(cdb[2:10], lba)
	binary.BigEndian.PutUint32(cdb[10:14], blocks)

	buf := make([]byte, int64(blocks)*int64(blockSize))
	data, sense, elapsed, err := d.sendCDB(ctx, cdb, buf, false, 0)
	return data, sense, elapsed, err
}

func (d *SGDevice) ReadCD(ctx context.Context, lba uint64, blocks uint32, kind SectorKind, headerCodes HeaderCodes, includeEDCECC bool, sub SubchannelKind) ([]byte, []byte, error) {
	cdb := make([]byte, 12)
	cdb[0] = scsi.OpReadCD
	cdb[1] = byte(kind) << 2
	binary.BigEndian.PutUint32(cdb[2:6], uint32(lba))
	cdb[6] = byte(blocks >> 16)
	cdb[7] = byte(blocks >> 8)
	cdb[8] = byte(blocks)
	cdb[9] = byte(headerCodes) << 5
	if includeEDCECC {
		cdb[9] |= 0x08
	}
	cdb[10] = byte(sub)

	// Worst case: 2352 data + 96 subchannel.
	buf := make([]byte, int64(blocks)*2448)
	data, sense, _, err := d.sendCDB(ctx, cdb, buf, false, 0)
	return data, sense, err
}

func (d *SGDevice) ReadLong10(ctx context.Context, lba uint64, byteCount uint32) ([]byte, []byte, error) {
	cdb := make([]byte, 10)
	cdb[0] = scsi.OpReadLong10
	binary.BigEndian.PutUint32(cdb[2:6], uint32(lba))
	binary.BigEndian.PutUint16(cdb[7:9], uint16(byteCount))

	buf := make([]byte, byteCount)
	data, sense, _, err := d.sendCDB(ctx, cdb, buf, false, 0)
	return data, sense, err
}

func (d *SGDevice) ReadDiscStructure(ctx context.Context, mediaKind MediaKind, format DiscStructureFormat, layer uint8, agid uint8) ([]byte, []byte, error) {
	cdb := make([]byte, 12)
	cdb[0] = scsi.OpReadDiscStruct
	cdb[6] = layer
	cdb[7] = byte(format)
	binary.BigEndian.PutUint16(cdb[8:10], 2048+4)
	cdb[10] = agid << 6

	buf := make([]byte, 2048+4)
	data, sense, _, err := d.sendCDB(ctx, cdb, buf, false, 0)
	return data, sense, err
}

func readTOCLike(d *SGDevice, ctx context.Context, format uint8, track uint8, msf bool) ([]byte, []byte, error) {
	cdb := make([]byte, 10)
	cdb[0] = scsi.OpReadTOCPMAATIP
	if msf {
		cdb[1] = 0x02
	}
	cdb[2] = format & 0x0f
	cdb[6] = track
	binary.BigEndian.PutUint16(cdb[7:9], 1024)

	buf := make([]byte, 1024)
	data, sense, _, err := d.sendCDB(ctx, cdb, buf, false, 0)
	return data, sense, err
}

func (d *SGDevice) ReadTOCPMAATIP(ctx context.Context, format uint8, track uint8, msf bool) ([]byte, []byte, error) {
	return readTOCLike(d, ctx, format, track, msf)
}

func (d *SGDevice) ReadFullTOC(ctx context.Context) ([]byte, []byte, error) {
	return readTOCLike(d, ctx, 0x02, 0, false)
}

func (d *SGDevice) ReadATIP(ctx context.Context) ([]byte, []byte, error) {
	return readTOCLike(d, ctx, 0x04, 0, false)
}

func (d *SGDevice) ReadPMA(ctx context.Context) ([]byte, []byte, error) {
	return readTOCLike(d, ctx, 0x03, 0, false)
}

func (d *SGDevice) ReadCDText(ctx context.Context) ([]byte, []byte, error) {
	return readTOCLike(d, ctx, 0x05, 0, false)
}

func (d *SGDevice) ReadMCN(ctx context.Context) ([]byte, []byte, error) {
	cdb := make([]byte, 10)
	cdb[0] = scsi.OpReadSubChannel
	cdb[2] = 0x40 // SUBQ
	cdb[3] = 0x02 // MCN
	binary.BigEndian.PutUint16(cdb[7:9], 24)

	buf := make([]byte, 24)
	data, sense, _, err := d.sendCDB(ctx, cdb, buf, false, 0)
	return data, sense, err
}

func (d *SGDevice) ReadISRC(ctx context.Context, track uint8) ([]byte, []byte, error) {
	cdb := make([]byte, 10)
	cdb[0] = scsi.OpReadSubChannel
	cdb[2] = 0x40
	cdb[3] = 0x03 // ISRC
	cdb[6] = track
	binary.BigEndian.PutUint16(cdb[7:9], 24)

	buf := make([]byte, 24)
	data, sense, _, err := d.sendCDB(ctx, cdb, buf, false, 0)
	return data, sense, err
}

func (d *SGDevice) GetConfiguration(ctx context.Context, filter ProfileFilter) ([]uint16, uint16, []byte, error) {
	cdb := make([]byte, 10)
	cdb[0] = scsi.OpGetConfiguration
	cdb[1] = byte(filter) & 0x03
	binary.BigEndian.PutUint16(cdb[7:9], 4096)

	buf := make([]byte, 4096)
	data, sense, _, err := d.sendCDB(ctx, cdb, buf, false, 0)
	if err != nil || len(data) < 8 {
		return nil, 0, sense, err
	}

	current := binary.BigEndian.Uint16(data[6:8])
	var profiles []uint16
	payloadLen := binary.BigEndian.Uint32(data[0:4])
	body := data[8:]
	if uint32(len(body)) > payloadLen {
		body = body[:payloadLen]
	}
	for len(body) >= 4 {
		featureCode := binary.BigEndian.Uint16(body[0:2])
		if featureCode == 0x0000 {
			additionalLen := body[3]
			list := body[4:]
			for i := 0; i+4 <= len(list) && uint8(i+4) <= additionalLen; i += 4 {
				profiles = append(profiles, binary.BigEndian.Uint16(list[i:i+2]))
			}
			break
		}
		additionalLen := int(body[3])
		if 4+additionalLen > len(body) {
			break
		}
		body = body[4+additionalLen:]
	}
	return profiles, current, sense, nil
}

func (d *SGDevice) ModeSense6(ctx context.Context, page, subpage byte, pc PageControl) ([]byte, []byte, error) {
	cdb := make([]byte, 6)
	cdb[0] = scsi.OpModeSense6
	cdb[2] = byte(pc)<<6 | (page & 0x3f)
	cdb[3] = subpage
	cdb[4] = 252

	buf := make([]byte, 252)
	data, sense, _, err := d.sendCDB(ctx, cdb, buf, false, 0)
	return data, sense, err
}

func (d *SGDevice) ModeSense10(ctx context.Context, page, subpage byte, pc PageControl) ([]byte, []byte, error) {
	cdb := make([]byte, 10)
	cdb[0] = scsi.OpModeSense10
	cdb[2] = byte(pc)<<6 | (page & 0x3f)
	cdb[3] = subpage
	binary.BigEndian.PutUint16(cdb[7:9], 4096)

	buf := make([]byte, 4096)
	data, sense, _, err := d.sendCDB(ctx, cdb, buf, false, 0)
	return data, sense, err
}

func (d *SGDevice) ModeSelect(ctx context.Context, data []byte, pageFormat, saveParams bool) ([]byte, error) {
	cdb := make([]byte, 6)
	cdb[0] = scsi.OpModeSelect6
	if pageFormat {
		cdb[1] |= 0x10
	}
	if saveParams {
		cdb[1] |= 0x01
	}
	cdb[4] = byte(len(data))

	_, sense, _, err := d.sendCDB(ctx, cdb, data, true, 0)
	return sense, err
}

func decodeTapePosition(data []byte, long bool) TapePosition {
	var p TapePosition
	if len(data) == 0 {
		return p
	}
	p.BOP = data[0]&0x80 != 0
	p.EOP = data[0]&0x40 != 0
	p.BlockLimit = data[0]&0x01 != 0
	if long && len(data) >= 16 {
		p.Partition = binary.BigEndian.Uint32(data[4:8])
		p.BlockNumber = binary.BigEndian.Uint64(data[8:16])
	} else if len(data) >= 10 {
		p.Partition = uint32(data[1])
		p.BlockNumber = uint64(binary.BigEndian.Uint32(data[4:8]))
	}
	return p
}

func (d *SGDevice) ReadPositionShort(ctx context.Context) (TapePosition, []byte, error) {
	cdb := make([]byte, 10)
	cdb[0] = scsi.OpReadPosition

	buf := make([]byte, 20)
	data, sense, _, err := d.sendCDB(ctx, cdb, buf, false, 0)
	return decodeTapePosition(data, false), sense, err
}

func (d *SGDevice) ReadPositionLong(ctx context.Context) (TapePosition, []byte, error) {
	cdb := make([]byte, 10)
	cdb[0] = scsi.OpReadPosition
	cdb[1] = 0x06 // service action: long form

	buf := make([]byte, 32)
	data, sense, _, err := d.sendCDB(ctx, cdb, buf, false, 0)
	return decodeTapePosition(data, true), sense, err
}

func (d *SGDevice) Locate(ctx context.Context, lba uint64) ([]byte, error) {
	cdb := make([]byte, 10)
	cdb[0] = scsi.OpLocate10
	binary.BigEndian.PutUint32(cdb[3:7], uint32(lba))

	_, sense, _, err := d.sendCDB(ctx, cdb, nil, false, 0)
	return sense, err
}

func (d *SGDevice) LocateLong(ctx context.Context, partition uint32, lba uint64) ([]byte, error) {
	cdb := make([]byte, 16)
	cdb[0] = scsi.OpLocate16
	cdb[1] = 0x02 // CP: change partition
	binary.BigEndian.PutUint64(cdb[4:12], lba)
	cdb[13] = byte(partition)

	_, sense, _, err := d.sendCDB(ctx, cdb, nil, false, 0)
	return sense, err
}

func (d *SGDevice) Space(ctx context.Context, kind SpaceKind, count int32) ([]byte, error) {
	cdb := make([]byte, 6)
	cdb[0] = scsi.OpSpace
	cdb[1] = byte(kind) & 0x07
	u := uint32(count) & 0xFFFFFF
	cdb[2] = byte(u >> 16)
	cdb[3] = byte(u >> 8)
	cdb[4] = byte(u)

	_, sense, _, err := d.sendCDB(ctx, cdb, nil, false, 0)
	return sense, err
}

func (d *SGDevice) WriteFilemarks(ctx context.Context, count uint32) ([]byte, error) {
	cdb := make([]byte, 6)
	cdb[0] = scsi.OpWriteFilemarks
	cdb[2] = byte(count >> 16)
	cdb[3] = byte(count >> 8)
	cdb[4] = byte(count)

	_, sense, _, err := d.sendCDB(ctx, cdb, nil, false, 0)
	return sense, err
}

// Kreon vendor-unlock opcodes. These have no T10-standard CDB layout;
// the byte positions follow the de-facto Kreon firmware convention used
// by XGD-dumping tools.
func kreonCDB(sub byte) []byte {
	cdb := make([]byte, 12)
	cdb[0] = scsi.OpKreonLock
	cdb[1] = sub
	return cdb
}

func (d *SGDevice) VendorUnlockVideo(ctx context.Context) ([]byte, []byte, error) {
	_, sense, _, err := d.sendCDB(ctx, kreonCDB(scsi.KreonSubLock), nil, false, 0)
	return nil, sense, err
}

func (d *SGDevice) UnlockXtreme(ctx context.Context) ([]byte, []byte, error) {
	_, sense, _, err := d.sendCDB(ctx, kreonCDB(scsi.KreonSubUnlockXtreme), nil, false, 0)
	return nil, sense, err
}

func (d *SGDevice) UnlockWxripper(ctx context.Context) ([]byte, []byte, error) {
	_, sense, _, err := d.sendCDB(ctx, kreonCDB(scsi.KreonSubUnlockWx), nil, false, 0)
	return nil, sense, err
}

func (d *SGDevice) ExtractSecuritySector(ctx context.Context) ([]byte, []byte, error) {
	cdb := make([]byte, 12)
	cdb[0] = scsi.OpKreonSecuritySector
	binary.BigEndian.PutUint16(cdb[8:10], 2048)

	buf := make([]byte, 2048)
	data, sense, _, err := d.sendCDB(ctx, cdb, buf, false, 0)
	return data, sense, err
}
