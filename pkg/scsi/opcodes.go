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

// Package scsi holds flat SCSI/MMC/SSC opcode and ASC/ASCQ constants shared
// by pkg/scsidev and pkg/identify. Values are taken from the T10
// command sets (SPC, MMC, SSC); sense codes follow the well-known
// asc-num.txt triples.
package scsi

// Group 0/1/5 operation codes (SPC/MMC/SSC).
const (
	OpTestUnitReady    = 0x00
	OpRequestSense     = 0x03
	OpRead6            = 0x08
	OpWrite6           = 0x0a
	OpWriteFilemarks   = 0x10
	OpSpace            = 0x11
	OpInquiry          = 0x12
	OpModeSelect6      = 0x15
	OpReserve6         = 0x16
	OpRelease6         = 0x17
	OpErase            = 0x19
	OpModeSense6       = 0x1a
	OpStartStopUnit    = 0x1b
	OpAllowRemoval     = 0x1e
	OpReadFormatCap    = 0x23
	OpReadCapacity10   = 0x25
	OpRead10           = 0x28
	OpWrite10          = 0x2a
	OpSeek10           = 0x2b
	OpReadPosition     = 0x34
	OpSynchronizeCache = 0x35
	OpReadTOCPMAATIP   = 0x43
	OpReadHeader       = 0x44
	OpLogSelect        = 0x4c
	OpLogSense         = 0x4d
	OpModeSelect10     = 0x55
	OpModeSense10      = 0x5a
	OpReadDiscInfo     = 0x51
	OpReadTrackInfo    = 0x52
	OpSendOPCInfo      = 0x54
	OpReadBuffer       = 0x3c
	OpReadLong10       = 0x3e
	OpWriteLong10      = 0x3f
	OpReadDiscStruct   = 0xad
	OpGetConfiguration = 0x46
	OpReadCD           = 0xbe
	OpReadCDMSF        = 0xb9
	OpReadSubChannel   = 0x42
	OpReadTOC          = 0x43
	OpSetCDSpeed       = 0xbb
	OpMechanismStatus  = 0xbd
	OpGetPerformance   = 0xac
	OpReportKey        = 0xa4
	OpSendKey          = 0xa3
	OpLocate10         = 0x2b
	OpRead12           = 0xa8
	OpWrite12          = 0xaa
	OpLocate16         = 0x92
	OpRead16           = 0x88
	OpWrite16          = 0x8a
	OpReadCapacity16   = 0x9e // service action in(16), SAI=0x10
	SaiReadCapacity16  = 0x10
)

// Vendor (Kreon) unlock opcodes used by the XGD pipeline. These live
// outside the T10 standard and are specific to the Kreon firmware family
// used to read Xbox Game Discs.
const (
	OpKreonLock          = 0xff
	KreonSubLock         = 0x00
	KreonSubUnlockXtreme = 0x01
	KreonSubUnlockWx     = 0x02
	KreonSubLockState    = 0x03
	OpKreonSecuritySector = 0xf9
)

// ASC/ASCQ pairs referenced directly by the media identification cascade
// and the tape pipeline (spec §4.3, §4.9). Not exhaustive: only the codes
// the core branches on.
const (
	AscResetOccurred     = 0x29
	AscNoMedium          = 0x3a
	AscBecomingReady     = 0x04
	AscqBecomingReady    = 0x01
	AscqBecomingReadyAlt = 0x00

	AscNoSenseOrFilemark = 0x00
	AscqNoQualifier      = 0x00
	AscqFilemark         = 0x01
	AscqEndOfMedium1     = 0x02
	AscqEndOfMedium2     = 0x05

	AscRepositioning1 = 0x00 // paired with Ascq 0x1A / 0x19 below during rewind polling
	AscqRepositioning1 = 0x1a
	AscqRepositioning2 = 0x19
)

// MMC GET CONFIGURATION current-profile values (§4.3 step 3).
const (
	ProfileCDROM  = 0x0008
	ProfileCDR    = 0x0009
	ProfileCDRW   = 0x000a
	ProfileDVDROM = 0x0010
	ProfileDVDR   = 0x0011
	ProfileDVDRAM = 0x0012
	ProfileDVDRW  = 0x0014
	ProfileDVDRDL = 0x002b
	ProfileBDROM  = 0x0040
	ProfileBDR    = 0x0041
	ProfileBDRE   = 0x0043
	ProfileHDDVD  = 0x0050
)
