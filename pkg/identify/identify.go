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

// Package identify probes an opened scsidev.Device and assigns it a
// canonical MediaType, following the cascade in §4.3: readiness, then
// capacity, then MMC profile, then DVD/XGD structure, then
// sector-signature fingerprinting, then CD TOC/ATIP, then tape, then
// flash-drive fallback.
// Every probe is a pure function of the Device and the Result
// accumulated so far; the cascade stops at the first probe that claims
// the medium, mirroring the teacher's format.FileRegistry.Search
// cascade-until-match shape generalized from file-signature matching to
// device probing.
package identify

import (
	"context"
	"time"

	"github.com/ostafen/discproc/pkg/scsidev"
)

// MediaType is the canonical medium classification the cascade assigns.
type MediaType uint8

const (
	Unknown MediaType = iota
	CD
	CDR
	CDRW
	CDPlus
	CDI
	CDROMXA
	DVDROM
	DVDR
	DVDRAM
	DVDRW
	DVDRDL
	HDDVD
	BDROM
	BDR
	BDRE
	GameCubeDisc
	WiiDisc
	XGD1
	XGD2
	XGD3
	ThreeDO
	FMTowns
	Playdia
	PCEngine
	PCFX
	AtariJaguar
	DreamcastMIL
	PS2CD
	PS3BD
	PS4BD
	VideoNowColor
	Tape
	FlashDrive
)

func (m MediaType) String() string {
	switch m {
	case CD:
		return "CD"
	case CDR:
		return "CD-R"
	case CDRW:
		return "CD-RW"
	case CDPlus:
		return "CD+"
	case CDI:
		return "CD-I"
	case CDROMXA:
		return "CD-ROM XA"
	case DVDROM:
		return "DVD-ROM"
	case DVDR:
		return "DVD-R"
	case DVDRAM:
		return "DVD-RAM"
	case DVDRW:
		return "DVD-RW"
	case DVDRDL:
		return "DVD-R DL"
	case HDDVD:
		return "HD DVD"
	case BDROM:
		return "BD-ROM"
	case BDR:
		return "BD-R"
	case BDRE:
		return "BD-RE"
	case GameCubeDisc:
		return "GameCube disc"
	case WiiDisc:
		return "Wii disc"
	case XGD1:
		return "Xbox XGD1"
	case XGD2:
		return "Xbox XGD2"
	case XGD3:
		return "Xbox XGD3"
	case ThreeDO:
		return "3DO"
	case FMTowns:
		return "FM Towns"
	case Playdia:
		return "Playdia"
	case PCEngine:
		return "PC Engine CD"
	case PCFX:
		return "PC-FX"
	case AtariJaguar:
		return "Atari Jaguar CD"
	case DreamcastMIL:
		return "Dreamcast MIL-CD"
	case PS2CD:
		return "PlayStation 2 disc"
	case PS3BD:
		return "PlayStation 3 disc"
	case PS4BD:
		return "PlayStation 4 disc"
	case VideoNowColor:
		return "VideoNow Color"
	case Tape:
		return "Tape"
	case FlashDrive:
		return "Flash drive"
	default:
		return "Unknown"
	}
}

// MediaTagKind indexes the Tags blob map; each kind appears at most once
// per Result (§3, Media Tag invariant).
type MediaTagKind uint8

const (
	TagPMA MediaTagKind = iota
	TagATIP
	TagCDText
	TagFullTOC
	TagDVDPFI
	TagDVDDMI
	TagDVDBCA
	TagBluRayDI
	TagXboxSS
	TagModePage2A
)

// Result is the cascade's accumulated output (§4.3).
type Result struct {
	MediaType  MediaType
	Blocks     uint64
	BlockSize  uint32
	Tags       map[MediaTagKind][]byte
	Recognized bool

	// mmcProfile is the raw GET CONFIGURATION current profile, stashed by
	// probeMMCProfile so later stages (probeDVDStructure, probeXGD) can
	// gate on the profile family without re-deriving it from MediaType.
	mmcProfile uint16
}

func (r *Result) setTag(kind MediaTagKind, data []byte) {
	if r.Tags == nil {
		r.Tags = make(map[MediaTagKind][]byte)
	}
	r.Tags[kind] = data
}

// Options tunes cascade behavior for media classes the Device advertises
// out of band (removability, USB transport) that no SCSI command
// reports directly.
type Options struct {
	Removable bool
	USB       bool

	// Manufacturer/Model come from a caller-issued INQUIRY (outside this
	// package's scope, since Device has no Inquiry method of its own) and
	// feed the tape medium/density lookup table in probeTape.
	Manufacturer string
	Model        string
}

// probe is one cascade stage. handled stops the cascade; err aborts it.
type probe func(ctx context.Context, dev scsidev.Device, opts Options, res *Result) (handled bool, err error)

// Identify runs the full cascade from §4.3 steps 1-9 and returns the
// accumulated Result. Steps 1-2 (readiness, capacity) always run; the
// rest short-circuit at the first match. Failure to identify is not an
// error: Recognized is left false and Blocks/BlockSize are still
// published, per the failure policy in §4.3.
func Identify(ctx context.Context, dev scsidev.Device, opts Options) (Result, error) {
	var res Result

	if err := probeReady(ctx, dev, opts, &res); err != nil {
		return res, err
	}
	if err := probeCapacity(ctx, dev, opts, &res); err != nil {
		return res, err
	}

	cascade := []probe{
		probeMMCProfile,
		probeDVDStructure,
		probeXGD,
		probeSectorSignatures,
		probeCDTOC,
		probeTape,
		probeFlashDrive,
	}

	for _, p := range cascade {
		handled, err := p(ctx, dev, opts, &res)
		if err != nil {
			return res, err
		}
		if handled {
			res.Recognized = true
			break
		}
	}

	return res, nil
}

// probeReady polls TEST UNIT READY for removable media, per §4.3 step 1:
// ASC 0x29 (reset) up to 5 times, ASC 0x3A (no medium) 5 times every 2s,
// ASC 0x04/0x01 (becoming ready) 10 times every 2s. Non-removable Devices
// skip the poll entirely.
func probeReady(ctx context.Context, dev scsidev.Device, opts Options, res *Result) error {
	if !opts.Removable {
		return nil
	}

	resets, noMedium, becomingReady := 0, 0, 0
	for {
		senseBuf, _, err := dev.TestUnitReady(ctx)
		if err != nil {
			return err
		}
		s := decodeSense(senseBuf)
		if s.Key == 0 && len(senseBuf) == 0 {
			return nil
		}

		switch {
		case uint8(s.ASC) == 0x29:
			resets++
			if resets > 5 {
				return errNotReady("device kept reporting a bus reset")
			}
		case uint8(s.ASC) == 0x3a:
			noMedium++
			if noMedium > 5 {
				return errNotReady("no medium present")
			}
			if err := sleepCtx(ctx, 2*time.Second); err != nil {
				return err
			}
		case uint8(s.ASC) == 0x04 && uint8(s.ASCQ) == 0x01:
			becomingReady++
			if becomingReady > 10 {
				return errNotReady("medium did not become ready")
			}
			if err := sleepCtx(ctx, 2*time.Second); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

// probeCapacity issues READ CAPACITY(10), falling back to the 16-byte
// service action when the 10-byte form reports the "use RC16" sentinels
// (0 or 0xFFFFFFFF blocks). SCSI reports last-LBA, not a count, so the
// result is incremented by one (§4.3 step 2).
func probeCapacity(ctx context.Context, dev scsidev.Device, opts Options, res *Result) error {
	lastLBA, blockSize, _, err := dev.ReadCapacity10(ctx)
	if err != nil {
		return err
	}

	if lastLBA == 0 || lastLBA == 0xFFFFFFFF {
		lastLBA64, blockSize16, _, err := dev.ReadCapacity16(ctx)
		if err != nil {
			return err
		}
		res.Blocks = lastLBA64 + 1
		res.BlockSize = blockSize16
		return nil
	}

	res.Blocks = uint64(lastLBA) + 1
	res.BlockSize = blockSize
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
