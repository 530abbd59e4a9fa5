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

package identify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/ostafen/discproc/pkg/scsidev"
)

const (
	ps2BootSectors     = 12
	ps2BootRegionBytes = ps2BootSectors * sectorSizeCooked // 24 KiB
)

// ps2RegionHashes holds the known regional SHA-256 digests of the
// XOR-decoded PS2 boot region (§4.3 step 7, seed test #2). Only the PAL
// digest is present; NTSC-U/NTSC-J discs are not recognized.
var ps2RegionHashes = map[string]bool{
	"5d04ff236613e1d8adcf9c201874acd6f6deed1e04306558b86f91cfb626f39d": true, // PAL
}

// xorDecode repeating-XORs buf with its own first byte, the PS2 boot
// region's cipher.
func xorDecode(buf []byte) []byte {
	if len(buf) == 0 {
		return buf
	}
	key := buf[0]
	out := make([]byte, len(buf))
	for i, b := range buf {
		out[i] = b ^ key
	}
	return out
}

// probePS2BootRegion reads the first 12 cooked sectors of the data
// track, XOR-decodes them with their own first byte, and matches the
// SHA-256 digest of the resulting 24 KiB block against the known
// regional hash table.
func probePS2BootRegion(ctx context.Context, dev scsidev.Device, res *Result) (bool, error) {
	data, _, err := dev.ReadCD(ctx, 0, ps2BootSectors, scsidev.SectorAny, scsidev.HeaderNone, false, scsidev.SubchannelNone)
	if err != nil || len(data) < ps2BootRegionBytes {
		return false, nil
	}

	decoded := xorDecode(data[:ps2BootRegionBytes])
	sum := sha256.Sum256(decoded)
	digest := hex.EncodeToString(sum[:])

	if ps2RegionHashes[digest] {
		res.MediaType = PS2CD
		return true, nil
	}
	return false, nil
}
