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
package cmd

import (
	"io"

	"github.com/ostafen/discproc/pkg/image"
)

// sectorReaderAt adapts an image.Readable's sector-granular interface to
// io.ReaderAt, so the FUSE layer (which deals in flat byte offsets) can
// serve a container's data without knowing anything about sectors.
type sectorReaderAt struct {
	img image.Readable
}

func newSectorReaderAt(img image.Readable) *sectorReaderAt {
	return &sectorReaderAt{img: img}
}

func (r *sectorReaderAt) ReadAt(p []byte, off int64) (int, error) {
	sectorSize := int64(r.img.SectorSize())
	if sectorSize <= 0 {
		return 0, io.ErrUnexpectedEOF
	}

	total := 0
	for total < len(p) {
		lba := uint64((off + int64(total)) / sectorSize)
		inSector := int((off + int64(total)) % sectorSize)

		sector, err := r.img.ReadSector(lba)
		if err != nil {
			if total > 0 {
				return total, nil
			}
			return 0, err
		}
		if inSector >= len(sector) {
			return total, io.EOF
		}

		n := copy(p[total:], sector[inSector:])
		total += n
	}
	return total, nil
}
