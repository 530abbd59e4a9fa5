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
	"fmt"
	"strings"

	"github.com/ostafen/discproc/pkg/image"
)

// tapeImage adapts an image.Writable onto image.TapeWritable. No
// container format in this tree has a dedicated file/partition table for
// sequential media, so file and partition boundaries are folded into the
// image's free-form Metadata.Comment as one line per boundary. Each
// AddFile/AddPartition call replaces the image's Metadata with one whose
// Comment holds every boundary line recorded so far; a Title or Comment
// set earlier through SetMetadata is not kept.
type tapeImage struct {
	image.Writable

	comment strings.Builder
}

func newTapeImage(w image.Writable) *tapeImage {
	return &tapeImage{Writable: w}
}

func (t *tapeImage) SetTape() {}

func (t *tapeImage) AddFile(f image.TapeFile) error {
	fmt.Fprintf(&t.comment, "file %d: blocks [%d,%d)\n", f.FileNumber, f.FirstBlock, f.LastBlock)
	return t.Writable.SetMetadata(image.Metadata{Comment: t.comment.String()})
}

func (t *tapeImage) AddPartition(p image.TapePartition) error {
	fmt.Fprintf(&t.comment, "partition %d: blocks [%d,%d)\n", p.PartitionNumber, p.FirstBlock, p.LastBlock)
	return t.Writable.SetMetadata(image.Metadata{Comment: t.comment.String()})
}

var _ image.TapeWritable = (*tapeImage)(nil)
