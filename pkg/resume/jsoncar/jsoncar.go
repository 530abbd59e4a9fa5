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

// Package jsoncar is the default resume.SideCar: a plain JSON encoding of
// a resume.Snapshot, written with an atomic write-to-temp-then-rename
// discipline so a crash mid-write never corrupts the previous, still-valid
// record (§4.6 "atomic write-then-rename on every extent change").
package jsoncar

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ostafen/discproc/pkg/resume"
)

// SideCar persists a resume.Snapshot as JSON at Path.
type SideCar struct {
	Path string
}

// New returns a SideCar that reads and writes path.
func New(path string) *SideCar {
	return &SideCar{Path: path}
}

// record is the on-disk JSON shape. Its field names are the public
// contract: renaming them breaks every existing resume file.
type record struct {
	NextBlock uint64           `json:"next_block"`
	BadBlocks []uint64         `json:"bad_blocks"`
	Tries     []resume.Attempt `json:"tries"`
}

// Load reads and decodes the snapshot at Path, or resume.ErrNotExist if
// no file has been written yet.
func (c *SideCar) Load() (resume.Snapshot, error) {
	buf, err := os.ReadFile(c.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return resume.Snapshot{}, resume.ErrNotExist
		}
		return resume.Snapshot{}, fmt.Errorf("jsoncar: read %q: %w", c.Path, err)
	}

	var rec record
	if err := json.Unmarshal(buf, &rec); err != nil {
		return resume.Snapshot{}, fmt.Errorf("jsoncar: decode %q: %w", c.Path, err)
	}
	return resume.Snapshot{
		NextBlock: rec.NextBlock,
		BadBlocks: rec.BadBlocks,
		Tries:     rec.Tries,
	}, nil
}

// Save atomically writes snap to Path: encode to a sibling ".tmp" file,
// fsync it, then rename over Path. The rename is what makes every
// extent-change update crash-safe — a reader never observes a
// partially-written record.
func (c *SideCar) Save(snap resume.Snapshot) error {
	rec := record{
		NextBlock: snap.NextBlock,
		BadBlocks: snap.BadBlocks,
		Tries:     snap.Tries,
	}
	buf, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("jsoncar: encode: %w", err)
	}

	tmp := c.Path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(c.Path), 0o755); err != nil {
		return fmt.Errorf("jsoncar: mkdir: %w", err)
	}

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("jsoncar: create %q: %w", tmp, err)
	}
	if _, err := f.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("jsoncar: write %q: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("jsoncar: fsync %q: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("jsoncar: close %q: %w", tmp, err)
	}

	if err := os.Rename(tmp, c.Path); err != nil {
		return fmt.Errorf("jsoncar: rename %q to %q: %w", tmp, c.Path, err)
	}
	return nil
}

var _ resume.SideCar = (*SideCar)(nil)
