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

// Package filter is the default image.Filter: a thin wrapper over the
// local filesystem that probes the six case-folding combinations of a
// side-car path (spec.md §4.5's requirement that a track's DataFile
// reference resolve regardless of the originating OS's case folding)
// before giving up with os.ErrNotExist.
package filter

import (
	"io"
	"os"
	"path/filepath"
	"strings"
)

const defaultBufSize = 64 * 1024

// Local is an image.Filter rooted at a directory on the local
// filesystem.
type Local struct {
	Root string
}

// New returns a Local filter rooted at root.
func New(root string) *Local {
	return &Local{Root: root}
}

// Open resolves name against the filter's root, trying the original
// case first and then the five other case-folding combinations (whole
// name lower, whole name upper, basename lower, basename upper, and
// extension-only lower) before failing.
func (f *Local) Open(name string) (io.ReadCloser, error) {
	candidates := caseFoldCandidates(name)
	var firstErr error
	for _, c := range candidates {
		path := filepath.Join(f.Root, c)
		file, err := os.Open(path)
		if err == nil {
			return file, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

// caseFoldCandidates returns name's six case-folding variants in a fixed
// preference order: as-given, lowercase, uppercase, dir+lower(base),
// dir+upper(base), and lower(ext) with the original base stem.
func caseFoldCandidates(name string) []string {
	dir, base := filepath.Split(name)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	out := []string{
		name,
		strings.ToLower(name),
		strings.ToUpper(name),
		filepath.Join(dir, strings.ToLower(base)),
		filepath.Join(dir, strings.ToUpper(base)),
		filepath.Join(dir, stem+strings.ToLower(ext)),
	}

	seen := make(map[string]bool, len(out))
	deduped := out[:0]
	for _, c := range out {
		if seen[c] {
			continue
		}
		seen[c] = true
		deduped = append(deduped, c)
	}
	return deduped
}

// BufSize is the default buffer size NewBufferedReadSeeker (pkg/reader) uses
// when wrapping a Filter-opened stream for sequential scanning.
const BufSize = defaultBufSize
