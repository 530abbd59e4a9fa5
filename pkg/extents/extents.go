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

// Package extents implements a set of non-overlapping half-open LBA
// intervals (§3 "Extents"), used both to record successfully read regions
// and to track bad-block lists.
package extents

import "sort"

// Range is a half-open LBA interval [Start, End).
type Range struct {
	Start uint64
	End   uint64
}

// Set is a sorted, coalesced set of non-overlapping half-open LBA
// intervals. The zero value is an empty set.
type Set struct {
	ranges []Range
}

// FromRanges builds a Set from an already-sorted, non-overlapping slice of
// ranges, or from an arbitrary one by going through Add/AddRange — lossless
// either way, satisfying the round-trip property of §8.
func FromRanges(rs []Range) Set {
	var s Set
	for _, r := range rs {
		s.AddRange(r.Start, r.End-r.Start)
	}
	return s
}

// Ranges returns the sorted, coalesced list of intervals.
func (s *Set) Ranges() []Range {
	out := make([]Range, len(s.ranges))
	copy(out, s.ranges)
	return out
}

// Add inserts the single LBA lba into the set.
func (s *Set) Add(lba uint64) {
	s.AddRange(lba, 1)
}

// AddRange inserts the half-open interval [lba, lba+n) into the set,
// merging with any overlapping or adjacent ranges already present.
func (s *Set) AddRange(lba uint64, n uint64) {
	if n == 0 {
		return
	}
	start, end := lba, lba+n

	// Find the first range whose End is >= start: everything before it
	// is strictly disjoint and unaffected.
	i := sort.Search(len(s.ranges), func(i int) bool {
		return s.ranges[i].End >= start
	})

	j := i
	for j < len(s.ranges) && s.ranges[j].Start <= end {
		if s.ranges[j].Start < start {
			start = s.ranges[j].Start
		}
		if s.ranges[j].End > end {
			end = s.ranges[j].End
		}
		j++
	}

	merged := Range{Start: start, End: end}
	s.ranges = append(s.ranges[:i], append([]Range{merged}, s.ranges[j:]...)...)
}

// Contains reports whether lba falls within any interval of the set.
func (s *Set) Contains(lba uint64) bool {
	i := sort.Search(len(s.ranges), func(i int) bool {
		return s.ranges[i].End > lba
	})
	return i < len(s.ranges) && s.ranges[i].Start <= lba
}

// Remove deletes the single LBA lba from the set, splitting a range if
// lba falls strictly inside it.
func (s *Set) Remove(lba uint64) {
	i := sort.Search(len(s.ranges), func(i int) bool {
		return s.ranges[i].End > lba
	})
	if i >= len(s.ranges) || s.ranges[i].Start > lba {
		return
	}

	r := s.ranges[i]
	var replacement []Range
	if r.Start < lba {
		replacement = append(replacement, Range{Start: r.Start, End: lba})
	}
	if lba+1 < r.End {
		replacement = append(replacement, Range{Start: lba + 1, End: r.End})
	}

	s.ranges = append(s.ranges[:i], append(replacement, s.ranges[i+1:]...)...)
}

// Len returns the number of coalesced ranges currently stored.
func (s *Set) Len() int {
	return len(s.ranges)
}

// Count returns the total number of LBAs covered by the set.
func (s *Set) Count() uint64 {
	var total uint64
	for _, r := range s.ranges {
		total += r.End - r.Start
	}
	return total
}

// Sorted LBAs, used by pkg/resume when serializing bad_blocks as a flat,
// de-duplicated, sorted list (§6 "a sorted list of bad-block LBAs").
func (s *Set) Sorted() []uint64 {
	out := make([]uint64, 0, s.Count())
	for _, r := range s.ranges {
		for lba := r.Start; lba < r.End; lba++ {
			out = append(out, lba)
		}
	}
	return out
}

// Disjoint reports whether s and other share no LBA, used by the
// bad_blocks/extents disjointness property (§8).
func (s *Set) Disjoint(other *Set) bool {
	for _, r := range other.ranges {
		for lba := r.Start; lba < r.End; lba++ {
			if s.Contains(lba) {
				return false
			}
		}
	}
	return true
}
