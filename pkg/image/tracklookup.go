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

package image

import "sort"

// TrackAt does an O(log n) binary search over tracks (assumed sorted
// and non-overlapping by FirstLBA, per §3's Track invariant) for the one
// containing lba. Plugins share this helper instead of each
// reimplementing the lookup, and bwi.Image uses it directly.
func TrackAt(tracks []Track, lba uint64) (Track, bool) {
	i := sort.Search(len(tracks), func(i int) bool {
		return tracks[i].LastLBA >= lba
	})
	if i >= len(tracks) || lba < tracks[i].FirstLBA || lba > tracks[i].LastLBA {
		return Track{}, false
	}
	return tracks[i], true
}

// SpanTrack reports whether the half-open-ish inclusive range
// [lba, lba+n-1] stays within a single track, returning that track. A
// read crossing a track boundary must be rejected by the caller (§4.4).
func SpanTrack(tracks []Track, lba uint64, n uint32) (Track, bool) {
	t, ok := TrackAt(tracks, lba)
	if !ok {
		return Track{}, false
	}
	if n == 0 {
		return t, true
	}
	last := lba + uint64(n) - 1
	if last > t.LastLBA {
		return Track{}, false
	}
	return t, true
}
