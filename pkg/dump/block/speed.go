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

package block

import "time"

// speedWindow is the sliding 1-second bytes-read accounting of §4.7,
// generalized from pbar.ProgressBarState's elapsed-since-last-render
// current-speed calculation (pkg/pbar) into a value that does not also
// own terminal rendering.
type speedWindow struct {
	windowStart time.Time
	windowBytes int64

	current  float64
	min, max float64
	haveMin  bool
}

func newSpeedWindow(now time.Time) *speedWindow {
	return &speedWindow{windowStart: now}
}

// Add accounts n newly-read bytes at time now, rolling the window over
// once a full second has elapsed and updating current/min/max.
//
// min/max only update when current != 0, a plain floating-point equality
// comparison against zero. current is only computed once at least one
// second has elapsed, so it is exactly zero when no bytes were added
// during the window (for example a second of failed reads that returned
// no data); such a window leaves min/max unchanged.
func (w *speedWindow) Add(n int, now time.Time) {
	w.windowBytes += int64(n)

	elapsed := now.Sub(w.windowStart).Seconds()
	if elapsed < 1.0 {
		return
	}

	w.current = float64(w.windowBytes) / elapsed
	w.windowBytes = 0
	w.windowStart = now

	if w.current != 0 {
		if !w.haveMin || w.current < w.min {
			w.min = w.current
			w.haveMin = true
		}
		if w.current > w.max {
			w.max = w.current
		}
	}
}

// Current returns the most recently computed sliding-window speed, in
// bytes/second.
func (w *speedWindow) Current() float64 { return w.current }

// MinMax returns the lowest and highest non-zero speeds observed so far.
func (w *speedWindow) MinMax() (float64, float64) { return w.min, w.max }
