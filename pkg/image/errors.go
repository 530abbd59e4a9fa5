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

import "github.com/ostafen/discproc/pkg/direrr"

// ErrFeatureNotPresent/ErrFeatureNotImplemented are the two distinguished
// errors missing tags and unsupported operations raise (§4.4);
// cross-track reads raise ErrCrossTrackRead below. Callers branch with errors.Is, replacing the
// sentinel-null pattern the teacher's format package used for "not
// found".
var (
	ErrFeatureNotPresent     = direrr.ErrFeatureNotPresent
	ErrFeatureNotImplemented = direrr.ErrFeatureNotImplemented
)

// ErrCrossTrackRead is returned when a read spans more than one track;
// callers must iterate track-by-track instead (§4.4 guarantee).
var ErrCrossTrackRead = direrr.New(direrr.InvalidArgument, errCrossTrack{})

type errCrossTrack struct{}

func (errCrossTrack) Error() string { return "read spans more than one track" }
