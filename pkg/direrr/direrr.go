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

// Package direrr is the error taxonomy shared by every core component
// (§7). Dump pipelines absorb only TransientIO and MediumEnd; every other
// kind propagates to the caller wrapped with %w.
package direrr

import (
	"errors"
	"fmt"

	"github.com/ostafen/discproc/pkg/sense"
)

type Kind uint8

const (
	TransientIO Kind = iota
	MediumEnd
	FormatError
	FeatureNotPresent
	FeatureNotImplemented
	InvalidArgument
	DeviceUnrecoverable
)

func (k Kind) String() string {
	switch k {
	case TransientIO:
		return "transient I/O error"
	case MediumEnd:
		return "medium end"
	case FormatError:
		return "format error"
	case FeatureNotPresent:
		return "feature not present"
	case FeatureNotImplemented:
		return "feature not implemented"
	case InvalidArgument:
		return "invalid argument"
	case DeviceUnrecoverable:
		return "device unrecoverable"
	default:
		return "unknown error kind"
	}
}

// Error carries enough context (lba, command, sense triple) for a caller
// to log a meaningful diagnostic, per §7's propagation rule.
type Error struct {
	Kind    Kind
	LBA     uint64
	Command string
	Sense   sense.Sense
	Err     error
}

func (e *Error) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s at lba %d: %v", e.Kind, e.Command, e.LBA, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err with Kind and no further context.
func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// AtLBA wraps err with Kind, command name, LBA, and the decoded sense that
// produced it.
func AtLBA(kind Kind, command string, lba uint64, s sense.Sense, err error) *Error {
	return &Error{Kind: kind, LBA: lba, Command: command, Sense: s, Err: err}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Sentinel errors for the two feature-distinguishing kinds surfaced
// through image.Readable/Writable (§4.4, §9 "sentinel null" redesign
// note).
var (
	ErrFeatureNotPresent     = New(FeatureNotPresent, errors.New("feature not present"))
	ErrFeatureNotImplemented = New(FeatureNotImplemented, errors.New("feature not implemented"))
)
