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

// Package resume tracks and persists the progress of a dump pipeline
// (§4.6) so a later invocation can pick up where a prior one left off: the
// next untried block, the set of blocks known to be bad, and the history
// of retry attempts made against them. The Store itself never touches a
// filesystem; persistence is delegated to a SideCar implementation.
package resume

import (
	"fmt"
	"sort"
	"time"

	"github.com/ostafen/discproc/pkg/extents"
	"github.com/ostafen/discproc/pkg/sense"
)

// Attempt records one read that failed and was retried, carrying enough
// context (lba, command, sense triple, outcome) for a caller to log a
// meaningful diagnostic, the same fields direrr.Error attaches to a
// propagated error.
type Attempt struct {
	LBA     uint64
	Command string
	Sense   sense.Sense
	Outcome string
	Time    time.Time
}

// Store is the in-memory resume record of §4.6: the next block the
// pipeline has not yet attempted, the set of blocks known bad, and the
// list of retry attempts made so far.
type Store struct {
	NextBlock uint64
	BadBlocks extents.Set
	Tries     []Attempt
}

// New returns an empty Store, as created on first dump (§6 "Resume
// record" lifecycle).
func New() *Store {
	return &Store{}
}

// Advance moves NextBlock forward, the bookkeeping half of a successful
// batch write. It never moves NextBlock backwards.
func (s *Store) Advance(to uint64) {
	if to > s.NextBlock {
		s.NextBlock = to
	}
}

// MarkBad adds the half-open range [lba, lba+n) to BadBlocks.
func (s *Store) MarkBad(lba, n uint64) {
	s.BadBlocks.AddRange(lba, n)
}

// MarkGood removes the single LBA lba from BadBlocks, used by the trim
// phase (§4.7) when a re-read of a previously bad sector succeeds.
func (s *Store) MarkGood(lba uint64) {
	s.BadBlocks.Remove(lba)
}

// AppendAttempt records one retry attempt.
func (s *Store) AppendAttempt(a Attempt) {
	s.Tries = append(s.Tries, a)
}

// CheckInvariant validates §4.6's invariant: every bad block is within
// range and not also claimed as a successfully read extent.
func (s *Store) CheckInvariant(totalBlocks uint64, goodExtents *extents.Set) error {
	for _, r := range s.BadBlocks.Ranges() {
		if r.End > totalBlocks {
			return fmt.Errorf("resume: bad block range [%d,%d) exceeds total_blocks %d", r.Start, r.End, totalBlocks)
		}
	}
	if goodExtents != nil && !s.BadBlocks.Disjoint(goodExtents) {
		return fmt.Errorf("resume: bad_blocks overlaps good_extents")
	}
	return nil
}

// Snapshot is the serialization-facing view of a Store: BadBlocks is
// flattened to a sorted, de-duplicated list of LBAs (§6: "bad_blocks:set
// <lba>"), which is what a JSON or DFXML encoding actually stores on
// disk. ToSnapshot/FromSnapshot convert between the two representations.
type Snapshot struct {
	NextBlock uint64
	BadBlocks []uint64
	Tries     []Attempt
}

// ToSnapshot flattens s into its serializable form.
func (s *Store) ToSnapshot() Snapshot {
	return Snapshot{
		NextBlock: s.NextBlock,
		BadBlocks: s.BadBlocks.Sorted(),
		Tries:     append([]Attempt(nil), s.Tries...),
	}
}

// FromSnapshot rebuilds a Store from a Snapshot, re-coalescing the flat
// bad-block list into a Set.
func FromSnapshot(snap Snapshot) *Store {
	sorted := append([]uint64(nil), snap.BadBlocks...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var bad extents.Set
	for _, lba := range sorted {
		bad.Add(lba)
	}
	return &Store{
		NextBlock: snap.NextBlock,
		BadBlocks: bad,
		Tries:     append([]Attempt(nil), snap.Tries...),
	}
}

// SideCar persists and reloads a Snapshot. spec.md leaves the on-disk
// encoding out of scope; jsoncar and dfxmlcar are the two concrete
// implementations this module ships.
type SideCar interface {
	Save(Snapshot) error
	Load() (Snapshot, error)
}

// Manager pairs a Store with the SideCar that persists it, applying the
// "atomic write-then-rename on every extent change" rule (§4.6) and the
// "image-write-then-resume-update" ordering guarantee (§4.5's ordering
// guarantees paragraph): callers call Sync after the corresponding image
// write has already landed, never before.
type Manager struct {
	Store   *Store
	SideCar SideCar
}

// Open loads an existing resume record through car, or starts a fresh one
// if car has nothing to load yet.
func Open(car SideCar) (*Manager, error) {
	snap, err := car.Load()
	if err != nil {
		if IsNotExist(err) {
			return &Manager{Store: New(), SideCar: car}, nil
		}
		return nil, err
	}
	return &Manager{Store: FromSnapshot(snap), SideCar: car}, nil
}

// Sync persists the current Store through the Manager's SideCar. Every
// mutating Store call in a dump pipeline is expected to be followed by a
// Sync before the pipeline advances to its next batch.
func (m *Manager) Sync() error {
	return m.SideCar.Save(m.Store.ToSnapshot())
}
