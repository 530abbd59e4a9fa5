package resume_test

import (
	"errors"
	"testing"
	"time"

	"github.com/ostafen/discproc/pkg/resume"
	"github.com/ostafen/discproc/pkg/sense"
	"github.com/stretchr/testify/require"
)

type memCar struct {
	snap resume.Snapshot
	has  bool
}

func (m *memCar) Save(s resume.Snapshot) error {
	m.snap = s
	m.has = true
	return nil
}

func (m *memCar) Load() (resume.Snapshot, error) {
	if !m.has {
		return resume.Snapshot{}, resume.ErrNotExist
	}
	return m.snap, nil
}

func TestStoreAdvanceNeverGoesBackwards(t *testing.T) {
	s := resume.New()
	s.Advance(100)
	s.Advance(50)
	require.EqualValues(t, 100, s.NextBlock)
}

func TestStoreMarkBadAndGood(t *testing.T) {
	s := resume.New()
	s.MarkBad(10, 5) // [10,15)
	require.True(t, s.BadBlocks.Contains(12))

	s.MarkGood(12)
	require.False(t, s.BadBlocks.Contains(12))
	require.True(t, s.BadBlocks.Contains(10))
	require.True(t, s.BadBlocks.Contains(14))
}

func TestStoreCheckInvariant(t *testing.T) {
	s := resume.New()
	s.MarkBad(5, 2) // [5,7)
	require.NoError(t, s.CheckInvariant(100, nil))

	s2 := resume.New()
	s2.MarkBad(98, 5) // [98,103) exceeds total_blocks=100
	require.Error(t, s2.CheckInvariant(100, nil))
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := resume.New()
	s.Advance(42)
	s.MarkBad(1, 1)
	s.MarkBad(5, 1)
	s.AppendAttempt(resume.Attempt{
		LBA:     1,
		Command: "READ(12)",
		Sense:   sense.Sense{Key: sense.MediumError, ASC: 0x11, ASCQ: 0x00},
		Outcome: "retry-failed",
		Time:    time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC),
	})

	snap := s.ToSnapshot()
	require.Equal(t, []uint64{1, 5}, snap.BadBlocks)

	rebuilt := resume.FromSnapshot(snap)
	require.EqualValues(t, 42, rebuilt.NextBlock)
	require.True(t, rebuilt.BadBlocks.Contains(1))
	require.True(t, rebuilt.BadBlocks.Contains(5))
	require.Len(t, rebuilt.Tries, 1)
}

func TestManagerOpenFreshWhenSideCarEmpty(t *testing.T) {
	m, err := resume.Open(&memCar{})
	require.NoError(t, err)
	require.EqualValues(t, 0, m.Store.NextBlock)
}

func TestManagerSyncAndReopen(t *testing.T) {
	car := &memCar{}
	m, err := resume.Open(car)
	require.NoError(t, err)

	m.Store.Advance(10)
	m.Store.MarkBad(3, 1)
	require.NoError(t, m.Sync())

	m2, err := resume.Open(car)
	require.NoError(t, err)
	require.EqualValues(t, 10, m2.Store.NextBlock)
	require.True(t, m2.Store.BadBlocks.Contains(3))
}

func TestIsNotExist(t *testing.T) {
	require.True(t, resume.IsNotExist(resume.ErrNotExist))
	require.False(t, resume.IsNotExist(errors.New("other")))
}
