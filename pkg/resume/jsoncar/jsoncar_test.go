package jsoncar_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ostafen/discproc/pkg/resume"
	"github.com/ostafen/discproc/pkg/resume/jsoncar"
	"github.com/ostafen/discproc/pkg/sense"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingReturnsErrNotExist(t *testing.T) {
	car := jsoncar.New(filepath.Join(t.TempDir(), "resume.json"))
	_, err := car.Load()
	require.True(t, resume.IsNotExist(err))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "resume.json")
	car := jsoncar.New(path)

	snap := resume.Snapshot{
		NextBlock: 1024,
		BadBlocks: []uint64{5, 9, 10},
		Tries: []resume.Attempt{
			{
				LBA:     5,
				Command: "READ(12)",
				Sense:   sense.Sense{Key: sense.MediumError, ASC: 0x11, ASCQ: 0x05},
				Outcome: "skip",
				Time:    time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC),
			},
		},
	}
	require.NoError(t, car.Save(snap))

	got, err := car.Load()
	require.NoError(t, err)
	require.Equal(t, snap.NextBlock, got.NextBlock)
	require.Equal(t, snap.BadBlocks, got.BadBlocks)
	require.Len(t, got.Tries, 1)
	require.Equal(t, snap.Tries[0].Command, got.Tries[0].Command)
	require.Equal(t, snap.Tries[0].Sense.Key, got.Tries[0].Sense.Key)
	require.True(t, snap.Tries[0].Time.Equal(got.Tries[0].Time))
}

func TestSaveOverwritesAtomically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resume.json")
	car := jsoncar.New(path)

	require.NoError(t, car.Save(resume.Snapshot{NextBlock: 1}))
	require.NoError(t, car.Save(resume.Snapshot{NextBlock: 2}))

	got, err := car.Load()
	require.NoError(t, err)
	require.EqualValues(t, 2, got.NextBlock)
}
