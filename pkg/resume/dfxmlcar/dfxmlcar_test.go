package dfxmlcar_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ostafen/discproc/pkg/resume"
	"github.com/ostafen/discproc/pkg/resume/dfxmlcar"
	"github.com/ostafen/discproc/pkg/sense"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingReturnsErrNotExist(t *testing.T) {
	car := dfxmlcar.New(filepath.Join(t.TempDir(), "resume.dfxml"))
	_, err := car.Load()
	require.True(t, resume.IsNotExist(err))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resume.dfxml")
	car := dfxmlcar.New(path)

	snap := resume.Snapshot{
		NextBlock: 2048,
		BadBlocks: []uint64{2, 4, 8},
		Tries: []resume.Attempt{
			{
				LBA:     4,
				Command: "READ(12)",
				Sense:   sense.Sense{Key: sense.MediumError, ASC: 0x11, ASCQ: 0x00},
				Outcome: "retry-ok",
				Time:    time.Date(2026, 7, 29, 9, 30, 0, 0, time.UTC),
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
	require.Equal(t, snap.Tries[0].Outcome, got.Tries[0].Outcome)
	require.Equal(t, snap.Tries[0].Sense.Key, got.Tries[0].Sense.Key)
	require.Equal(t, snap.Tries[0].Sense.ASC, got.Tries[0].Sense.ASC)
	require.True(t, snap.Tries[0].Time.Equal(got.Tries[0].Time))
}
