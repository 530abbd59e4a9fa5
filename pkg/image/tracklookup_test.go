package image_test

import (
	"testing"

	"github.com/ostafen/discproc/pkg/image"
	"github.com/stretchr/testify/require"
)

func tracks() []image.Track {
	return []image.Track{
		{Sequence: 1, FirstLBA: 0, LastLBA: 99},
		{Sequence: 2, FirstLBA: 100, LastLBA: 199},
		{Sequence: 3, FirstLBA: 200, LastLBA: 299},
	}
}

func TestTrackAt(t *testing.T) {
	ts := tracks()

	tr, ok := image.TrackAt(ts, 150)
	require.True(t, ok)
	require.Equal(t, 2, tr.Sequence)

	tr, ok = image.TrackAt(ts, 0)
	require.True(t, ok)
	require.Equal(t, 1, tr.Sequence)

	_, ok = image.TrackAt(ts, 300)
	require.False(t, ok)
}

func TestSpanTrack(t *testing.T) {
	ts := tracks()

	tr, ok := image.SpanTrack(ts, 95, 5)
	require.True(t, ok)
	require.Equal(t, 1, tr.Sequence)

	_, ok = image.SpanTrack(ts, 95, 10)
	require.False(t, ok, "reads spanning a track boundary must be rejected")
}
