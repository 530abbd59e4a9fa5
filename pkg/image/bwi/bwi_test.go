package bwi_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ostafen/discproc/pkg/identify"
	"github.com/ostafen/discproc/pkg/image"
	"github.com/ostafen/discproc/pkg/image/bwi"
	"github.com/ostafen/discproc/pkg/image/filter"
	"github.com/stretchr/testify/require"
)

func TestCreateWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.bwi")

	const blocks = 16
	const blockSize = 2048

	w, err := bwi.Create(path, identify.DVDROM, image.CreateOptions{}, blocks, blockSize)
	require.NoError(t, err)

	sector := make([]byte, blockSize)
	for i := range sector {
		sector[i] = byte(i)
	}
	require.NoError(t, w.WriteSector(0, sector))
	require.NoError(t, w.WriteSectors(1, append(sector, sector...)))

	require.NoError(t, w.SetTracks([]image.Track{
		{
			Sequence:             1,
			Session:              1,
			Kind:                 image.TrackDVD,
			FirstLBA:             0,
			LastLBA:              blocks - 1,
			RawBytesPerSector:    blockSize,
			CookedBytesPerSector: blockSize,
		},
	}))
	require.NoError(t, w.SetMetadata(image.Metadata{Title: "test disc"}))
	require.NoError(t, w.Close())

	f := filter.New(dir)
	r, err := bwi.Open("image.bwi", f, bwi.Options{})
	require.NoError(t, err)
	defer r.Close()

	require.EqualValues(t, blocks, r.Sectors())
	require.EqualValues(t, blockSize, r.SectorSize())

	got, err := r.ReadSector(0)
	require.NoError(t, err)
	require.Equal(t, sector, got)

	got, err = r.ReadSectors(1, 2)
	require.NoError(t, err)
	require.Equal(t, append(sector, sector...), got)
}

func TestOpenRejectsBadSignature(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.bwi")
	require.NoError(t, os.WriteFile(path, make([]byte, 300), 0o644))

	f := filter.New(dir)
	_, err := bwi.Open("bad.bwi", f, bwi.Options{})
	require.Error(t, err)
}
