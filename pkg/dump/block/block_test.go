package block_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/ostafen/discproc/pkg/dump/block"
	"github.com/ostafen/discproc/pkg/identify"
	"github.com/ostafen/discproc/pkg/image"
	"github.com/ostafen/discproc/pkg/resume"
	"github.com/ostafen/discproc/pkg/scsidev/filedev"
	"github.com/stretchr/testify/require"
)

const blockSize = 512

// fakeImage is a minimal image.Writable test double: it only actually
// implements sector storage, since that is the only surface the block
// pipeline calls.
type fakeImage struct {
	sectors map[uint64][]byte
}

func newFakeImage() *fakeImage { return &fakeImage{sectors: make(map[uint64][]byte)} }

func (f *fakeImage) Sectors() uint64                                       { return 0 }
func (f *fakeImage) SectorSize() uint32                                    { return blockSize }
func (f *fakeImage) Sessions() []image.Session                            { return nil }
func (f *fakeImage) Tracks() []image.Track                                { return nil }
func (f *fakeImage) Partitions() []image.Partition                        { return nil }
func (f *fakeImage) ReadSector(lba uint64) ([]byte, error)                { return f.sectors[lba], nil }
func (f *fakeImage) ReadSectors(lba uint64, n uint32) ([]byte, error)     { return nil, nil }
func (f *fakeImage) ReadSectorLong(lba uint64) ([]byte, error)            { return nil, nil }
func (f *fakeImage) ReadSectorTag(lba uint64, tag image.SectorTagKind) ([]byte, error) {
	return nil, nil
}
func (f *fakeImage) ReadMediaTag(kind identify.MediaTagKind) ([]byte, error) { return nil, nil }
func (f *fakeImage) Close() error                                            { return nil }

func (f *fakeImage) WriteSector(lba uint64, data []byte) error {
	return f.WriteSectors(lba, data)
}

func (f *fakeImage) WriteSectors(lba uint64, data []byte) error {
	for i := 0; i*blockSize < len(data); i++ {
		sector := append([]byte(nil), data[i*blockSize:(i+1)*blockSize]...)
		f.sectors[lba+uint64(i)] = sector
	}
	return nil
}

func (f *fakeImage) WriteSectorLong(lba uint64, data []byte) error { return nil }
func (f *fakeImage) WriteSectorTag(lba uint64, tag image.SectorTagKind, data []byte) error {
	return nil
}
func (f *fakeImage) WriteMediaTag(kind identify.MediaTagKind, data []byte) error { return nil }
func (f *fakeImage) SetTracks(tracks []image.Track) error                       { return nil }
func (f *fakeImage) SetDumpHardware(info image.DumpHardwareInfo) error          { return nil }
func (f *fakeImage) SetMetadata(meta image.Metadata) error                      { return nil }

var _ image.Writable = (*fakeImage)(nil)

func unsupportedSense() []byte {
	buf := make([]byte, 14)
	buf[0] = 0x70
	buf[2] = 0x03 // MEDIUM ERROR
	buf[12] = 0x11
	return buf
}

type memSideCar struct{}

func (memSideCar) Save(resume.Snapshot) error     { return nil }
func (memSideCar) Load() (resume.Snapshot, error) { return resume.Snapshot{}, resume.ErrNotExist }

func newPipeline(t *testing.T, dev *filedev.Device, img *fakeImage, cfg block.Config) *block.Pipeline {
	t.Helper()
	rm, err := resume.Open(memSideCar{})
	require.NoError(t, err)
	return block.New(dev, img, rm, cfg, &atomic.Bool{})
}

func TestMainPassCleanMedia(t *testing.T) {
	total := uint64(10)
	data := make([]byte, total*blockSize)
	for i := range data {
		data[i] = byte(i)
	}
	dev := filedev.NewFromBytes(data, blockSize)
	img := newFakeImage()

	var last block.Progress
	cfg := block.Config{
		TotalBlocks:      total,
		BlockSize:        blockSize,
		ProbeStartStride: 4,
		OnProgress:       func(p block.Progress) { last = p },
	}
	p := newPipeline(t, dev, img, cfg)

	require.NoError(t, p.Run(context.Background()))
	require.Equal(t, total, p.Resume.Store.NextBlock)
	require.Equal(t, uint64(0), p.Resume.Store.BadBlocks.Count())
	require.Equal(t, total, last.NextBlock)

	for lba := uint64(0); lba < total; lba++ {
		require.Equal(t, data[lba*blockSize:(lba+1)*blockSize], img.sectors[lba])
	}
}

func TestMainPassMarksBadBlockAndStaysBadThroughTrim(t *testing.T) {
	total := uint64(8)
	data := make([]byte, total*blockSize)
	dev := filedev.NewFromBytes(data, blockSize)
	dev.SetFault(2, unsupportedSense())
	img := newFakeImage()

	cfg := block.Config{
		TotalBlocks:      total,
		BlockSize:        blockSize,
		ProbeStartStride: 1,
		Skip:             1,
	}
	p := newPipeline(t, dev, img, cfg)
	require.NoError(t, p.Run(context.Background()))

	// The injected fault never clears, so both the main pass and the
	// subsequent trim pass observe it: lba 2 stays bad and zero-filled.
	require.True(t, p.Resume.Store.BadBlocks.Contains(2))
	require.Equal(t, make([]byte, blockSize), img.sectors[2])
}

func TestPersistentRetryKeepsFaultedBlockBad(t *testing.T) {
	total := uint64(4)
	data := make([]byte, total*blockSize)
	dev := filedev.NewFromBytes(data, blockSize)
	dev.SetFault(1, unsupportedSense())

	original := make([]byte, 4+12)
	original[3] = 0
	original[4] = 0x01
	original[5] = 0x0a
	original[6] = 0x00
	original[7] = 4
	dev.SetModePage(0x01, original)

	img := newFakeImage()
	cfg := block.Config{
		TotalBlocks:      total,
		BlockSize:        blockSize,
		ProbeStartStride: 1,
		Skip:             1,
		RetryPasses:      2,
		Persistent:       true,
	}
	p := newPipeline(t, dev, img, cfg)
	require.NoError(t, p.Run(context.Background()))
	require.True(t, p.Resume.Store.BadBlocks.Contains(1))
}

func TestProbeStrideClampedToTotalBlocks(t *testing.T) {
	total := uint64(3)
	data := make([]byte, total*blockSize)
	dev := filedev.NewFromBytes(data, blockSize)
	img := newFakeImage()

	cfg := block.Config{
		TotalBlocks:      total,
		BlockSize:        blockSize,
		ProbeStartStride: 64,
	}
	p := newPipeline(t, dev, img, cfg)
	require.NoError(t, p.Run(context.Background()))
	require.Equal(t, total, p.Resume.Store.NextBlock)
}
