package tape_test

import (
	"context"
	"encoding/binary"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ostafen/discproc/pkg/dump/tape"
	"github.com/ostafen/discproc/pkg/identify"
	"github.com/ostafen/discproc/pkg/image"
	"github.com/ostafen/discproc/pkg/resume"
	"github.com/ostafen/discproc/pkg/scsidev/filedev"
	"github.com/stretchr/testify/require"
)

const blockSize = 8

// fixedSense builds a fixed-format (0x70) sense buffer carrying the
// fields tape's branch table inspects: sense key, ASC/ASCQ, and the
// ILI/EOM/Filemark flags plus an optional signed INFORMATION residual.
func fixedSense(key byte, ilI, eom, filemark bool, asc, ascq byte, info int32, infoValid bool) []byte {
	buf := make([]byte, 14)
	if infoValid {
		buf[0] = 0x80
	}
	buf[0] |= 0x70
	flags := key & 0x0f
	if ilI {
		flags |= 0x20
	}
	if eom {
		flags |= 0x40
	}
	if filemark {
		flags |= 0x80
	}
	buf[2] = flags
	binary.BigEndian.PutUint32(buf[3:7], uint32(info))
	buf[12] = asc
	buf[13] = ascq
	return buf
}

func unsupportedCommandSense() []byte {
	return fixedSense(0x05, false, false, false, 0x20, 0x00, 0, false)
}

func modePage0(blockLen uint32) []byte {
	buf := make([]byte, 12)
	buf[9] = byte(blockLen >> 16)
	buf[10] = byte(blockLen >> 8)
	buf[11] = byte(blockLen)
	return buf
}

// tapeDevice wraps filedev.Device with the three behaviors a stateless
// fault table cannot express: a one-shot ILI correction during
// block-size discovery, a one-shot bad-block-then-recovers sequence for
// the retry phase, and a single-partition drive (LOCATE LONG to any
// partition beyond 0 fails, the normal signal that there is nothing more
// to dump).
type tapeDevice struct {
	*filedev.Device

	iliLBA   uint64
	iliSense []byte
	iliDone  bool

	retryLBA   uint64
	retrySense []byte
	retryHit   bool
}

func (d *tapeDevice) Read6(ctx context.Context, lba uint64, blocks uint32, blockSize uint32, fixed bool) ([]byte, []byte, time.Duration, error) {
	if d.iliSense != nil && !d.iliDone && lba == d.iliLBA {
		d.iliDone = true
		return nil, d.iliSense, 0, nil
	}
	if d.retrySense != nil && !d.retryHit && lba == d.retryLBA {
		d.retryHit = true
		return nil, d.retrySense, 0, nil
	}
	return d.Device.Read6(ctx, lba, blocks, blockSize, fixed)
}

func (d *tapeDevice) LocateLong(ctx context.Context, partition uint32, lba uint64) ([]byte, error) {
	if partition > 0 {
		return unsupportedCommandSense(), nil
	}
	return d.Device.LocateLong(ctx, partition, lba)
}

// fakeImage is a minimal image.TapeWritable test double.
type fakeImage struct {
	sectors    map[uint64][]byte
	files      []image.TapeFile
	partitions []image.TapePartition
}

func newFakeImage() *fakeImage {
	return &fakeImage{sectors: make(map[uint64][]byte)}
}

func (f *fakeImage) Sectors() uint64                       { return 0 }
func (f *fakeImage) SectorSize() uint32                    { return blockSize }
func (f *fakeImage) Sessions() []image.Session             { return nil }
func (f *fakeImage) Tracks() []image.Track                 { return nil }
func (f *fakeImage) Partitions() []image.Partition         { return nil }
func (f *fakeImage) ReadSector(lba uint64) ([]byte, error) { return f.sectors[lba], nil }
func (f *fakeImage) ReadSectors(lba uint64, n uint32) ([]byte, error) {
	return nil, nil
}
func (f *fakeImage) ReadSectorLong(lba uint64) ([]byte, error) { return nil, nil }
func (f *fakeImage) ReadSectorTag(lba uint64, tag image.SectorTagKind) ([]byte, error) {
	return nil, nil
}
func (f *fakeImage) ReadMediaTag(kind identify.MediaTagKind) ([]byte, error) { return nil, nil }
func (f *fakeImage) Close() error                                            { return nil }
func (f *fakeImage) WriteSector(lba uint64, data []byte) error              { return f.WriteSectors(lba, data) }
func (f *fakeImage) WriteSectors(lba uint64, data []byte) error {
	f.sectors[lba] = append([]byte(nil), data...)
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
func (f *fakeImage) SetTape()                                                   {}
func (f *fakeImage) AddFile(tf image.TapeFile) error {
	f.files = append(f.files, tf)
	return nil
}
func (f *fakeImage) AddPartition(tp image.TapePartition) error {
	f.partitions = append(f.partitions, tp)
	return nil
}

var _ image.TapeWritable = (*fakeImage)(nil)

type memSideCar struct{}

func (memSideCar) Save(resume.Snapshot) error     { return nil }
func (memSideCar) Load() (resume.Snapshot, error) { return resume.Snapshot{}, resume.ErrNotExist }

func TestRunDiscoversAdjustedBlockSizeThenDumpsOneFile(t *testing.T) {
	backing := make([]byte, 6*blockSize)
	inner := filedev.NewFromBytes(backing, blockSize)
	inner.SetModePage(0x00, modePage0(8))

	dev := &tapeDevice{
		Device: inner,
		iliLBA: 0,
		// seed is 8 (from the mode page), true block length is 24:
		// residual = seed - actual = 8 - 24 = -16.
		iliSense: fixedSense(0x00, true, false, false, 0x00, 0x00, -16, true),
	}
	// Block 2 signals end of medium; blocks 0 and 1 are real data.
	dev.Device.SetFault(2, fixedSense(0x00, false, true, false, 0x00, 0x00, 0, false))

	img := newFakeImage()
	rm, err := resume.Open(memSideCar{})
	require.NoError(t, err)

	p := tape.New(dev, img, rm, tape.Config{}, &atomic.Bool{})
	require.NoError(t, p.Run(context.Background()))

	require.Contains(t, img.sectors, uint64(0))
	require.Contains(t, img.sectors, uint64(1))
	require.Len(t, img.partitions, 1)
	require.Equal(t, uint64(0), img.partitions[0].FirstBlock)
	require.Equal(t, uint64(2), img.partitions[0].LastBlock)
	require.Len(t, img.files, 1)
	require.Equal(t, uint64(0), img.files[0].FirstBlock)
	require.Equal(t, uint64(2), img.files[0].LastBlock)
}

func TestRunMarksBadBlockAndRetryRecovers(t *testing.T) {
	backing := make([]byte, 6*blockSize)
	inner := filedev.NewFromBytes(backing, blockSize)

	dev := &tapeDevice{
		Device:     inner,
		retryLBA:   1,
		retrySense: fixedSense(0x03, false, false, false, 0x11, 0x00, 0, false), // MEDIUM ERROR
	}
	dev.Device.SetFault(4, fixedSense(0x00, false, true, false, 0x00, 0x00, 0, false))

	img := newFakeImage()
	rm, err := resume.Open(memSideCar{})
	require.NoError(t, err)

	p := tape.New(dev, img, rm, tape.Config{RetryPasses: 1}, &atomic.Bool{})
	require.NoError(t, p.Run(context.Background()))

	require.Equal(t, uint64(0), rm.Store.BadBlocks.Count())

	var recovered bool
	for _, a := range rm.Store.Tries {
		if a.LBA == 1 && a.Outcome == "recovered" {
			recovered = true
		}
	}
	require.True(t, recovered)
	require.Contains(t, img.sectors, uint64(1))
	require.Len(t, img.partitions, 1)
}

func TestRunStopsOnFilemarkThenEndOfMedium(t *testing.T) {
	backing := make([]byte, 6*blockSize)
	inner := filedev.NewFromBytes(backing, blockSize)

	dev := &tapeDevice{Device: inner}
	dev.Device.SetFault(2, fixedSense(0x00, false, false, true, 0x00, 0x01, 0, false))  // filemark
	dev.Device.SetFault(4, fixedSense(0x00, false, true, false, 0x00, 0x00, 0, false)) // end of medium

	img := newFakeImage()
	rm, err := resume.Open(memSideCar{})
	require.NoError(t, err)

	p := tape.New(dev, img, rm, tape.Config{}, &atomic.Bool{})
	require.NoError(t, p.Run(context.Background()))

	require.Len(t, img.files, 2)
	require.Equal(t, uint64(0), img.files[0].FirstBlock)
	require.Equal(t, uint64(2), img.files[0].LastBlock)
	require.Equal(t, uint64(3), img.files[1].FirstBlock)
	require.Equal(t, uint64(4), img.files[1].LastBlock)
	require.Len(t, img.partitions, 1)
}
