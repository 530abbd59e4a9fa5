package xbox_test

import (
	"context"
	"encoding/binary"
	"sync/atomic"
	"testing"

	"github.com/ostafen/discproc/pkg/dump/xbox"
	"github.com/ostafen/discproc/pkg/identify"
	"github.com/ostafen/discproc/pkg/image"
	"github.com/ostafen/discproc/pkg/resume"
	"github.com/ostafen/discproc/pkg/scsidev"
	"github.com/ostafen/discproc/pkg/scsidev/filedev"
	"github.com/stretchr/testify/require"
)

const blockSize = 2048

// unlockState names which of the three Kreon states the fake drive is
// in, so ReadCapacity16/ReadDiscStructure can answer differently per
// state the way a real Kreon-flashed drive does.
type unlockState int

const (
	stateLocked unlockState = iota
	stateXtreme
	stateWxripper
)

// fakeXboxDevice wraps filedev.Device (for Read12) and adds the
// state-dependent capacity/PFI responses the real geometry discovery
// state machine depends on, plus a canned security sector, which
// filedev's stateless fault table cannot express on its own.
type fakeXboxDevice struct {
	*filedev.Device
	state unlockState

	videoTotal, gameSize, discTotal uint64
	dataAreaStart, layer0End        uint32
	securitySector                  []byte
}

func (d *fakeXboxDevice) VendorUnlockVideo(ctx context.Context) ([]byte, []byte, error) {
	d.state = stateLocked
	return nil, nil, nil
}

func (d *fakeXboxDevice) UnlockXtreme(ctx context.Context) ([]byte, []byte, error) {
	d.state = stateXtreme
	return nil, nil, nil
}

func (d *fakeXboxDevice) UnlockWxripper(ctx context.Context) ([]byte, []byte, error) {
	d.state = stateWxripper
	return nil, nil, nil
}

func (d *fakeXboxDevice) ReadCapacity16(ctx context.Context) (uint64, uint32, []byte, error) {
	switch d.state {
	case stateLocked:
		return d.videoTotal, blockSize, nil, nil
	case stateXtreme:
		return d.gameSize, blockSize, nil, nil
	default:
		return d.discTotal, blockSize, nil, nil
	}
}

func (d *fakeXboxDevice) ReadDiscStructure(ctx context.Context, mediaKind scsidev.MediaKind, format scsidev.DiscStructureFormat, layer, agid uint8) ([]byte, []byte, error) {
	// 4-byte READ DISC STRUCTURE length/reserved header, then the
	// Physical Format Information block itself (only the two 24-bit PSN
	// fields this package reads are filled in).
	buf := make([]byte, 20)
	buf[4+5] = byte(d.dataAreaStart >> 16)
	buf[4+6] = byte(d.dataAreaStart >> 8)
	buf[4+7] = byte(d.dataAreaStart)
	buf[4+13] = byte(d.layer0End >> 16)
	buf[4+14] = byte(d.layer0End >> 8)
	buf[4+15] = byte(d.layer0End)
	return buf, nil, nil
}

func (d *fakeXboxDevice) ExtractSecuritySector(ctx context.Context) ([]byte, []byte, error) {
	return d.securitySector, nil, nil
}

// fakeImage is a minimal image.Writable test double recording sectors by
// absolute LBA.
type fakeImage struct {
	sectors map[uint64][]byte
}

func newFakeImage() *fakeImage { return &fakeImage{sectors: make(map[uint64][]byte)} }

func (f *fakeImage) Sectors() uint64                                  { return 0 }
func (f *fakeImage) SectorSize() uint32                               { return blockSize }
func (f *fakeImage) Sessions() []image.Session                        { return nil }
func (f *fakeImage) Tracks() []image.Track                            { return nil }
func (f *fakeImage) Partitions() []image.Partition                    { return nil }
func (f *fakeImage) ReadSector(lba uint64) ([]byte, error)            { return f.sectors[lba], nil }
func (f *fakeImage) ReadSectors(lba uint64, n uint32) ([]byte, error) { return nil, nil }
func (f *fakeImage) ReadSectorLong(lba uint64) ([]byte, error)        { return nil, nil }
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

var _ image.Writable = (*fakeImage)(nil)

type memSideCar struct{}

func (memSideCar) Save(resume.Snapshot) error     { return nil }
func (memSideCar) Load() (resume.Snapshot, error) { return resume.Snapshot{}, resume.ErrNotExist }

func encodeExtent(start, end uint32) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:4], start)
	binary.BigEndian.PutUint32(buf[4:8], end)
	return buf
}

func TestDiscoverGeometry(t *testing.T) {
	dev := &fakeXboxDevice{
		Device:        filedev.NewFromBytes(make([]byte, 64*blockSize), blockSize),
		dataAreaStart: 0x30000,
		layer0End:     0x30000 + 999,
		videoTotal:    1999, // l0_video=1000, l1_video=1000
		gameSize:      2000,
		discTotal:     0x30000 + 999 - 0x30000 + 1 + 2000 + 500 - 1, // middle_zone=500
	}

	g, err := xbox.DiscoverGeometry(context.Background(), dev)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), g.L0Video)
	require.Equal(t, uint64(1000), g.L1Video)
	require.Equal(t, uint64(2000), g.GameSize)
	require.Equal(t, uint64(500), g.MiddleZone)
	require.Equal(t, g.L0Video+g.L1Video+2*g.MiddleZone+g.GameSize, g.TotalSize)
}

func TestPipelineRunAllThreePhases(t *testing.T) {
	gameSize := uint64(10)
	l0, l1, mz := uint64(20), uint64(20), uint64(5)
	videoTotal := l0 + l1 - 1
	discTotal := l0 + gameSize + mz - 1

	var sec []byte
	sec = append(sec, encodeExtent(uint32(0x30000+2), uint32(0x30000+3))...) // bad extent [2,3]
	sec = append(sec, make([]byte, 8)...)                                    // terminator

	backing := make([]byte, int(l0+l1+gameSize+1)*blockSize)
	dev := &fakeXboxDevice{
		Device:        filedev.NewFromBytes(backing, blockSize),
		dataAreaStart: 0x30000,
		layer0End:     0x30000 + l0 - 1,
		videoTotal:    videoTotal,
		gameSize:      gameSize,
		discTotal:     discTotal,
		securitySector: sec,
	}
	img := newFakeImage()
	rm, err := resume.Open(memSideCar{})
	require.NoError(t, err)

	var last xbox.Progress
	p := xbox.New(dev, img, rm, blockSize, func(pr xbox.Progress) { last = pr }, &atomic.Bool{})
	require.NoError(t, p.Run(context.Background()))

	require.Equal(t, l0, p.Geometry.L0Video)
	require.Equal(t, mz, p.Geometry.MiddleZone)
	require.Equal(t, xbox.PhaseVideoL1, last.Phase)

	// Bad extent [2,3] inside the game partition must be zero-filled,
	// not read from the backing file, and still present as a written
	// sector (marked good).
	require.Equal(t, make([]byte, blockSize), img.sectors[2])
	require.Equal(t, make([]byte, blockSize), img.sectors[3])

	// Middle zone is all zero, based at gameSize.
	require.Equal(t, make([]byte, blockSize), img.sectors[gameSize])

	// Video layer 1 lands at base = gameSize + 2*mz.
	_, ok := img.sectors[gameSize+2*mz]
	require.True(t, ok)
}
