package identify_test

import (
	"context"
	"testing"

	"github.com/ostafen/discproc/pkg/identify"
	"github.com/ostafen/discproc/pkg/scsi"
	"github.com/ostafen/discproc/pkg/scsidev"
	"github.com/ostafen/discproc/pkg/scsidev/filedev"
	"github.com/stretchr/testify/require"
)

func TestIdentify_PlainCD(t *testing.T) {
	dev := filedev.NewFromBytes(make([]byte, 2048*100), 2048)
	dev.SetProfile(scsi.ProfileCDROM)
	dev.SetTOC(0x00, []byte{0, 0, 1, 1, 0, 0x14, 1, 0, 0, 0, 0, 0})

	res, err := identify.Identify(context.Background(), dev, identify.Options{})
	require.NoError(t, err)
	require.True(t, res.Recognized)
	require.Equal(t, identify.CD, res.MediaType)
}

func TestIdentify_CDR(t *testing.T) {
	dev := filedev.NewFromBytes(make([]byte, 2048*100), 2048)
	dev.SetProfile(scsi.ProfileCDR)
	dev.SetTOC(0x00, []byte{0, 0, 1, 1, 0, 0x14, 1, 0, 0, 0, 0, 0})
	atip := make([]byte, 4+13)
	atip[4+2] = 0x00 // disc type bit clear -> CD-R
	dev.SetATIP(atip)

	res, err := identify.Identify(context.Background(), dev, identify.Options{})
	require.NoError(t, err)
	require.True(t, res.Recognized)
	require.Equal(t, identify.CDR, res.MediaType)
}

func TestIdentify_CDRW(t *testing.T) {
	dev := filedev.NewFromBytes(make([]byte, 2048*100), 2048)
	dev.SetProfile(scsi.ProfileCDRW)
	dev.SetTOC(0x00, []byte{0, 0, 1, 1, 0, 0x14, 1, 0, 0, 0, 0, 0})
	atip := make([]byte, 4+13)
	atip[4+2] = 0x40 // disc type bit set -> CD-RW
	dev.SetATIP(atip)

	res, err := identify.Identify(context.Background(), dev, identify.Options{})
	require.NoError(t, err)
	require.Equal(t, identify.CDRW, res.MediaType)
}

func TestIdentify_GameCubeDisc(t *testing.T) {
	dev := filedev.NewFromBytes(make([]byte, 2048*100), 2048)
	dev.SetProfile(scsi.ProfileDVDROM)

	pfi := make([]byte, 4+4)
	pfi[4] = 0xe0 // diskCategory=0xe (Nintendo), partVersion=0
	pfi[5] = 0x40 // discSize80mm = true
	dev.SetDiscStructure(scsidev.FormatPhysicalInfo, pfi)

	res, err := identify.Identify(context.Background(), dev, identify.Options{})
	require.NoError(t, err)
	require.True(t, res.Recognized)
	require.Equal(t, identify.GameCubeDisc, res.MediaType)
}

func TestIdentify_DVDRDualLayer(t *testing.T) {
	dev := filedev.NewFromBytes(make([]byte, 2048*100), 2048)
	dev.SetProfile(scsi.ProfileDVDR)

	pfi := make([]byte, 4+4)
	pfi[4] = 0x16 // diskCategory=1 (DVD-R), partVersion=6
	dev.SetDiscStructure(scsidev.FormatPhysicalInfo, pfi)

	res, err := identify.Identify(context.Background(), dev, identify.Options{})
	require.NoError(t, err)
	require.Equal(t, identify.DVDRDL, res.MediaType)
}

func TestIdentify_XGD2(t *testing.T) {
	dev := filedev.NewFromBytes(make([]byte, 2048*10_000_000), 2048)
	dev.SetProfile(scsi.ProfileDVDROM)
	dev.SetDiscStructure(scsidev.FormatPhysicalInfo, make([]byte, 8))

	dmi := append([]byte{0, 0, 0, 0}, []byte("MICROSOFT*XBOX*MEDIA")...)
	dev.SetDiscStructure(scsidev.FormatDMI, dmi)

	res, err := identify.Identify(context.Background(), dev, identify.Options{})
	require.NoError(t, err)
	require.Equal(t, identify.XGD2, res.MediaType)
}

func TestIdentify_PCEngineSignature(t *testing.T) {
	dev := filedev.NewFromBytes(make([]byte, 2048*100), 2048)
	sector0 := make([]byte, 2048)
	copy(sector0, []byte("PC Engine CD-ROM SYSTEM"))
	dev.SetCDSector(0, sector0)
	dev.SetTOC(0x00, []byte{0, 0, 1, 1, 0, 0x14, 1, 0, 0, 0, 0, 0})

	res, err := identify.Identify(context.Background(), dev, identify.Options{})
	require.NoError(t, err)
	require.Equal(t, identify.PCEngine, res.MediaType)
}

func TestIdentify_Tape(t *testing.T) {
	dev := filedev.NewFromBytes(make([]byte, 512*1000), 512)
	modeSense := make([]byte, 8)
	modeSense[2] = 0x00
	modeSense[3] = 4
	modeSense[4] = 0x40
	dev.SetModePage(0x00, modeSense)

	res, err := identify.Identify(context.Background(), dev, identify.Options{
		Manufacturer: "HP",
		Model:        "Ultrium",
	})
	require.NoError(t, err)
	require.True(t, res.Recognized)
	require.Equal(t, identify.Tape, res.MediaType)
}

func TestIdentify_FlashDrive(t *testing.T) {
	dev := filedev.NewFromBytes(make([]byte, 512*1000), 512)
	dev.SetModePage(0x05, []byte{0, 0, 0, 0})

	res, err := identify.Identify(context.Background(), dev, identify.Options{USB: true})
	require.NoError(t, err)
	require.True(t, res.Recognized)
	require.Equal(t, identify.FlashDrive, res.MediaType)
}

func TestIdentify_UnknownStillPublishesCapacity(t *testing.T) {
	dev := filedev.NewFromBytes(make([]byte, 512*1000), 512)

	res, err := identify.Identify(context.Background(), dev, identify.Options{})
	require.NoError(t, err)
	require.False(t, res.Recognized)
	require.Equal(t, identify.Unknown, res.MediaType)
	require.EqualValues(t, 1000, res.Blocks)
	require.EqualValues(t, 512, res.BlockSize)
}
