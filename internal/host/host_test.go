package host_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legacyboot/internal/firmware"
	"legacyboot/internal/host"
	"legacyboot/internal/image/diskimage"
	"legacyboot/internal/image/partition"
	"legacyboot/internal/volume"
)

func bootcampLayout() diskimage.Layout {
	return diskimage.Layout{
		BootCode:  partition.DefaultBootStub,
		Signature: 0x0B00CA4D,
		Align:     8,
		Primary: []diskimage.Partition{
			{Type: 0x07, Sectors: 64, FS: diskimage.FSNTFS, BootCode: true},
			{Type: 0x0B, Sectors: 32, FS: diskimage.FSFAT},
		},
	}
}

func writeImage(t *testing.T, dir, name string, l diskimage.Layout, codec string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, diskimage.WriteFile(path, l, codec))
	return path
}

func TestDiskReadWrite(t *testing.T) {
	path := writeImage(t, t.TempDir(), "disk.img", bootcampLayout(), "none")
	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	d, err := host.OpenDisk(path, volume.Internal, false, 4)
	require.NoError(t, err)
	defer d.Release()
	assert.Equal(t, uint64(len(raw)/512), d.Sectors())

	buf := make([]byte, 1024)
	require.NoError(t, d.ReadBlocks(d.MediaID(), 0, buf))
	assert.Equal(t, raw[:1024], buf)

	sec := bytes.Repeat([]byte{0xA5}, 512)
	require.NoError(t, d.WriteBlocks(d.MediaID(), 1, sec))
	require.NoError(t, d.ReadBlocks(d.MediaID(), 0, buf))
	assert.Equal(t, sec, buf[512:])

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, sec, onDisk[512:1024])

	require.NoError(t, d.Close())
	assert.ErrorIs(t, d.ReadBlocks(d.MediaID(), 0, buf), firmware.NotReady)
	require.NoError(t, d.Reopen())
	require.NoError(t, d.ReadBlocks(d.MediaID(), 1, buf[:512]))
	assert.Equal(t, sec, buf[:512])
}

func TestDiskRejectsBadRequests(t *testing.T) {
	path := writeImage(t, t.TempDir(), "disk.img", bootcampLayout(), "none")
	d, err := host.OpenDisk(path, volume.Internal, true, 0)
	require.NoError(t, err)
	defer d.Release()

	tests := []struct {
		name string
		err  error
		call func() error
	}{
		{"past the end", firmware.InvalidParameter, func() error { return d.ReadBlocks(d.MediaID(), d.Sectors(), make([]byte, 512)) }},
		{"partial sector", firmware.BadBufferSize, func() error { return d.ReadBlocks(d.MediaID(), 0, make([]byte, 100)) }},
		{"stale media", firmware.NotReady, func() error { return d.ReadBlocks(d.MediaID()+1, 0, make([]byte, 512)) }},
		{"read only", firmware.WriteProtected, func() error { return d.WriteBlocks(d.MediaID(), 0, make([]byte, 512)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.call(), tt.err)
		})
	}
}

func TestCompressedDiskUsesScratchCopy(t *testing.T) {
	dir := t.TempDir()
	rawPath := writeImage(t, dir, "disk.img", bootcampLayout(), "none")
	zPath := writeImage(t, dir, "disk.img.zst", bootcampLayout(), "zstd")
	raw, err := os.ReadFile(rawPath)
	require.NoError(t, err)
	packed, err := os.ReadFile(zPath)
	require.NoError(t, err)

	d, err := host.OpenDisk(zPath, volume.External, false, 8)
	require.NoError(t, err)
	assert.True(t, d.Scratch())
	table, err := partition.DetectR(d.Reader())
	require.NoError(t, err)
	assert.Equal(t, uint32(0x0B00CA4D), table.DiskSignature)
	assert.Len(t, table.Entries, 2)

	buf := make([]byte, 512)
	require.NoError(t, d.ReadBlocks(d.MediaID(), 0, buf))
	assert.Equal(t, raw[:512], buf)
	require.NoError(t, d.WriteBlocks(d.MediaID(), 0, make([]byte, 512)))
	require.NoError(t, d.Release())

	after, err := os.ReadFile(zPath)
	require.NoError(t, err)
	assert.Equal(t, packed, after)
}

func TestNVRAMPersistsNonVolatile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nvram", "vars.json")
	nv, err := host.LoadNVRAM(path)
	require.NoError(t, err)

	guid := firmware.AppleVendorVariable
	const nvbs = firmware.NonVolatile | firmware.BootserviceAccess
	require.NoError(t, nv.SetVariable("BootCampHD", guid, nvbs, []byte{1, 2, 3}))
	require.NoError(t, nv.SetVariable("Scratch", guid, firmware.BootserviceAccess, []byte{9}))

	again, err := host.LoadNVRAM(path)
	require.NoError(t, err)
	data, attrs, err := again.GetVariable("BootCampHD", guid)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)
	assert.Equal(t, nvbs, attrs)
	_, _, err = again.GetVariable("Scratch", guid)
	assert.ErrorIs(t, err, firmware.NotFound)

	require.NoError(t, again.SetVariable("BootCampHD", guid, 0, nil))
	third, err := host.LoadNVRAM(path)
	require.NoError(t, err)
	assert.Empty(t, third.Variables())

	assert.ErrorIs(t, third.SetVariable("Missing", guid, 0, nil), firmware.NotFound)
	assert.ErrorIs(t, third.SetVariable("", guid, nvbs, []byte{1}), firmware.InvalidParameter)
}

func TestConsole(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	var out bytes.Buffer
	con := host.NewConsole(&out, bytes.NewBufferString("\n"))
	con.BeginExternalScreen("Legacy")
	con.Printf("Using Load Options:- '%s'\n", "HD")
	con.Errorln("Error: 'Not Found' while loading legacy loader")
	con.PauseForKey()
	con.FinishExternalScreen()

	assert.Equal(t, " Legacy \n"+
		"Using Load Options:- 'HD'\n"+
		"Error: 'Not Found' while loading legacy loader\n"+
		"* Hit Any Key to Continue *\n", out.String())
}
