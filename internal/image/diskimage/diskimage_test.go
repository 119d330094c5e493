package diskimage_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legacyboot/internal/common"
	"legacyboot/internal/compress"
	"legacyboot/internal/image/diskimage"
	"legacyboot/internal/image/partition"
)

func TestBuildLayout(t *testing.T) {
	l := diskimage.Layout{
		Signature: 0x12345678,
		Align:     16,
		Primary: []diskimage.Partition{
			{Type: 0x07, Sectors: 20, Active: true, FS: diskimage.FSNTFS, BootCode: true},
		},
		Logical: []diskimage.Partition{
			{Type: 0x0B, Sectors: 10, FS: diskimage.FSFAT},
			{Type: 0x07, Sectors: 10, FS: diskimage.FSExFAT},
		},
	}
	img, err := diskimage.Build(l)
	require.NoError(t, err)

	table, err := partition.DetectR(bytes.NewReader(img))
	require.NoError(t, err)
	require.Len(t, table.Entries, 4)
	assert.Equal(t, uint32(0x12345678), table.DiskSignature)

	ntfs := table.Entries[0]
	assert.Equal(t, uint64(16), ntfs.StartLBA)
	vbr := img[ntfs.StartLBA*512 : (ntfs.StartLBA+1)*512]
	assert.Equal(t, "NTFS    ", string(vbr[3:11]))
	assert.Equal(t, []byte{0x55, 0xAA}, vbr[510:])
	assert.Equal(t, byte(0xFA), vbr[0x5A])

	ext := table.Entries[1]
	assert.Equal(t, byte(0x0F), ext.TypeCode)

	fat := table.Entries[2]
	assert.Equal(t, 4, fat.Index)
	fatVBR := img[fat.StartLBA*512:]
	assert.Equal(t, "FAT32   ", string(fatVBR[0x52:0x5A]))
	assert.Zero(t, fatVBR[0x5A])

	exfat := table.Entries[3]
	assert.Equal(t, 5, exfat.Index)
	assert.Equal(t, "EXFAT   ", string(img[exfat.StartLBA*512+3:exfat.StartLBA*512+11]))
}

func TestBuildRejects(t *testing.T) {
	tests := []struct {
		name string
		l    diskimage.Layout
	}{
		{"five primaries", diskimage.Layout{Primary: make([]diskimage.Partition, 5)}},
		{"no room for extended", diskimage.Layout{
			Primary: []diskimage.Partition{{Sectors: 1}, {Sectors: 1}, {Sectors: 1}, {Sectors: 1}},
			Logical: []diskimage.Partition{{Sectors: 1}},
		}},
		{"oversized boot code", diskimage.Layout{BootCode: make([]byte, 441)}},
		{"empty primary", diskimage.Layout{Primary: []diskimage.Partition{{Type: 0x07}}}},
		{"empty logical", diskimage.Layout{Logical: []diskimage.Partition{{Type: 0x07}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := diskimage.Build(tt.l)
			assert.ErrorIs(t, err, common.ErrUnsupported)
		})
	}
}

func TestWriteFileCompressed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img.zst")
	l := diskimage.Layout{Align: 8, Primary: []diskimage.Partition{{Type: 0x83, Sectors: 8}}}
	require.NoError(t, diskimage.WriteFile(path, l, compress.FromExt(path)))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "zstd", compress.Detect(raw))

	img, kind, err := compress.DecompressAuto(raw)
	require.NoError(t, err)
	assert.Equal(t, "zstd", kind)
	want, err := diskimage.Build(l)
	require.NoError(t, err)
	assert.Equal(t, want, img)
}

func TestParseFS(t *testing.T) {
	for _, f := range []diskimage.FS{diskimage.FSNone, diskimage.FSFAT, diskimage.FSExFAT, diskimage.FSNTFS} {
		got, err := diskimage.ParseFS(f.String())
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
	_, err := diskimage.ParseFS("hfs")
	assert.Error(t, err)
}
