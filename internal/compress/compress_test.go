package compress_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legacyboot/internal/compress"
)

func TestCodecs(t *testing.T) {
	payload := bytes.Repeat([]byte("legacy boot sector "), 200)
	for _, name := range []string{"gzip", "zstd", "lz4", "xz", "bzip2"} {
		t.Run(name, func(t *testing.T) {
			packed, err := compress.Compress(payload, name)
			require.NoError(t, err)
			assert.Equal(t, name, compress.Detect(packed))

			rc, kind, err := compress.NewReader(bytes.NewReader(packed))
			require.NoError(t, err)
			defer rc.Close()
			assert.Equal(t, name, kind)
			got, err := io.ReadAll(rc)
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		})
	}
}

func TestLZMAByName(t *testing.T) {
	payload := []byte("no magic for lzma alone streams")
	packed, err := compress.Compress(payload, "lzma")
	require.NoError(t, err)
	got, err := compress.Decompress(packed, "lzma")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestDecompressAutoPassesRawData(t *testing.T) {
	raw := []byte{0xEB, 0x3C, 0x90}
	got, kind, err := compress.DecompressAuto(raw)
	require.NoError(t, err)
	assert.Equal(t, "none", kind)
	assert.Equal(t, raw, got)
}

func TestNames(t *testing.T) {
	assert.Equal(t, "gzip", compress.Normalize("GZ"))
	assert.Equal(t, "auto", compress.Normalize(""))
	assert.Equal(t, "none", compress.Normalize("raw"))
	assert.Equal(t, "xz", compress.FromExt("disk.img.XZ"))
	assert.Equal(t, "none", compress.FromExt("disk.img"))

	_, err := compress.NewWriter("brotli", io.Discard)
	assert.ErrorIs(t, err, compress.ErrUnsupported)
}
