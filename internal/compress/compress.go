package compress

// Streaming codecs for disk images and boot stubs, selected by name or by
// magic number.
// RW: gzip, zstd, lz4, xz, lzma, bzip2
// Names: none|auto|gzip|gz|zstd|zst|lz4|xz|lzma|bzip2|bz2

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

var ErrUnsupported = errors.New("compression: unsupported operation")

func Normalize(name string) string {
	switch strings.ToLower(name) {
	case "", "auto":
		return "auto"
	case "none", "raw":
		return "none"
	case "gz":
		return "gzip"
	case "zst":
		return "zstd"
	case "bz2":
		return "bzip2"
	default:
		return strings.ToLower(name)
	}
}

// FromExt guesses a codec from a file name suffix.
func FromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		return "gzip"
	case ".zst":
		return "zstd"
	case ".lz4":
		return "lz4"
	case ".xz":
		return "xz"
	case ".lzma":
		return "lzma"
	case ".bz2":
		return "bzip2"
	default:
		return "none"
	}
}

// Detect sniffs a codec from the first bytes of a stream. lzma "alone"
// streams carry no reliable magic and report "none".
func Detect(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte{0x1f, 0x8b}):
		return "gzip"
	case bytes.HasPrefix(data, []byte{0x28, 0xB5, 0x2F, 0xFD}):
		return "zstd"
	case bytes.HasPrefix(data, []byte{0x04, 0x22, 0x4D, 0x18}):
		return "lz4"
	case bytes.HasPrefix(data, []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}):
		return "xz"
	case bytes.HasPrefix(data, []byte("BZh")):
		return "bzip2"
	}
	return "none"
}

const sniffLen = 6

// NewReader sniffs r and returns a decompressing reader plus the codec name.
func NewReader(r io.Reader) (io.ReadCloser, string, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(sniffLen)
	if err != nil && err != io.EOF && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, "", err
	}
	kind := Detect(head)
	rc, err := NewReaderFor(kind, br)
	return rc, kind, err
}

// NewReaderFor returns a reader decoding the named codec.
func NewReaderFor(name string, r io.Reader) (io.ReadCloser, error) {
	switch Normalize(name) {
	case "none":
		return io.NopCloser(r), nil
	case "auto":
		rc, _, err := NewReader(r)
		return rc, err
	case "gzip":
		return gzipReader(r)
	case "zstd":
		d, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return d.IOReadCloser(), nil
	case "lz4":
		return io.NopCloser(lz4.NewReader(r)), nil
	case "xz":
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(xr), nil
	case "lzma":
		lr, err := lzma.NewReader(r)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(lr), nil
	case "bzip2":
		return bzip2.NewReader(r, &bzip2.ReaderConfig{})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, name)
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// NewWriter returns a writer encoding the named codec into w. Close flushes
// the codec but does not close w.
func NewWriter(name string, w io.Writer) (io.WriteCloser, error) {
	switch Normalize(name) {
	case "none", "auto":
		return nopWriteCloser{w}, nil
	case "gzip":
		return gzipWriter(w)
	case "zstd":
		return zstd.NewWriter(w)
	case "lz4":
		return lz4.NewWriter(w), nil
	case "xz":
		return xz.NewWriter(w)
	case "lzma":
		return lzma.NewWriter(w)
	case "bzip2":
		return bzip2.NewWriter(w, &bzip2.WriterConfig{})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, name)
	}
}

// DecompressAuto decodes a whole buffer, detecting the codec.
func DecompressAuto(in []byte) ([]byte, string, error) {
	kind := Detect(in)
	if kind == "none" {
		return in, "none", nil
	}
	out, err := Decompress(in, kind)
	return out, kind, err
}

func Decompress(in []byte, name string) ([]byte, error) {
	rc, err := NewReaderFor(name, bytes.NewReader(in))
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func Compress(in []byte, name string) ([]byte, error) {
	var buf bytes.Buffer
	w, err := NewWriter(name, &buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(in); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Copy streams src into dst through the named encoder and reports the
// number of uncompressed bytes read.
func Copy(dst io.Writer, src io.Reader, name string) (int64, error) {
	w, err := NewWriter(name, dst)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(w, src)
	if err != nil {
		_ = w.Close()
		return n, err
	}
	return n, w.Close()
}
