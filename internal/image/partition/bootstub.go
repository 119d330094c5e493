package partition

import (
	"bytes"
	"fmt"
	"os"

	"legacyboot/internal/common"
	"legacyboot/internal/compress"
)

// DefaultBootStub is a real-mode chain loader. It relocates itself to
// 0x0600, finds the active primary descriptor, follows an active extended
// partition down its EBR chain to the active logical partition, reads that
// partition's first sector to 0x7C00 with INT 13h extensions and jumps to it
// with DL = boot drive and DS:SI pointing at the partition descriptor.
var DefaultBootStub = []byte{
	0xfa, 0x31, 0xc0, 0x8e, 0xd8, 0x8e, 0xc0, 0x8e, 0xd0, 0xbc, 0x00, 0x7c,
	0xfb, 0xfc, 0xbe, 0x00, 0x7c, 0xbf, 0x00, 0x06, 0xb9, 0x00, 0x01, 0xf3,
	0xa5, 0xea, 0x1e, 0x06, 0x00, 0x00, 0x88, 0x16, 0x2a, 0x07, 0xb4, 0x41,
	0xbb, 0xaa, 0x55, 0xcd, 0x13, 0x0f, 0x82, 0xda, 0x00, 0x81, 0xfb, 0x55,
	0xaa, 0x0f, 0x85, 0xd2, 0x00, 0xbe, 0xbe, 0x07, 0xb9, 0x04, 0x00, 0xf6,
	0x04, 0x80, 0x75, 0x08, 0x83, 0xc6, 0x10, 0xe2, 0xf6, 0xe9, 0xc4, 0x00,
	0x66, 0x8b, 0x44, 0x08, 0x66, 0xa3, 0x35, 0x07, 0x8a, 0x44, 0x04, 0xe8,
	0x90, 0x00, 0x75, 0x71, 0x66, 0xa1, 0x35, 0x07, 0x66, 0xa3, 0x2d, 0x07,
	0x66, 0xa3, 0x31, 0x07, 0xff, 0x0e, 0x2b, 0x07, 0x0f, 0x84, 0xa0, 0x00,
	0x66, 0xa1, 0x31, 0x07, 0xbb, 0x00, 0x7c, 0xe8, 0x7b, 0x00, 0x81, 0x3e,
	0xfe, 0x7d, 0x55, 0xaa, 0x0f, 0x85, 0x91, 0x00, 0xbe, 0xbe, 0x7d, 0xb9,
	0x02, 0x00, 0xf6, 0x04, 0x80, 0x75, 0x07, 0x83, 0xc6, 0x10, 0xe2, 0xf6,
	0xeb, 0x7a, 0x66, 0x8b, 0x44, 0x08, 0x8a, 0x54, 0x04, 0x86, 0xc2, 0xe8,
	0x48, 0x00, 0x86, 0xc2, 0x75, 0x0b, 0x66, 0x03, 0x06, 0x2d, 0x07, 0x66,
	0xa3, 0x31, 0x07, 0xeb, 0xb7, 0x66, 0x03, 0x06, 0x31, 0x07, 0x66, 0xa3,
	0x35, 0x07, 0xbf, 0x49, 0x07, 0xb9, 0x08, 0x00, 0xf3, 0xa5, 0x66, 0xa1,
	0x35, 0x07, 0x66, 0xa3, 0x51, 0x07, 0xbe, 0x49, 0x07, 0x56, 0x66, 0xa1,
	0x35, 0x07, 0xbb, 0x00, 0x7c, 0xe8, 0x1d, 0x00, 0x5e, 0x81, 0x3e, 0xfe,
	0x7d, 0x55, 0xaa, 0x75, 0x34, 0x8a, 0x16, 0x2a, 0x07, 0xea, 0x00, 0x7c,
	0x00, 0x00, 0x3c, 0x05, 0x74, 0x06, 0x3c, 0x0f, 0x74, 0x02, 0x3c, 0x85,
	0xc3, 0x66, 0xa3, 0x41, 0x07, 0x89, 0x1e, 0x3d, 0x07, 0xbe, 0x39, 0x07,
	0x8a, 0x16, 0x2a, 0x07, 0xb4, 0x42, 0xcd, 0x13, 0x72, 0x10, 0xc3, 0xbe,
	0x59, 0x07, 0xeb, 0x0d, 0xbe, 0x6c, 0x07, 0xeb, 0x08, 0xbe, 0x80, 0x07,
	0xeb, 0x03, 0xbe, 0x97, 0x07, 0xac, 0x84, 0xc0, 0x74, 0x09, 0xb4, 0x0e,
	0xbb, 0x07, 0x00, 0xcd, 0x10, 0xeb, 0xf2, 0xf4, 0xeb, 0xfd, 0x80, 0x80,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x10, 0x00, 0x01, 0x00, 0x00, 0x7c, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x4e, 0x6f, 0x20,
	0x64, 0x69, 0x73, 0x6b, 0x20, 0x65, 0x78, 0x74, 0x65, 0x6e, 0x73, 0x69,
	0x6f, 0x6e, 0x73, 0x00, 0x4e, 0x6f, 0x20, 0x61, 0x63, 0x74, 0x69, 0x76,
	0x65, 0x20, 0x70, 0x61, 0x72, 0x74, 0x69, 0x74, 0x69, 0x6f, 0x6e, 0x00,
	0x4d, 0x69, 0x73, 0x73, 0x69, 0x6e, 0x67, 0x20, 0x62, 0x6f, 0x6f, 0x74,
	0x20, 0x73, 0x69, 0x67, 0x6e, 0x61, 0x74, 0x75, 0x72, 0x65, 0x00, 0x44,
	0x69, 0x73, 0x6b, 0x20, 0x72, 0x65, 0x61, 0x64, 0x20, 0x65, 0x72, 0x72,
	0x6f, 0x72, 0x00,
}

// LoadBootStub reads a replacement boot stub. The file may be compressed
// and may be either bare boot code or a whole 512-byte MBR.
func LoadBootStub(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data, _, err := compress.DecompressAuto(raw)
	if err != nil {
		return nil, fmt.Errorf("boot stub %s: %w", path, err)
	}
	if len(data) == SectorSize {
		var s Sector
		copy(s[:], data)
		if s.Valid() {
			data = bytes.TrimRight(data[:StubRegionSize], "\x00")
		}
	}
	if len(data) == 0 || len(data) > StubRegionSize {
		return nil, fmt.Errorf("boot stub %s is %d bytes, want 1..%d: %w", path, len(data), StubRegionSize, common.ErrUnsupported)
	}
	return data, nil
}
