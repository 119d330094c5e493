package firmware

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDevicePathAccessors(t *testing.T) {
	p := NewDevicePath(MemMapNode(0x0B, 0xFFE00000, 0xFFF9FFFF))

	assert.Equal(t, HardwareType, p.Type())
	assert.Equal(t, HWMemMapSubType, p.SubType())
	assert.Equal(t, 24, p.NodeLength())
	assert.Len(t, p.FirstNode(), 24)
	assert.Equal(t, 28, p.Size())
	assert.True(t, p.Valid())
}

func TestDevicePathAppend(t *testing.T) {
	mem := NewDevicePath(MemMapNode(0x0B, 0xFFE00000, 0xFFF9FFFF))
	tail := NewDevicePath(HardDiskNode(1, 2048, 4096, 0xCAFEBABE))

	got := mem.Append(tail)
	require.True(t, got.Valid())
	assert.Equal(t, 24+42+4, got.Size())
	assert.Equal(t, mem.FirstNode(), got.FirstNode())
	assert.Equal(t, []byte(tail), []byte(got[24:]))

	// inputs are untouched
	assert.Equal(t, 28, len(mem))
}

func TestDevicePathSizeStopsAtEnd(t *testing.T) {
	p := append(NewDevicePath(MemMapNode(0x0B, 1, 2)), 0xAA, 0xBB)
	assert.Equal(t, 28, p.Size())
}

func TestDevicePathInvalid(t *testing.T) {
	tests := []struct {
		name string
		path DevicePath
	}{
		{"empty", nil},
		{"short header", DevicePath{0x01, 0x03}},
		{"zero length node", DevicePath{0x01, 0x03, 0x00, 0x00, 0x7F, 0xFF, 0x04, 0x00}},
		{"overrun", DevicePath{0x01, 0x03, 0x40, 0x00, 0x7F, 0xFF, 0x04, 0x00}},
		{"no end node", DevicePath(MemMapNode(0x0B, 1, 2))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, tt.path.Valid())
		})
	}
}

func TestParseDevicePath(t *testing.T) {
	p, err := ParseDevicePath("01 03 18 00 0B 00 00 00 00 00 E0 FF 00 00 00 00 FF FF F9 FF 00 00 00 00 7F FF 04 00")
	require.NoError(t, err)
	assert.Equal(t, NewDevicePath(MemMapNode(0x0B, 0xFFE00000, 0xFFF9FFFF)), p)

	_, err = ParseDevicePath("01 03 18")
	assert.Error(t, err)
	_, err = ParseDevicePath("zz")
	assert.Error(t, err)
}

func TestDevicePathClone(t *testing.T) {
	p := NewDevicePath(MemMapNode(0x0B, 1, 2))
	c := p.Clone()
	c[4] = 0x99
	assert.Equal(t, byte(0x0B), p[4])
	assert.Nil(t, DevicePath(nil).Clone())
}
