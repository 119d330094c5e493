package legacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legacyboot/internal/firmware"
)

func TestLegacyLoaderList(t *testing.T) {
	require.Len(t, LegacyLoaderList, 5)
	for _, p := range LegacyLoaderList {
		assert.True(t, p.Valid())
		assert.Equal(t, firmware.HardwareType, p.Type())
		assert.Equal(t, firmware.HWMemMapSubType, p.SubType())
		assert.Equal(t, 24, p.NodeLength())
		assert.Equal(t, 24+len(LegacyLoaderMediaPath), len(p))
		assert.Equal(t, []byte(LegacyLoaderMediaPath), []byte(p[24:]))
	}
	assert.Equal(t, memMapPath(0xFFE00000, 0xFFF9FFFF).Append(LegacyLoaderMediaPath), LegacyLoaderList[0])
}

func TestExtractLoaderPathsDedupFirstNode(t *testing.T) {
	h := newHarness(t)
	a := memMapPath(0xFF000000, 0xFF0FFFFF)
	h.fw.AddLoadedImage(a)
	h.fw.AddLoadedImage(a.Clone())

	got := ExtractLoaderPaths(h.fw, MaxDiscoveredPaths, nil)
	require.Len(t, got, 1)
	assert.Equal(t, a.Append(LegacyLoaderMediaPath), got[0])
}

func TestExtractLoaderPathsDedupIgnoresTail(t *testing.T) {
	h := newHarness(t)
	node := firmware.MemMapNode(memMapType, 0xFF000000, 0xFF0FFFFF)
	h.fw.AddLoadedImage(firmware.NewDevicePath(node))
	h.fw.AddLoadedImage(firmware.NewDevicePath(node, firmware.HardDiskNode(1, 63, 100, 7)))

	got := ExtractLoaderPaths(h.fw, MaxDiscoveredPaths, nil)
	assert.Len(t, got, 1)
}

func TestExtractLoaderPathsFilters(t *testing.T) {
	h := newHarness(t)
	h.fw.AddLoadedImage(firmware.NewDevicePath(firmware.HardDiskNode(1, 2048, 100, 1)))
	mm := memMapPath(0xFFE00000, 0xFFEFFFFF)
	h.fw.AddLoadedImage(mm)
	// a handle without a loaded image
	h.fw.HandleDB[firmware.LoadedImageProtocol] = append(h.fw.HandleDB[firmware.LoadedImageProtocol], 0xDEAD)

	got := ExtractLoaderPaths(h.fw, MaxDiscoveredPaths, LegacyLoaderList)
	require.Len(t, got, 1+len(LegacyLoaderList))
	assert.Equal(t, mm.Append(LegacyLoaderMediaPath), got[0])
	assert.Equal(t, LegacyLoaderList, got[1:])
}

func TestExtractLoaderPathsCapacity(t *testing.T) {
	tests := []struct {
		name     string
		images   int
		capacity int
		want     int
	}{
		{"fallbacks truncated", 0, 4, 3},
		{"live fills everything", 10, 6, 5},
		{"live then fallbacks", 2, 16, 7},
		{"no room", 3, 1, 0},
		{"zero capacity", 3, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			for i := 0; i < tt.images; i++ {
				h.fw.AddLoadedImage(memMapPath(uint64(0xF0000000+i*0x10000), uint64(0xF000FFFF+i*0x10000)))
			}
			got := ExtractLoaderPaths(h.fw, tt.capacity, LegacyLoaderList)
			assert.Len(t, got, tt.want)
			assert.LessOrEqual(t, len(got), max(tt.capacity-1, 0))
		})
	}
}

func TestExtractLoaderPathsDiscoveryFailure(t *testing.T) {
	h := newHarness(t)
	h.fw.AddLoadedImage(memMapPath(0xFF000000, 0xFF0FFFFF))
	h.fw.LocateHandlesErr = firmware.OutOfResources

	got := ExtractLoaderPaths(h.fw, MaxDiscoveredPaths, LegacyLoaderList)
	assert.Equal(t, LegacyLoaderList, got)
}
