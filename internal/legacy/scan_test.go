package legacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legacyboot/internal/firmware"
	"legacyboot/internal/firmware/fwtest"
	"legacyboot/internal/volume"
)

func TestDetectType(t *testing.T) {
	tests := []struct {
		name     string
		vendor   string
		protocol bool
		want     Type
	}{
		{"apple wins over csm", "Apple Inc.", true, TypeMac},
		{"apple", "Apple", false, TypeMac},
		{"csm", "American Megatrends", true, TypeUEFI},
		{"nothing", "EDK II", false, TypeNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fw := fwtest.New()
			fw.VendorString = tt.vendor
			fw.Installed[firmware.LegacyBiosProtocol] = tt.protocol
			assert.Equal(t, tt.want, DetectType(fw))
		})
	}
}

func TestMacScanFiltersByDiskKind(t *testing.T) {
	h := newHarness(t)
	h.fw.VendorString = "Apple Computer, Inc."
	vols := []*volume.Volume{
		{VolName: "BOOTCAMP", OSName: "Windows", HasBootCode: true},
		{VolName: "Stick", OSName: "Linux", DiskKind: volume.External, HasBootCode: true},
		{VolName: "Install", DiskKind: volume.Optical, HasBootCode: true},
		{VolName: "Data", HasBootCode: false},
	}
	c := h.context(Options{}, vols...)
	require.Equal(t, TypeMac, c.Type)

	c.ScanInternal()
	assert.Equal(t, []string{"Boot Windows from BOOTCAMP"}, c.Menu.Titles())
	c.ScanExternal()
	c.ScanDisc()
	assert.Equal(t, []string{
		"Boot Windows from BOOTCAMP",
		"Boot Linux from Stick",
		"Boot Legacy (BIOS) OS from Install",
	}, c.Menu.Titles())

	e := c.Menu.Entries[1].(*VolumeEntry)
	assert.Equal(t, "USB", e.LoadOptions)
	assert.Equal(t, 'L', e.ShortcutLetter)
}

func TestMacScanHidesRedundantWholeDisk(t *testing.T) {
	disk := fwtest.NewDisk(make([]byte, 8*512))
	part := fwtest.NewDisk(make([]byte, 4*512))
	whole := &volume.Volume{
		FSType:           volume.FSWholeDisk,
		BlockIO:          disk,
		WholeDiskBlockIO: disk,
		HasBootCode:      true,
	}
	windows := &volume.Volume{
		VolName:          "BOOTCAMP",
		OSName:           "Windows",
		FSType:           volume.FSNTFS,
		BlockIO:          part,
		WholeDiskBlockIO: disk,
		HasBootCode:      true,
	}

	t.Run("partition with boot code", func(t *testing.T) {
		h := newHarness(t)
		h.fw.VendorString = "Apple"
		c := h.context(Options{}, whole.Clone(), windows.Clone())
		c.ScanInternal()
		assert.Equal(t, []string{"Boot Windows from BOOTCAMP"}, c.Menu.Titles())
	})

	t.Run("whole disk alone", func(t *testing.T) {
		h := newHarness(t)
		h.fw.VendorString = "Apple"
		w := whole.Clone()
		c := h.context(Options{}, w)
		c.ScanInternal()
		assert.Equal(t, []string{"Boot Legacy (BIOS) OS from Whole Disk Volume"}, c.Menu.Titles())
		assert.Equal(t, "Whole Disk Volume", w.VolName)
	})

	t.Run("whole disk with os name", func(t *testing.T) {
		h := newHarness(t)
		h.fw.VendorString = "Apple"
		w := whole.Clone()
		w.OSName = "FreeDOS"
		c := h.context(Options{}, w, windows.Clone())
		c.ScanInternal()
		assert.Len(t, c.Menu.Entries, 2)
	})
}

func TestScanLogsFirstItemDifferently(t *testing.T) {
	h := newHarness(t)
	h.fw.VendorString = "Apple"
	c := h.context(Options{},
		&volume.Volume{VolName: "A", HasBootCode: true},
		&volume.Volume{VolName: "B", HasBootCode: true},
	)
	c.ScanInternal()

	msgs := h.messages()
	assert.Contains(t, msgs, "-------------------[ Scan for Internal Disk Volumes with Mode:- 'Legacy (BIOS)' ]-------------------")
	assert.Contains(t, msgs, "                ***[ Adding Legacy Boot Entry for 'Boot Legacy (BIOS) OS from A'")
	assert.Contains(t, msgs, ". . . . . . . . ***[ Adding Legacy Boot Entry for 'Boot Legacy (BIOS) OS from B' ]*** . . . . . . . .")
	assert.False(t, c.firstScan)
}

func TestScanOrderFollowsScanFor(t *testing.T) {
	h := newHarness(t)
	h.fw.Installed[firmware.LegacyBiosProtocol] = true
	require.NoError(t, h.fw.AddBootOption(bbsOption(1, firmware.BBSHardDisk, 0, "HDD")))
	require.NoError(t, h.fw.AddBootOption(bbsOption(2, firmware.BBSCDROM, 0, "DVD")))
	require.NoError(t, h.fw.AddBootOption(bbsOption(3, firmware.BBSHardDisk, firmware.BBSMediaPresent, "Stick")))
	c := h.context(Options{ScanFor: "icBhH"})
	require.Equal(t, TypeUEFI, c.Type)

	screen := c.Scan()
	assert.Same(t, c.Menu, screen)
	assert.Equal(t, []string{
		"Boot Legacy (BIOS) OS from DVD",
		"Boot Legacy (BIOS) OS from Stick",
		"Boot Legacy (BIOS) OS from HDD",
	}, screen.Titles())
}

func TestScanWithoutLegacySupport(t *testing.T) {
	h := newHarness(t)
	c := h.context(Options{ScanFor: "hbc"}, &volume.Volume{VolName: "A", HasBootCode: true})
	assert.Empty(t, c.Scan().Entries)
}

func TestWarnIfProblems(t *testing.T) {
	tests := []struct {
		name       string
		scanFor    string
		directBoot bool
		csm        bool
		want       bool
		wantPause  int
	}{
		{"legacy wanted", "ih", false, false, true, 1},
		{"upper case letter", "iC", false, false, true, 1},
		{"direct boot is silent", "b", true, false, true, 0},
		{"no legacy letters", "ieom", false, false, false, 0},
		{"csm present", "h", false, true, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.fw.Installed[firmware.LegacyBiosProtocol] = tt.csm
			c := h.context(Options{ScanFor: tt.scanFor, DirectBoot: tt.directBoot})

			assert.Equal(t, tt.want, c.WarnIfProblems())
			assert.Equal(t, tt.wantPause, h.con.Pauses)
			if tt.wantPause > 0 {
				assert.Equal(t, []string{"** WARN: Legacy (BIOS) Boot Issues"}, h.con.Errors)
			} else {
				assert.Empty(t, h.con.Errors)
			}
			if tt.want {
				assert.Contains(t, h.messages(), "* ** ** *** *** ***[ "+noLegacyMsg+"!! ]*** *** *** ** ** *")
				assert.Contains(t, h.messages(), csmAdvice)
			}
		})
	}
}
