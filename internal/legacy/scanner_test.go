package legacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legacyboot/internal/firmware"
	"legacyboot/internal/menu"
)

func TestScanFirmwareBootOptionsHardDisk(t *testing.T) {
	tests := []struct {
		name   string
		status uint16
		want   int
	}{
		{"fixed disk", 0, 1},
		{"media present", firmware.BBSMediaPresent, 0},
		{"media maybe present", firmware.BBSMediaMaybePresent, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.fw.Installed[firmware.LegacyBiosProtocol] = true
			require.NoError(t, h.fw.AddBootOption(bbsOption(1, firmware.BBSHardDisk, tt.status, "ST1000DM010")))
			c := h.context(Options{})

			c.ScanFirmwareBootOptions(firmware.BBSHardDisk)
			assert.Len(t, c.Menu.Entries, tt.want)
		})
	}
}

func TestScanFirmwareBootOptionsUSB(t *testing.T) {
	h := newHarness(t)
	h.fw.Installed[firmware.LegacyBiosProtocol] = true
	require.NoError(t, h.fw.AddBootOption(bbsOption(1, firmware.BBSHardDisk, 0, "Internal HDD")))
	require.NoError(t, h.fw.AddBootOption(bbsOption(2, firmware.BBSHardDisk, firmware.BBSMediaPresent, "SanDisk Cruzer")))
	require.NoError(t, h.fw.AddBootOption(bbsOption(3, firmware.BBSUSB, firmware.BBSMediaPresent, "USB class")))
	c := h.context(Options{})

	c.ScanFirmwareBootOptions(firmware.BBSUSB)
	require.Len(t, c.Menu.Entries, 1)
	e := c.Menu.Entries[0].(*OptionEntry)
	assert.Equal(t, "Boot Legacy (BIOS) OS from SanDisk Cruzer", e.Title)
	assert.Equal(t, "USB", e.LoadOptions)
	assert.Equal(t, "vol_external", e.Badge)
	assert.Equal(t, uint16(2), e.Option.Number)
}

func TestScanFirmwareBootOptionsFilters(t *testing.T) {
	h := newHarness(t)
	h.fw.Installed[firmware.LegacyBiosProtocol] = true
	// a native loader carrying a hard-disk media path
	efiOpt := &firmware.BootOption{
		Number:      1,
		Attributes:  1,
		Description: "Windows Boot Manager",
		DevicePath:  firmware.NewDevicePath(firmware.HardDiskNode(1, 2048, 204800, 0x1234)),
	}
	require.NoError(t, h.fw.AddBootOption(efiOpt))
	require.NoError(t, h.fw.AddBootOption(bbsOption(2, firmware.BBSCDROM, firmware.BBSMediaPresent, "HL-DT-ST DVDRAM")))
	require.NoError(t, h.fw.AddBootOption(bbsOption(3, firmware.BBSHardDisk, 0, "HDD")))
	// listed in BootOrder but missing
	order, err := firmware.ReadBootOrder(h.fw)
	require.NoError(t, err)
	require.NoError(t, firmware.WriteBootOrder(h.fw, append([]uint16{0x0042}, order...)))
	c := h.context(Options{})

	c.ScanFirmwareBootOptions(firmware.BBSCDROM)
	require.Len(t, c.Menu.Entries, 1)
	e := c.Menu.Entries[0].(*OptionEntry)
	assert.Equal(t, "CD", e.LoadOptions)
	assert.Equal(t, "vol_optical", e.Badge)
	assert.Equal(t, menu.TagLegacyUEFI, e.Tag)
}

func TestScanFirmwareBootOptionsWithoutProtocol(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.fw.AddBootOption(bbsOption(1, firmware.BBSHardDisk, 0, "HDD")))
	c := h.context(Options{})

	c.ScanFirmwareBootOptions(firmware.BBSHardDisk)
	assert.Empty(t, c.Menu.Entries)
}

func TestScanFirmwareBootOptionsEmptyBootOrder(t *testing.T) {
	h := newHarness(t)
	h.fw.Installed[firmware.LegacyBiosProtocol] = true
	c := h.context(Options{})

	c.ScanFirmwareBootOptions(firmware.BBSHardDisk)
	assert.Empty(t, c.Menu.Entries)
}
