package firmware_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legacyboot/internal/firmware"
	"legacyboot/internal/firmware/fwtest"
)

func bbsOption(num uint16, t firmware.BBSType, status uint16, desc string) *firmware.BootOption {
	return &firmware.BootOption{
		Number:      num,
		Attributes:  1,
		Description: desc,
		DevicePath:  firmware.NewDevicePath(firmware.BBSDevicePathNode(t, status, desc)),
	}
}

func TestBBSNode(t *testing.T) {
	o := bbsOption(1, firmware.BBSHardDisk, firmware.BBSMediaPresent, "SATA0")
	n, ok := o.BBS()
	require.True(t, ok)
	assert.Equal(t, firmware.BBSHardDisk, n.DeviceType)
	assert.Equal(t, firmware.BBSMediaPresent, n.StatusFlag)
	assert.Equal(t, "SATA0", n.Description)

	notBBS := &firmware.BootOption{DevicePath: firmware.NewDevicePath(firmware.MemMapNode(0x0B, 1, 2))}
	_, ok = notBBS.BBS()
	assert.False(t, ok)
}

func TestBootOptionRoundTrip(t *testing.T) {
	o := bbsOption(0x0A, firmware.BBSCDROM, 0, "ATAPI CD")
	o.OptionalData = []byte{1, 2, 3}

	data, err := firmware.EncodeBootOption(o)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(data))

	got, err := firmware.DecodeBootOption(0x0A, data)
	require.NoError(t, err)
	assert.Equal(t, o, got)
	assert.Equal(t, "Boot000A", got.VariableName())
}

func TestBootOptionClone(t *testing.T) {
	o := bbsOption(2, firmware.BBSUSB, 0, "USB")
	o.OptionalData = []byte{9}
	c := o.Clone()
	c.DevicePath[4] = 0xEE
	c.OptionalData[0] = 0
	assert.Equal(t, firmware.BBSUSB, mustBBS(t, o).DeviceType)
	assert.Equal(t, byte(9), o.OptionalData[0])
}

func mustBBS(t *testing.T, o *firmware.BootOption) firmware.BBSNode {
	t.Helper()
	n, ok := o.BBS()
	require.True(t, ok)
	return n
}

func TestBootOrder(t *testing.T) {
	fw := fwtest.New()

	order, err := firmware.ReadBootOrder(fw)
	require.NoError(t, err)
	assert.Empty(t, order)

	require.NoError(t, firmware.WriteBootOrder(fw, []uint16{3, 1, 0x10}))
	order, err = firmware.ReadBootOrder(fw)
	require.NoError(t, err)
	assert.Equal(t, []uint16{3, 1, 0x10}, order)
}

func TestReadBootOption(t *testing.T) {
	fw := fwtest.New()
	want := bbsOption(7, firmware.BBSHardDisk, 0, "Disk")
	require.NoError(t, fw.AddBootOption(want))

	got, err := firmware.ReadBootOption(fw, 7)
	require.NoError(t, err)
	assert.Equal(t, want.Description, got.Description)

	_, err = firmware.ReadBootOption(fw, 8)
	assert.ErrorIs(t, err, firmware.NotFound)
}

func TestParseBBSType(t *testing.T) {
	tests := []struct {
		in      string
		want    firmware.BBSType
		wantErr bool
	}{
		{"harddisk", firmware.BBSHardDisk, false},
		{"CDROM", firmware.BBSCDROM, false},
		{"usb", firmware.BBSUSB, false},
		{"tape", firmware.BBSUnknown, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := firmware.ParseBBSType(tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseBBSType() error = %v, wantErr %v", err, tt.wantErr)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, firmware.Success, firmware.StatusOf(nil))
	assert.Equal(t, firmware.NotFound, firmware.StatusOf(firmware.NotFound))
	assert.Equal(t, firmware.DeviceError, firmware.StatusOf(assert.AnError))
	assert.Equal(t, "Load Error", firmware.LoadError.Error())
	assert.True(t, firmware.Aborted.IsError())
	assert.False(t, firmware.Success.IsError())
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    firmware.Status
		wantErr bool
	}{
		{"", firmware.Success, false},
		{"ok", firmware.Success, false},
		{"Not Found", firmware.NotFound, false},
		{"notfound", firmware.NotFound, false},
		{"Security Violation", firmware.SecurityViolation, false},
		{"on fire", firmware.Success, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := firmware.ParseStatus(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
