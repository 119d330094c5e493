package main

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legacyboot/internal/firmware"
	"legacyboot/internal/host"
	"legacyboot/internal/image/diskimage"
	"legacyboot/internal/menu"
)

func TestParsePartition(t *testing.T) {
	tests := []struct {
		in      string
		want    diskimage.Partition
		wantErr bool
	}{
		{"07:64MiB:ntfs:boot", diskimage.Partition{Type: 0x07, Sectors: 131072, FS: diskimage.FSNTFS, BootCode: true}, false},
		{"0x0C:8KiB:FAT:active", diskimage.Partition{Type: 0x0C, Sectors: 16, FS: diskimage.FSFAT, Active: true}, false},
		{"83:4096", diskimage.Partition{Type: 0x83, Sectors: 8}, false},
		{"83", diskimage.Partition{}, true},
		{"zz:1MiB", diskimage.Partition{}, true},
		{"83:100", diskimage.Partition{Type: 0x83, Sectors: 1}, false},
		{"83:0", diskimage.Partition{}, true},
		{"83:1MiB:hfs", diskimage.Partition{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parsePartition(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPickEntry(t *testing.T) {
	sc := menu.NewScreen("Main Menu")
	for _, title := range []string{"Boot Windows from HD", "Boot Linux from HD", "Boot Legacy (BIOS) OS from USB"} {
		require.NoError(t, sc.AddEntry(&menu.GenericEntry{Base: menu.Base{Title: title}}))
	}

	tests := []struct {
		sel     string
		want    string
		wantErr bool
	}{
		{"0", "Boot Windows from HD", false},
		{"2", "Boot Legacy (BIOS) OS from USB", false},
		{"windows", "Boot Windows from HD", false},
		{"USB", "Boot Legacy (BIOS) OS from USB", false},
		{"from HD", "", true},
		{"freebsd", "", true},
		{"3", "", true},
		{"-1", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.sel, func(t *testing.T) {
			e, err := pickEntry(sc, tt.sel)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.Common().Title)
		})
	}
}

func TestDescribeVariable(t *testing.T) {
	guid := uuid.New()
	tests := []struct {
		name string
		v    host.Variable
		want string
	}{
		{"previous boot", host.Variable{Name: "PreviousBoot", GUID: guid, Data: []byte{'W', 0, 'i', 0, 'n', 0, 0, 0}}, `"Win"`},
		{"boot order", host.Variable{Name: "BootOrder", Data: []byte{0x42, 0x00, 0x01, 0x00}}, "0042,0001"},
		{"raw", host.Variable{Name: "Other", Data: []byte{0xDE, 0xAD}}, "dead"},
		{"bad boot option", host.Variable{Name: "Boot0001", Data: []byte{1}}, "01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, describeVariable(tt.v))
		})
	}

	hint := host.Variable{Name: "BootCampHD", Data: firmware.NewDevicePath(firmware.HardDiskNode(1, 2048, 64, 0x0B00CA4D))}
	assert.NotContains(t, describeVariable(hint), "raw(")
}

func TestAttrString(t *testing.T) {
	assert.Equal(t, "NV+BS+RT", attrString(firmware.NonVolatile|firmware.BootserviceAccess|firmware.RuntimeAccess))
	assert.Equal(t, "BS", attrString(firmware.BootserviceAccess))
	assert.Equal(t, "", attrString(0))
}
