// Package volume holds the volume records produced by volume discovery.
package volume

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"legacyboot/internal/firmware"
)

type DiskKind int

const (
	Internal DiskKind = iota
	External
	Optical
)

func (k DiskKind) String() string {
	switch k {
	case External:
		return "external"
	case Optical:
		return "optical"
	default:
		return "internal"
	}
}

func ParseDiskKind(s string) (DiskKind, error) {
	switch s {
	case "", "internal", "hd":
		return Internal, nil
	case "external", "usb":
		return External, nil
	case "optical", "cd", "dvd":
		return Optical, nil
	}
	return Internal, fmt.Errorf("unknown disk kind %q", s)
}

type FSType int

const (
	FSUnknown FSType = iota
	FSWholeDisk
	FSFAT
	FSExFAT
	FSNTFS
)

func (f FSType) String() string {
	switch f {
	case FSWholeDisk:
		return "whole disk"
	case FSFAT:
		return "FAT"
	case FSExFAT:
		return "exFAT"
	case FSNTFS:
		return "NTFS"
	default:
		return "unknown"
	}
}

// Volume is one discovered partition or whole disk.
//
// BlockIO and WholeDiskBlockIO are handles to devices, not owned data; a
// partition volume and the whole-disk volume of the same disk share the
// same WholeDiskBlockIO value.
type Volume struct {
	DiskKind   DiskKind
	FSType     FSType
	VolName    string
	OSName     string
	OSIconName string
	BadgeName  string

	BlockIO             firmware.BlockIO
	BlockIOOffset       uint64
	WholeDiskBlockIO    firmware.BlockIO
	WholeDiskDevicePath firmware.DevicePath
	DevicePath          firmware.DevicePath

	IsMbrPartition    bool
	MbrPartitionIndex int
	HasBootCode       bool
	SizeBytes         uint64
}

// Clone copies v including its device paths. Block I/O handles are shared.
func (v *Volume) Clone() *Volume {
	if v == nil {
		return nil
	}
	c := *v
	c.WholeDiskDevicePath = v.WholeDiskDevicePath.Clone()
	c.DevicePath = v.DevicePath.Clone()
	return &c
}

// IsWholeDisk reports whether v covers a whole disk rather than a partition.
func (v *Volume) IsWholeDisk() bool {
	return v.BlockIO != nil && v.BlockIO == v.WholeDiskBlockIO && v.BlockIOOffset == 0
}

// Name returns VolName, or a generated name made of the size and the
// filesystem type.
func (v *Volume) Name() string {
	if v.VolName != "" {
		return v.VolName
	}
	switch {
	case v.FSType == FSWholeDisk:
		return "Whole Disk Volume"
	case v.SizeBytes > 0 && v.FSType != FSUnknown:
		return fmt.Sprintf("%s %s Volume", humanize.IBytes(v.SizeBytes), v.FSType)
	case v.SizeBytes > 0:
		return humanize.IBytes(v.SizeBytes) + " Volume"
	default:
		return "Unknown Volume"
	}
}
