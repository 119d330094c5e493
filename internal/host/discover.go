package host

import (
	"bytes"
	"errors"
	"strings"

	"github.com/apex/log"

	"legacyboot/internal/common"
	"legacyboot/internal/firmware"
	"legacyboot/internal/image/partition"
	"legacyboot/internal/volume"
)

// bootSignatures maps strings found in boot sectors to the OS they load.
var bootSignatures = []struct {
	marker string
	os     string
	icon   string
}{
	{"BOOTMGR", "Windows", "win"},
	{"NTLDR", "Windows", "win"},
	{"GRUB", "Linux", "linux"},
	{"LILO", "Linux", "linux"},
	{"SYSLINUX", "Linux", "linux"},
	{"FreeDOS", "FreeDOS", "freedos"},
	{"IO      SYS", "DOS", "freedos"},
	{"FreeBSD", "FreeBSD", "freebsd"},
}

func identify(sec []byte) (name, icon string) {
	for _, s := range bootSignatures {
		if bytes.Contains(sec, []byte(s.marker)) {
			return s.os, s.icon
		}
	}
	return "", ""
}

func badge(k volume.DiskKind) string {
	switch k {
	case volume.External:
		return "vol_external"
	case volume.Optical:
		return "vol_optical"
	default:
		return "vol_internal"
	}
}

// Volumes lists the whole disk and every MBR partition of each disk.
func (m *Machine) Volumes() []*volume.Volume {
	m.mu.Lock()
	disks := append([]*Disk(nil), m.Disks...)
	m.mu.Unlock()

	var out []*volume.Volume
	for _, d := range disks {
		vols, err := discover(d)
		if err != nil {
			log.WithError(err).WithField("disk", d.Path).Warn("volume discovery incomplete")
		}
		out = append(out, vols...)
	}
	return out
}

func discover(d *Disk) ([]*volume.Volume, error) {
	var mbr partition.Sector
	if err := d.ReadBlocks(d.MediaID(), 0, mbr[:]); err != nil {
		return nil, err
	}
	sectors := d.Sectors()
	whole := &volume.Volume{
		DiskKind:            d.Kind,
		FSType:              volume.FSWholeDisk,
		BadgeName:           badge(d.Kind),
		BlockIO:             d,
		WholeDiskBlockIO:    d,
		WholeDiskDevicePath: d.DevicePath.Clone(),
		DevicePath:          d.DevicePath.Clone(),
		HasBootCode:         mbr.Valid() && mbr.HasBootCode(),
		SizeBytes:           sectors * sectorSize,
	}
	if whole.HasBootCode {
		whole.OSName, whole.OSIconName = identify(mbr[:partition.BootCodeSize])
	}
	out := []*volume.Volume{whole}

	table, err := partition.DetectR(newBlockReader(d, sectors))
	switch {
	case errors.Is(err, common.ErrNotFound):
		err = nil
	case table == nil:
		return d.applyOverrides(out), err
	}
	if table != nil && table.Scheme != partition.MBR {
		log.WithField("disk", d.Path).Debugf("%s disk has no legacy partitions", table.Scheme)
		return d.applyOverrides(out), err
	}
	if table != nil {
		for _, e := range table.Entries {
			if partition.IsExtendedType(e.TypeCode) {
				continue
			}
			v, verr := partitionVolume(d, table.DiskSignature, e)
			if verr != nil {
				log.WithError(verr).WithField("partition", e.Index).Debug("skipping partition")
				continue
			}
			out = append(out, v)
		}
	}
	return d.applyOverrides(out), err
}

func partitionVolume(d *Disk, sig uint32, e partition.Entry) (*volume.Volume, error) {
	view := &partView{disk: d, start: e.StartLBA, sectors: e.Sectors()}
	var vbr partition.Sector
	if err := view.ReadBlocks(view.MediaID(), 0, vbr[:]); err != nil {
		return nil, err
	}
	v := &volume.Volume{
		DiskKind:            d.Kind,
		FSType:              fsType(&vbr),
		VolName:             fatLabel(&vbr),
		BadgeName:           badge(d.Kind),
		BlockIO:             view,
		BlockIOOffset:       e.StartLBA,
		WholeDiskBlockIO:    d,
		WholeDiskDevicePath: d.DevicePath.Clone(),
		DevicePath: d.DevicePath.Append(firmware.NewDevicePath(
			firmware.HardDiskNode(uint32(e.Index+1), e.StartLBA, e.Sectors(), sig))),
		IsMbrPartition:    true,
		MbrPartitionIndex: e.Index,
		HasBootCode:       vbrHasBootCode(&vbr),
		SizeBytes:         e.Sectors() * sectorSize,
	}
	if v.HasBootCode {
		v.OSName, v.OSIconName = identify(vbr[:])
		if v.OSName == "" && v.FSType == volume.FSNTFS {
			v.OSName, v.OSIconName = "Windows", "win"
		}
	}
	return v, nil
}

func fsType(vbr *partition.Sector) volume.FSType {
	switch {
	case !vbr.Valid():
		return volume.FSUnknown
	case bytes.Equal(vbr[3:11], []byte("NTFS    ")):
		return volume.FSNTFS
	case bytes.Equal(vbr[3:11], []byte("EXFAT   ")):
		return volume.FSExFAT
	case bytes.HasPrefix(vbr[0x52:], []byte("FAT32")), bytes.HasPrefix(vbr[0x36:], []byte("FAT1")):
		return volume.FSFAT
	}
	return volume.FSUnknown
}

// fatLabel returns the BPB volume label of a FAT volume.
func fatLabel(vbr *partition.Sector) string {
	var raw []byte
	switch {
	case bytes.HasPrefix(vbr[0x52:], []byte("FAT32")):
		raw = vbr[0x47:0x52]
	case bytes.HasPrefix(vbr[0x36:], []byte("FAT1")):
		raw = vbr[0x2B:0x36]
	default:
		return ""
	}
	label := strings.TrimRight(string(bytes.TrimRight(raw, "\x00")), " ")
	if label == "NO NAME" {
		return ""
	}
	return label
}

// vbrHasBootCode reports whether a volume boot record starts with a jump
// and carries loader bytes after its parameter block.
func vbrHasBootCode(vbr *partition.Sector) bool {
	if !vbr.Valid() || (vbr[0] != 0xEB && vbr[0] != 0xE9) {
		return false
	}
	for _, b := range vbr[0x5A:partition.SignatureOffset] {
		if b != 0 {
			return true
		}
	}
	return false
}

func (d *Disk) applyOverrides(vols []*volume.Volume) []*volume.Volume {
	for _, o := range d.overrides {
		idx, _ := o.index()
		for _, v := range vols {
			if (idx == wholeDiskIndex && v.IsWholeDisk()) || (v.IsMbrPartition && v.MbrPartitionIndex == idx) {
				if o.Name != "" {
					v.VolName = o.Name
				}
				if o.OSName != "" {
					v.OSName = o.OSName
				}
				if o.OSIcon != "" {
					v.OSIconName = o.OSIcon
				}
			}
		}
	}
	return vols
}
