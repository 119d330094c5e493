// Package diskimage builds raw MBR disk images with primary and logical
// partitions and minimal volume boot records.
package diskimage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"legacyboot/internal/common"
	"legacyboot/internal/compress"
	"legacyboot/internal/image/partition"
)

type FS int

const (
	FSNone FS = iota
	FSFAT
	FSExFAT
	FSNTFS
)

func (f FS) String() string {
	switch f {
	case FSFAT:
		return "fat"
	case FSExFAT:
		return "exfat"
	case FSNTFS:
		return "ntfs"
	default:
		return "none"
	}
}

func ParseFS(s string) (FS, error) {
	for _, f := range []FS{FSNone, FSFAT, FSExFAT, FSNTFS} {
		if f.String() == s {
			return f, nil
		}
	}
	return FSNone, fmt.Errorf("unknown filesystem %q", s)
}

// Partition describes one primary or logical partition.
type Partition struct {
	Type     byte
	Sectors  uint64
	Active   bool
	FS       FS
	BootCode bool
}

// Layout describes a whole disk. When Logical is non-empty an extended
// partition holding them is placed after the primaries.
type Layout struct {
	BootCode     []byte
	Signature    uint32
	Primary      []Partition
	Logical      []Partition
	ExtendedType byte
	Align        uint64
	ExtraSectors uint64
}

const defaultAlign = 2048

func (l *Layout) align() uint64 {
	if l.Align == 0 {
		return defaultAlign
	}
	return l.Align
}

// Build renders the layout into a byte slice.
func Build(l Layout) ([]byte, error) {
	if len(l.Primary) > 4 || (len(l.Logical) > 0 && len(l.Primary) > 3) {
		return nil, fmt.Errorf("too many primary partitions: %w", common.ErrUnsupported)
	}
	if len(l.BootCode) > partition.StubRegionSize {
		return nil, fmt.Errorf("boot code is %d bytes: %w", len(l.BootCode), common.ErrUnsupported)
	}
	a := l.align()
	var mbr partition.Sector
	copy(mbr[:], l.BootCode)
	binary.LittleEndian.PutUint32(mbr[partition.StubRegionSize:], l.Signature)
	mbr.SetSignature()

	type span struct {
		start uint64
		p     Partition
	}
	var vbrs []span
	type ebr struct {
		lba uint64
		s   *partition.Sector
	}
	var ebrs []ebr

	next := a
	for i, p := range l.Primary {
		if p.Sectors == 0 {
			return nil, fmt.Errorf("primary %d has no size: %w", i, common.ErrUnsupported)
		}
		mbr.SetDescriptor(i, descriptor(p, uint32(next)))
		vbrs = append(vbrs, span{next, p})
		next = common.AlignUp(next+p.Sectors, a)
	}

	if len(l.Logical) > 0 {
		extType := l.ExtendedType
		if extType == 0 {
			extType = 0x0F
		}
		base := next
		cur := base
		for i, p := range l.Logical {
			if p.Sectors == 0 {
				return nil, fmt.Errorf("logical %d has no size: %w", i, common.ErrUnsupported)
			}
			var sec partition.Sector
			sec.SetSignature()
			data := cur + a
			sec.SetDescriptor(0, descriptor(p, uint32(data-cur)))
			vbrs = append(vbrs, span{data, p})
			end := common.AlignUp(data+p.Sectors, a)
			if i+1 < len(l.Logical) {
				nextSize := a + l.Logical[i+1].Sectors
				sec.SetDescriptor(1, partition.Descriptor{
					Type:     0x05,
					StartLBA: uint32(end - base),
					Size:     uint32(nextSize),
				})
			}
			ebrs = append(ebrs, ebr{cur, &sec})
			cur = end
		}
		mbr.SetDescriptor(len(l.Primary), partition.Descriptor{
			Type:     extType,
			StartLBA: uint32(base),
			Size:     uint32(cur - base),
		})
		next = cur
	}

	total := next + l.ExtraSectors
	img := make([]byte, total*partition.SectorSize)
	copy(img, mbr[:])
	for _, e := range ebrs {
		copy(img[e.lba*partition.SectorSize:], e.s[:])
	}
	for _, v := range vbrs {
		if v.p.FS == FSNone && !v.p.BootCode {
			continue
		}
		vbr := VBR(v.p.FS, v.p.BootCode)
		copy(img[v.start*partition.SectorSize:], vbr[:])
	}
	return img, nil
}

func descriptor(p Partition, start uint32) partition.Descriptor {
	d := partition.Descriptor{Type: p.Type, StartLBA: start, Size: uint32(p.Sectors)}
	if p.Active {
		d.Flag = partition.FlagActive
	}
	return d
}

// VBR renders a volume boot record carrying the OEM id of fs. With bootCode
// set the sector starts with a jump and holds a non-empty loader body.
func VBR(fs FS, bootCode bool) partition.Sector {
	var s partition.Sector
	s[0], s[1], s[2] = 0xEB, 0x58, 0x90
	switch fs {
	case FSNTFS:
		copy(s[3:11], "NTFS    ")
	case FSExFAT:
		copy(s[3:11], "EXFAT   ")
	case FSFAT:
		copy(s[3:11], "MSWIN4.1")
		copy(s[0x52:0x5A], "FAT32   ")
	}
	if bootCode {
		// cli; hlt; jmp $-1
		copy(s[0x5A:], []byte{0xFA, 0xF4, 0xEB, 0xFD})
	}
	s.SetSignature()
	return s
}

// WriteFile builds the layout and stores it at path through the named codec.
func WriteFile(path string, l Layout, codec string) error {
	img, err := Build(l)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := compress.Copy(f, bytes.NewReader(img), codec); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
