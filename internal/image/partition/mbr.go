package partition

import (
	"encoding/binary"
	"fmt"
	"io"

	"legacyboot/internal/common"
)

const (
	BootCodeSize    = 446
	StubRegionSize  = 440 // boot code ahead of the disk signature
	TableOffset     = 446
	SignatureOffset = 510
	DescriptorSize  = 16

	FlagActive   = 0x80
	FlagInactive = 0x00

	// MaxChainHops bounds any walk of the extended boot record chain.
	MaxChainHops = 128
)

var (
	ErrNotBootSector  = fmt.Errorf("%w: missing 0xAA55 boot signature", common.ErrCorrupt)
	ErrMalformedTable = fmt.Errorf("%w: partition flag is neither 0x00 nor 0x80", common.ErrCorrupt)
	ErrChainLoop      = fmt.Errorf("%w: extended partition chain does not terminate", common.ErrCorrupt)
)

// Sector mirrors one MBR or EBR sector.
type Sector [SectorSize]byte

// Descriptor is one 16-byte partition table slot.
type Descriptor struct {
	Flag     byte
	CHSStart [3]byte
	Type     byte
	CHSEnd   [3]byte
	StartLBA uint32
	Size     uint32
}

func (d Descriptor) Empty() bool { return d.StartLBA == 0 || d.Size == 0 }

func (d Descriptor) Extended() bool { return IsExtendedType(d.Type) }

// IsExtendedType reports DOS, Win95 LBA and Linux extended partition types.
func IsExtendedType(t byte) bool { return t == 0x05 || t == 0x0F || t == 0x85 }

func (s *Sector) Valid() bool {
	return s[SignatureOffset] == 0x55 && s[SignatureOffset+1] == 0xAA
}

func (s *Sector) SetSignature() {
	s[SignatureOffset], s[SignatureOffset+1] = 0x55, 0xAA
}

// HasBootCode reports whether any byte of the boot-code region is set.
func (s *Sector) HasBootCode() bool {
	for _, b := range s[:BootCodeSize] {
		if b != 0 {
			return true
		}
	}
	return false
}

// DiskSignature is the 32-bit NT disk signature at offset 440.
func (s *Sector) DiskSignature() uint32 {
	return binary.LittleEndian.Uint32(s[StubRegionSize:])
}

func (s *Sector) Descriptor(i int) Descriptor {
	off := TableOffset + i*DescriptorSize
	var d Descriptor
	d.Flag = s[off]
	copy(d.CHSStart[:], s[off+1:off+4])
	d.Type = s[off+4]
	copy(d.CHSEnd[:], s[off+5:off+8])
	d.StartLBA = binary.LittleEndian.Uint32(s[off+8:])
	d.Size = binary.LittleEndian.Uint32(s[off+12:])
	return d
}

func (s *Sector) SetDescriptor(i int, d Descriptor) {
	off := TableOffset + i*DescriptorSize
	s[off] = d.Flag
	copy(s[off+1:off+4], d.CHSStart[:])
	s[off+4] = d.Type
	copy(s[off+5:off+8], d.CHSEnd[:])
	binary.LittleEndian.PutUint32(s[off+8:], d.StartLBA)
	binary.LittleEndian.PutUint32(s[off+12:], d.Size)
}

func (s *Sector) SetFlag(i int, f byte) { s[TableOffset+i*DescriptorSize] = f }

// checkFlags rejects a table whose flag bytes show it is not a real MBR.
func (s *Sector) checkFlags() error {
	for i := 0; i < 4; i++ {
		if f := s[TableOffset+i*DescriptorSize]; f != FlagActive && f != FlagInactive {
			return fmt.Errorf("descriptor %d flag 0x%02X: %w", i, f, ErrMalformedTable)
		}
	}
	return nil
}

// chain guards a walk of linked EBR sectors.
type chain struct {
	seen map[uint64]bool
	hops int
}

func newChain() *chain { return &chain{seen: map[uint64]bool{0: true}} }

func (c *chain) visit(lba uint64) error {
	if c.seen[lba] {
		return fmt.Errorf("EBR at LBA %d revisited: %w", lba, ErrChainLoop)
	}
	c.hops++
	if c.hops > MaxChainHops {
		return fmt.Errorf("more than %d EBR hops: %w", MaxChainHops, ErrChainLoop)
	}
	c.seen[lba] = true
	return nil
}

func readSectorAt(r io.ReadSeeker, lba uint64) (*Sector, error) {
	var s Sector
	if _, err := r.Seek(int64(lba)*SectorSize, io.SeekStart); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, s[:]); err != nil {
		return nil, fmt.Errorf("read LBA %d: %w", lba, err)
	}
	return &s, nil
}

func readMBR(sec *Sector, r io.ReadSeeker) (*Table, error) {
	if !sec.Valid() {
		return nil, ErrNotBootSector
	}
	t := &Table{
		Scheme:        MBR,
		SectorSize:    SectorSize,
		DiskSignature: sec.DiskSignature(),
		BootCode:      sec.HasBootCode(),
	}
	var extBase uint64
	for i := 0; i < 4; i++ {
		d := sec.Descriptor(i)
		if d.Type == 0 || d.Size == 0 {
			continue
		}
		if d.Extended() && extBase == 0 {
			extBase = uint64(d.StartLBA)
		}
		t.Entries = append(t.Entries, mbrEntry(i, 0, d))
	}
	if extBase == 0 || r == nil {
		return t, nil
	}
	logical, err := readLogical(r, extBase)
	t.Entries = append(t.Entries, logical...)
	return t, err
}

// readLogical enumerates the logical partitions of an extended partition.
// Indices start at 4, matching ActivatePartition.
func readLogical(r io.ReadSeeker, base uint64) ([]Entry, error) {
	var out []Entry
	c := newChain()
	idx := 4
	for cur := base; cur != 0; {
		if err := c.visit(cur); err != nil {
			return out, err
		}
		s, err := readSectorAt(r, cur)
		if err != nil {
			return out, err
		}
		if !s.Valid() {
			return out, fmt.Errorf("EBR at LBA %d: %w", cur, ErrNotBootSector)
		}
		next := uint64(0)
		for i := 0; i < 4; i++ {
			d := s.Descriptor(i)
			if d.Empty() {
				break
			}
			if d.Extended() {
				next = base + uint64(d.StartLBA)
				break
			}
			out = append(out, mbrEntry(idx, cur, d))
			idx++
		}
		cur = next
	}
	return out, nil
}

func mbrEntry(idx int, ebr uint64, d Descriptor) Entry {
	start := ebr + uint64(d.StartLBA)
	return Entry{
		Index:    idx,
		StartLBA: start,
		EndLBA:   start + uint64(d.Size) - 1,
		Type:     fmt.Sprintf("MBR 0x%02X", d.Type),
		TypeCode: d.Type,
		Bootable: d.Flag == FlagActive,
		Logical:  ebr != 0,
		EBRLBA:   ebr,
	}
}
