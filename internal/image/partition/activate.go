package partition

import (
	"fmt"

	"legacyboot/internal/common"
	"legacyboot/internal/firmware"
)

// ActivatePartition marks partition index as the only active partition on
// dev, supplying DefaultBootStub when the MBR carries no boot code.
// Indices 0..3 select primary slots; 4 and up select logical partitions in
// chain order.
func ActivatePartition(dev firmware.BlockIO, index int) error {
	return ActivateWithStub(dev, index, DefaultBootStub)
}

// ActivateWithStub is ActivatePartition with a caller supplied boot stub.
//
// The primary sector and each EBR are written independently; a failure part
// way through leaves the sectors already written in place.
func ActivateWithStub(dev firmware.BlockIO, index int, stub []byte) error {
	if index < 0 {
		return fmt.Errorf("partition index %d: %w", index, common.ErrNotFound)
	}
	if bs := dev.BlockSize(); bs != SectorSize {
		return fmt.Errorf("block size %d: %w", bs, common.ErrUnsupported)
	}

	mbr, err := readSector(dev, 0)
	if err != nil {
		return err
	}
	if !mbr.Valid() {
		return fmt.Errorf("MBR: %w", ErrNotBootSector)
	}
	if err := mbr.checkFlags(); err != nil {
		return fmt.Errorf("MBR: %w", err)
	}

	if !mbr.HasBootCode() {
		n := copy(mbr[:StubRegionSize], stub)
		for i := n; i < BootCodeSize; i++ {
			mbr[i] = 0
		}
	}

	var extBase uint64
	for i := 0; i < 4; i++ {
		d := mbr.Descriptor(i)
		switch {
		case i == index:
			mbr.SetFlag(i, FlagActive)
		case index >= 4 && d.Extended():
			mbr.SetFlag(i, FlagActive)
			extBase = uint64(d.StartLBA)
		default:
			mbr.SetFlag(i, FlagInactive)
		}
	}
	if err := writeSector(dev, 0, mbr); err != nil {
		return err
	}
	if index < 4 {
		return nil
	}
	return activateLogical(dev, extBase, index)
}

func activateLogical(dev firmware.BlockIO, base uint64, index int) error {
	c := newChain()
	logical := 4
	for cur := base; cur != 0; {
		if err := c.visit(cur); err != nil {
			return err
		}
		ebr, err := readSector(dev, cur)
		if err != nil {
			return err
		}
		if !ebr.Valid() {
			return fmt.Errorf("EBR at LBA %d: %w", cur, ErrNotBootSector)
		}
		if err := ebr.checkFlags(); err != nil {
			return fmt.Errorf("EBR at LBA %d: %w", cur, err)
		}

		next := uint64(0)
		for i := 0; i < 4; i++ {
			d := ebr.Descriptor(i)
			if d.Empty() {
				break
			}
			if d.Extended() {
				next = base + uint64(d.StartLBA)
				if index >= logical {
					ebr.SetFlag(i, FlagActive)
				} else {
					ebr.SetFlag(i, FlagInactive)
				}
				break
			}
			if index == logical {
				ebr.SetFlag(i, FlagActive)
			} else {
				ebr.SetFlag(i, FlagInactive)
			}
			logical++
		}
		if err := writeSector(dev, cur, ebr); err != nil {
			return err
		}
		if index < logical {
			return nil
		}
		cur = next
	}
	return fmt.Errorf("logical partition %d: %w", index, common.ErrNotFound)
}

func readSector(dev firmware.BlockIO, lba uint64) (*Sector, error) {
	var s Sector
	if err := dev.ReadBlocks(dev.MediaID(), lba, s[:]); err != nil {
		return nil, fmt.Errorf("read LBA %d: %w", lba, err)
	}
	return &s, nil
}

func writeSector(dev firmware.BlockIO, lba uint64, s *Sector) error {
	if err := dev.WriteBlocks(dev.MediaID(), lba, s[:]); err != nil {
		return fmt.Errorf("write LBA %d: %w", lba, err)
	}
	return nil
}
