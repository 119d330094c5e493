package partition

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf16"

	"github.com/google/uuid"

	"legacyboot/internal/common"
)

type gptHeader struct {
	Sig               [8]byte
	Rev               uint32
	HdrSize           uint32
	HdrCRC            uint32
	_                 uint32
	CurrentLBA        uint64
	BackupLBA         uint64
	FirstUsableLBA    uint64
	LastUsableLBA     uint64
	DiskGUID          [16]byte
	PartEntryLBA      uint64
	NumPartEntries    uint32
	PartEntrySize     uint32
	PartEntryArrayCRC uint32
}

type gptEntry struct {
	TypeGUID  [16]byte
	PartGUID  [16]byte
	FirstLBA  uint64
	LastLBA   uint64
	Attrs     uint64
	NameUTF16 [72]byte
}

const gptEntrySize = 128

// GPT disks carry no activatable MBR; they are listed so volume discovery
// can tell them apart from legacy disks.
func readGPT(r io.ReadSeeker) (*Table, error) {
	if _, err := r.Seek(int64(SectorSize), io.SeekStart); err != nil {
		return nil, err
	}
	var h gptHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, err
	}
	if string(h.Sig[:]) != "EFI PART" {
		return nil, errors.New("no gpt sig")
	}
	if h.PartEntrySize < gptEntrySize || h.NumPartEntries > 1024 {
		return nil, fmt.Errorf("gpt entry array %dx%d: %w", h.NumPartEntries, h.PartEntrySize, common.ErrCorrupt)
	}
	hdr := h

	peBytes := int64(h.NumPartEntries) * int64(h.PartEntrySize)
	if _, err := r.Seek(int64(h.PartEntryLBA)*int64(SectorSize), io.SeekStart); err != nil {
		return nil, err
	}
	data := make([]byte, peBytes)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	if crc32LE(data) != h.PartEntryArrayCRC {
		return nil, fmt.Errorf("gpt entry array crc: %w", common.ErrCorrupt)
	}

	var out []Entry
	for i := uint32(0); i < h.NumPartEntries; i++ {
		var e gptEntry
		rec := data[int64(i)*int64(h.PartEntrySize):]
		if err := binary.Read(bytes.NewReader(rec[:gptEntrySize]), binary.LittleEndian, &e); err != nil {
			return nil, err
		}
		if isZero16(e.TypeGUID[:]) || e.FirstLBA == 0 || e.LastLBA == 0 || e.LastLBA < e.FirstLBA {
			continue
		}
		out = append(out, Entry{
			Index:    int(i),
			StartLBA: e.FirstLBA,
			EndLBA:   e.LastLBA,
			Type:     guidStr(e.TypeGUID),
			Name:     ucs2ToString(e.NameUTF16[:]),
		})
	}
	return &Table{
		Scheme:     GPT,
		SectorSize: SectorSize,
		Entries:    out,
		gptPrimary: &hdr,
	}, nil
}

// DiskGUID returns the GPT disk GUID, or uuid.Nil for MBR disks.
func (t *Table) DiskGUID() uuid.UUID {
	if t.gptPrimary == nil {
		return uuid.Nil
	}
	return mixedEndianGUID(t.gptPrimary.DiskGUID)
}

// mixedEndianGUID converts the on-disk EFI_GUID layout to RFC 4122 order.
func mixedEndianGUID(b [16]byte) uuid.UUID {
	var u uuid.UUID
	u[0], u[1], u[2], u[3] = b[3], b[2], b[1], b[0]
	u[4], u[5] = b[5], b[4]
	u[6], u[7] = b[7], b[6]
	copy(u[8:], b[8:])
	return u
}

func guidStr(b [16]byte) string {
	return mixedEndianGUID(b).String()
}

func ucs2ToString(b []byte) string {
	if len(b)%2 != 0 {
		return ""
	}
	u16 := make([]uint16, 0, len(b)/2)
	for i := 0; i < len(b); i += 2 {
		v := binary.LittleEndian.Uint16(b[i:])
		if v == 0 {
			break
		}
		u16 = append(u16, v)
	}
	return string(utf16.Decode(u16))
}

func isZero16(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
