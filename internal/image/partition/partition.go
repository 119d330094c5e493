package partition

import (
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"strconv"
	"strings"

	"legacyboot/internal/common"
)

const (
	SectorSize = 512
)

type Scheme int

const (
	None Scheme = iota
	MBR
	GPT
)

func (s Scheme) String() string {
	switch s {
	case MBR:
		return "mbr"
	case GPT:
		return "gpt"
	default:
		return "none"
	}
}

// Entry is one partition. For MBR disks Index is the activation index:
// 0..3 for primary slots, 4 and up for logical partitions in chain order.
type Entry struct {
	Index    int
	StartLBA uint64
	EndLBA   uint64
	Type     string
	TypeCode byte
	Name     string
	Bootable bool
	Logical  bool
	EBRLBA   uint64
}

func (e Entry) Sectors() uint64 { return e.EndLBA - e.StartLBA + 1 }

type Table struct {
	Scheme        Scheme
	SectorSize    int
	Entries       []Entry
	DiskSignature uint32
	BootCode      bool
	// GPT specifics
	gptPrimary *gptHeader
}

var errNoPT = errors.New("no partition table")

func Detect(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DetectR(f)
}

// DetectR reads the partition table of r. A broken EBR chain returns the
// entries read so far together with the error.
func DetectR(r io.ReadSeeker) (*Table, error) {
	sec, err := readSectorAt(r, 0)
	if err != nil {
		return nil, err
	}
	if isProtectiveMBR(sec) {
		t, err := readGPT(r)
		if err == nil && len(t.Entries) > 0 {
			t.BootCode = sec.HasBootCode()
			return t, nil
		}
	}
	if t, err := readMBR(sec, r); t != nil && len(t.Entries) > 0 {
		return t, err
	}
	// Try GPT even if not protective (some tools write bad MBR)
	if t, err := readGPT(r); err == nil && len(t.Entries) > 0 {
		return t, nil
	}
	return nil, fmt.Errorf("%w: %w", errNoPT, common.ErrNotFound)
}

func List(path string) ([]Entry, Scheme, error) {
	t, err := Detect(path)
	if err != nil {
		return nil, None, err
	}
	return t.Entries, t.Scheme, nil
}

// Lookup resolves an activation index or a GPT partition name.
func (t *Table) Lookup(s string) (Entry, bool) {
	if x, err := strconv.Atoi(s); err == nil {
		for _, e := range t.Entries {
			if e.Index == x {
				return e, true
			}
		}
		return Entry{}, false
	}
	ns := strings.ToLower(s)
	for _, e := range t.Entries {
		if strings.ToLower(e.Name) == ns {
			return e, true
		}
	}
	return Entry{}, false
}

func isProtectiveMBR(sec *Sector) bool {
	if !sec.Valid() {
		return false
	}
	for i := 0; i < 4; i++ {
		if sec.Descriptor(i).Type == 0xEE {
			return true
		}
	}
	return false
}

// CRC32 LE
func crc32LE(p []byte) uint32 {
	return crc32.ChecksumIEEE(p)
}
