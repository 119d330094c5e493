package firmware

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	efi "github.com/canonical/go-efilib"
)

// Device path node types.
const (
	HardwareType  = byte(efi.HardwareDevicePath)
	ACPIType      = byte(efi.ACPIDevicePath)
	MessagingType = byte(efi.MessagingDevicePath)
	MediaType     = byte(efi.MediaDevicePath)
	BIOSType      = byte(efi.BBSDevicePath)
	EndType       = byte(0x7F)
)

// Device path node subtypes used here.
const (
	HWMemMapSubType      = byte(0x03)
	HWControllerSubType  = byte(0x05)
	MediaHardDiskSubType = byte(0x01)
	MediaFvFileSubType   = byte(0x06)
	BBSSubType           = byte(0x01)
	EndEntireSubType     = byte(0xFF)
	EndInstanceSubType   = byte(0x01)
)

const nodeHeaderSize = 4

// EndNode terminates a whole device path.
var EndNode = []byte{EndType, EndEntireSubType, nodeHeaderSize, 0}

// DevicePath is a packed binary device path: a chain of nodes closed by an
// end-entire node.
type DevicePath []byte

// Type returns the type of the first node.
func (p DevicePath) Type() byte {
	if len(p) < nodeHeaderSize {
		return EndType
	}
	return p[0]
}

// SubType returns the subtype of the first node.
func (p DevicePath) SubType() byte {
	if len(p) < nodeHeaderSize {
		return EndEntireSubType
	}
	return p[1]
}

// NodeLength returns the length of the first node including its header.
func (p DevicePath) NodeLength() int {
	if len(p) < nodeHeaderSize {
		return 0
	}
	return int(binary.LittleEndian.Uint16(p[2:4]))
}

// FirstNode returns the bytes of the first node, clamped to the buffer.
func (p DevicePath) FirstNode() []byte {
	n := p.NodeLength()
	if n > len(p) {
		n = len(p)
	}
	return p[:n]
}

func isEnd(node []byte) bool {
	return node[0] == EndType && node[1] == EndEntireSubType
}

// Size returns the byte length of the path including its end node, or the
// whole buffer when no end node is found.
func (p DevicePath) Size() int {
	off := 0
	for off+nodeHeaderSize <= len(p) {
		n := int(binary.LittleEndian.Uint16(p[off+2:]))
		if n < nodeHeaderSize || off+n > len(p) {
			return len(p)
		}
		if isEnd(p[off:]) {
			return off + n
		}
		off += n
	}
	return len(p)
}

// Valid reports whether every node is well formed and the path ends with
// an end-entire node.
func (p DevicePath) Valid() bool {
	off := 0
	for off+nodeHeaderSize <= len(p) {
		n := int(binary.LittleEndian.Uint16(p[off+2:]))
		if n < nodeHeaderSize || off+n > len(p) {
			return false
		}
		if isEnd(p[off:]) {
			return true
		}
		off += n
	}
	return false
}

// Append returns a new path made of p without its end node followed by q.
func (p DevicePath) Append(q DevicePath) DevicePath {
	head := p.Size()
	if p.Valid() {
		head -= nodeHeaderSize
	}
	tail := q
	if len(tail) == 0 {
		tail = EndNode
	}
	out := make(DevicePath, 0, head+len(tail))
	out = append(out, p[:head]...)
	return append(out, tail...)
}

func (p DevicePath) Clone() DevicePath {
	if p == nil {
		return nil
	}
	return append(DevicePath(nil), p...)
}

func (p DevicePath) Equal(q DevicePath) bool { return bytes.Equal(p, q) }

// String renders the path in the textual form used by firmware shells.
func (p DevicePath) String() string {
	if len(p) == 0 {
		return "<nil>"
	}
	dp, err := efi.ReadDevicePath(bytes.NewReader(p))
	if err != nil {
		return "raw(" + hex.EncodeToString(p) + ")"
	}
	return dp.String()
}

// ParseDevicePath decodes a hex dump (spaces, colons and commas allowed).
func ParseDevicePath(s string) (DevicePath, error) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ' ', ':', ',', '\n', '\t':
			return -1
		}
		return r
	}, s)
	clean = strings.TrimPrefix(strings.ToLower(clean), "0x")
	b, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("device path %q: %w", s, err)
	}
	p := DevicePath(b)
	if !p.Valid() {
		return nil, fmt.Errorf("device path %q: missing end node", s)
	}
	return p, nil
}

// MemMapNode builds a hardware memory-mapped device path node.
func MemMapNode(memType uint32, start, end uint64) []byte {
	n := make([]byte, 24)
	n[0], n[1] = HardwareType, HWMemMapSubType
	binary.LittleEndian.PutUint16(n[2:], 24)
	binary.LittleEndian.PutUint32(n[4:], memType)
	binary.LittleEndian.PutUint64(n[8:], start)
	binary.LittleEndian.PutUint64(n[16:], end)
	return n
}

// ControllerNode builds a hardware controller node.
func ControllerNode(n uint32) []byte {
	node := make([]byte, 8)
	node[0], node[1] = HardwareType, HWControllerSubType
	binary.LittleEndian.PutUint16(node[2:], 8)
	binary.LittleEndian.PutUint32(node[4:], n)
	return node
}

// HardDiskNode builds a media hard-drive node for an MBR partition.
func HardDiskNode(partNumber uint32, startLBA, sizeLBA uint64, mbrSignature uint32) []byte {
	n := make([]byte, 42)
	n[0], n[1] = MediaType, MediaHardDiskSubType
	binary.LittleEndian.PutUint16(n[2:], 42)
	binary.LittleEndian.PutUint32(n[4:], partNumber)
	binary.LittleEndian.PutUint64(n[8:], startLBA)
	binary.LittleEndian.PutUint64(n[16:], sizeLBA)
	binary.LittleEndian.PutUint32(n[24:], mbrSignature)
	n[40] = 0x01 // MBR partition format
	n[41] = 0x01 // 32-bit signature
	return n
}

// NewDevicePath joins nodes and closes the path with an end node.
func NewDevicePath(nodes ...[]byte) DevicePath {
	var out DevicePath
	for _, n := range nodes {
		out = append(out, n...)
	}
	return append(out, EndNode...)
}
