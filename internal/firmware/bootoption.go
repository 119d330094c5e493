package firmware

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	efi "github.com/canonical/go-efilib"
)

// BBSType is the BIOS Boot Specification device class.
type BBSType uint16

const (
	BBSFloppy       BBSType = 0x01
	BBSHardDisk     BBSType = 0x02
	BBSCDROM        BBSType = 0x03
	BBSPCMCIA       BBSType = 0x04
	BBSUSB          BBSType = 0x05
	BBSEmbedNetwork BBSType = 0x06
	BBSBEV          BBSType = 0x80
	BBSUnknown      BBSType = 0xFF
)

func (t BBSType) String() string {
	switch t {
	case BBSFloppy:
		return "floppy"
	case BBSHardDisk:
		return "harddisk"
	case BBSCDROM:
		return "cdrom"
	case BBSPCMCIA:
		return "pcmcia"
	case BBSUSB:
		return "usb"
	case BBSEmbedNetwork:
		return "network"
	case BBSBEV:
		return "bev"
	default:
		return "unknown"
	}
}

// ParseBBSType accepts the names produced by BBSType.String.
func ParseBBSType(s string) (BBSType, error) {
	for _, t := range []BBSType{BBSFloppy, BBSHardDisk, BBSCDROM, BBSPCMCIA, BBSUSB, BBSEmbedNetwork, BBSBEV} {
		if strings.EqualFold(s, t.String()) {
			return t, nil
		}
	}
	return BBSUnknown, fmt.Errorf("unknown BBS device type %q", s)
}

// BBS status flags.
const (
	BBSMediaMaybePresent uint16 = 0x0400
	BBSMediaPresent      uint16 = 0x0800
)

// BBSNode is the decoded BBS device path node of a legacy boot option.
type BBSNode struct {
	DeviceType  BBSType
	StatusFlag  uint16
	Description string
}

// BBSDevicePathNode builds a BBS node carrying an ASCII description.
func BBSDevicePathNode(t BBSType, status uint16, desc string) []byte {
	n := make([]byte, 8, 8+len(desc)+1)
	n = append(n, desc...)
	n = append(n, 0)
	n[0], n[1] = BIOSType, BBSSubType
	binary.LittleEndian.PutUint16(n[2:], uint16(len(n)))
	binary.LittleEndian.PutUint16(n[4:], uint16(t))
	binary.LittleEndian.PutUint16(n[6:], status)
	return n
}

// BootOption is one decoded Boot#### variable.
type BootOption struct {
	Number       uint16
	Attributes   uint32
	Description  string
	DevicePath   DevicePath
	OptionalData []byte
}

// BBS decodes the leading BBS node of the option's device path. The second
// result is false when the path does not start with one.
func (o *BootOption) BBS() (BBSNode, bool) {
	p := o.DevicePath
	if p.Type() != BIOSType || p.NodeLength() < 8 || len(p) < 8 {
		return BBSNode{}, false
	}
	n := BBSNode{
		DeviceType: BBSType(binary.LittleEndian.Uint16(p[4:])),
		StatusFlag: binary.LittleEndian.Uint16(p[6:]),
	}
	desc := p.FirstNode()[8:]
	if i := bytes.IndexByte(desc, 0); i >= 0 {
		desc = desc[:i]
	}
	n.Description = string(desc)
	return n, true
}

// Clone returns a copy that shares no memory with o.
func (o *BootOption) Clone() *BootOption {
	if o == nil {
		return nil
	}
	c := *o
	c.DevicePath = o.DevicePath.Clone()
	if o.OptionalData != nil {
		c.OptionalData = append([]byte(nil), o.OptionalData...)
	}
	return &c
}

func (o *BootOption) VariableName() string { return BootOptionName(o.Number) }

func BootOptionName(n uint16) string { return fmt.Sprintf("Boot%04X", n) }

// DecodeBootOption parses an EFI_LOAD_OPTION.
func DecodeBootOption(num uint16, data []byte) (*BootOption, error) {
	lo, err := efi.ReadLoadOption(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("cannot decode %s: %w", BootOptionName(num), err)
	}
	var path bytes.Buffer
	if err := lo.FilePath.Write(&path); err != nil {
		return nil, fmt.Errorf("cannot encode device path of %s: %w", BootOptionName(num), err)
	}
	return &BootOption{
		Number:       num,
		Attributes:   uint32(lo.Attributes),
		Description:  lo.Description,
		DevicePath:   DevicePath(path.Bytes()),
		OptionalData: lo.OptionalData,
	}, nil
}

// EncodeBootOption serialises o as an EFI_LOAD_OPTION.
func EncodeBootOption(o *BootOption) ([]byte, error) {
	dp, err := efi.ReadDevicePath(bytes.NewReader(o.DevicePath))
	if err != nil {
		return nil, fmt.Errorf("invalid device path for %s: %w", o.VariableName(), err)
	}
	lo := &efi.LoadOption{
		Attributes:   efi.LoadOptionAttributes(o.Attributes),
		Description:  o.Description,
		FilePath:     dp,
		OptionalData: o.OptionalData,
	}
	return lo.Bytes()
}

// ReadBootOrder returns the BootOrder variable. A missing variable is an
// empty order, not an error.
func ReadBootOrder(v Variables) ([]uint16, error) {
	data, _, err := v.GetVariable("BootOrder", GlobalVariable)
	if errors.Is(err, NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read BootOrder: %w", err)
	}
	order := make([]uint16, len(data)/2)
	for i := range order {
		order[i] = binary.LittleEndian.Uint16(data[i*2:])
	}
	return order, nil
}

// WriteBootOrder replaces the BootOrder variable.
func WriteBootOrder(v Variables, order []uint16) error {
	data := make([]byte, len(order)*2)
	for i, n := range order {
		binary.LittleEndian.PutUint16(data[i*2:], n)
	}
	return v.SetVariable("BootOrder", GlobalVariable, NonVolatile|BootserviceAccess|RuntimeAccess, data)
}

// ReadBootOption resolves one Boot#### variable.
func ReadBootOption(v Variables, num uint16) (*BootOption, error) {
	data, _, err := v.GetVariable(BootOptionName(num), GlobalVariable)
	if err != nil {
		return nil, err
	}
	return DecodeBootOption(num, data)
}

// VariableAttributes are the attribute bits of an NVRAM variable.
type VariableAttributes uint32

const (
	NonVolatile       VariableAttributes = 0x01
	BootserviceAccess VariableAttributes = 0x02
	RuntimeAccess     VariableAttributes = 0x04
)
