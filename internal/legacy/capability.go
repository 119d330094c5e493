package legacy

import (
	"strings"

	"github.com/apex/log"

	"legacyboot/internal/firmware"
)

// Type is the kind of legacy boot support the firmware offers.
type Type int

const (
	TypeNone Type = iota
	TypeMac
	TypeUEFI
)

func (t Type) String() string {
	switch t {
	case TypeMac:
		return "mac"
	case TypeUEFI:
		return "uefi"
	default:
		return "none"
	}
}

// DetectType probes the firmware. Apple firmware always reports TypeMac,
// even when it also exposes a legacy BIOS protocol.
func DetectType(fw firmware.Firmware) Type {
	if strings.Contains(fw.Vendor(), "Apple") {
		return TypeMac
	}
	if err := fw.LocateProtocol(firmware.LegacyBiosProtocol); err != nil {
		log.WithError(err).Debug("no legacy BIOS protocol")
		return TypeNone
	}
	return TypeUEFI
}
