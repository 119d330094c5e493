package legacy

import (
	"github.com/apex/log"

	"legacyboot/internal/firmware"
)

// ScanFirmwareBootOptions adds an entry for every BIOS boot option in
// BootOrder whose BBS device class is class.
//
// Firmware reports USB sticks as hard disks with a media-present flag, so
// BBSUSB selects hard disks with either presence bit set and BBSHardDisk
// selects hard disks with neither.
func (c *Context) ScanFirmwareBootOptions(class firmware.BBSType) {
	c.logScanItem("Scanning for 'UEFI-Style' Legacy Boot Options")

	if err := c.FW.LocateProtocol(firmware.LegacyBiosProtocol); err != nil {
		log.WithError(err).Debug("legacy BIOS protocol unavailable")
		return
	}

	searchingForUSB := false
	if class == firmware.BBSUSB {
		class = firmware.BBSHardDisk
		searchingForUSB = true
	}

	order, err := firmware.ReadBootOrder(c.FW)
	if err != nil {
		log.WithError(err).Debug("no boot order")
	}
	for _, num := range order {
		opt, err := firmware.ReadBootOption(c.FW, num)
		if err != nil {
			log.WithError(err).WithField("option", firmware.BootOptionName(num)).Debug("skipping boot option")
			continue
		}
		bbs, ok := opt.BBS()
		if !ok || bbs.DeviceType != class {
			continue
		}
		present := bbs.StatusFlag&(firmware.BBSMediaPresent|firmware.BBSMediaMaybePresent) != 0
		switch {
		case class != firmware.BBSHardDisk:
			c.AddOptionEntry(opt, class)
		case searchingForUSB && present:
			c.AddOptionEntry(opt, firmware.BBSUSB)
		case !searchingForUSB && !present:
			c.AddOptionEntry(opt, class)
		}
	}
}
