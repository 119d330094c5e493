package legacy

import (
	"strings"

	"github.com/apex/log"

	"legacyboot/internal/firmware"
	"legacyboot/internal/menu"
	"legacyboot/internal/volume"
)

// ScanDisc adds entries for optical media.
func (c *Context) ScanDisc() {
	logLine(lineThinSep, "Scan for Optical Discs with Mode:- 'Legacy (BIOS)'")
	c.scan(firmware.BBSCDROM, volume.Optical)
}

// ScanInternal adds entries for internal disks. Under a compatibility
// module this also finds USB sticks the firmware does not flag.
func (c *Context) ScanInternal() {
	logLine(lineThinSep, "Scan for Internal Disk Volumes with Mode:- 'Legacy (BIOS)'")
	c.scan(firmware.BBSHardDisk, volume.Internal)
}

// ScanExternal adds entries for external disks.
func (c *Context) ScanExternal() {
	logLine(lineThinSep, "Scan for External Disk Volumes with Mode:- 'Legacy (BIOS)'")
	c.scan(firmware.BBSUSB, volume.External)
}

func (c *Context) scan(class firmware.BBSType, kind volume.DiskKind) {
	c.firstScan = true
	switch c.Type {
	case TypeUEFI:
		c.ScanFirmwareBootOptions(class)
	case TypeMac:
		for i, v := range c.Volumes {
			if v.DiskKind == kind {
				c.scanVolume(i)
			}
		}
	}
	c.firstScan = false
}

// scanVolume adds an entry for a volume carrying boot code. A whole-disk
// volume without an OS name is left out when another volume of the same
// disk has boot code of its own.
func (c *Context) scanVolume(idx int) {
	v := c.Volumes[idx]
	if !v.HasBootCode {
		return
	}
	if v.IsWholeDisk() && v.OSName == "" {
		for j, other := range c.Volumes {
			if j != idx && other.HasBootCode && other.WholeDiskBlockIO == v.WholeDiskBlockIO {
				log.WithField("volume", v.Name()).Debug("hiding whole-disk volume")
				return
			}
		}
	}
	if v.VolName == "" {
		v.VolName = v.Name()
	}
	c.AddVolumeEntry("", v)
}

const (
	noLegacyMsg = "Legacy (BIOS) Support Enabled but Unavailable in EFI"
	csmAdvice   = "Your 'scanfor' config line specifies scanning for one or more legacy (BIOS) boot options; " +
		"however, this is not possible because your computer lacks the necessary Compatibility Support Module (CSM) " +
		"support or because CSM support has been disabled in your firmware."
)

// wantsLegacy reports whether scanFor asks for any legacy scan.
func wantsLegacy(scanFor string) bool {
	return strings.ContainsAny(scanFor, "hHcCbB")
}

// WarnIfProblems tells the user when legacy scans are configured but the
// firmware cannot boot legacy targets. It reports whether it warned.
func (c *Context) WarnIfProblems() bool {
	if c.Type != TypeNone || !wantsLegacy(c.Options.ScanFor) {
		return false
	}
	logLine(lineStarSep, "%s!!", noLegacyMsg)
	if !c.Options.DirectBoot {
		c.Console.Printf("\n")
		c.Console.Errorln("** WARN: Legacy (BIOS) Boot Issues")
		c.Console.Printf("\n%s\n\n", csmAdvice)
		c.Console.PauseForKey()
	}
	log.Warn(csmAdvice)
	return true
}

// Scan runs the legacy scans named in ScanFor, in that order, and returns
// the main menu.
func (c *Context) Scan() *menu.Screen {
	done := map[rune]bool{}
	for _, r := range strings.ToLower(c.Options.ScanFor) {
		if done[r] {
			continue
		}
		done[r] = true
		switch r {
		case 'h':
			c.ScanInternal()
		case 'b':
			c.ScanExternal()
		case 'c':
			c.ScanDisc()
		}
	}
	return c.Menu
}
