// Package legacy discovers BIOS boot targets on firmware without a native
// BIOS and launches them, either through Apple's memory-mapped legacy loader
// or through a compatibility support module's BBS boot options.
package legacy

import (
	"legacyboot/internal/firmware"
	"legacyboot/internal/image/partition"
	"legacyboot/internal/menu"
	"legacyboot/internal/volume"
)

// Options are the configuration values the legacy scans consult.
type Options struct {
	// ScanFor holds the scan letters; h, b and c request legacy internal,
	// external and optical scans.
	ScanFor         string
	DontScanVolumes []string
	HideEditor      bool
	DirectBoot      bool
	// BootStub replaces partition.DefaultBootStub when set.
	BootStub []byte
}

// Context is the state shared by the scan and launch entry points. It is
// not safe for concurrent use.
type Context struct {
	FW      firmware.Firmware
	Lib     firmware.Lib
	Console firmware.Console
	Options Options
	Volumes []*volume.Volume
	Menu    *menu.Screen
	Type    Type

	// SubMaxEntries bounds each entry's submenu; zero means
	// menu.DefaultMaxEntries.
	SubMaxEntries int

	firstScan bool
}

// New probes the firmware once and returns a context with an empty main
// menu.
func New(fw firmware.Firmware, lib firmware.Lib, con firmware.Console, opts Options, vols []*volume.Volume) *Context {
	return &Context{
		FW:      fw,
		Lib:     lib,
		Console: con,
		Options: opts,
		Volumes: vols,
		Menu:    menu.NewScreen("Main Menu"),
		Type:    DetectType(fw),
	}
}

func (c *Context) bootStub() []byte {
	if len(c.Options.BootStub) > 0 {
		return c.Options.BootStub
	}
	return partition.DefaultBootStub
}
