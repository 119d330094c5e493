package legacy

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf16"

	"github.com/apex/log"

	"legacyboot/internal/firmware"
	"legacyboot/internal/image/partition"
	"legacyboot/internal/menu"
	"legacyboot/internal/volume"
)

// FailedStep tells which stage of a Mac-style launch failed.
type FailedStep int

const (
	StepNone FailedStep = iota
	StepLoad
	StepProtocol
	StepTransfer
)

func (s FailedStep) String() string {
	switch s {
	case StepLoad:
		return "load"
	case StepProtocol:
		return "protocol"
	case StepTransfer:
		return "transfer"
	default:
		return "none"
	}
}

// LaunchError reports a failed Mac-style launch.
type LaunchError struct {
	Step FailedStep
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("legacy loader failed at %s step: %v", e.Step, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// ErrLegacyBootReturned means the compatibility module handed control back.
var ErrLegacyBootReturned = errors.New("legacy boot returned to the boot manager")

const (
	bootCampHDVar  = "BootCampHD"
	loaderNameVar  = "PreviousBoot"
	persistentAttr = firmware.NonVolatile | firmware.BootserviceAccess | firmware.RuntimeAccess
)

// ucs2 encodes s as NUL-terminated UCS-2. Empty strings encode to nil.
func ucs2(s string) []byte {
	if s == "" {
		return nil
	}
	units := utf16.Encode([]rune(s))
	b := make([]byte, (len(units)+1)*2)
	for i, u := range units {
		binary.LittleEndian.PutUint16(b[i*2:], u)
	}
	return b
}

func (c *Context) checkError(err error, where string) {
	st := firmware.StatusOf(err)
	log.WithError(err).Error(where)
	c.Console.Errorln(fmt.Sprintf("Error: '%s' %s", st, where))
}

// StartImageList loads the first loadable path, hands it loadOptions and
// starts it. A path that is not found moves on to the next one; any other
// load failure stops the search.
func (c *Context) StartImageList(paths []firmware.DevicePath, loadOptions string) (FailedStep, error) {
	shown := loadOptions
	if shown == "" {
		shown = "NULL"
	}
	c.Console.Printf("Starting 'Mac-Style' Legacy (BIOS) Loader\nUsing Load Options:- '%s'\n\n", shown)

	var (
		child firmware.Handle
		err   error = firmware.LoadError
	)
	for _, p := range paths {
		child, err = c.FW.LoadImage(p)
		if !errors.Is(err, firmware.NotFound) {
			break
		}
	}
	if err != nil {
		c.checkError(err, "While Loading 'Mac-Style' Legacy (BIOS) Loader")
		return StepLoad, err
	}
	defer func() {
		if err := c.FW.UnloadImage(child); err != nil {
			log.WithError(err).Debug("unload legacy loader")
		}
	}()

	img, err := c.FW.LoadedImage(child)
	if err != nil {
		c.checkError(err, "While Fetching LoadedImageProtocol Handle!!")
		return StepProtocol, err
	}
	img.LoadOptions = ucs2(loadOptions)

	logLine(lineNormal, "Launching 'Mac-Style' Legacy (BIOS) Loader")
	if err := c.Lib.Uninit(); err != nil {
		log.WithError(err).Warn("close boot manager files")
	}
	err = c.FW.StartImage(child)
	if rerr := c.Lib.Reinit(); rerr != nil {
		log.WithError(rerr).Warn("reopen boot manager files")
	}
	if err != nil {
		c.checkError(err, "Unexpected Return from Loader")
		return StepTransfer, err
	}
	return StepNone, nil
}

// StartMac boots a volume through the Apple legacy loader.
func (c *Context) StartMac(e *VolumeEntry, name string) error {
	logLine(lineNormal, "Starting 'Mac-style' Legacy (BIOS) OS:- '%s'", name)
	c.Console.BeginExternalScreen("Booting 'Mac-style' Legacy (BIOS) OS")
	defer c.Console.FinishExternalScreen()

	vol := e.Volume
	if vol.IsMbrPartition {
		c.activate(vol)
	}
	if vol.DiskKind != volume.Optical && vol.WholeDiskDevicePath != nil {
		if err := c.WriteBootDiskHint(vol.WholeDiskDevicePath); err != nil {
			log.WithError(err).Warn("cannot store boot disk hint")
		}
	}

	paths := ExtractLoaderPaths(c.FW, MaxDiscoveredPaths, LegacyLoaderList)
	c.StoreLoaderName(name)

	step, err := c.StartImageList(paths, e.LoadOptions)
	switch step {
	case StepLoad:
		c.warn("Please make sure you have the latest firmware update installed")
		c.Console.PauseForKey()
	case StepTransfer:
		c.warn("The firmware refused to boot from the selected volume")
		c.warn("NB: External drives are not well-supported by Apple firmware for legacy booting")
		c.Console.PauseForKey()
	}
	if err != nil {
		return &LaunchError{Step: step, Err: err}
	}
	return nil
}

func (c *Context) activate(vol *volume.Volume) {
	if vol.WholeDiskBlockIO == nil {
		log.Warn("MBR partition without a whole-disk device; not activating")
		return
	}
	if err := partition.ActivateWithStub(vol.WholeDiskBlockIO, vol.MbrPartitionIndex, c.bootStub()); err != nil {
		log.WithError(err).WithField("index", vol.MbrPartitionIndex).Warn("cannot activate partition")
		return
	}
	log.WithField("index", vol.MbrPartitionIndex).Debug("partition activated")
}

func (c *Context) warn(msg string) {
	c.Console.Errorln(msg)
	log.Warnf("** WARN: %s", msg)
}

const uefiStyleOS = "'UEFI-Style' Legacy (BIOS) OS"

// StartUEFI boots a BBS boot option through the compatibility module.
// Getting control back is always a failure.
func (c *Context) StartUEFI(e *OptionEntry, name string) error {
	booting := "Booting " + uefiStyleOS
	failure := "Failure " + booting

	logLine(lineNormal, "Launching %s:- '%s'", uefiStyleOS, name)
	c.Console.BeginExternalScreen(booting)
	defer c.Console.FinishExternalScreen()

	c.StoreLoaderName(name)
	if err := c.Lib.Uninit(); err != nil {
		log.WithError(err).Warn("close boot manager files")
	}
	if err := c.FW.ConnectDevicePath(e.Option.DevicePath); err != nil {
		log.WithError(err).Debug("connect legacy boot device")
	}
	err := c.FW.LegacyBoot(e.Option)
	if rerr := c.Lib.Reinit(); rerr != nil {
		log.WithError(rerr).Warn("reopen boot manager files")
	}

	logLine(lineNormal, "%s", failure)
	c.Console.Printf("%s\n", failure)
	c.Console.PauseForKey()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLegacyBootReturned, err)
	}
	return ErrLegacyBootReturned
}

// WriteBootDiskHint records the whole-disk path of the disk being booted
// for the Apple legacy loader.
func (c *Context) WriteBootDiskHint(wholeDisk firmware.DevicePath) error {
	size := wholeDisk.Size()
	if err := c.FW.SetVariable(bootCampHDVar, firmware.AppleVendorVariable, persistentAttr, wholeDisk[:size]); err != nil {
		return fmt.Errorf("cannot write %s: %w", bootCampHDVar, err)
	}
	return nil
}

// StoreLoaderName remembers the selection so the next boot can preselect
// it. Failures are logged only.
func (c *Context) StoreLoaderName(name string) {
	if name == "" {
		return
	}
	if err := c.FW.SetVariable(loaderNameVar, firmware.LoaderVendor, persistentAttr, ucs2(name)); err != nil {
		log.WithError(err).Debug("cannot store loader name")
	}
}

// Boot launches a legacy menu entry with the mechanism it was built for.
func (c *Context) Boot(e menu.Entry) error {
	switch e := e.(type) {
	case *VolumeEntry:
		return c.StartMac(e, e.Title)
	case *OptionEntry:
		return c.StartUEFI(e, e.Title)
	default:
		return fmt.Errorf("entry %T is not a legacy entry", e)
	}
}
