// Package host emulates a machine's firmware over disk image files, so the
// legacy boot code can scan and launch against real MBR disks.
package host

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/apex/log"
	"github.com/google/uuid"

	"legacyboot/internal/firmware"
	"legacyboot/internal/image/partition"
	"legacyboot/internal/legacy"
	"legacyboot/internal/volume"
)

// ErrHalted is returned by LegacyBoot after a successful handoff when no
// Handoff hook stopped the process.
var ErrHalted = errors.New("machine halted after handing off to the BIOS")

type image struct {
	path   firmware.DevicePath
	loaded *firmware.LoadedImage
	start  error
	apple  bool
}

type loadable struct {
	load  error
	start error
	apple bool
}

// Machine is the emulated firmware. It implements firmware.Firmware and
// firmware.Lib.
type Machine struct {
	VendorString string
	NVRAM        *NVRAM
	Disks        []*Disk

	// Handoff is called when control would pass to boot code that never
	// returns. When it returns, the emulation carries on.
	Handoff func(target string)

	mu          sync.Mutex
	protocols   map[uuid.UUID]bool
	handles     map[uuid.UUID][]firmware.Handle
	images      map[firmware.Handle]*image
	devicePaths map[firmware.Handle]firmware.DevicePath
	loadables   map[string]loadable
	bootDisks   map[uint16]*Disk
	next        firmware.Handle
}

// NewMachine builds an empty machine on top of nv.
func NewMachine(vendor string, nv *NVRAM) *Machine {
	if nv == nil {
		nv = NewNVRAM()
	}
	return &Machine{
		VendorString: vendor,
		NVRAM:        nv,
		protocols:    map[uuid.UUID]bool{},
		handles:      map[uuid.UUID][]firmware.Handle{},
		images:       map[firmware.Handle]*image{},
		devicePaths:  map[firmware.Handle]firmware.DevicePath{},
		loadables:    map[string]loadable{},
		bootDisks:    map[uint16]*Disk{},
		next:         0x100,
	}
}

// Boot builds the machine a profile describes and opens its disks. Profiles
// not read by LoadProfile are validated first.
func Boot(p *Profile, nv *NVRAM, cacheSectors int) (*Machine, error) {
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("invalid machine profile: %w", err)
	}
	m := NewMachine(p.Vendor, nv)
	if p.LegacyBIOS {
		m.InstallProtocol(firmware.LegacyBiosProtocol)
	}
	for i, spec := range p.Disks {
		kind, _ := volume.ParseDiskKind(spec.Kind)
		d, err := OpenDisk(p.DiskPath(i), kind, spec.ReadOnly, cacheSectors)
		if err != nil {
			m.Shutdown()
			return nil, err
		}
		d.overrides = spec.Volumes
		m.AddDisk(d)
	}
	if p.AppleLoader {
		fv := legacy.LegacyLoaderList[0][:legacy.LegacyLoaderList[0].NodeLength()]
		m.AddAppleLoader(firmware.NewDevicePath(fv))
	}
	// The parse errors below were ruled out by validate.
	for _, spec := range p.Images {
		path, _ := firmware.ParseDevicePath(spec.Path)
		load, _ := firmware.ParseStatus(spec.Load)
		start, _ := firmware.ParseStatus(spec.Start)
		if spec.Loaded {
			m.AddLoadedImage(path)
			continue
		}
		m.AddLoadable(path, statusErr(load), statusErr(start))
	}
	for _, spec := range p.BootOptions {
		t, _ := firmware.ParseBBSType(spec.Type)
		var disk *Disk
		if spec.Disk != nil {
			disk = m.Disks[*spec.Disk]
		}
		if err := m.AddBootOption(spec.Number, t, spec.Status, spec.Description, disk); err != nil {
			m.Shutdown()
			return nil, err
		}
	}
	return m, nil
}

func statusErr(s firmware.Status) error {
	if s == firmware.Success {
		return nil
	}
	return s
}

func (m *Machine) handle() firmware.Handle {
	m.next++
	return m.next
}

func (m *Machine) InstallProtocol(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.protocols[id] = true
}

// AddDisk attaches d and gives it a controller device path.
func (m *Machine) AddDisk(d *Disk) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.DevicePath = firmware.NewDevicePath(firmware.ControllerNode(uint32(len(m.Disks))))
	m.Disks = append(m.Disks, d)
	h := m.handle()
	m.devicePaths[h] = d.DevicePath
	m.handles[firmware.BlockIOProtocol] = append(m.handles[firmware.BlockIOProtocol], h)
}

// AddLoadedImage registers a resident image whose device carries path.
func (m *Machine) AddLoadedImage(path firmware.DevicePath) firmware.Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addLoadedImageLocked(path)
}

func (m *Machine) addLoadedImageLocked(path firmware.DevicePath) firmware.Handle {
	img, dev := m.handle(), m.handle()
	m.images[img] = &image{path: path, loaded: &firmware.LoadedImage{DeviceHandle: dev}}
	m.devicePaths[dev] = path
	m.handles[firmware.LoadedImageProtocol] = append(m.handles[firmware.LoadedImageProtocol], img)
	return img
}

// AddLoadable makes path loadable. load is what LoadImage returns, start
// what StartImage returns.
func (m *Machine) AddLoadable(path firmware.DevicePath, load, start error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadables[hex.EncodeToString(path)] = loadable{load: load, start: start}
}

// AddAppleLoader installs a firmware volume at fv holding the Apple legacy
// loader. Starting the loader boots the disk named by the BootCampHD hint.
func (m *Machine) AddAppleLoader(fv firmware.DevicePath) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addLoadedImageLocked(fv)
	m.loadables[hex.EncodeToString(fv.Append(legacy.LegacyLoaderMediaPath))] = loadable{apple: true}
}

// AddBootOption stores a BBS boot option and appends it to BootOrder. The
// options are volatile; the profile recreates them on every run.
func (m *Machine) AddBootOption(num uint16, t firmware.BBSType, status uint16, desc string, disk *Disk) error {
	opt := &firmware.BootOption{
		Number:      num,
		Attributes:  1,
		Description: desc,
		DevicePath:  firmware.NewDevicePath(firmware.BBSDevicePathNode(t, status, desc)),
	}
	data, err := firmware.EncodeBootOption(opt)
	if err != nil {
		return err
	}
	const attrs = firmware.BootserviceAccess | firmware.RuntimeAccess
	if err := m.NVRAM.SetVariable(opt.VariableName(), firmware.GlobalVariable, attrs, data); err != nil {
		return err
	}
	order, err := firmware.ReadBootOrder(m.NVRAM)
	if err != nil {
		return err
	}
	b := make([]byte, 0, (len(order)+1)*2)
	for _, n := range append(order, num) {
		b = append(b, byte(n), byte(n>>8))
	}
	if err := m.NVRAM.SetVariable("BootOrder", firmware.GlobalVariable, attrs, b); err != nil {
		return err
	}
	if disk != nil {
		m.mu.Lock()
		m.bootDisks[num] = disk
		m.mu.Unlock()
	}
	return nil
}

func (m *Machine) Vendor() string { return m.VendorString }

func (m *Machine) LocateHandles(protocol uuid.UUID) ([]firmware.Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hs := m.handles[protocol]
	if len(hs) == 0 {
		return nil, firmware.NotFound
	}
	return append([]firmware.Handle(nil), hs...), nil
}

func (m *Machine) LocateProtocol(protocol uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.protocols[protocol] {
		return nil
	}
	return firmware.NotFound
}

func (m *Machine) LoadedImage(h firmware.Handle) (*firmware.LoadedImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	img, ok := m.images[h]
	if !ok {
		return nil, firmware.Unsupported
	}
	return img.loaded, nil
}

func (m *Machine) DevicePath(h firmware.Handle) (firmware.DevicePath, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.devicePaths[h]
	if !ok {
		return nil, firmware.Unsupported
	}
	return p.Clone(), nil
}

func (m *Machine) LoadImage(path firmware.DevicePath) (firmware.Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.loadables[hex.EncodeToString(path)]
	if !ok {
		return 0, firmware.NotFound
	}
	if l.load != nil {
		return 0, l.load
	}
	h := m.handle()
	m.images[h] = &image{
		path:   path.Clone(),
		loaded: &firmware.LoadedImage{FilePath: path.Clone()},
		start:  l.start,
		apple:  l.apple,
	}
	log.WithField("path", path.String()).Debug("image loaded")
	return h, nil
}

func (m *Machine) StartImage(h firmware.Handle) error {
	m.mu.Lock()
	img, ok := m.images[h]
	m.mu.Unlock()
	if !ok {
		return firmware.InvalidParameter
	}
	if img.start != nil {
		return img.start
	}
	if !img.apple {
		m.handoff(img.path.String())
		return nil
	}
	d, err := m.hintedDisk()
	if err != nil {
		return err
	}
	if err := checkBootable(d); err != nil {
		log.WithError(err).WithField("disk", d.Path).Warn("legacy loader found nothing to boot")
		return firmware.LoadError
	}
	m.handoff(d.Path)
	return nil
}

// hintedDisk resolves the BootCampHD hint to a disk. Without a hint the
// first internal disk is used.
func (m *Machine) hintedDisk() (*Disk, error) {
	hint, _, err := m.NVRAM.GetVariable("BootCampHD", firmware.AppleVendorVariable)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		for _, d := range m.Disks {
			if firmware.DevicePath(hint).Equal(d.DevicePath) {
				return d, nil
			}
		}
		return nil, firmware.NotFound
	}
	for _, d := range m.Disks {
		if d.Kind == volume.Internal {
			return d, nil
		}
	}
	return nil, firmware.NotFound
}

func (m *Machine) UnloadImage(h firmware.Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.images[h]; !ok {
		return firmware.InvalidParameter
	}
	delete(m.images, h)
	return nil
}

func (m *Machine) ConnectDevicePath(path firmware.DevicePath) error {
	log.WithField("path", path.String()).Debug("connecting controllers")
	return nil
}

// LegacyBoot checks the medium mapped to opt. A medium with an active
// partition and boot code is handed off; anything else fails the way a
// BIOS reports a non-bootable disk.
func (m *Machine) LegacyBoot(opt *firmware.BootOption) error {
	m.mu.Lock()
	d := m.bootDisks[opt.Number]
	m.mu.Unlock()
	target := opt.Description
	if d != nil {
		if err := checkBootable(d); err != nil {
			log.WithError(err).WithField("option", opt.VariableName()).Warn("non-system disk")
			return firmware.LoadError
		}
		target = d.Path
	}
	m.handoff(target)
	return ErrHalted
}

func (m *Machine) handoff(target string) {
	log.WithField("target", target).Info("handing off to boot code")
	if m.Handoff != nil {
		m.Handoff(target)
	}
}

func (m *Machine) GetVariable(name string, guid uuid.UUID) ([]byte, firmware.VariableAttributes, error) {
	return m.NVRAM.GetVariable(name, guid)
}

func (m *Machine) SetVariable(name string, guid uuid.UUID, attrs firmware.VariableAttributes, data []byte) error {
	return m.NVRAM.SetVariable(name, guid, attrs, data)
}

// Uninit closes the disk image files before control leaves the boot
// manager.
func (m *Machine) Uninit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for _, d := range m.Disks {
		errs = append(errs, d.Close())
	}
	return errors.Join(errs...)
}

// Reinit reopens the disk image files.
func (m *Machine) Reinit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for _, d := range m.Disks {
		errs = append(errs, d.Reopen())
	}
	return errors.Join(errs...)
}

// Shutdown releases every disk.
func (m *Machine) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for _, d := range m.Disks {
		errs = append(errs, d.Release())
	}
	return errors.Join(errs...)
}

// checkBootable reads the MBR of d the way a BIOS would before jumping to
// it. Disks are read through their file directly since the boot manager
// has closed its own handles by now.
func checkBootable(d *Disk) error {
	if err := d.Reopen(); err != nil {
		return err
	}
	var sec partition.Sector
	if err := d.ReadBlocks(d.MediaID(), 0, sec[:]); err != nil {
		return fmt.Errorf("read MBR: %w", err)
	}
	if !sec.Valid() {
		return partition.ErrNotBootSector
	}
	if !sec.HasBootCode() {
		return fmt.Errorf("%w: no boot code", partition.ErrNotBootSector)
	}
	for i := 0; i < 4; i++ {
		if sec.Descriptor(i).Flag == partition.FlagActive {
			return nil
		}
	}
	return errors.New("no active partition")
}

func (m *Machine) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var b strings.Builder
	fmt.Fprintf(&b, "%q, %d disk(s)", m.VendorString, len(m.Disks))
	if m.protocols[firmware.LegacyBiosProtocol] {
		b.WriteString(", CSM")
	}
	return b.String()
}
