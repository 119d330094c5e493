// Package fwtest provides in-memory firmware doubles for package tests.
package fwtest

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"legacyboot/internal/firmware"
)

// Disk is a memory-backed BlockIO that records every sector access.
type Disk struct {
	Data   []byte
	ID     uint32
	Reads  []uint64
	Writes []uint64

	ReadErr  map[uint64]error
	WriteErr map[uint64]error
}

func NewDisk(data []byte) *Disk { return &Disk{Data: data, ID: 1} }

func (d *Disk) MediaID() uint32   { return d.ID }
func (d *Disk) BlockSize() uint32 { return 512 }

func (d *Disk) check(lba uint64, buf []byte) error {
	if len(buf)%512 != 0 {
		return firmware.BadBufferSize
	}
	if (lba+uint64(len(buf)/512))*512 > uint64(len(d.Data)) {
		return firmware.InvalidParameter
	}
	return nil
}

func (d *Disk) ReadBlocks(mediaID uint32, lba uint64, buf []byte) error {
	if mediaID != d.ID {
		return firmware.NotReady
	}
	if err := d.ReadErr[lba]; err != nil {
		return err
	}
	if err := d.check(lba, buf); err != nil {
		return err
	}
	d.Reads = append(d.Reads, lba)
	copy(buf, d.Data[lba*512:])
	return nil
}

func (d *Disk) WriteBlocks(mediaID uint32, lba uint64, buf []byte) error {
	if mediaID != d.ID {
		return firmware.NotReady
	}
	if err := d.WriteErr[lba]; err != nil {
		return err
	}
	if err := d.check(lba, buf); err != nil {
		return err
	}
	d.Writes = append(d.Writes, lba)
	copy(d.Data[lba*512:], buf)
	return nil
}

// Sector returns a copy of one sector.
func (d *Disk) Sector(lba uint64) []byte {
	return append([]byte(nil), d.Data[lba*512:(lba+1)*512]...)
}

type variable struct {
	attrs firmware.VariableAttributes
	data  []byte
}

// Firmware is a scripted platform. Zero values mean "nothing installed".
type Firmware struct {
	VendorString string
	Installed    map[uuid.UUID]bool

	HandleDB         map[uuid.UUID][]firmware.Handle
	LocateHandlesErr error
	Images           map[firmware.Handle]*firmware.LoadedImage
	DevicePaths      map[firmware.Handle]firmware.DevicePath

	// LoadResults keys are hex device paths; missing paths load as NotFound.
	LoadResults    map[string]error
	LoadedImageErr error
	StartErr       error
	UnloadErr      error
	LegacyBootErr  error

	Trace []string

	vars       map[string]variable
	nextHandle firmware.Handle
}

func New() *Firmware {
	return &Firmware{
		Installed:   map[uuid.UUID]bool{},
		HandleDB:    map[uuid.UUID][]firmware.Handle{},
		Images:      map[firmware.Handle]*firmware.LoadedImage{},
		DevicePaths: map[firmware.Handle]firmware.DevicePath{},
		LoadResults: map[string]error{},
		vars:        map[string]variable{},
		nextHandle:  0x1000,
	}
}

func (f *Firmware) trace(format string, a ...any) {
	f.Trace = append(f.Trace, fmt.Sprintf(format, a...))
}

func (f *Firmware) handle() firmware.Handle {
	f.nextHandle++
	return f.nextHandle
}

func (f *Firmware) Vendor() string { return f.VendorString }

// AddLoadedImage registers an image whose device carries path.
func (f *Firmware) AddLoadedImage(path firmware.DevicePath) firmware.Handle {
	img, dev := f.handle(), f.handle()
	f.Images[img] = &firmware.LoadedImage{DeviceHandle: dev}
	f.DevicePaths[dev] = path
	f.HandleDB[firmware.LoadedImageProtocol] = append(f.HandleDB[firmware.LoadedImageProtocol], img)
	return img
}

// AddLoadable makes path loadable with the given result (nil for success).
func (f *Firmware) AddLoadable(path firmware.DevicePath, err error) {
	f.LoadResults[hex.EncodeToString(path)] = err
}

func (f *Firmware) LocateHandles(protocol uuid.UUID) ([]firmware.Handle, error) {
	if f.LocateHandlesErr != nil {
		return nil, f.LocateHandlesErr
	}
	hs := f.HandleDB[protocol]
	if len(hs) == 0 {
		return nil, firmware.NotFound
	}
	return append([]firmware.Handle(nil), hs...), nil
}

func (f *Firmware) LocateProtocol(protocol uuid.UUID) error {
	if f.Installed[protocol] {
		return nil
	}
	return firmware.NotFound
}

func (f *Firmware) LoadedImage(h firmware.Handle) (*firmware.LoadedImage, error) {
	if f.LoadedImageErr != nil {
		return nil, f.LoadedImageErr
	}
	img, ok := f.Images[h]
	if !ok {
		return nil, firmware.Unsupported
	}
	return img, nil
}

func (f *Firmware) DevicePath(h firmware.Handle) (firmware.DevicePath, error) {
	p, ok := f.DevicePaths[h]
	if !ok {
		return nil, firmware.Unsupported
	}
	return p, nil
}

func (f *Firmware) LoadImage(path firmware.DevicePath) (firmware.Handle, error) {
	key := hex.EncodeToString(path)
	f.trace("LoadImage %s", key)
	err, ok := f.LoadResults[key]
	if !ok {
		return 0, firmware.NotFound
	}
	if err != nil {
		return 0, err
	}
	h := f.handle()
	f.Images[h] = &firmware.LoadedImage{FilePath: path.Clone()}
	return h, nil
}

func (f *Firmware) StartImage(h firmware.Handle) error {
	f.trace("StartImage")
	return f.StartErr
}

func (f *Firmware) UnloadImage(h firmware.Handle) error {
	f.trace("UnloadImage")
	return f.UnloadErr
}

func (f *Firmware) ConnectDevicePath(path firmware.DevicePath) error {
	f.trace("ConnectDevicePath")
	return nil
}

func (f *Firmware) LegacyBoot(opt *firmware.BootOption) error {
	f.trace("LegacyBoot %s", opt.VariableName())
	if f.LegacyBootErr != nil {
		return f.LegacyBootErr
	}
	return firmware.NotFound
}

func varKey(name string, guid uuid.UUID) string {
	return strings.ToUpper(guid.String()) + "-" + name
}

func (f *Firmware) GetVariable(name string, guid uuid.UUID) ([]byte, firmware.VariableAttributes, error) {
	v, ok := f.vars[varKey(name, guid)]
	if !ok {
		return nil, 0, firmware.NotFound
	}
	return append([]byte(nil), v.data...), v.attrs, nil
}

func (f *Firmware) SetVariable(name string, guid uuid.UUID, attrs firmware.VariableAttributes, data []byte) error {
	f.trace("SetVariable %s", name)
	if len(data) == 0 {
		delete(f.vars, varKey(name, guid))
		return nil
	}
	f.vars[varKey(name, guid)] = variable{attrs: attrs, data: append([]byte(nil), data...)}
	return nil
}

// SetRawVariable stores data without tracing.
func (f *Firmware) SetRawVariable(name string, guid uuid.UUID, data []byte) {
	f.vars[varKey(name, guid)] = variable{attrs: firmware.NonVolatile | firmware.BootserviceAccess, data: data}
}

// AddBootOption stores o as Boot#### and appends it to BootOrder.
func (f *Firmware) AddBootOption(o *firmware.BootOption) error {
	data, err := firmware.EncodeBootOption(o)
	if err != nil {
		return err
	}
	f.SetRawVariable(o.VariableName(), firmware.GlobalVariable, data)
	order, err := firmware.ReadBootOrder(f)
	if err != nil {
		return err
	}
	order = append(order, o.Number)
	b := make([]byte, 0, len(order)*2)
	for _, n := range order {
		b = append(b, byte(n), byte(n>>8))
	}
	f.SetRawVariable("BootOrder", firmware.GlobalVariable, b)
	return nil
}

// Lib records handle release and reacquisition into the firmware trace.
type Lib struct {
	FW        *Firmware
	ReinitErr error
}

func (l *Lib) Uninit() error {
	l.FW.trace("Uninit")
	return nil
}

func (l *Lib) Reinit() error {
	l.FW.trace("Reinit")
	return l.ReinitErr
}

// Console captures output.
type Console struct {
	Lines  []string
	Errors []string
	Pauses int
	Titles []string
}

func (c *Console) Printf(format string, a ...any) {
	c.Lines = append(c.Lines, fmt.Sprintf(format, a...))
}

func (c *Console) Errorln(msg string) { c.Errors = append(c.Errors, msg) }

func (c *Console) PauseForKey() { c.Pauses++ }

func (c *Console) BeginExternalScreen(title string) { c.Titles = append(c.Titles, title) }

func (c *Console) FinishExternalScreen() {}
