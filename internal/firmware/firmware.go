// Package firmware describes the platform services the legacy boot code
// consumes: block I/O, protocol and handle lookup, image lifecycle, the
// variable store and the text console.
package firmware

import "github.com/google/uuid"

// Handle identifies a firmware object (image, device, protocol instance).
type Handle uint64

var (
	LoadedImageProtocol = uuid.MustParse("5B1B31A1-9562-11D2-8E3F-00A0C969723B")
	DevicePathProtocol  = uuid.MustParse("09576E91-6D3F-11D2-8E39-00A0C969723B")
	BlockIOProtocol     = uuid.MustParse("964E5B21-6459-11D2-8E39-00A0C969723B")
	LegacyBiosProtocol  = uuid.MustParse("DB9A1E3D-45CB-4ABB-853B-E5387FDB2E2D")

	GlobalVariable      = uuid.MustParse("8BE4DF61-93CA-11D2-AA0D-00E098032B8C")
	AppleVendorVariable = uuid.MustParse("7C436110-AB2A-4BBB-A880-FE41995C9F82")
	LoaderVendor        = uuid.MustParse("36D08FA7-CF0B-42F5-8F14-68DF73ED3740")
)

// LoadedImage is the loaded-image protocol instance of an image handle.
// Fields written by the caller are visible to the image when it starts.
type LoadedImage struct {
	DeviceHandle Handle
	FilePath     DevicePath
	LoadOptions  []byte
}

// BlockIO gives raw sector access to one medium.
type BlockIO interface {
	// MediaID identifies the currently inserted medium
	MediaID() uint32

	// BlockSize returns the size of one logical block in bytes
	BlockSize() uint32

	// ReadBlocks fills buf starting at lba; len(buf) must be a multiple of BlockSize
	ReadBlocks(mediaID uint32, lba uint64, buf []byte) error

	// WriteBlocks writes buf starting at lba; len(buf) must be a multiple of BlockSize
	WriteBlocks(mediaID uint32, lba uint64, buf []byte) error
}

// BootServices is the subset of boot services used to find and run loaders.
type BootServices interface {
	// LocateHandles returns every handle that supports the protocol
	LocateHandles(protocol uuid.UUID) ([]Handle, error)

	// LocateProtocol reports whether any instance of the protocol is installed
	LocateProtocol(protocol uuid.UUID) error

	// LoadedImage returns the loaded-image protocol of an image handle
	LoadedImage(h Handle) (*LoadedImage, error)

	// DevicePath returns the device path installed on a device handle
	DevicePath(h Handle) (DevicePath, error)

	// LoadImage loads the image named by path and returns its handle
	LoadImage(path DevicePath) (Handle, error)

	// StartImage transfers control to a loaded image and returns once it exits
	StartImage(h Handle) error

	// UnloadImage releases a loaded image
	UnloadImage(h Handle) error

	// ConnectDevicePath connects the drivers needed to reach path
	ConnectDevicePath(path DevicePath) error

	// LegacyBoot boots a BBS boot option through the compatibility module;
	// it returns only on failure
	LegacyBoot(opt *BootOption) error
}

// Variables is the NVRAM variable store.
type Variables interface {
	// GetVariable returns the value and attributes of a variable
	GetVariable(name string, guid uuid.UUID) ([]byte, VariableAttributes, error)

	// SetVariable creates, replaces or (with empty data) deletes a variable
	SetVariable(name string, guid uuid.UUID, attrs VariableAttributes, data []byte) error
}

// Firmware bundles the services of one running platform.
type Firmware interface {
	BootServices
	Variables

	// Vendor returns the firmware vendor string from the system table
	Vendor() string
}

// Lib owns the boot manager's own open file handles. They are closed
// before control passes to a loaded image and reopened when it returns.
type Lib interface {
	Uninit() error
	Reinit() error
}

// Console is the text console used for launch banners and warnings.
type Console interface {
	// Printf writes normal text
	Printf(format string, a ...any)

	// Errorln writes one line in the error attribute
	Errorln(msg string)

	// PauseForKey waits for a key press
	PauseForKey()

	// BeginExternalScreen switches to text mode for an external program
	BeginExternalScreen(title string)

	// FinishExternalScreen restores the menu screen
	FinishExternalScreen()
}
