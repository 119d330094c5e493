package host

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"legacyboot/internal/firmware"
	"legacyboot/internal/volume"
)

// Profile describes the machine to emulate.
type Profile struct {
	Vendor      string           `mapstructure:"vendor"`
	LegacyBIOS  bool             `mapstructure:"legacy_bios"`
	AppleLoader bool             `mapstructure:"apple_loader"`
	Disks       []DiskSpec       `mapstructure:"disks"`
	Images      []ImageSpec      `mapstructure:"images"`
	BootOptions []BootOptionSpec `mapstructure:"boot_options"`

	dir string
}

type DiskSpec struct {
	Path     string       `mapstructure:"path"`
	Kind     string       `mapstructure:"kind"`
	ReadOnly bool         `mapstructure:"read_only"`
	Volumes  []VolumeSpec `mapstructure:"volumes"`
}

// VolumeSpec overrides what discovery finds on one volume. Partition is
// an activation index or "whole".
type VolumeSpec struct {
	Partition string `mapstructure:"partition"`
	Name      string `mapstructure:"name"`
	OSName    string `mapstructure:"os_name"`
	OSIcon    string `mapstructure:"os_icon"`
}

// ImageSpec registers an image. With Loaded set the image is already in
// memory and is found through its device's path; otherwise it becomes
// loadable from Path. Load and Start name the status the firmware returns.
type ImageSpec struct {
	Path   string `mapstructure:"path"`
	Loaded bool   `mapstructure:"loaded"`
	Load   string `mapstructure:"load"`
	Start  string `mapstructure:"start"`
}

// BootOptionSpec becomes a BBS Boot#### variable. Disk, when set, is the
// index into Disks of the medium the option boots.
type BootOptionSpec struct {
	Number      uint16 `mapstructure:"number"`
	Description string `mapstructure:"description"`
	Type        string `mapstructure:"type"`
	Status      uint16 `mapstructure:"status"`
	Disk        *int   `mapstructure:"disk"`
}

// LoadProfile reads a YAML machine profile. Relative disk paths are
// resolved against the profile's directory.
func LoadProfile(path string) (*Profile, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("vendor", "EDK II")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading machine profile: %w", err)
	}
	p := &Profile{dir: filepath.Dir(path)}
	if err := v.Unmarshal(p); err != nil {
		return nil, fmt.Errorf("error unmarshaling machine profile: %w", err)
	}
	return p, p.validate()
}

func (p *Profile) validate() error {
	for i, d := range p.Disks {
		if d.Path == "" {
			return fmt.Errorf("disk %d: missing path", i)
		}
		if _, err := volume.ParseDiskKind(d.Kind); err != nil {
			return fmt.Errorf("disk %d: %w", i, err)
		}
		for _, vs := range d.Volumes {
			if _, err := vs.index(); err != nil {
				return fmt.Errorf("disk %d: %w", i, err)
			}
		}
	}
	for i, img := range p.Images {
		if _, err := firmware.ParseDevicePath(img.Path); err != nil {
			return fmt.Errorf("image %d: %w", i, err)
		}
		if _, err := firmware.ParseStatus(img.Load); err != nil {
			return fmt.Errorf("image %d: %w", i, err)
		}
		if _, err := firmware.ParseStatus(img.Start); err != nil {
			return fmt.Errorf("image %d: %w", i, err)
		}
	}
	for _, o := range p.BootOptions {
		if _, err := firmware.ParseBBSType(o.Type); err != nil {
			return fmt.Errorf("%s: %w", firmware.BootOptionName(o.Number), err)
		}
		if o.Disk != nil && (*o.Disk < 0 || *o.Disk >= len(p.Disks)) {
			return fmt.Errorf("%s: no disk %d", firmware.BootOptionName(o.Number), *o.Disk)
		}
	}
	return nil
}

// DiskPath resolves the image path of disk i.
func (p *Profile) DiskPath(i int) string {
	path := p.Disks[i].Path
	if filepath.IsAbs(path) || p.dir == "" {
		return path
	}
	return filepath.Join(p.dir, path)
}

// wholeDiskIndex marks the whole-disk volume in a VolumeSpec.
const wholeDiskIndex = -1

func (vs VolumeSpec) index() (int, error) {
	if strings.EqualFold(vs.Partition, "whole") {
		return wholeDiskIndex, nil
	}
	i, err := strconv.Atoi(vs.Partition)
	if err != nil || i < 0 {
		return 0, fmt.Errorf("volume partition %q is neither an index nor \"whole\"", vs.Partition)
	}
	return i, nil
}
