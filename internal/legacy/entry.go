package legacy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/apex/log"

	"legacyboot/internal/firmware"
	"legacyboot/internal/menu"
	"legacyboot/internal/volume"
)

var (
	// ErrEntryOmitted is the family of reasons an entry is not built.
	ErrEntryOmitted  = errors.New("legacy entry omitted")
	ErrExcluded      = fmt.Errorf("%w: excluded by dont_scan_volumes", ErrEntryOmitted)
	ErrSupportVolume = fmt.Errorf("%w: Windows support volume", ErrEntryOmitted)
)

// VolumeEntry boots a volume through the Apple legacy loader.
type VolumeEntry struct {
	menu.Base
	Volume      *volume.Volume
	LoadOptions string
	Enabled     bool
}

// OptionEntry boots a BBS boot option through the compatibility module.
type OptionEntry struct {
	menu.Base
	Option      *firmware.BootOption
	LoadOptions string
	Enabled     bool
}

const (
	defaultTitle   = "Legacy (BIOS) OS"
	maxDescription = 100
)

var supportVolumeNames = []string{
	"System Reserved",
	"Basic Data Partition",
	"Microsoft Reserved Partition",
}

// AddVolumeEntry adds a Mac-style entry for vol to the main menu. Entries
// that cannot be built are dropped.
func (c *Context) AddVolumeEntry(title string, vol *volume.Volume) {
	e, err := c.buildVolumeEntry(title, vol)
	if err != nil {
		log.WithError(err).Debug("skipping legacy volume")
		return
	}
	if err := c.Menu.AddEntry(e); err != nil {
		log.WithError(err).Warn("dropping legacy entry")
	}
}

// AddOptionEntry adds a UEFI-style entry for opt to the main menu.
func (c *Context) AddOptionEntry(opt *firmware.BootOption, diskType firmware.BBSType) {
	e, err := c.buildOptionEntry(opt, diskType)
	if err != nil {
		log.WithError(err).Debug("skipping legacy boot option")
		return
	}
	if err := c.Menu.AddEntry(e); err != nil {
		log.WithError(err).Warn("dropping legacy entry")
		return
	}
	log.Infof("  - Found 'UEFI-Style' Legacy (BIOS) OS on '%s'", e.Option.Description)
}

func (c *Context) buildVolumeEntry(title string, vol *volume.Volume) (*VolumeEntry, error) {
	if vol == nil {
		return nil, fmt.Errorf("%w: no volume", ErrEntryOmitted)
	}
	if vol.FSType == volume.FSNTFS && isSupportVolume(vol.VolName) {
		return nil, fmt.Errorf("%q: %w", vol.VolName, ErrSupportVolume)
	}

	var shortcut rune
	if title == "" {
		title = defaultTitle
		if vol.OSName != "" {
			title = vol.OSName
			if r := []rune(title)[0]; r == 'W' || r == 'L' {
				shortcut = r
			}
		}
	}
	volDesc := vol.VolName
	if volDesc == "" {
		volDesc = "HD"
		if vol.DiskKind == volume.Optical {
			volDesc = "CD"
		}
	}

	legacyTitle := fmt.Sprintf("Boot %s from %s", title, volDesc)
	if isInSubstring(legacyTitle, c.Options.DontScanVolumes) {
		return nil, fmt.Errorf("%q: %w", legacyTitle, ErrExcluded)
	}
	c.logScanItem("Adding Legacy Boot Entry for '%s'", legacyTitle)

	e := &VolumeEntry{
		Base: menu.Base{
			Title:          legacyTitle,
			Tag:            menu.TagLegacy,
			ShortcutLetter: shortcut,
			Icon:           osIcon(vol.OSIconName),
			Badge:          vol.BadgeName,
		},
		Volume:      vol.Clone(),
		LoadOptions: diskKindOptions(vol.DiskKind),
		Enabled:     true,
	}
	log.Infof("  - Found '%s' on '%s'", title, volDesc)

	sub := &menu.Screen{
		Title:      fmt.Sprintf("Boot Options for %s on %s", title, volDesc),
		Icon:       e.Icon,
		Hint1:      menu.SubscreenHint1,
		Hint2:      c.hint2(),
		MaxEntries: c.SubMaxEntries,
	}
	subEntry := &VolumeEntry{
		Base: menu.Base{
			Title: "Boot " + title,
			Tag:   menu.TagLegacy,
		},
		Volume:      e.Volume.Clone(),
		LoadOptions: e.LoadOptions,
		Enabled:     true,
	}
	if err := finishSubScreen(sub, subEntry); err != nil {
		return nil, err
	}
	e.SubScreen = sub
	return e, nil
}

func (c *Context) buildOptionEntry(opt *firmware.BootOption, diskType firmware.BBSType) (*OptionEntry, error) {
	if opt == nil {
		return nil, fmt.Errorf("%w: no boot option", ErrEntryOmitted)
	}
	if isInSubstring(opt.Description, c.Options.DontScanVolumes) {
		return nil, fmt.Errorf("%q: %w", opt.Description, ErrExcluded)
	}

	owned := opt.Clone()
	owned.Description = limitStringLength(owned.Description, maxDescription)
	desc := owned.Description

	e := &OptionEntry{
		Base: menu.Base{
			Title: "Boot Legacy (BIOS) OS from " + desc,
			Tag:   menu.TagLegacyUEFI,
			Icon:  "legacy",
			Badge: diskBadge(diskType),
		},
		Option:      owned,
		LoadOptions: bbsOptions(diskType),
		Enabled:     true,
	}
	logLine(lineThreeStarMid, "Adding 'UEFI-Style' Legacy Entry for '%s'", e.Title)

	sub := &menu.Screen{
		Title:      "Legacy (BIOS) Options for " + desc,
		Icon:       e.Icon,
		Hint1:      menu.SubscreenHint1,
		Hint2:      c.hint2(),
		MaxEntries: c.SubMaxEntries,
	}
	subEntry := &OptionEntry{
		Base: menu.Base{
			Title: "Boot " + desc,
			Tag:   menu.TagLegacyUEFI,
		},
		Option:      owned.Clone(),
		LoadOptions: e.LoadOptions,
		Enabled:     true,
	}
	if err := finishSubScreen(sub, subEntry); err != nil {
		return nil, err
	}
	e.SubScreen = sub
	return e, nil
}

// finishSubScreen adds the boot entry and the return entry. A failure
// discards the whole submenu.
func finishSubScreen(sub *menu.Screen, boot menu.Entry) error {
	if err := sub.AddEntry(boot); err != nil {
		return fmt.Errorf("%w: %w", ErrEntryOmitted, err)
	}
	if err := sub.AddReturnEntry(); err != nil {
		return fmt.Errorf("%w: %w", ErrEntryOmitted, err)
	}
	return nil
}

func (c *Context) hint2() string {
	if c.Options.HideEditor {
		return menu.SubscreenHint2NoEditor
	}
	return menu.SubscreenHint2
}

func isSupportVolume(name string) bool {
	for _, n := range supportVolumeNames {
		if strings.EqualFold(name, n) {
			return true
		}
	}
	return false
}

// isInSubstring reports whether any non-empty item of list occurs in s,
// ignoring case.
func isInSubstring(s string, list []string) bool {
	ls := strings.ToLower(s)
	for _, item := range list {
		if item != "" && strings.Contains(ls, strings.ToLower(item)) {
			return true
		}
	}
	return false
}

// limitStringLength collapses runs of spaces, trims the ends and cuts the
// result to n runes.
func limitStringLength(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		s = strings.TrimRight(string(r[:n]), " ")
	}
	return s
}

func osIcon(names string) string {
	for _, n := range strings.Split(names, ",") {
		if n = strings.TrimSpace(n); n != "" {
			return n
		}
	}
	return "legacy"
}

func diskKindOptions(k volume.DiskKind) string {
	switch k {
	case volume.Optical:
		return "CD"
	case volume.External:
		return "USB"
	default:
		return "HD"
	}
}

func bbsOptions(t firmware.BBSType) string {
	switch t {
	case firmware.BBSCDROM:
		return "CD"
	case firmware.BBSUSB:
		return "USB"
	default:
		return "HD"
	}
}

func diskBadge(t firmware.BBSType) string {
	switch t {
	case firmware.BBSUSB:
		return "vol_external"
	case firmware.BBSCDROM:
		return "vol_optical"
	case firmware.BBSHardDisk:
		return "vol_internal"
	default:
		return ""
	}
}
