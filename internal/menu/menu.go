// Package menu models boot menu screens and their entries.
package menu

import (
	"errors"
	"fmt"
)

// Tag identifies what selecting an entry does.
type Tag int

const (
	TagReturn     Tag = 0
	TagLegacy     Tag = 6
	TagLegacyUEFI Tag = 11
)

func (t Tag) String() string {
	switch t {
	case TagReturn:
		return "return"
	case TagLegacy:
		return "legacy"
	case TagLegacyUEFI:
		return "legacy-uefi"
	default:
		return fmt.Sprintf("tag(%d)", int(t))
	}
}

// Submenu hint lines.
const (
	SubscreenHint1         = "Use Arrow Keys to Move Selection and Press 'Enter' to Run Selected Item"
	SubscreenHint2         = "Press 'Insert' or 'F2' to Edit Options or Press 'Esc' to Return to Main Menu"
	SubscreenHint2NoEditor = "Press 'Esc' to Return to Main Menu"
)

// DefaultMaxEntries bounds a screen when MaxEntries is zero.
const DefaultMaxEntries = 256

var ErrMenuFull = errors.New("menu is full")

// Base holds the fields every entry has.
type Base struct {
	Title          string
	Tag            Tag
	Row            int
	ShortcutLetter rune
	Icon           string
	Badge          string
	SubScreen      *Screen
}

// Entry is one selectable menu item. Concrete entry kinds embed Base and
// add their own payload.
type Entry interface {
	Common() *Base
}

func (b *Base) Common() *Base { return b }

// GenericEntry carries no payload (return and about entries).
type GenericEntry struct {
	Base
}

// NewReturnEntry builds the entry that leaves a submenu.
func NewReturnEntry() *GenericEntry {
	return &GenericEntry{Base{Title: "Return to Main Menu", Tag: TagReturn, Row: 1}}
}

// Screen is a main menu or a submenu.
type Screen struct {
	Title      string
	Icon       string
	Hint1      string
	Hint2      string
	Entries    []Entry
	MaxEntries int
}

func NewScreen(title string) *Screen {
	return &Screen{Title: title}
}

// AddEntry appends e. It fails with ErrMenuFull once the screen holds
// MaxEntries entries.
func (s *Screen) AddEntry(e Entry) error {
	limit := s.MaxEntries
	if limit <= 0 {
		limit = DefaultMaxEntries
	}
	if len(s.Entries) >= limit {
		return fmt.Errorf("%q: %w", s.Title, ErrMenuFull)
	}
	s.Entries = append(s.Entries, e)
	return nil
}

func (s *Screen) AddReturnEntry() error {
	return s.AddEntry(NewReturnEntry())
}

// Titles lists entry titles in order.
func (s *Screen) Titles() []string {
	out := make([]string, len(s.Entries))
	for i, e := range s.Entries {
		out[i] = e.Common().Title
	}
	return out
}
