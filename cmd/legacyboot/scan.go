package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"legacyboot/internal/legacy"
	"legacyboot/internal/menu"
)

var scanJSON bool

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List the legacy boot entries of the machine",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		s.ctx.WarnIfProblems()
		rows := entryRows(s.ctx.Scan())
		if scanJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rows)
		}
		if len(rows) == 0 {
			fmt.Println("No legacy boot entries")
			return nil
		}
		bold := color.New(color.Bold).SprintFunc()
		faint := color.New(color.Faint).SprintFunc()
		for _, r := range rows {
			fmt.Printf("%3d  %s\n", r.Index, bold(r.Title))
			fmt.Printf("     %s %s  %s %s\n", faint("via"), r.Kind, faint("target"), r.Target)
		}
		return nil
	},
}

func init() {
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "print entries as JSON")
	rootCmd.AddCommand(scanCmd)
}

type entryRow struct {
	Index       int    `json:"index"`
	Title       string `json:"title"`
	Kind        string `json:"kind"`
	Shortcut    string `json:"shortcut,omitempty"`
	Badge       string `json:"badge,omitempty"`
	LoadOptions string `json:"load_options"`
	Target      string `json:"target"`
}

func entryRows(sc *menu.Screen) []entryRow {
	rows := make([]entryRow, 0, len(sc.Entries))
	for i, e := range sc.Entries {
		b := e.Common()
		r := entryRow{Index: i, Title: b.Title, Kind: b.Tag.String(), Badge: b.Badge}
		if b.ShortcutLetter != 0 {
			r.Shortcut = string(b.ShortcutLetter)
		}
		switch e := e.(type) {
		case *legacy.VolumeEntry:
			r.LoadOptions = e.LoadOptions
			r.Target = e.Volume.DevicePath.String()
		case *legacy.OptionEntry:
			r.LoadOptions = e.LoadOptions
			r.Target = e.Option.VariableName() + " " + strconv.Quote(e.Option.Description)
		}
		rows = append(rows, r)
	}
	return rows
}

// pickEntry finds an entry by index or by a case-insensitive title
// substring.
func pickEntry(sc *menu.Screen, sel string) (menu.Entry, error) {
	if i, err := strconv.Atoi(sel); err == nil {
		if i < 0 || i >= len(sc.Entries) {
			return nil, fmt.Errorf("no entry %d, %d entries found", i, len(sc.Entries))
		}
		return sc.Entries[i], nil
	}
	var found []menu.Entry
	for _, e := range sc.Entries {
		if strings.Contains(strings.ToLower(e.Common().Title), strings.ToLower(sel)) {
			found = append(found, e)
		}
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("no entry matches %q", sel)
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("%q matches %d entries", sel, len(found))
	}
}
