package main

import (
	"fmt"

	"github.com/apex/log"
	"github.com/spf13/cobra"

	"legacyboot/internal/menu"
	"legacyboot/internal/tui/bootmenu"
)

var bootCmd = &cobra.Command{
	Use:   "boot <index|title>",
	Short: "Boot a legacy entry",
	Long: `Boot a legacy entry picked by its index in 'legacyboot scan' or by a
part of its title, e.g.

  legacyboot boot windows
  legacyboot boot 1`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		s.ctx.WarnIfProblems()
		e, err := pickEntry(s.ctx.Scan(), args[0])
		if err != nil {
			return err
		}
		return s.boot(e)
	},
}

var menuCmd = &cobra.Command{
	Use:   "menu",
	Short: "Pick a legacy entry from the boot menu",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		s.ctx.WarnIfProblems()
		e, err := bootmenu.Run(s.ctx.Scan())
		if err != nil {
			return err
		}
		if e == nil {
			return nil
		}
		return s.boot(e)
	},
}

func init() {
	rootCmd.AddCommand(bootCmd)
	rootCmd.AddCommand(menuCmd)
}

// boot launches e. It only returns when the launch failed.
func (s *session) boot(e menu.Entry) error {
	log.WithField("entry", e.Common().Title).Info("booting")
	if err := s.ctx.Boot(e); err != nil {
		return fmt.Errorf("boot %q: %w", e.Common().Title, err)
	}
	return fmt.Errorf("%q returned to the boot manager", e.Common().Title)
}
