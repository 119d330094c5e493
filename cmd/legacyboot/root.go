package main

import (
	"fmt"
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"legacyboot/internal/config"
	"legacyboot/internal/host"
	"legacyboot/internal/legacy"
)

var (
	cfgFile string
	verbose bool

	v   = viper.New()
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "legacyboot",
	Short: "Find and boot legacy BIOS operating systems on an emulated UEFI machine",
	Long: `legacyboot scans the disks of an emulated UEFI machine for legacy (BIOS)
operating systems, builds boot menu entries for them and launches them through
Apple's legacy loader or through the CSM BBS boot options.

The machine (disk images, firmware features and boot options) is described by
a YAML profile; NVRAM variables persist in a JSON file next to it.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetLevel(log.DebugLevel)
		}
		c, err := config.Load(v, cfgFile)
		if err != nil {
			return err
		}
		cfg = c
		return nil
	},
}

// Execute runs the command line.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	log.SetHandler(cli.Default)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./legacyboot.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "V", false, "verbose output")
	rootCmd.PersistentFlags().StringP("machine", "m", "", "machine profile")
	rootCmd.PersistentFlags().String("nvram", "", "NVRAM store (default is <machine>.nvram.json)")
	rootCmd.PersistentFlags().String("scan-for", "", "scan letters or words, e.g. hbc or hdbios,cd")

	v.BindPFlag("machine", rootCmd.PersistentFlags().Lookup("machine"))
	v.BindPFlag("nvram", rootCmd.PersistentFlags().Lookup("nvram"))
	v.BindPFlag("scan_for", rootCmd.PersistentFlags().Lookup("scan-for"))
}

// session is a booted machine with a legacy scan context on top.
type session struct {
	m   *host.Machine
	ctx *legacy.Context
}

func nvramPath() string {
	if cfg.NVRAM != "" {
		return cfg.NVRAM
	}
	return cfg.Machine + ".nvram.json"
}

// openSession boots the configured machine. A launched OS ends the process.
func openSession() (*session, error) {
	opts, err := cfg.LegacyOptions()
	if err != nil {
		return nil, err
	}
	p, err := host.LoadProfile(cfg.Machine)
	if err != nil {
		return nil, err
	}
	nv, err := host.LoadNVRAM(nvramPath())
	if err != nil {
		return nil, fmt.Errorf("load NVRAM %s: %w", nvramPath(), err)
	}
	m, err := host.Boot(p, nv, cfg.CacheSectors)
	if err != nil {
		return nil, err
	}
	log.WithField("machine", m.String()).Debug("machine up")

	m.Handoff = func(target string) {
		fmt.Printf("\nBooting %s\n", target)
		if err := m.Shutdown(); err != nil {
			log.WithError(err).Warn("releasing disks")
		}
		os.Exit(0)
	}
	con := host.NewConsole(os.Stdout, os.Stdin)
	return &session{m: m, ctx: legacy.New(m, m, con, opts, m.Volumes())}, nil
}

func (s *session) Close() {
	if err := s.m.Shutdown(); err != nil {
		log.WithError(err).Warn("releasing disks")
	}
}
