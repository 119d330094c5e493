// Package config loads the boot manager settings the legacy scans consult.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/apex/log"
	"github.com/spf13/viper"

	"legacyboot/internal/image/partition"
	"legacyboot/internal/legacy"
)

const (
	EnvPrefix = "LEGACYBOOT"
	fileName  = "legacyboot"
)

// Config mirrors legacyboot.yaml.
type Config struct {
	ScanFor         string   `mapstructure:"scan_for"`
	DontScanVolumes []string `mapstructure:"dont_scan_volumes"`
	HideUI          []string `mapstructure:"hideui"`
	DirectBoot      bool     `mapstructure:"direct_boot"`
	BootStub        string   `mapstructure:"boot_stub"`
	Machine         string   `mapstructure:"machine"`
	NVRAM           string   `mapstructure:"nvram"`
	CacheSectors    int      `mapstructure:"cache_sectors"`
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("scan_for", "ihbcm")
	v.SetDefault("dont_scan_volumes", []string{})
	v.SetDefault("hideui", []string{})
	v.SetDefault("direct_boot", false)
	v.SetDefault("boot_stub", "")
	v.SetDefault("machine", "machine.yaml")
	v.SetDefault("nvram", "")
	v.SetDefault("cache_sectors", 64)
}

// Load reads file, or legacyboot.yaml from the working directory and
// $HOME/.config/legacyboot when file is empty. A missing default file is
// not an error. Environment variables prefixed with LEGACYBOOT_ override
// file values.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(fileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/legacyboot")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Debug("no config file, using defaults")
	} else {
		log.WithField("file", v.ConfigFileUsed()).Debug("loaded config")
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if c.CacheSectors < 0 {
		return nil, fmt.Errorf("cache_sectors must not be negative, got %d", c.CacheSectors)
	}
	return &c, nil
}

var scanWords = map[string]byte{
	"internal":     'i',
	"external":     'e',
	"optical":      'o',
	"manual":       'm',
	"hdbios":       'h',
	"biosexternal": 'b',
	"cd":           'c',
}

// ScanLetters returns scan_for as scan letters. Besides bare letters the
// value may be one word or a list of words separated by commas: internal,
// external, optical, manual, hdbios, biosexternal and cd.
func (c *Config) ScanLetters() (string, error) {
	if l, ok := scanWords[strings.ToLower(strings.TrimSpace(c.ScanFor))]; ok {
		return string(l), nil
	}
	if !strings.ContainsAny(c.ScanFor, ", ") {
		return c.ScanFor, nil
	}
	var b strings.Builder
	for _, w := range strings.FieldsFunc(c.ScanFor, func(r rune) bool { return r == ',' || r == ' ' }) {
		l, ok := scanWords[strings.ToLower(w)]
		if !ok {
			return "", fmt.Errorf("unknown scan_for item %q", w)
		}
		b.WriteByte(l)
	}
	return b.String(), nil
}

// HidesEditor reports whether hideui lists the editor.
func (c *Config) HidesEditor() bool {
	for _, h := range c.HideUI {
		if strings.EqualFold(strings.TrimSpace(h), "editor") {
			return true
		}
	}
	return false
}

// LegacyOptions converts c into the options of a legacy scan context. The
// boot stub file, when configured, is loaded here.
func (c *Config) LegacyOptions() (legacy.Options, error) {
	letters, err := c.ScanLetters()
	if err != nil {
		return legacy.Options{}, err
	}
	opts := legacy.Options{
		ScanFor:         letters,
		DontScanVolumes: c.DontScanVolumes,
		HideEditor:      c.HidesEditor(),
		DirectBoot:      c.DirectBoot,
	}
	if c.BootStub != "" {
		stub, err := partition.LoadBootStub(c.BootStub)
		if err != nil {
			return legacy.Options{}, err
		}
		opts.BootStub = stub
	}
	return opts, nil
}
