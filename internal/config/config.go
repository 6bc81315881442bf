package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/sigreer/partgod/internal/layout"
)

type Config struct {
	Discovery Discovery `yaml:"discovery"`
	Defaults  Defaults  `yaml:"defaults"`
	Store     Store     `yaml:"store"`
	// Log level: "debug", "info", "warn" or "error"
	LogLevel string `yaml:"log_level,omitempty"`
}

type Discovery struct {
	// lsblk executable; looked up in PATH when not absolute
	Lsblk string `yaml:"lsblk,omitempty"`
	// Devices mounted here, directly or through a partition, are never offered
	ProtectedMounts []string `yaml:"protected_mounts,omitempty"`
}

type Defaults struct {
	Filesystem string `yaml:"filesystem"`
	SwapGiB    uint64 `yaml:"swap_gib"`
	// Partition table written to disks that have none: "gpt" or "msdos"
	Table string `yaml:"table"`
}

type Store struct {
	// Path of the plan database; when unset, plans.db in the user config directory
	Path string `yaml:"path,omitempty"`
}

// defaultConfig provides baseline settings
var defaultConfig = Config{
	Discovery: Discovery{
		Lsblk:           "lsblk",
		ProtectedMounts: []string{"/", "/iso"},
	},
	Defaults: Defaults{
		Filesystem: "ext4",
		Table:      "gpt",
	},
	LogLevel: "info",
}

// Default returns the built-in configuration
func Default() *Config {
	cfg := defaultConfig
	cfg.Discovery.ProtectedMounts = append([]string(nil), defaultConfig.Discovery.ProtectedMounts...)
	cfg.Store.Path = defaultStorePath()
	return &cfg
}

func Load(path string) (*Config, error) {
	if path == "" {
		// Try default locations
		candidates := []string{
			"/etc/partgod/config.yaml",
			filepath.Join(os.Getenv("HOME"), ".config/partgod/config.yaml"),
			"config.yaml",
		}
		for _, c := range candidates {
			if _, err := os.Stat(c); err == nil {
				path = c
				break
			}
		}
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		var file Config
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		cfg.merge(file)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// merge copies every field set in file over the defaults
func (c *Config) merge(file Config) {
	if file.Discovery.Lsblk != "" {
		c.Discovery.Lsblk = file.Discovery.Lsblk
	}
	if file.Discovery.ProtectedMounts != nil {
		c.Discovery.ProtectedMounts = file.Discovery.ProtectedMounts
	}
	if file.Defaults.Filesystem != "" {
		c.Defaults.Filesystem = file.Defaults.Filesystem
	}
	if file.Defaults.SwapGiB != 0 {
		c.Defaults.SwapGiB = file.Defaults.SwapGiB
	}
	if file.Defaults.Table != "" {
		c.Defaults.Table = file.Defaults.Table
	}
	if file.Store.Path != "" {
		c.Store.Path = file.Store.Path
	}
	if file.LogLevel != "" {
		c.LogLevel = file.LogLevel
	}
}

// Validate checks values that would otherwise fail late
func (c *Config) Validate() error {
	label, err := layout.ParseLabel(c.Defaults.Table)
	if err != nil || label == layout.LabelNone {
		return fmt.Errorf("invalid defaults.table %q: must be gpt or msdos", c.Defaults.Table)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	return nil
}

// TableLabel is the partition table used for disks without one
func (c *Config) TableLabel() layout.Label {
	label, err := layout.ParseLabel(c.Defaults.Table)
	if err != nil || label == layout.LabelNone {
		return layout.LabelGPT
	}
	return label
}

func defaultStorePath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "partgod", "plans.db")
	}
	return "partgod.db"
}
