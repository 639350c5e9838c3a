// Package config provides configuration file parsing for droidprune.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/blackwell-systems/droidprune/internal/logging"
)

// Config holds the settings read from config.yaml. Command-line flags
// override individual fields after loading.
type Config struct {
	ADBPath     string `yaml:"adb_path"`
	Serial      string `yaml:"serial"`
	User        int    `yaml:"user"`
	Catalog     string `yaml:"catalog"`
	DB          string `yaml:"db"`
	SnapshotDir string `yaml:"snapshot_dir"`
	LogLevel    string `yaml:"log_level"`
}

// Dir returns the droidprune config directory, respecting XDG_CONFIG_HOME.
// Defaults to ~/.config/droidprune if XDG_CONFIG_HOME is not set.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "droidprune"), nil
}

// DataDir returns the directory holding the database and snapshots.
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".droidprune"), nil
}

// DefaultPath returns the path of config.yaml inside Dir.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Default returns the configuration used when no file exists.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads the config file at path, or at DefaultPath when path is empty.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config path: %w", err)
		}
		path = p
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values no command can work with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ADBPath) == "" {
		return fmt.Errorf("adb_path must not be empty")
	}
	if c.User < 0 {
		return fmt.Errorf("user must be a non-negative Android user id, got %d", c.User)
	}
	if c.LogLevel != "" {
		if _, ok := logging.ParseLevel(c.LogLevel); !ok {
			return fmt.Errorf("unknown log_level %q", c.LogLevel)
		}
	}
	return nil
}

// Save writes the configuration as YAML, creating the parent directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyDefaults() error {
	if c.ADBPath == "" {
		c.ADBPath = "adb"
	}

	if c.Catalog == "" {
		dir, err := Dir()
		if err != nil {
			return fmt.Errorf("failed to resolve config directory: %w", err)
		}
		c.Catalog = filepath.Join(dir, "uad_lists.json")
	}

	if c.DB == "" || c.SnapshotDir == "" {
		data, err := DataDir()
		if err != nil {
			return err
		}
		if c.DB == "" {
			c.DB = filepath.Join(data, "droidprune.db")
		}
		if c.SnapshotDir == "" {
			c.SnapshotDir = filepath.Join(data, "snapshots")
		}
	}

	var err error
	for _, p := range []*string{&c.ADBPath, &c.Catalog, &c.DB, &c.SnapshotDir} {
		if *p, err = expandHome(*p); err != nil {
			return err
		}
	}
	return nil
}

// expandHome replaces a leading "~/" with the user's home directory.
func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
