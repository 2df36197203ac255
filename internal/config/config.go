// Package config loads plugman's configuration: the managed root directory
// and fetch tuning, from an optional config.toml plus environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// FileName is the optional configuration file inside the managed root.
const FileName = "config.toml"

// RootEnv overrides the managed root directory.
const RootEnv = "PLUGMAN_ROOT"

// Config holds the effective configuration.
type Config struct {
	// Root is the managed root: one subdirectory per installed plugin plus
	// the registry document.
	Root string `toml:"root"`

	// FetchTimeout bounds each fetch operation.
	FetchTimeout Duration `toml:"fetch_timeout"`

	// CloneDepth is the shallow-clone depth for remote sources.
	CloneDepth int `toml:"clone_depth"`

	// Ignore lists glob patterns skipped when copying local source trees.
	// Empty means the built-in defaults (.git).
	Ignore []string `toml:"ignore"`
}

// Duration wraps time.Duration so TOML accepts strings like "90s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	parsed, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		FetchTimeout: Duration{2 * time.Minute},
		CloneDepth:   1,
	}
}

// Load resolves the managed root (PLUGMAN_ROOT, else ~/.plugman) and merges
// in config.toml if present. A missing file is fine; an unreadable or
// invalid one is an error.
func Load() (Config, error) {
	cfg := Default()

	root := os.Getenv(RootEnv)
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolving home directory: %w", err)
		}
		root = filepath.Join(home, ".plugman")
	}
	cfg.Root = root

	path := filepath.Join(root, FileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	if cfg.Root == "" {
		cfg.Root = root
	}
	if cfg.CloneDepth < 0 {
		return Config{}, fmt.Errorf("parsing %s: clone_depth must not be negative", path)
	}
	return cfg, nil
}
