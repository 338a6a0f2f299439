// Package config holds the compiler's ambient, non-policy settings,
// loaded the same way the teacher loads its emulator settings: a
// TOML file via github.com/BurntSushi/toml, with an in-memory default
// used whenever no file is present.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// Config holds settings for the compiler front end. None of it affects
// compiled output's semantics (the compiler itself is a pure function,
// spec §5) — only how the CLI presents results.
type Config struct {
	// Digest settings
	Digest struct {
		Algorithm string `toml:"algorithm"` // fixed to "keccak256" today; named for forward compatibility (spec §9)
	} `toml:"digest"`

	// Output settings
	Output struct {
		Format      string `toml:"format"` // "text" or "json"
		PrettyPrint bool   `toml:"pretty_print"`
	} `toml:"output"`

	// Lint settings
	Lint struct {
		CheckUnusedTrackers   bool `toml:"check_unused_trackers"`
		CheckDuplicateNames   bool `toml:"check_duplicate_names"`
		CheckAddressChecksums bool `toml:"check_address_checksums"`
	} `toml:"lint"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Digest.Algorithm = "keccak256"

	cfg.Output.Format = "text"
	cfg.Output.PrettyPrint = true

	cfg.Lint.CheckUnusedTrackers = true
	cfg.Lint.CheckDuplicateNames = true
	cfg.Lint.CheckAddressChecksums = true

	return cfg
}

// GetConfigPath returns the platform-specific config file path.
func GetConfigPath() string {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		configDir = filepath.Join(configDir, "policyc")

	case "darwin", "linux":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.toml"
		}
		configDir = filepath.Join(homeDir, ".config", "policyc")

	default:
		return "config.toml"
	}

	if err := os.MkdirAll(configDir, 0750); err != nil {
		return "config.toml"
	}

	return filepath.Join(configDir, "config.toml")
}

// Load loads configuration from the default config file.
func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// LoadFrom loads configuration from the specified file. A missing file
// yields the default configuration rather than an error.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}
