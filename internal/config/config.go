// Package config loads the tunedeck YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// RateRule overrides one HTTP route's rate-limit budget.
type RateRule struct {
	Max           int `yaml:"max"`
	WindowSeconds int `yaml:"window_seconds"`
}

type Config struct {
	Listen struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"listen"`

	DataDir  string `yaml:"data_dir"`
	LogLevel string `yaml:"log_level"`

	// AllowPairing arms the approval broker at startup (and re-arms it on
	// hot reload). The arm is single-shot: it burns on the first approved
	// pairing regardless of this file.
	AllowPairing bool `yaml:"allow_pairing"`

	// Sim runs the built-in simulated media view instead of waiting for the
	// desktop shell to attach.
	Sim bool `yaml:"sim"`

	RateLimits map[string]RateRule `yaml:"rate_limits"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.Listen.Host = "127.0.0.1"
	cfg.Listen.Port = 9863
	cfg.DataDir = defaultDataDir()
	cfg.LogLevel = "info"
	return cfg
}

// DefaultPath is where Load looks when no --config flag is given.
func DefaultPath() string {
	return filepath.Join(defaultDataDir(), "config.yaml")
}

// Load reads the config file, applying defaults for anything unset.
// A missing file is not an error: defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Listen.Host == "" {
		cfg.Listen.Host = "127.0.0.1"
	}
	if cfg.Listen.Port == 0 {
		cfg.Listen.Port = 9863
	}
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir()
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return cfg, nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tunedeck"
	}
	return filepath.Join(home, ".tunedeck")
}
