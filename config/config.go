// Package config handles formagent configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level formagent configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Browser BrowserConfig `yaml:"browser"`
	Scan    ScanConfig    `yaml:"scan"`
	State   StateConfig   `yaml:"state"`
	Listen  ListenConfig  `yaml:"listen"`
}

// StoreConfig points at the remote profile store.
type StoreConfig struct {
	URL       string `yaml:"url"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// Timeout returns the store request timeout.
func (s StoreConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutMs) * time.Millisecond
}

// BrowserConfig controls the Chrome connection.
type BrowserConfig struct {
	Remote string `yaml:"remote"` // WebSocket URL; empty launches locally
	Mode   string `yaml:"mode"`   // headless | headful
}

// Headless reports whether a locally launched Chrome runs headless.
func (b BrowserConfig) Headless() bool { return b.Mode != "headful" }

// ScanConfig controls fill passes and rescans.
type ScanConfig struct {
	DebounceMs int      `yaml:"debounce_ms"`
	FillHidden bool     `yaml:"fill_hidden"`
	Pages      []string `yaml:"pages"`
}

// Debounce returns the rescan debounce window.
func (s ScanConfig) Debounce() time.Duration {
	return time.Duration(s.DebounceMs) * time.Millisecond
}

// StateConfig locates local durable state.
type StateConfig struct {
	DBPath string `yaml:"db_path"`
}

// ListenConfig sets the HTTP listen address of the message bus.
type ListenConfig struct {
	Addr string `yaml:"addr"`
}

// LoadFile reads a YAML configuration file and applies defaults. An
// empty path yields the default configuration.
func LoadFile(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Store.URL == "" {
		c.Store.URL = "http://127.0.0.1:8590"
	}
	if c.Store.TimeoutMs <= 0 {
		c.Store.TimeoutMs = 10000
	}
	if c.Browser.Mode == "" {
		c.Browser.Mode = "headless"
	}
	if c.Scan.DebounceMs <= 0 {
		c.Scan.DebounceMs = 250
	}
	if c.State.DBPath == "" {
		c.State.DBPath = "formagent-state.db"
	}
	if c.Listen.Addr == "" {
		c.Listen.Addr = "127.0.0.1:8591"
	}
}
