// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for gpterm.
//
// Configuration comes from a TOML file with sensible defaults and environment
// variable overrides. The API key is a secret: the environment variable
// always wins over the file so the file never has to contain it.
//
// Configuration file location:
//   - ~/.gpterm/config.toml
//   - Built-in defaults otherwise
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete gpterm configuration.
type Config struct {
	// General settings
	Version string `toml:"version"`

	// OpenAI configuration
	OpenAI OpenAIConfig `toml:"openai"`

	// UI configuration
	UI UIConfig `toml:"ui"`
}

// OpenAIConfig contains OpenAI API configuration.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key. Usually left empty here and supplied
	// via the OPENAI_API_KEY environment variable instead.
	APIKey string `toml:"api_key"`
	// Model is the chat model to use.
	Model string `toml:"model"`
	// BaseURL overrides the API endpoint (for proxies and tests).
	BaseURL string `toml:"base_url"`
	// TimeoutSeconds bounds buffered (non-streaming) requests. Streaming
	// requests are cancelled via context instead. 0 means the client default.
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// UIConfig contains user interface configuration.
type UIConfig struct {
	// Markdown enables glamour markdown rendering of assistant replies.
	Markdown bool `toml:"markdown"`
	// WordWrap is the render width for markdown output (0 = auto-detect).
	WordWrap int `toml:"word_wrap"`
	// Theme selects the glamour style: "auto", "dark", "light".
	Theme string `toml:"theme"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in default configuration.
func Default() *Config {
	return &Config{
		Version: "1",
		OpenAI: OpenAIConfig{
			Model:          "gpt-4o",
			BaseURL:        "https://api.openai.com/v1",
			TimeoutSeconds: 60,
		},
		UI: UIConfig{
			Markdown: true,
			WordWrap: 0,
			Theme:    "auto",
		},
	}
}

// =============================================================================
// PATHS
// =============================================================================

// ConfigDir returns the gpterm configuration directory (~/.gpterm).
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(home, ".gpterm"), nil
}

// ConfigPath returns the path to the TOML configuration file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir creates the configuration directory if it does not exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	// 0700: config dir may hold the API key and input history
	return os.MkdirAll(dir, 0700)
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the configuration file, applies environment overrides, and
// validates the result. A missing file is not an error; defaults are used.
func Load() (*Config, error) {
	cfg := Default()

	path, err := ConfigPath()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			if err := LoadTOML(cfg, path); err != nil {
				return nil, fmt.Errorf("failed to load config: %w", err)
			}
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadTOML loads TOML configuration from the given path into cfg.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// LoadFromPath loads configuration from an explicit path, with env overrides
// and validation applied. Used by the watcher and by tests.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := LoadTOML(cfg, path); err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnvOverrides applies environment variable overrides to the config.
// The environment always wins over the file.
func (c *Config) ApplyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.OpenAI.APIKey = key
	}
	if model := os.Getenv("GPTERM_MODEL"); model != "" {
		c.OpenAI.Model = model
	}
	if url := os.Getenv("GPTERM_BASE_URL"); url != "" {
		c.OpenAI.BaseURL = url
	}
	if md := os.Getenv("GPTERM_MARKDOWN"); md != "" {
		if v, err := strconv.ParseBool(md); err == nil {
			c.UI.Markdown = v
		}
	}
}

// SetDefaults fills in zero values left by a partial config file.
func (c *Config) SetDefaults() {
	def := Default()
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = def.OpenAI.Model
	}
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = def.OpenAI.BaseURL
	}
	if c.OpenAI.TimeoutSeconds == 0 {
		c.OpenAI.TimeoutSeconds = def.OpenAI.TimeoutSeconds
	}
	if c.UI.Theme == "" {
		c.UI.Theme = def.UI.Theme
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.OpenAI.TimeoutSeconds < 0 {
		return fmt.Errorf("openai.timeout_seconds must be >= 0, got %d", c.OpenAI.TimeoutSeconds)
	}
	if c.UI.WordWrap < 0 {
		return fmt.Errorf("ui.word_wrap must be >= 0, got %d", c.UI.WordWrap)
	}
	switch c.UI.Theme {
	case "auto", "dark", "light":
	default:
		return fmt.Errorf("ui.theme must be one of auto, dark, light; got %q", c.UI.Theme)
	}
	return nil
}

// =============================================================================
// GLOBAL ACCESS
// =============================================================================

var (
	globalConfig *Config
	globalMu     sync.RWMutex
	globalOnce   sync.Once
)

// Global returns the process-wide configuration, loading it on first use.
// Load errors fall back to defaults; the caller that needs to surface the
// error should call Load directly.
func Global() *Config {
	globalOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			cfg = Default()
			cfg.ApplyEnvOverrides()
		}
		globalMu.Lock()
		globalConfig = cfg
		globalMu.Unlock()
	})

	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalConfig
}

// SetGlobal replaces the process-wide configuration. Used by the config
// watcher on live reload and by tests.
func SetGlobal(cfg *Config) {
	globalOnce.Do(func() {})
	globalMu.Lock()
	globalConfig = cfg
	globalMu.Unlock()
}
