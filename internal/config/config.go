// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration management for nimchat.
//
// Configuration is loaded from:
//   - ~/.nimchat/config.toml
//   - ~/.nimchat/config.json
//
// with environment variable overrides applied last.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/nimchat/internal/nim"
	"github.com/jeranaias/nimchat/internal/util"
)

// =============================================================================
// CONFIG TYPES
// =============================================================================

// Config is the root configuration for nimchat.
type Config struct {
	// Server configures the gateway server.
	Server ServerConfig `toml:"server" json:"server"`

	// Client configures the chat client.
	Client ClientConfig `toml:"client" json:"client"`

	// Storage configures conversation persistence.
	Storage StorageConfig `toml:"storage" json:"storage"`
}

// ServerConfig configures the gateway server.
type ServerConfig struct {
	// Port is the gateway listening port. Default: 3001.
	Port int `toml:"port" json:"port"`

	// UpstreamURL is the NVIDIA NIM API base URL.
	UpstreamURL string `toml:"upstream_url" json:"upstream_url"`

	// APIKey is the NVIDIA API key. Usually set via NVIDIA_API_KEY.
	APIKey string `toml:"api_key" json:"api_key"`
}

// ClientConfig configures the chat client.
type ClientConfig struct {
	// BackendURL is the gateway base URL the client talks to.
	// Default: http://localhost:3001.
	BackendURL string `toml:"backend_url" json:"backend_url"`
}

// StorageConfig configures conversation persistence.
type StorageConfig struct {
	// Path is the conversation collection file.
	// Default: ~/.nimchat/conversations.json.
	Path string `toml:"path" json:"path"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        3001,
			UpstreamURL: nim.DefaultUpstreamURL,
		},
		Client: ClientConfig{
			BackendURL: "http://localhost:3001",
		},
	}
}

// fillDefaults fills in any missing values with defaults.
func fillDefaults(cfg *Config) {
	def := Default()
	if cfg.Server.Port == 0 {
		cfg.Server.Port = def.Server.Port
	}
	if cfg.Server.UpstreamURL == "" {
		cfg.Server.UpstreamURL = def.Server.UpstreamURL
	}
	if cfg.Client.BackendURL == "" {
		cfg.Client.BackendURL = def.Client.BackendURL
	}
}

// =============================================================================
// PATHS
// =============================================================================

// ConfigDir returns the nimchat configuration directory.
func ConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".nimchat"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// ensureSecurePermissions checks and fixes permissions on config files.
// SECURITY: Config files should be 0600 (owner read/write only) to protect API keys.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	cfg := Default()

	tomlPath, err := ConfigPathTOML()
	if err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			if err := LoadTOML(cfg, tomlPath); err != nil {
				return nil, err
			}
			return finish(cfg)
		}
	}

	jsonPath, err := ConfigPathJSON()
	if err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			if err := LoadJSON(cfg, jsonPath); err != nil {
				return nil, err
			}
			return finish(cfg)
		}
	}

	return finish(cfg)
}

// LoadFromPath loads configuration from a specific file, by extension.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	var err error
	if strings.HasSuffix(path, ".json") {
		err = LoadJSON(cfg, path)
	} else {
		err = LoadTOML(cfg, path)
	}
	if err != nil {
		return nil, err
	}
	return finish(cfg)
}

// finish applies env overrides, defaults, and validation.
func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	fillDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML loads configuration from a TOML file.
// SECURITY: Checks and fixes file permissions on load.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON loads configuration from a JSON file.
// SECURITY: Checks and fixes file permissions on load.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save persists the configuration to the TOML config file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves configuration to a TOML file with secure permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	// SECURITY: 0600 protects the API key
	return util.AtomicWriteFile(path, buf.Bytes(), 0600)
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - NVIDIA_API_KEY: overrides server.api_key
//   - NIMCHAT_PORT: overrides server.port
//   - NIMCHAT_UPSTREAM_URL: overrides server.upstream_url
//   - NIMCHAT_BACKEND_URL: overrides client.backend_url
//   - NIMCHAT_STORAGE_PATH: overrides storage.path
func (c *Config) ApplyEnvOverrides() {
	if key := os.Getenv("NVIDIA_API_KEY"); key != "" {
		c.Server.APIKey = key
	}

	if port := os.Getenv("NIMCHAT_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			c.Server.Port = n
		} else {
			fmt.Fprintf(os.Stderr, "Warning: ignoring invalid NIMCHAT_PORT %q\n", port)
		}
	}

	if upstream := os.Getenv("NIMCHAT_UPSTREAM_URL"); upstream != "" {
		c.Server.UpstreamURL = upstream
	}

	if backend := os.Getenv("NIMCHAT_BACKEND_URL"); backend != "" {
		c.Client.BackendURL = backend
	}

	if path := os.Getenv("NIMCHAT_STORAGE_PATH"); path != "" {
		c.Storage.Path = path
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if err := validateURL("server.upstream_url", c.Server.UpstreamURL); err != nil {
		return err
	}
	if err := validateURL("client.backend_url", c.Client.BackendURL); err != nil {
		return err
	}
	return nil
}

func validateURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https, got %q", field, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s is missing a host: %q", field, raw)
	}
	return nil
}

// =============================================================================
// DISPLAY
// =============================================================================

// String returns the configuration as JSON with secrets redacted.
func (c *Config) String() string {
	safe := *c
	if safe.Server.APIKey != "" {
		safe.Server.APIKey = "[REDACTED]"
	}

	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}
