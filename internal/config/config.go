// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-credstore.
//
// go-credstore is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete server configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Legacy    LegacyConfig    `yaml:"legacy"`
	KDF       KDFConfig       `yaml:"kdf"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
}

// ServerConfig contains server-level settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig controls the key database backend
type StorageConfig struct {
	Backend string `yaml:"backend"` // memory, file
	Path    string `yaml:"path"`    // file backend root
}

// LegacyConfig controls the v0 flat-file store migration source
type LegacyConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// KDFConfig controls master key derivation from lock-screen secrets
type KDFConfig struct {
	Algorithm  string `yaml:"algorithm"` // PBKDF2, Argon2id
	Iterations int    `yaml:"iterations,omitempty"`
	MemoryKiB  uint32 `yaml:"memory_kib,omitempty"`
	Time       uint32 `yaml:"time,omitempty"`
	Threads    uint8  `yaml:"threads,omitempty"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the metrics endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// RateLimitConfig throttles unlock attempts per client IP
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server:    ServerConfig{Host: "127.0.0.1", Port: 8443},
		Storage:   StorageConfig{Backend: "file", Path: "/var/lib/credstore"},
		Legacy:    LegacyConfig{Enabled: false},
		KDF:       KDFConfig{Algorithm: "PBKDF2"},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Metrics:   MetricsConfig{Enabled: true, Path: "/metrics"},
		RateLimit: RateLimitConfig{Enabled: false, RequestsPerMinute: 10},
	}
}

// Load reads configuration from a YAML file and applies environment variable
// overrides. Unset fields fall back to defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	// #nosec G304 - Config file path is provided by admin/user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration
func applyEnvOverrides(cfg *Config) {
	if host := os.Getenv("CREDSTORE_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("CREDSTORE_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			log.Printf("Warning: invalid CREDSTORE_PORT value %q, using default %d: %v",
				portStr, cfg.Server.Port, err)
		} else if port < 1 || port > 65535 {
			log.Printf("Warning: invalid CREDSTORE_PORT value %q (out of range 1-65535), using default %d",
				portStr, cfg.Server.Port)
		} else {
			cfg.Server.Port = port
		}
	}

	if backend := os.Getenv("CREDSTORE_STORAGE_BACKEND"); backend != "" {
		cfg.Storage.Backend = backend
	}
	if dataDir := os.Getenv("CREDSTORE_DATA_DIR"); dataDir != "" {
		cfg.Storage.Path = dataDir
	}
	if legacyDir := os.Getenv("CREDSTORE_LEGACY_DIR"); legacyDir != "" {
		cfg.Legacy.Enabled = true
		cfg.Legacy.Dir = legacyDir
	}

	if level := os.Getenv("CREDSTORE_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("CREDSTORE_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch strings.ToLower(c.Storage.Backend) {
	case "memory":
	case "file":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage path is required for the file backend")
		}
	default:
		return fmt.Errorf("invalid storage backend: %s (must be memory or file)", c.Storage.Backend)
	}

	if c.Legacy.Enabled && c.Legacy.Dir == "" {
		return fmt.Errorf("legacy dir is required when legacy migration is enabled")
	}

	switch strings.ToLower(c.KDF.Algorithm) {
	case "pbkdf2", "argon2id":
	default:
		return fmt.Errorf("invalid kdf algorithm: %s (must be PBKDF2 or Argon2id)", c.KDF.Algorithm)
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"json": true, "text": true,
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	if c.Metrics.Enabled && c.Metrics.Path == "" {
		return fmt.Errorf("metrics path is required when metrics are enabled")
	}

	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute < 1 {
		return fmt.Errorf("ratelimit requests_per_minute must be positive")
	}

	return nil
}
