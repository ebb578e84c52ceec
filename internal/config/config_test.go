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
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}
	return path
}

// TestLoad_Success tests successful loading of a valid config file
func TestLoad_Success(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "localhost"
  port: 8443

storage:
  backend: "file"
  path: "/data/credstore"

legacy:
  enabled: true
  dir: "/data/legacy"

kdf:
  algorithm: "Argon2id"
  memory_kib: 65536
  time: 3
  threads: 4

logging:
  level: "debug"
  format: "json"

metrics:
  enabled: true
  path: "/metrics"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}

	if cfg.Server.Host != "localhost" || cfg.Server.Port != 8443 {
		t.Errorf("Unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.Backend != "file" || cfg.Storage.Path != "/data/credstore" {
		t.Errorf("Unexpected storage config: %+v", cfg.Storage)
	}
	if !cfg.Legacy.Enabled || cfg.Legacy.Dir != "/data/legacy" {
		t.Errorf("Unexpected legacy config: %+v", cfg.Legacy)
	}
	if cfg.KDF.Algorithm != "Argon2id" || cfg.KDF.MemoryKiB != 65536 {
		t.Errorf("Unexpected kdf config: %+v", cfg.KDF)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Unexpected logging config: %+v", cfg.Logging)
	}
}

// TestLoad_Defaults verifies that unset fields fall back to defaults
func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
storage:
  backend: "memory"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}

	def := Default()
	if cfg.Server.Host != def.Server.Host || cfg.Server.Port != def.Server.Port {
		t.Errorf("Expected default server config, got %+v", cfg.Server)
	}
	if cfg.Logging.Level != def.Logging.Level {
		t.Errorf("Expected default log level, got %s", cfg.Logging.Level)
	}
	if cfg.KDF.Algorithm != def.KDF.Algorithm {
		t.Errorf("Expected default kdf algorithm, got %s", cfg.KDF.Algorithm)
	}
}

// TestLoad_MissingFile tests loading a nonexistent file
func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Load() with missing file should return error")
	}
}

// TestLoad_InvalidYAML tests loading malformed YAML
func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a mapping")
	if _, err := Load(path); err == nil {
		t.Error("Load() with invalid YAML should return error")
	}
}

// TestEnvOverrides tests environment variable overrides
func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
storage:
  backend: "memory"
`)

	t.Setenv("CREDSTORE_HOST", "0.0.0.0")
	t.Setenv("CREDSTORE_PORT", "9000")
	t.Setenv("CREDSTORE_LOG_LEVEL", "warn")
	t.Setenv("CREDSTORE_LEGACY_DIR", "/old/store")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("CREDSTORE_HOST override not applied: %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("CREDSTORE_PORT override not applied: %d", cfg.Server.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("CREDSTORE_LOG_LEVEL override not applied: %s", cfg.Logging.Level)
	}
	if !cfg.Legacy.Enabled || cfg.Legacy.Dir != "/old/store" {
		t.Errorf("CREDSTORE_LEGACY_DIR override not applied: %+v", cfg.Legacy)
	}
}

// TestEnvOverrides_InvalidPort keeps the default on malformed port values
func TestEnvOverrides_InvalidPort(t *testing.T) {
	path := writeConfig(t, `
storage:
  backend: "memory"
`)

	t.Setenv("CREDSTORE_PORT", "not-a-port")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	if cfg.Server.Port != Default().Server.Port {
		t.Errorf("Invalid port override should keep default, got %d", cfg.Server.Port)
	}
}

// TestValidate covers rejection of invalid configurations
func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name:   "bad port",
			mutate: func(c *Config) { c.Server.Port = 0 },
		},
		{
			name:   "unknown storage backend",
			mutate: func(c *Config) { c.Storage.Backend = "redis" },
		},
		{
			name:   "file backend without path",
			mutate: func(c *Config) { c.Storage.Backend = "file"; c.Storage.Path = "" },
		},
		{
			name:   "legacy enabled without dir",
			mutate: func(c *Config) { c.Legacy.Enabled = true; c.Legacy.Dir = "" },
		},
		{
			name:   "unknown kdf algorithm",
			mutate: func(c *Config) { c.KDF.Algorithm = "bcrypt" },
		},
		{
			name:   "bad log level",
			mutate: func(c *Config) { c.Logging.Level = "verbose" },
		},
		{
			name:   "bad log format",
			mutate: func(c *Config) { c.Logging.Format = "xml" },
		},
		{
			name:   "metrics without path",
			mutate: func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Path = "" },
		},
		{
			name:   "ratelimit without rate",
			mutate: func(c *Config) { c.RateLimit.Enabled = true; c.RateLimit.RequestsPerMinute = 0 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() should reject invalid config")
			}
		})
	}
}
