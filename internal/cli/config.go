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

package cli

import (
	"github.com/jeremyhahn/go-credstore/internal/config"
)

// Config holds CLI-level settings shared by all commands.
type Config struct {
	// ConfigFile is the path to the server configuration file
	ConfigFile string

	// OutputFormat is the output format (text, json)
	OutputFormat string

	// Verbose enables verbose output
	Verbose bool
}

// NewConfig creates a new CLI configuration with defaults.
func NewConfig() *Config {
	return &Config{
		OutputFormat: "text",
	}
}

// serverConfig loads the server configuration file, or the built-in
// defaults when no file was given.
func (c *Config) serverConfig() (*config.Config, error) {
	if c.ConfigFile == "" {
		return config.Default(), nil
	}
	return config.Load(c.ConfigFile)
}
