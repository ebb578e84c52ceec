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
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/jeremyhahn/go-credstore/internal/config"
	"github.com/jeremyhahn/go-credstore/internal/password"
	"github.com/jeremyhahn/go-credstore/pkg/adapters/kdf"
	"github.com/jeremyhahn/go-credstore/pkg/adapters/logger"
	"github.com/jeremyhahn/go-credstore/pkg/enforcement"
	"github.com/jeremyhahn/go-credstore/pkg/keystore"
	"github.com/jeremyhahn/go-credstore/pkg/legacy"
	"github.com/jeremyhahn/go-credstore/pkg/storage"
	"github.com/jeremyhahn/go-credstore/pkg/storage/file"
	"github.com/jeremyhahn/go-credstore/pkg/storage/memory"
	"github.com/jeremyhahn/go-credstore/pkg/superkey"
	"github.com/jeremyhahn/go-credstore/pkg/types"
)

// runtime bundles the wired dependencies a command operates on.
type runtime struct {
	cfg     *config.Config
	log     logger.Logger
	backend storage.Backend
	manager *superkey.Manager
}

// Close releases the storage backend.
func (r *runtime) Close() error {
	return r.backend.Close()
}

// buildRuntime wires storage, keystore, legacy migration and the superkey
// manager from the server configuration.
func buildRuntime(c *Config) (*runtime, error) {
	cfg, err := c.serverConfig()
	if err != nil {
		return nil, err
	}

	log := newLogger(cfg.Logging)

	var be storage.Backend
	switch strings.ToLower(cfg.Storage.Backend) {
	case "memory":
		be = memory.New()
	case "file":
		be, err = file.New(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open storage at %s: %w", cfg.Storage.Path, err)
		}
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
	}

	db := keystore.New(be, log)
	adapter, params := kdfFromConfig(cfg.KDF)

	mgrCfg := superkey.Config{
		Database:  db,
		Policy:    enforcement.NewPolicy(),
		Logger:    log,
		KDF:       adapter,
		KDFParams: params,
	}

	var legacyStore *legacy.Store
	if cfg.Legacy.Enabled {
		legacyStore = legacy.NewStore(cfg.Legacy.Dir, log)
		mgrCfg.Legacy = legacyStore
	}

	manager := superkey.NewManager(mgrCfg)

	if legacyStore != nil {
		legacyStore.SetImporter(func(user types.UserID, material, pw []byte) (*superkey.KeyEntry, error) {
			p, err := password.New(pw)
			if err != nil {
				return nil, err
			}
			defer p.Clear()
			return manager.ImportMasterKey(user, material, p)
		})
	}

	return &runtime{
		cfg:     cfg,
		log:     log,
		backend: be,
		manager: manager,
	}, nil
}

// kdfFromConfig maps the configured KDF settings onto an adapter and its
// parameters, starting from the recommended defaults.
func kdfFromConfig(cfg config.KDFConfig) (kdf.KDFAdapter, *kdf.KDFParams) {
	switch strings.ToLower(cfg.Algorithm) {
	case "argon2id":
		params := kdf.DefaultParams(kdf.AlgorithmArgon2id)
		if cfg.MemoryKiB > 0 {
			params.Memory = cfg.MemoryKiB
		}
		if cfg.Time > 0 {
			params.Time = cfg.Time
		}
		if cfg.Threads > 0 {
			params.Threads = cfg.Threads
		}
		return kdf.ForAlgorithm(kdf.AlgorithmArgon2id), params
	default:
		params := kdf.DefaultParams(kdf.AlgorithmPBKDF2)
		if cfg.Iterations > 0 {
			params.Iterations = cfg.Iterations
		}
		return kdf.ForAlgorithm(kdf.AlgorithmPBKDF2), params
	}
}

// newLogger builds the logging adapter from the logging configuration.
func newLogger(cfg config.LoggingConfig) logger.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return logger.NewSlogAdapter(&logger.SlogConfig{Handler: handler})
}

// parseUserID parses a command-line user id argument.
func parseUserID(arg string) (types.UserID, error) {
	id, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid user id %q: %w", arg, err)
	}
	return types.UserID(id), nil
}
