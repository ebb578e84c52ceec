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

package logger

import (
	"log/slog"
	"os"
)

// SlogAdapter wraps a slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	logger *slog.Logger
}

// SlogConfig configures the slog adapter.
type SlogConfig struct {
	// Logger is the underlying slog logger. If nil, a new logger is created.
	Logger *slog.Logger

	// Level is the minimum log level to output
	Level Level

	// Handler is the slog handler to use (e.g., JSONHandler, TextHandler).
	// If nil and Logger is nil, a TextHandler writing to os.Stderr is used.
	Handler slog.Handler
}

// NewSlogAdapter creates a new slog adapter.
func NewSlogAdapter(config *SlogConfig) *SlogAdapter {
	if config == nil {
		config = &SlogConfig{Level: LevelInfo}
	}

	if config.Logger == nil {
		if config.Handler == nil {
			config.Handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: levelToSlogLevel(config.Level),
			})
		}
		config.Logger = slog.New(config.Handler)
	}

	return &SlogAdapter{logger: config.Logger}
}

// Default returns a text-format adapter at Info level.
func Default() Logger {
	return NewSlogAdapter(&SlogConfig{Level: LevelInfo})
}

// Debug logs a debug message
func (l *SlogAdapter) Debug(msg string, fields ...Field) {
	l.logger.Debug(msg, fieldsToArgs(fields)...)
}

// Info logs an informational message
func (l *SlogAdapter) Info(msg string, fields ...Field) {
	l.logger.Info(msg, fieldsToArgs(fields)...)
}

// Warn logs a warning message
func (l *SlogAdapter) Warn(msg string, fields ...Field) {
	l.logger.Warn(msg, fieldsToArgs(fields)...)
}

// Error logs an error message
func (l *SlogAdapter) Error(msg string, fields ...Field) {
	l.logger.Error(msg, fieldsToArgs(fields)...)
}

// With creates a child logger with the given fields
func (l *SlogAdapter) With(fields ...Field) Logger {
	return &SlogAdapter{logger: l.logger.With(fieldsToArgs(fields)...)}
}

func fieldsToArgs(fields []Field) []any {
	args := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		args = append(args, f.Key, f.Value)
	}
	return args
}

func levelToSlogLevel(level Level) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Verify interface compliance at compile time
var _ Logger = (*SlogAdapter)(nil)
