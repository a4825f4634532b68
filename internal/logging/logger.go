// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

// Package logging provides the process-wide zerolog logger for Resonance.
//
// The server and CLI call Init once with the logging section of the
// configuration and the name of the running binary. Every line carries the
// service name and, when known, its version. Components derive their own
// loggers from the global one:
//
//	logger := logging.WithComponent("recommend")
//	logger.Info().Int("users", n).Msg("batch finished")
//
// Libraries that expect other logging interfaces are bridged here:
// NewSlogHandler feeds suture's slog events into zerolog and
// NewWatermillAdapter does the same for the watermill router.
//
// Request-scoped fields travel in the context:
//
//	ctx = logging.ContextWithNewCorrelationID(ctx)
//	logging.Ctx(ctx).Info().Msg("recompute requested")
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Output formats accepted by Init.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Config selects where and how the global logger writes.
type Config struct {
	// Level is one of trace, debug, info, warn, error, fatal, panic or
	// disabled. Empty means info.
	Level string

	// Format is FormatJSON (default) or FormatConsole.
	Format string

	// Caller adds file:line to every entry.
	Caller bool

	// Service and Version are attached to every entry when set.
	Service string
	Version string

	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig is JSON at info level on stderr.
func DefaultConfig() Config {
	return Config{
		Level:   "info",
		Format:  FormatJSON,
		Service: "resonance",
		Output:  os.Stderr,
	}
}

var (
	mu  sync.RWMutex
	log zerolog.Logger
)

//nolint:gochecknoinits // logging works before Init is called
func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log = build(DefaultConfig(), zerolog.InfoLevel)
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// Init reconfigures the global logger. It is safe to call again, which the
// server does when the configuration file is reloaded. An unknown level or
// format leaves the current logger untouched.
func Init(cfg Config) error {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	switch cfg.Format {
	case "", FormatJSON, FormatConsole:
	default:
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}

	mu.Lock()
	defer mu.Unlock()
	log = build(cfg, level)
	zerolog.SetGlobalLevel(level)
	return nil
}

func build(cfg Config, level zerolog.Level) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Format == FormatConsole {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	lc := zerolog.New(out).Level(level).With().Timestamp()
	if cfg.Service != "" {
		lc = lc.Str("service", cfg.Service)
	}
	if cfg.Version != "" {
		lc = lc.Str("version", cfg.Version)
	}
	if cfg.Caller {
		lc = lc.Caller()
	}
	return lc.Logger()
}

// ParseLevel maps a level name to a zerolog level. Names are
// case-insensitive, "warning" is accepted for warn and empty means info.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "":
		return zerolog.InfoLevel, nil
	case "warning":
		return zerolog.WarnLevel, nil
	}
	l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
	return l, nil
}

// Logger returns the global logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// SetLogger replaces the global logger. Tests use it to capture output.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func SetLogger(l zerolog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	log = l
}

// Info, Warn, Error and Fatal start an entry on the global logger. Fatal
// exits the process after writing.
func Info() *zerolog.Event  { return current().Info() }
func Warn() *zerolog.Event  { return current().Warn() }
func Error() *zerolog.Event { return current().Error() }
func Fatal() *zerolog.Event { return current().Fatal() }

func current() *zerolog.Logger {
	l := Logger()
	return &l
}
