// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

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

// Config controls logger construction.
type Config struct {
	// Level is the minimum level to emit: trace, debug, info, warn,
	// error, fatal, panic, or disabled.
	Level string `json:"level" yaml:"level"`

	// Format selects the output encoding: "json" for machine-readable
	// output or "console" for human-readable colored output.
	Format string `json:"format" yaml:"format"`

	// Caller adds the file:line of the call site to each entry.
	// Useful while debugging, noisy in production.
	Caller bool `json:"caller" yaml:"caller"`

	// Timestamp adds an RFC3339 timestamp to each entry.
	Timestamp bool `json:"timestamp" yaml:"timestamp"`

	// Output is the destination writer. Defaults to os.Stderr.
	Output io.Writer `json:"-" yaml:"-"`
}

// DefaultConfig returns the production defaults: info-level JSON to stderr.
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Format:    "json",
		Caller:    false,
		Timestamp: true,
		Output:    os.Stderr,
	}
}

var (
	// log is the global logger instance. Guarded by mu because jobs,
	// the scheduler, and HTTP handlers log concurrently.
	log zerolog.Logger

	// mu protects log during Init and SetLogger.
	mu sync.RWMutex
)

func init() {
	log = newLogger(DefaultConfig())
}

// Init replaces the global logger with one built from cfg.
// Call once during startup, before the supervision tree starts.
func Init(cfg Config) error {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	zerolog.SetGlobalLevel(level)

	mu.Lock()
	log = newLogger(cfg)
	mu.Unlock()
	return nil
}

// newLogger constructs a zerolog.Logger from cfg without touching globals.
func newLogger(cfg Config) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.TimestampFieldName = "timestamp"
	zerolog.LevelFieldName = "level"
	zerolog.MessageFieldName = "message"
	zerolog.ErrorFieldName = "error"

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	if strings.EqualFold(cfg.Format, "console") {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: "15:04:05",
		}
	}

	logger := zerolog.New(output)

	logCtx := logger.With()
	if cfg.Timestamp {
		logCtx = logCtx.Timestamp()
	}
	if cfg.Caller {
		logCtx = logCtx.Caller()
	}
	return logCtx.Logger()
}

// parseLevel converts a level string to a zerolog.Level.
func parseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "info", "":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "fatal":
		return zerolog.FatalLevel, nil
	case "panic":
		return zerolog.PanicLevel, nil
	case "disabled", "off":
		return zerolog.Disabled, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("unknown level")
	}
}

// Logger returns a copy of the global logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// SetLogger replaces the global logger. Tests use this together with
// NewTestLogger to capture output.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func SetLogger(logger zerolog.Logger) {
	mu.Lock()
	log = logger
	mu.Unlock()
}

// With returns a context builder for deriving a child logger.
//
//	logger := logging.With().Str("account", name).Logger()
func With() zerolog.Context {
	mu.RLock()
	defer mu.RUnlock()
	return log.With()
}

// Trace starts a trace level event.
func Trace() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Trace()
}

// Debug starts a debug level event.
func Debug() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Debug()
}

// Info starts an info level event.
func Info() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Info()
}

// Warn starts a warn level event.
func Warn() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Warn()
}

// Error starts an error level event.
func Error() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Error()
}

// Err starts an error level event with err attached, or info if err is nil.
func Err(err error) *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Err(err)
}

// Fatal starts a fatal level event. The program exits after the message
// is written, so reserve this for unrecoverable startup failures.
func Fatal() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Fatal()
}

// Panic starts a panic level event. Panics after the message is written.
func Panic() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Panic()
}

// GetLevel returns the current global log level.
func GetLevel() zerolog.Level {
	return zerolog.GlobalLevel()
}

// SetLevel changes the global log level at runtime.
func SetLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

// SetLevelString changes the global log level from its string form.
func SetLevelString(level string) error {
	parsed, err := parseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(parsed)
	return nil
}

// IsLevelEnabled reports whether events at level would be written.
// Use to skip building expensive log fields:
//
//	if logging.IsLevelEnabled(zerolog.DebugLevel) {
//		logging.Debug().Int("rows", len(rows)).Msg("Allocation input")
//	}
func IsLevelEnabled(level zerolog.Level) bool {
	return level >= zerolog.GlobalLevel() && level != zerolog.Disabled
}

// NewTestLogger returns a debug-level JSON logger writing to w.
// Intended for assertions on log output in tests.
func NewTestLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger().Level(zerolog.DebugLevel)
}

// NewConsoleTestLogger returns a debug-level console logger writing to w.
// Useful when a failing test's log output needs to be readable.
func NewConsoleTestLogger(w io.Writer) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
		NoColor:    true,
	}
	return zerolog.New(output).With().Timestamp().Logger().Level(zerolog.DebugLevel)
}
