package logger

import corelogger "github.com/kilianp07/fleetdispatch/core/logger"

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger implements Logger with no-op methods.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any)         {}
func (NopLogger) Debugw(string, map[string]any) {}
func (NopLogger) Infof(string, ...any)          {}
func (NopLogger) Warnf(string, ...any)          {}
func (NopLogger) Errorf(string, ...any)         {}

// Config controls level, format and optional file output.
type Config struct {
	Level  string `json:"level"`
	Format string `json:"format"` // json or console
	// File enables a rotating log file alongside stdout.
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

var defaults Config

// Configure sets the process-wide defaults used by New.
func Configure(cfg Config) {
	defaults = cfg
}

// New returns a Logger for the given component using the configured
// defaults. Without configuration the format follows APP_ENV.
func New(component string) Logger {
	return NewWithConfig(component, defaults)
}
