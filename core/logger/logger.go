// Package logger defines the logging contract of the dispatch core. The zerolog
// implementation lives in infra/logger.
package logger

// Logger is handed to every core component; each implementation tags lines
// with the component it was created for.
type Logger interface {
	Debugf(format string, args ...any)
	// Debugw logs a message with structured fields such as order or vehicle ids.
	Debugw(msg string, fields map[string]any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}
