// Package monitoring exposes a process-wide error monitor.
package monitoring

import (
	"fmt"
	"time"
)

// Monitor defines methods used for error reporting.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	CapturePanic(v any, tags map[string]string)
	Flush(timeout time.Duration)
}

type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) CapturePanic(any, map[string]string)       {}
func (NopMonitor) Flush(time.Duration)                       {}

var current Monitor = NopMonitor{}

// Init sets the global monitor implementation.
func Init(m Monitor) {
	if m != nil {
		current = m
	}
}

// CaptureException records the error with optional tags.
func CaptureException(err error, tags map[string]string) {
	if current != nil && err != nil {
		current.CaptureException(err, tags)
	}
}

// Recover reports a panic of the calling goroutine and re-panics. It must be
// deferred directly: defer monitoring.Recover("component").
func Recover(component string) {
	if r := recover(); r != nil {
		if current != nil {
			current.CapturePanic(r, map[string]string{"component": component})
			current.Flush(2 * time.Second)
		}
		panic(r)
	}
}

// Go runs fn in a goroutine whose panics are reported before crashing.
func Go(component string, fn func()) {
	go func() {
		defer Recover(component)
		fn()
	}()
}

// Flush flushes buffered events.
func Flush(d time.Duration) {
	if current != nil {
		current.Flush(d)
	}
}

// PanicError converts a recovered value to an error.
func PanicError(v any) error {
	if err, ok := v.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", v)
}
