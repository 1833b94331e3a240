// Package metrics defines the instrumentation capability handed to handlers
// and workers. Implementations are fire-and-forget: once constructed they
// never return errors and never propagate failures to the caller.
package metrics

import (
	"log/slog"
	"time"
)

// Client records counters and timings. Implementations must be safe for
// concurrent use.
type Client interface {
	// Increment bumps the named counter by one.
	Increment(name string)

	// Timing runs fn and records its wall-clock duration under name.
	Timing(name string, fn func())
}

// NoOp discards all metrics. It is the default collaborator when no client
// is injected.
type NoOp struct{}

// Increment does nothing.
func (NoOp) Increment(name string) {}

// Timing runs fn without recording.
func (NoOp) Timing(name string, fn func()) { fn() }

// Log writes metrics to a structured logger at debug level. Useful in
// development and as a reference implementation.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a logging metrics client. A nil logger falls back to
// slog.Default().
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

// Increment implements Client.
func (l *Log) Increment(name string) {
	l.logger.Debug("metric increment", "name", name)
}

// Timing implements Client.
func (l *Log) Timing(name string, fn func()) {
	start := time.Now()
	fn()
	l.logger.Debug("metric timing", "name", name, "duration", time.Since(start))
}
