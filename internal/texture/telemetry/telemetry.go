// Package telemetry provides the three-stream leveled logger used across
// the texturing pipeline, following the teacher's
// internal/lidar/pipeline logging convention: an "ops" stream for
// actionable warnings/failures, a "diag" stream for day-to-day stage
// timing and counts, and a "trace" stream for high-volume per-texel/
// per-pixel detail that is normally disabled.
package telemetry

import (
	"io"
	"log"
)

// Logger bundles the three independent streams for one pipeline stage.
type Logger struct {
	ops   *log.Logger
	diag  *log.Logger
	trace *log.Logger
}

// New builds a Logger with the given prefix. Pass nil for any writer to
// disable that stream entirely.
func New(prefix string, ops, diag, trace io.Writer) *Logger {
	return &Logger{
		ops:   newLogger(prefix, ops),
		diag:  newLogger(prefix, diag),
		trace: newLogger(prefix, trace),
	}
}

// Silent builds a Logger with every stream disabled, for tests that don't
// want log noise.
func Silent(prefix string) *Logger {
	return New(prefix, nil, nil, nil)
}

func newLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

// Opsf logs an actionable message (a recovered per-item or per-texel
// failure, a counted error, solver non-convergence).
func (l *Logger) Opsf(format string, args ...interface{}) {
	if l != nil && l.ops != nil {
		l.ops.Printf(format, args...)
	}
}

// Diagf logs day-to-day diagnostic context: stage timing, counts.
func (l *Logger) Diagf(format string, args ...interface{}) {
	if l != nil && l.diag != nil {
		l.diag.Printf(format, args...)
	}
}

// Tracef logs high-frequency per-texel/per-pixel detail.
func (l *Logger) Tracef(format string, args ...interface{}) {
	if l != nil && l.trace != nil {
		l.trace.Printf(format, args...)
	}
}
