// Package logging wraps zerolog behind the minimal interface the rest of
// the core depends on, so components never import zerolog directly
// (mirrors the teacher's loggerOrNop pattern in internal/pluginengine).
package logging

import (
	"io"

	"github.com/rs/zerolog"
)

// Logger is the structured-logging contract consumed by the Executor.
// Event is a short machine-stable name (e.g. "script.fresh");
// fields are logged as key/value pairs.
type Logger interface {
	Info(event string, fields map[string]any)
	Warn(event string, fields map[string]any)
	Error(event string, fields map[string]any)
}

type zerologLogger struct {
	l zerolog.Logger
}

// New returns a Logger writing to w at the given level ("debug", "info",
// "warn", "error"; invalid or empty defaults to "info").
func New(w io.Writer, level string) Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return &zerologLogger{l: zerolog.New(w).Level(lvl).With().Timestamp().Logger()}
}

func (z *zerologLogger) Info(event string, fields map[string]any) {
	z.emit(z.l.Info(), event, fields)
}

func (z *zerologLogger) Warn(event string, fields map[string]any) {
	z.emit(z.l.Warn(), event, fields)
}

func (z *zerologLogger) Error(event string, fields map[string]any) {
	z.emit(z.l.Error(), event, fields)
}

func (z *zerologLogger) emit(ev *zerolog.Event, event string, fields map[string]any) {
	ev = ev.Str("event", event)
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(event)
}

type nopLogger struct{}

func (nopLogger) Info(string, map[string]any)  {}
func (nopLogger) Warn(string, map[string]any)  {}
func (nopLogger) Error(string, map[string]any) {}

// Nop returns a Logger that discards everything, used as the default when
// a caller passes nil.
func Nop() Logger { return nopLogger{} }

// OrNop returns l if non-nil, else Nop(). Mirrors the teacher's
// loggerOrNop helper.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop()
	}
	return l
}
