// Package logging holds the module-wide structured logger.
//
// By default nothing is logged. Commands enable output with SetLogger:
//
//	logging.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))
//
// Levels used across the module:
//   - [slog.LevelDebug]: per-frame diagnostics
//   - [slog.LevelInfo]: pipeline lifecycle
//   - [slog.LevelWarn]: non-fatal problems (unknown patch keys, coprocessor faults)
//   - [slog.LevelError]: device failures
package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var current atomic.Pointer[slog.Logger]

func init() {
	current.Store(slog.New(nopHandler{}))
}

// SetLogger replaces the logger. Nil restores the silent default. It is safe
// to call while other goroutines log.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	current.Store(l)
}

// Logger returns the current logger.
func Logger() *slog.Logger {
	return current.Load()
}
