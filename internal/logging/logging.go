// Package logging provides slog helpers shared across quarry components.
//
// Loggers are dependency-injected, never global. Each component scopes its
// own logger once at construction time via slog.With. Handler configuration
// (format, level, destination) belongs only in the cmd layer.
package logging

import (
	"context"
	"log/slog"
)

// discardHandler drops all records.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// Discard returns a logger that discards all output.
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}

// Default returns logger if non-nil, otherwise a discard logger. This is the
// standard pattern for optional logger parameters:
//
//	func NewWorker(logger *slog.Logger) *Worker {
//	    logger = logging.Default(logger)
//	    return &Worker{logger: logger.With("component", "worker")}
//	}
func Default(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return Discard()
}
