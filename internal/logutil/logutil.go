// Package logutil builds the root zerolog logger shared across the
// modem, container codec, and sync engine components, following the
// teacher's pattern of a single configured root logger with per-
// component .With() children (see pkg/connector/sync_controller.go's
// log.With().Str("component", ...)).
package logutil

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Options configures the root logger.
type Options struct {
	Debug  bool
	JSON   bool
	Output io.Writer
}

// New builds the root logger. Non-JSON output goes through zerolog's
// ConsoleWriter for human-readable local runs; JSON output is plain
// newline-delimited JSON for piping into a log aggregator.
func New(opts Options) zerolog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	level := zerolog.InfoLevel
	if opts.Debug {
		level = zerolog.DebugLevel
	}

	var writer io.Writer = out
	if !opts.JSON {
		writer = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	return zerolog.New(writer).
		Level(level).
		With().
		Timestamp().
		Logger()
}
