// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package observability sets up the diagnostic logger and the per-run
// Prometheus metrics.
package observability

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/paper-intake/pkg/types"
)

// NewLogger builds a zerolog logger writing to w. Format "console" gives
// human-readable lines; anything else gives JSON.
func NewLogger(cfg types.LoggingConfig, w io.Writer) zerolog.Logger {
	out := w
	if strings.ToLower(cfg.Format) != "json" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(out).With().Timestamp().Logger().Level(ParseLevel(cfg.Level))
}

// ParseLevel converts a level name to a zerolog.Level; unknown names give info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	}
	return zerolog.InfoLevel
}

// WithRun tags every entry of logger with the run id and month.
func WithRun(logger zerolog.Logger, runID, month string) zerolog.Logger {
	return logger.With().Str("run_id", runID).Str("month", month).Logger()
}
