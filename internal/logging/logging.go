// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging builds the structured log sink shared by the pipeline
// components. The entry point calls Setup once and injects the returned
// logger into every constructor.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pdiddy/odparse/pkg/types"
)

// ParseLevel maps a configured level name to a slog level. It accepts the
// names debug, info, warning (or warn), error, and critical.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warning", "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "critical", "fatal":
		return slog.LevelError + 4, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", name)
	}
}

// Setup returns a logger writing to stderr and, when cfg.LogFile is set, to
// that file in append mode. The returned close function releases the file.
func Setup(cfg types.LoggingConfig) (*slog.Logger, func() error, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	var w io.Writer = os.Stderr
	closeFn := func() error { return nil }
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file %s: %w", cfg.LogFile, err)
		}
		w = io.MultiWriter(os.Stderr, f)
		closeFn = f.Close
	}

	return New(w, level, cfg.Format), closeFn, nil
}

// New returns a logger writing to w with the given level and format
// ("json" selects the JSON handler, anything else the text handler).
func New(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Discard returns a logger that drops every record. Tests use it where
// log output is irrelevant.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
