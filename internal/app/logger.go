// Package app wires process-level concerns shared by all commands.
package app

import (
	"log/slog"
	"os"
	"strings"

	"github.com/shelfmark/seriesdb/internal/config"
)

// NewLogger builds the process logger from LogConfig and installs it as the
// slog default. Format "json" is for batch runs whose output gets collected;
// anything else falls back to the text handler with source locations, which
// is what you want when running imports by hand. Logs go to stderr so
// dry-run report output on stdout stays clean.
func NewLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.Level)})
	default:
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level:     parseLevel(cfg.Level),
			AddSource: true,
		})
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// parseLevel maps a config string to a slog level, defaulting to info on
// anything unrecognized rather than failing the run.
func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}
