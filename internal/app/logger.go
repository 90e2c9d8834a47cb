package app

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/iris-familiar/bay-area-food-map-sub001/internal/config"
)

// NewLogger builds the process logger from LogConfig, writes to stderr and
// installs it as the slog default. Every line carries the build version.
//
// Format "json" is meant for scheduled runs, "text" (with source locations)
// for local runs. Level is debug, info, warn or error; anything else is info.
func NewLogger(cfg config.LogConfig) *slog.Logger {
	logger := newLogger(os.Stderr, cfg).With(slog.String("version", Version))
	slog.SetDefault(logger)
	return logger
}

// RunLogger scopes log to one mutating run so that the lines of a stage
// chain can be grouped after the fact.
func RunLogger(log *slog.Logger, op string) *slog.Logger {
	return log.With(slog.String("run_id", uuid.NewString()), slog.String("op", op))
}

func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	format := strings.ToLower(strings.TrimSpace(cfg.Format))
	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: format == "text",
	}

	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}
