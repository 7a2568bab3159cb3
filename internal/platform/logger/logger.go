package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"rescue/internal/platform/config"
)

// New returns the process logger. JSON output is the default; "text" is meant
// for local development.
func New(cfg config.Logging) *slog.Logger {
	return NewWithWriter(os.Stdout, cfg)
}

// NewWithWriter builds a logger writing to w.
func NewWithWriter(w io.Writer, cfg config.Logging) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler).With("service", "rescue")
}

// Discard returns a logger that drops everything, for tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
