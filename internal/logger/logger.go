package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/household-ledger/internal/config"
)

// ParseLevel maps a configured level name to a slog level; unknown names fall back to info
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
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

// NewLogger creates the JSON service logger on stdout, tagged with the application name and
// environment
func NewLogger(cfg *config.Config) *slog.Logger {
	level := ParseLevel(cfg.Logging.Level)
	logger := New(os.Stdout, level)

	if cfg.Application.Name != "" {
		logger = logger.With("app", cfg.Application.Name, "env", cfg.Application.Env)
	}

	logger.Info("logger initialized", "level", level)

	return logger
}

// New writes JSON records at or above level to w. Source locations are added at debug level.
func New(w io.Writer, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
