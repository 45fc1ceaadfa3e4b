package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/phrazzld/recipe-queue/internal/config"
)

// ParseLevel maps a configured level name (case-insensitive) onto a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// New creates a JSON logger writing to w at the given level.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// Setup initializes and configures the application's logging system based on
// the provided configuration. It creates a structured JSON logger on stdout
// and sets it as the default logger for the application.
//
// An invalid level falls back to info; the fallback is reported on the
// returned logger.
func Setup(cfg config.ServerConfig) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.LogLevel)

	logger := New(os.Stdout, level)
	slog.SetDefault(logger)

	if err != nil {
		logger.Warn("invalid log level configured, using default level",
			"configured_level", cfg.LogLevel,
			"default_level", "info")
	}
	return logger, nil
}
