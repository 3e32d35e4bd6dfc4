package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/phrazzld/quizgen-api/internal/config"
)

// Setup initializes the application's logging system from the server
// configuration. It creates a structured JSON logger writing to stdout,
// installs it as the slog default and returns it.
func Setup(cfg config.ServerConfig) (*slog.Logger, error) {
	return setup(cfg, os.Stdout)
}

func setup(cfg config.ServerConfig, out io.Writer) (*slog.Logger, error) {
	level, ok := ParseLevel(cfg.LogLevel)
	if !ok {
		// Fall back to info and say so once on stderr.
		tmpLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		tmpLogger.Warn("invalid log level configured, using default level",
			"configured_level", cfg.LogLevel,
			"default_level", "info")
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger, nil
}

// ParseLevel converts a configured level name (case-insensitive) to a slog.Level.
// Unknown names map to info and report ok=false.
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}
