package logger

import (
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

// Configure installs the process-wide default slog logger. format
// "console" (or "dev") gets a colorized tint handler for local
// development; anything else gets structured JSON for production.
func Configure(levelStr string, format string) {
	level := parseLogLevel(levelStr)
	w := os.Stdout
	var handler slog.Handler

	switch format {
	case "console", "dev", "development":
		handler = tint.NewHandler(w, &tint.Options{Level: level})
	default:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
