package env

import (
	"log/slog"
	"strings"
)

// ParseLogLevel maps the LOG_LEVEL environment variable ("debug", "info",
// "warn", "error", case-insensitive) to a slog.Level. Unset or unrecognised
// values yield fallback, so a typo degrades to the default level instead of
// silencing the binary.
func ParseLogLevel(fallback slog.Level) slog.Level {
	switch strings.ToLower(Get("LOG_LEVEL", "")) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return fallback
}
