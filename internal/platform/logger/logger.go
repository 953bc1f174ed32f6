// Package logger configures the process-wide structured logger.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// New returns a JSON slog logger writing to stdout at the given level.
// Unknown level strings fall back to info.
func New(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// Degraded tags a log record as a fail-open control-plane degradation.
// Secondary controls (fraud analysis, audit appends, device gate) log through
// this so degraded integrity checks are distinguishable from primary-path
// failures in log pipelines.
func Degraded(log *slog.Logger, msg string, args ...any) {
	log.Warn(msg, append(args, "degraded", true)...)
}
