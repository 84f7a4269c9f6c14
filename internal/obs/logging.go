// Package obs contains observability utilities such as logging.
package obs

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is the global structured logger used by the engine.
//
// It defaults to a JSON handler on stderr so packages can log before
// InitLogger runs.
var Logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

// InitLogger initializes the global Logger with a JSON handler on stderr.
// Stdout is left free for the balance report.
func InitLogger(level ...string) {
	lvl := "info"
	if len(level) > 0 {
		lvl = level[0]
	}
	InitLoggerTo(os.Stderr, lvl)
}

// InitLoggerTo initializes the global Logger writing to w.
func InitLoggerTo(w io.Writer, level string) {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	Logger = slog.New(h)
}

// ParseLevel maps debug|info|warn|error to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
