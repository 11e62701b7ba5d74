// Package logger configures the application's slog logger.
//
// Development and test runs get human readable, coloured output (tint); every other
// environment logs JSON. All handlers redact credentials embedded in connection strings
// before anything is written.
package logger

import (
	"io"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// LevelNone disables logging when used as the handler level
const LevelNone = slog.Level(math.MaxInt32)

// ParseLogLevel converts a LOG_LEVEL value to a slog level. Unknown values default to info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "none", "off":
		return LevelNone
	default:
		return slog.LevelInfo
	}
}

// InitLogger creates the application logger and installs it as the slog default
func InitLogger(level slog.Level, environment string) *slog.Logger {
	l := slog.New(NewHandler(os.Stdout, level, environment))
	slog.SetDefault(l)
	return l
}

// NewHandler returns the handler used for environment, writing to w
func NewHandler(w io.Writer, level slog.Level, environment string) slog.Handler {
	switch environment {
	case "", "development", "test":
		return tint.NewHandler(w, &tint.Options{
			Level:       level,
			TimeFormat:  time.Kitchen,
			ReplaceAttr: RedactAttr,
		})
	default:
		return slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: RedactAttr,
		})
	}
}
