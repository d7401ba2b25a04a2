// Package logging wires the process-wide structured logger.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Log is the global logger instance used throughout the supervisor.
var Log *slog.Logger

// level is the dynamic log level, changeable at runtime via SetLevel.
// Backed by atomic.Int64 via slog.LevelVar — safe for concurrent use.
var level slog.LevelVar

// Init initializes the global logger at the given level ("debug", "info",
// "warn", "error"). Unknown values fall back to info.
func Init(levelStr string) {
	SetLevel(levelStr)
	Log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: &level,
	}))
}

// SetLevel changes the log level at runtime.
func SetLevel(levelStr string) {
	var lvl slog.Level
	switch strings.ToLower(levelStr) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	level.Set(lvl)
}

// VerbosityToLevel maps CLI -v repetition count to a level name, matching
// the original CLI's -v/-vv convention: 0=info, 1=debug, 2+=debug.
func VerbosityToLevel(count int) string {
	if count > 0 {
		return "debug"
	}
	return "info"
}

func Debug(msg string, args ...any) {
	if Log != nil {
		Log.Debug(msg, args...)
	}
}

func Info(msg string, args ...any) {
	if Log != nil {
		Log.Info(msg, args...)
	}
}

func Warn(msg string, args ...any) {
	if Log != nil {
		Log.Warn(msg, args...)
	}
}

func Error(msg string, args ...any) {
	if Log != nil {
		Log.Error(msg, args...)
	}
}
