// Package main is the entry point for the qbsync server.
package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/eaur/qbsync/cmd/qbsync/app"
)

// getLogLevel parses the QBSYNC_LOG_LEVEL environment variable. Defaults to
// info if unset or invalid.
func getLogLevel() slog.Level {
	levelStr := os.Getenv("QBSYNC_LOG_LEVEL")

	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		slog.Warn("Invalid QBSYNC_LOG_LEVEL, using INFO", "value", levelStr)
		return slog.LevelInfo
	}
}

func main() {
	// Structured JSON logging on stderr so stdout stays clean for commands
	// that print data.
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: getLogLevel()})
	slog.SetDefault(slog.New(handler))

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
