// Package logging builds the slog JSON loggers shared by the api and
// worker binaries.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// NewJSONLogger is the root logger for a binary. Every record carries
// the service name so api and worker lines stay distinguishable in
// aggregated output.
func NewJSONLogger(service, level string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	return slog.New(handler).With("service", service)
}

// Component derives a subsystem logger from the root one, tagging each
// record with the component name ("retriever", "chat_memory", ...).
func Component(base *slog.Logger, name string) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	return base.With("component", name)
}

// ParseLevel accepts the usual level names plus slog's offset notation
// ("WARN-2"). Unknown values fall back to info.
func ParseLevel(level string) slog.Level {
	level = strings.TrimSpace(level)
	switch strings.ToLower(level) {
	case "", "info":
		return slog.LevelInfo
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	var parsed slog.Level
	if err := parsed.UnmarshalText([]byte(level)); err == nil {
		return parsed
	}
	return slog.LevelInfo
}
