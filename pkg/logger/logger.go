// Package logger provides the process-wide slog configuration.
package logger

import (
	"log/slog"
	"os"
	"strings"

	"go.uber.org/fx"
)

// Module provides the application logger
var Module = fx.Module("logger",
	fx.Provide(NewLogger),
)

// NewLogger builds the root logger. Level comes from LOG_LEVEL
// (debug/info/warn/error, case-insensitive, default info). When GO_ENV is
// "production" the handler emits JSON; otherwise human-readable text.
func NewLogger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	case "info":
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if os.Getenv("GO_ENV") == "production" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

// Scope returns a scope attribute identifying a component
func Scope(scope string) slog.Attr {
	return slog.String("scope", scope)
}

// Error returns an error attribute for structured logging
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}
