package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"meetpilot/internal/infrastructure/config"
)

// LevelSuccess is a custom level between Info and Warn for positive outcomes
// (process started, cleanup completed). The original pipeline's logger carried
// a distinct SUCCESS severity and child-process output is classified into it,
// so it is preserved rather than folded into Info.
const LevelSuccess = slog.Level(2)

// Logger wraps slog.Logger with meetpilot-specific functionality.
//
// It provides structured logging with default fields, level-based filtering,
// and the additional Success level.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger
}

// New creates a new Logger with the specified configuration.
//
// It configures:
//   - Output format (JSON for production, text for development)
//   - Log level filtering
//   - Default fields (service name, version)
//   - Output destination
//
// Parameters:
//   - cfg: Logging configuration from config.yaml
//   - version: Application version for default field
//
// Returns:
//   - *Logger: Configured logger ready for use
func New(cfg config.LoggingConfig, version string) *Logger {
	// Determine output writer
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}

	// Parse log level
	level := parseLevel(cfg.Level)

	// Create handler based on format
	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: renameCustomLevels,
	}

	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}

	// Add default fields
	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "meetpilot"),
		slog.String("version", version),
	})

	return &Logger{
		Logger: slog.New(handler),
	}
}

// Success logs at LevelSuccess. It mirrors Info/Warn/Error on the embedded
// slog.Logger for the custom level.
func (l *Logger) Success(msg string, args ...any) {
	l.Log(context.Background(), LevelSuccess, msg, args...)
}

// renameCustomLevels renders LevelSuccess as "SUCCESS" instead of slog's
// default "INFO+2".
func renameCustomLevels(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if level, ok := a.Value.Any().(slog.Level); ok && level == LevelSuccess {
			a.Value = slog.StringValue("SUCCESS")
		}
	}
	return a
}

// parseLevel converts a string log level to slog.Level.
//
// Supported levels: debug, info, success, warn, error
// Defaults to info if unrecognised.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "success":
		return LevelSuccess
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a new Logger with additional default attributes.
//
// Parameters:
//   - args: Key-value pairs to add as default attributes
//
// Returns:
//   - *Logger: New logger with added attributes
//
// Example:
//
//	procLogger := logger.With("component", "supervisor")
//	procLogger.Info("started") // Includes component=supervisor
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
	}
}

// Default creates a default logger for use before configuration is loaded.
//
// This logger outputs to stdout in JSON format at info level.
// It should only be used during early startup before config is available.
//
// Returns:
//   - *Logger: Default logger
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}
