package cqldata

import (
	"log/slog"
	"os"
	"strings"
)

var logLevel = new(slog.LevelVar)

// ConfigureLogging sets up the global default logger with a TextHandler
// and configures the log level based on the CQLDATA_LOG_LEVEL environment variable.
// It defaults to Info level if not specified.
//
// Note this is the process (diagnostic) log. Tenant log records persisted to the
// wide-column store are handled by the logging package.
func ConfigureLogging() {
	// Default to Info
	logLevel.Set(slog.LevelInfo)

	if lvl, ok := ParseSlogLevel(os.Getenv("CQLDATA_LOG_LEVEL")); ok {
		logLevel.Set(lvl)
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// SetLogLevel sets the logging level for the logger configured by ConfigureLogging.
func SetLogLevel(level slog.Level) {
	logLevel.Set(level)
}

// ParseSlogLevel maps DEBUG, INFO, WARN and ERROR (any case) to a slog level.
func ParseSlogLevel(s string) (slog.Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug, true
	case "INFO":
		return slog.LevelInfo, true
	case "WARN":
		return slog.LevelWarn, true
	case "ERROR":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}
