package logging

import (
	"log/slog"
	"os"
	"strings"
)

var logLevel = new(slog.LevelVar)

// Configure sets up the global default logger with a TextHandler on stdout
// at the given level (DEBUG, INFO, WARN or ERROR).  Anything else means
// INFO.
func Configure(level string) {
	logLevel.Set(ParseLevel(level))
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// SetLevel changes the level of the logger installed by Configure.
func SetLevel(level slog.Level) {
	logLevel.Set(level)
}
