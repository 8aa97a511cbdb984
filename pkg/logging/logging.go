// Package logging provides structured logging for ste-extract using zerolog.
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultLevel is used when no level, or an unknown one, is requested.
const DefaultLevel = zerolog.InfoLevel

var (
	logger *zerolog.Logger
	pretty bool
)

func init() {
	// Default to JSON logging at info level
	l := zerolog.New(os.Stderr).Level(DefaultLevel).With().Timestamp().Logger()
	logger = &l
}

// ParseLevel maps the level names accepted on the command line
// (error, warn, info, debug; case-insensitive) to zerolog levels.
// ok is false for any other name, in which case DefaultLevel is returned.
func ParseLevel(name string) (level zerolog.Level, ok bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "error":
		return zerolog.ErrorLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	default:
		return DefaultLevel, false
	}
}

// Init configures the process logger.
// If human is true, uses a human-friendly console writer.
func Init(level zerolog.Level, human bool) {
	pretty = human

	var output zerolog.LevelWriter
	if human {
		output = zerolog.LevelWriterAdapter{Writer: zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
			NoColor:    false,
		}}
	} else {
		output = zerolog.LevelWriterAdapter{Writer: os.Stderr}
	}

	l := zerolog.New(output).Level(level).With().Timestamp().Logger()
	logger = &l
}

// L returns the base logger.
func L() *zerolog.Logger {
	return logger
}

// IsPrettyMode reports whether the console writer is active. Completion
// events add human-readable companion fields in pretty mode.
func IsPrettyMode() bool {
	return pretty
}

// SetLogger allows overriding the global logger (useful for testing).
func SetLogger(l zerolog.Logger) {
	logger = &l
}
