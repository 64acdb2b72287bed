// Package logging configures the process logger. Lambda handlers log JSON to
// stderr; the CLI uses the console writer. Secret values are never logged.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New returns a JSON logger writing to stderr at the given level. Unknown
// levels fall back to info.
func New(level string) zerolog.Logger {
	return build(os.Stderr, level)
}

// NewConsole returns a human-readable logger for interactive use.
func NewConsole(level string) zerolog.Logger {
	return build(zerolog.ConsoleWriter{Out: os.Stderr}, level)
}

func build(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}
