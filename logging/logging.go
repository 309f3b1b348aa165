// Package logging builds the diagnostic logger for journal-cli.
package logging

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Levels lists the accepted level names.
var Levels = []string{"debug", "info", "warn", "error", "disabled"}

// New returns a human-readable zerolog logger writing to w at level.
// An empty level means "warn".
func New(w io.Writer, level string) (zerolog.Logger, error) {
	if level == "" {
		level = "warn"
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}

	output := zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    true,
		TimeFormat: time.TimeOnly,
	}

	return zerolog.New(output).Level(lvl).With().Timestamp().Logger(), nil
}
