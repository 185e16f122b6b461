// Package log constructs the service-wide zerolog logger.
package log

import (
	"os"

	"github.com/rs/zerolog"
)

// New returns a logger configured for the given environment: pretty
// console output and debug level in dev, JSON at info level otherwise.
func New(env string) zerolog.Logger {
	level := zerolog.InfoLevel
	var logger zerolog.Logger
	if env == "dev" {
		level = zerolog.DebugLevel
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Logger()
}
