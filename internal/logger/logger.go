// Package logger builds the zerolog loggers used across the exporter.
package logger

import (
	"os"

	"github.com/rs/zerolog"
)

// New creates a logger based on the ENV environment variable: console output
// for development, JSON for everything else.
func New() zerolog.Logger {
	env := os.Getenv("ENV")
	if env == "development" || env == "dev" {
		return NewDevelopment()
	}
	return NewProduction()
}

// NewDevelopment creates a logger with human-readable console output.
func NewDevelopment() zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "2006-01-02 15:04:05",
	}
	return zerolog.New(output).With().Timestamp().Logger()
}

// NewProduction creates a logger with JSON output and UNIX timestamps.
func NewProduction() zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
