// Package logger configures the process-wide zerolog logger used by the
// Solver Pool, Solver Worker, and Core Optimizer.
package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global zerolog logger at the given level and
// returns it. Level is one of "debug", "info", "warn", "error"; anything
// else falls back to "info". Output always goes to stderr: the Solver
// Worker's stdout is reserved for the line-delimited JSON wire protocol.
func Setup(level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	l := zerolog.InfoLevel
	switch strings.ToLower(level) {
	case "debug":
		l = zerolog.DebugLevel
	case "info":
		l = zerolog.InfoLevel
	case "warn":
		l = zerolog.WarnLevel
	case "error":
		l = zerolog.ErrorLevel
	}

	logger := zerolog.New(os.Stderr).Level(l).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

// Logger returns the process-wide logger configured at info level.
func Logger() zerolog.Logger {
	return Setup("info")
}
