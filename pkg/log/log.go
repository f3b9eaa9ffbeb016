package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance. Packages derive child loggers from
// it via the With helpers rather than logging through it directly.
var Logger zerolog.Logger

// Level represents log level
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init initializes the global logger. Unknown or empty levels fall back to
// info rather than failing: logging must never keep the engine from
// starting.
func Init(cfg Config) {
	level, err := zerolog.ParseLevel(string(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}
	if !cfg.JSONOutput {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}
	Logger = zerolog.New(output).With().Timestamp().Logger()
}

// With creates a child logger carrying one string field. The named helpers
// below exist so call sites agree on field names.
func With(key, value string) zerolog.Logger {
	return Logger.With().Str(key, value).Logger()
}

// WithComponent creates a child logger with the component field
func WithComponent(component string) zerolog.Logger {
	return With("component", component)
}

// WithGraph creates a child logger with the graph field
func WithGraph(graph string) zerolog.Logger {
	return With("graph", graph)
}

// WithWriter creates a child logger with the writer_id field
func WithWriter(writerID string) zerolog.Logger {
	return With("writer_id", writerID)
}
