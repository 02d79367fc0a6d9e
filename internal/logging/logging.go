package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide logger. It writes JSON to stderr until Init is called.
var Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

// Level is a textual log level as it appears in LOG_LEVEL.
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

// Init configures the global logger
func Init(cfg Config) {
	zerolog.SetGlobalLevel(ParseLevel(string(cfg.Level)))

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
		return
	}
	Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        output,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()
}

// ParseLevel maps a LOG_LEVEL value to a zerolog level, defaulting to info.
func ParseLevel(raw string) zerolog.Level {
	switch Level(strings.ToLower(strings.TrimSpace(raw))) {
	case DebugLevel:
		return zerolog.DebugLevel
	case InfoLevel:
		return zerolog.InfoLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithComponent creates a child logger with component field
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithUser creates a child logger with user_id field
func WithUser(component, userID string) zerolog.Logger {
	return Logger.With().Str("component", component).Str("user_id", userID).Logger()
}

// Printf adapts the global logger to Printf-style callers such as goose.
type Printf struct {
	Component string
}

func (p Printf) logger() zerolog.Logger {
	if p.Component != "" {
		return WithComponent(p.Component)
	}
	return Logger
}

func (p Printf) Printf(format string, v ...any) {
	l := p.logger()
	l.Info().Msgf(strings.TrimRight(format, "\n"), v...)
}

// Fatalf logs at fatal level and exits, as goose.Logger expects.
func (p Printf) Fatalf(format string, v ...any) {
	l := p.logger()
	l.Fatal().Msgf(strings.TrimRight(format, "\n"), v...)
}
