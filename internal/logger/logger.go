package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	Logger zerolog.Logger
)

func init() {
	Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// ParseLevel maps a config level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Configure sets up the global logger. Pretty output goes through a console
// writer; both modes write to stderr so stdout stays machine-readable.
func Configure(level string, pretty bool) {
	zerolog.SetGlobalLevel(ParseLevel(level))

	var writer io.Writer = os.Stderr
	if pretty {
		writer = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.Kitchen,
		}
	}

	Logger = zerolog.New(writer).With().Timestamp().Logger()
	log.Logger = Logger
}

// Pipeline returns a child logger tagged with the pipeline name.
func Pipeline(name string) zerolog.Logger {
	return Logger.With().Str("pipeline", name).Logger()
}

// Infof and Warnf log CLI progress through the configured logger.
func Infof(format string, args ...interface{}) {
	Logger.Info().Msgf(format, args...)
}

func Warnf(format string, args ...interface{}) {
	Logger.Warn().Msgf(format, args...)
}
