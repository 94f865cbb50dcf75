package util

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	Logger zerolog.Logger = zerolog.Nop()
)

func ParseLevel(inlevel string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(inlevel)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

func LogInit(inlevel string) {
	level := ParseLevel(inlevel)
	// loggers handed out earlier follow level changes through the global level
	zerolog.SetGlobalLevel(level)
	Logger = zerolog.New(
		zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339},
	).Level(zerolog.TraceLevel).With().Timestamp().Caller().Logger()

	Logger.Info().Msgf("logging initialized at level %v", level)
}

// ComponentLogger tags log lines with the emitting component.
func ComponentLogger(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}
