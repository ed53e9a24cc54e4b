// Package logx holds the zerolog logger shared by the host and pack
// binaries.
package logx

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Log is the process-wide logger. Packages log through it directly rather
// than threading a logger through every constructor.
var Log = log.Logger

// Configure sets the global level and switches to console output. Level
// strings are case-insensitive and accept common synonyms (warning, off,
// all); unknown values fall back to info.
func Configure(level string) {
	zerolog.SetGlobalLevel(parseLevel(level))
	Log = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "all", "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "none", "off", "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// LOG_LEVEL applies before flags are parsed so early startup logging
// respects it.
func init() {
	Configure(os.Getenv("LOG_LEVEL"))
}
