package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init builds the process logger on stdout, installs it as the zerolog
// global and returns it.
func Init(level, format string) zerolog.Logger {
	l := New(level, format, os.Stdout)
	log.Logger = l
	return l
}

// New builds a logger writing to out. Format "json" writes structured
// lines; anything else writes human readable console output, colored only
// when out is a terminal.
func New(level, format string, out io.Writer) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLogLevel(level))

	if !strings.EqualFold(format, "json") {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			NoColor:    !isTerminal(out),
		}
	}

	return zerolog.New(out).With().
		Timestamp().
		Caller().
		Logger()
}

// parseLogLevel maps LOG_LEVEL onto zerolog, falling back to info for
// empty or unknown values
func parseLogLevel(level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		level = "warn"
	}

	parsed, err := zerolog.ParseLevel(level)
	if err != nil || parsed == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return parsed
}

func isTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
