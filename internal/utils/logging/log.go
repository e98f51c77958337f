// Package logging wraps zerolog with Fetcharr's leveled print helpers.
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level is the active debug verbosity (0-5). Messages logged with D(l, ...)
// only appear when l <= Level.
var Level int

var (
	mu  sync.Mutex
	log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()
)

// Setup configures the verbosity and an optional secondary log file.
func Setup(level int, logFile *os.File) {
	mu.Lock()
	defer mu.Unlock()

	Level = level

	w := io.Writer(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	if logFile != nil {
		w = zerolog.MultiLevelWriter(w, logFile)
	}
	log = zerolog.New(w).With().Timestamp().Logger()

	switch {
	case level <= 0:
		log = log.Level(zerolog.InfoLevel)
	default:
		log = log.Level(zerolog.DebugLevel)
	}
}

// I logs an informational message.
func I(format string, args ...any) {
	log.Info().Msg(fmt.Sprintf(format, args...))
}

// S logs a success message.
func S(format string, args ...any) {
	log.Info().Str("outcome", "success").Msg(fmt.Sprintf(format, args...))
}

// W logs a warning.
func W(format string, args ...any) {
	log.Warn().Msg(fmt.Sprintf(format, args...))
}

// E logs an error message.
func E(format string, args ...any) {
	log.Error().Msg(fmt.Sprintf(format, args...))
}

// D logs a debug message at verbosity l.
func D(l int, format string, args ...any) {
	if l > Level {
		return
	}
	log.Debug().Msg(fmt.Sprintf(format, args...))
}
