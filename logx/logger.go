package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options controls where and how verbosely the process logs.
type Options struct {
	// Debug enables debug level output.
	Debug bool
	// Console writes human-readable output to stderr. Ignored when File is set.
	Console bool
	// File, when set, receives JSON log lines (0600 permissions).
	File string
}

var DefaultOptions = Options{Console: true}

var sink io.Closer

// Init configures the global logger. It is safe to call more than once; a
// previously opened log file is closed.
func Init(opts ...Options) error {
	o := DefaultOptions
	if len(opts) > 0 {
		o = opts[0]
	}

	if sink != nil {
		_ = sink.Close()
		sink = nil
	}

	level := zerolog.InfoLevel
	if o.Debug {
		level = zerolog.DebugLevel
	}

	switch {
	case o.File != "":
		if err := os.MkdirAll(filepath.Dir(o.File), 0700); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(o.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		sink = f
		log.Logger = zerolog.New(f).With().Timestamp().Caller().Logger().Level(level)
	case o.Console:
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Caller().Logger().Level(level)
	default:
		log.Logger = zerolog.Nop()
	}
	return nil
}

// Disable silences all output, used while a full-screen UI owns the terminal.
func Disable() {
	log.Logger = zerolog.Nop()
}

func Debug() *zerolog.Event {
	return log.Debug()
}

func Info() *zerolog.Event {
	return log.Info()
}

func Warn() *zerolog.Event {
	return log.Warn()
}

func Error() *zerolog.Event {
	return log.Error()
}
