package log

import (
	"context"
	"io"
	stdlog "log"
	"os"

	console "github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type (
	Logger  = zerolog.Logger
	Context = zerolog.Context
	Event   = *zerolog.Event
	Level   = zerolog.Level
)

var DefaultLogger *Logger

var (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	FatalLevel = zerolog.FatalLevel
	PanicLevel = zerolog.PanicLevel

	SetLevel = zerolog.SetGlobalLevel
)

var (
	Err       = log.Err
	Trace     = log.Trace
	Debug     = log.Debug
	Info      = log.Info
	Warn      = log.Warn
	Error     = log.Error
	Fatal     = log.Fatal
	Panic     = log.Panic
	Log       = log.Log
	WithLevel = log.WithLevel
	Print     = log.Print
	Printf    = log.Printf
)

func init() {
	Output(os.Stderr)
}

func setOutput(w io.Writer) {
	log.Logger = zerolog.New(w).With().Timestamp().Logger()

	zerolog.DefaultContextLogger = &log.Logger
	DefaultLogger = &log.Logger

	stdlog.SetFlags(0)
	stdlog.SetOutput(log.Logger)
}

// Output replaces the global logger output.
// Terminals get a human readable console writer, anything else gets JSON lines.
func Output(w io.Writer) {
	if f, ok := w.(*os.File); ok && console.IsTerminal(f.Fd()) {
		w = zerolog.ConsoleWriter{Out: f}
	}
	setOutput(w)
}

// OutputFile appends log lines to path in addition to stderr.
// The returned closer must be called on exit.
func OutputFile(path string) (io.Closer, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	var stderr io.Writer = os.Stderr
	if console.IsTerminal(os.Stderr.Fd()) {
		stderr = zerolog.ConsoleWriter{Out: os.Stderr}
	}
	setOutput(zerolog.MultiLevelWriter(stderr, f))
	return f, nil
}

func With() Context {
	return log.Logger.With()
}

func WithContext(ctx context.Context) context.Context {
	return log.Logger.WithContext(ctx)
}

func Ctx(ctx context.Context) *Logger {
	return zerolog.Ctx(ctx)
}
