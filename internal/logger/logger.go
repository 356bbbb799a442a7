package logger

import (
	"io"
	"os"
	"time"

	"codeberg.org/mutker/irsampler/internal/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

var log = zerolog.New(os.Stdout).With().Timestamp().Logger()

type LogLevel int8

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

type LogEvent struct {
	*zerolog.Event
}

func (e *LogEvent) Msg(msg string) {
	e.Event.Msg(msg)
}

func (e *LogEvent) Send() {
	e.Event.Send()
}

// Init initializes the logger based on the given configuration
func Init(debug, verbose, isService bool) {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	if isService {
		output.TimeFormat = ""
		output.FormatTimestamp = func(_ interface{}) string {
			return ""
		}
	}

	log = zerolog.New(output).With().Timestamp().Logger()

	SetLogLevel(WarnLevel)

	if debug {
		SetLogLevel(DebugLevel)
	} else if verbose {
		SetLogLevel(InfoLevel)
	}
}

// SetLogLevel sets the global log level
func SetLogLevel(level LogLevel) {
	zerolog.SetGlobalLevel(zerolog.Level(level))
}

// ParseLevel maps a configured level name onto a LogLevel.
func ParseLevel(name string) (LogLevel, error) {
	switch name {
	case "debug":
		return DebugLevel, nil
	case "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	}

	return 0, errors.New().WithData(errors.ErrInvalidLogLevel, name)
}

// IsService checks if the application is running as a service
func IsService() bool {
	if _, err := os.Stdin.Stat(); err != nil {
		return true
	}
	if os.Getenv("SERVICE_NAME") != "" || os.Getenv("INVOCATION_ID") != "" {
		return true
	}
	if unix.Getppid() == 1 {
		return true
	}

	return unix.Getpgrp() == unix.Getpid()
}

// Debug logs a debug message
func Debug() *LogEvent {
	return &LogEvent{log.Debug()}
}

// Info logs an info message
func Info() *LogEvent {
	return &LogEvent{log.Info()}
}

// Warn logs a warning message
func Warn() *LogEvent {
	return &LogEvent{log.Warn()}
}

// Error logs an error message
func Error() *LogEvent {
	return &LogEvent{log.Error()}
}

// ErrorWithCode logs an error message with a specific error code
func ErrorWithCode(err errors.Error) *LogEvent {
	return &LogEvent{log.Error().
		Str("error_code", string(err.Code())).
		Str("error_message", err.Error()).
		AnErr("error", err.Unwrap())}
}

// Fatal logs a fatal message and exits the program
func Fatal() *LogEvent {
	return &LogEvent{log.Fatal()}
}

// FatalWithCode logs a fatal message with a specific error code and exits the program
func FatalWithCode(err errors.Error) *LogEvent {
	return &LogEvent{log.Fatal().
		Str("error_code", string(err.Code())).
		Str("error_message", err.Error()).
		AnErr("error", err.Unwrap())}
}

// componentLogger implements Logger on top of a zerolog.Logger. A nil base
// means "use the package logger as configured by Init".
type componentLogger struct {
	base      *zerolog.Logger
	component string
}

// Default returns a Logger backed by the package-level logger.
func Default() Logger {
	return &componentLogger{}
}

// New returns a Logger writing JSON lines to w.
func New(w io.Writer) Logger {
	l := zerolog.New(w).With().Timestamp().Logger()
	return &componentLogger{base: &l}
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	l := zerolog.Nop()
	return &componentLogger{base: &l}
}

func (c *componentLogger) logger() zerolog.Logger {
	l := log
	if c.base != nil {
		l = *c.base
	}
	if c.component != "" {
		l = l.With().Str("component", c.component).Logger()
	}

	return l
}

func (c *componentLogger) Debug() *LogEvent {
	l := c.logger()
	return &LogEvent{l.Debug()}
}

func (c *componentLogger) Info() *LogEvent {
	l := c.logger()
	return &LogEvent{l.Info()}
}

func (c *componentLogger) Warn() *LogEvent {
	l := c.logger()
	return &LogEvent{l.Warn()}
}

func (c *componentLogger) Error() *LogEvent {
	l := c.logger()
	return &LogEvent{l.Error()}
}

func (c *componentLogger) ErrorWithCode(err errors.Error) *LogEvent {
	l := c.logger()
	return &LogEvent{l.Error().
		Str("error_code", string(err.Code())).
		Str("error_message", err.Error()).
		AnErr("error", err.Unwrap())}
}

func (c *componentLogger) With(component string) Logger {
	return &componentLogger{base: c.base, component: component}
}
