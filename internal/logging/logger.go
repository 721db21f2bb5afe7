// Package logging provides structured logging for the tray controller.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps zerolog with the console/file split used by MixTray.
type Logger struct {
	zlog zerolog.Logger
	file *lumberjack.Logger
}

// Options configures NewLogger.
type Options struct {
	// Console is the human-readable sink (stderr when nil).
	Console io.Writer

	// FilePath enables a rotating log file when non-empty.
	FilePath string
}

// NewLogger creates a logger writing to the console and, optionally, a
// rotating file. Binaries built with -H=windowsgui have no console, so the
// file is the only durable record there.
func NewLogger(opts Options) *Logger {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	l := &Logger{}
	writers := []io.Writer{zerolog.ConsoleWriter{
		Out:        console,
		TimeFormat: "15:04:05",
	}}

	if opts.FilePath != "" {
		l.file = &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    5, // MB
			MaxBackups: 3,
			MaxAge:     14, // days
			Compress:   true,
		}
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        l.file,
			NoColor:    true,
			TimeFormat: "2006-01-02 15:04:05.000",
		})
	}

	l.zlog = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().
		Timestamp().
		Int("pid", os.Getpid()).
		Logger()

	return l
}

// NewWriterLogger creates a logger writing JSON lines to w. Tests use it to
// assert on logged fields.
func NewWriterLogger(w io.Writer) *Logger {
	return &Logger{zlog: zerolog.New(w).With().Timestamp().Logger()}
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

// Component returns a child logger tagged with the component name.
func (l *Logger) Component(name string) *Logger {
	return &Logger{
		zlog: l.zlog.With().Str("component", name).Logger(),
		file: l.file,
	}
}

// Info returns an info level event.
func (l *Logger) Info() *zerolog.Event {
	return l.zlog.Info()
}

// Error returns an error level event.
func (l *Logger) Error() *zerolog.Event {
	return l.zlog.Error()
}

// Debug returns a debug level event.
func (l *Logger) Debug() *zerolog.Event {
	return l.zlog.Debug()
}

// Warn returns a warn level event.
func (l *Logger) Warn() *zerolog.Event {
	return l.zlog.Warn()
}

// Infof logs an info message with printf-style formatting.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.zlog.Info().Msgf(format, args...)
}

// Close flushes and closes the rotating file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// SetGlobalLevel sets the global log level.
func SetGlobalLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

// ParseLevel maps a config string to a zerolog level.
func ParseLevel(s string) (zerolog.Level, error) {
	return zerolog.ParseLevel(s)
}
