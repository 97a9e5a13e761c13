// Package logging provides structured logging for the CLI and its components.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/filedock/filedock/internal/constants"
)

// Logger wraps zerolog with an optional rotated log file.
type Logger struct {
	zlog    zerolog.Logger
	console io.Writer // current console writer
	file    *lumberjack.Logger
}

func consoleWriter(w io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
	}
}

// NewLogger creates a console logger writing to out.
// stderr is the usual choice; stdout is reserved for command output.
func NewLogger(out io.Writer) *Logger {
	l := &Logger{console: out}
	l.rebuild()
	return l
}

// NewFileLogger creates a logger that writes to the console and to a
// rotated log file. Rotation: 10 MB per file, 5 backups, 30 days, gzip.
func NewFileLogger(out io.Writer, path string) *Logger {
	l := &Logger{
		console: out,
		file: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    constants.LogMaxSizeMB,
			MaxBackups: constants.LogMaxBackups,
			MaxAge:     constants.LogMaxAgeDays,
			Compress:   true,
		},
	}
	l.rebuild()
	return l
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *Logger {
	return &Logger{zlog: zerolog.Nop(), console: io.Discard}
}

func (l *Logger) rebuild() {
	var w io.Writer = consoleWriter(l.console)
	if l.file != nil {
		// File output stays JSON for tooling; console stays human readable
		w = zerolog.MultiLevelWriter(w, l.file)
	}
	l.zlog = zerolog.New(w).With().Timestamp().Logger()
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

// With creates a child logger context with additional fields.
func (l *Logger) With() zerolog.Context {
	return l.zlog.With()
}

// SetOutput changes the console writer.
// This is used to route log lines through the progress bar container
// so they don't tear the bars.
func (l *Logger) SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	l.console = w
	l.rebuild()
}

// Output returns the current console writer.
func (l *Logger) Output() io.Writer {
	return l.console
}

// Close flushes and closes the log file, if any.
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

// ParseLevel maps a config value to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || s == "" {
		return zerolog.InfoLevel
	}
	return level
}

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	log.Logger = log.Output(consoleWriter(os.Stderr))
}
