// Package logrus adapts github.com/sirupsen/logrus to the domain Logger.
package logrus

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ochairo/binscope/internal/domain/interfaces"
	"github.com/sirupsen/logrus"
)

// Options configures a Logger
type Options struct {
	Level  string // debug, info, warn, error
	Format string // text or json
	Output string // stdout, stderr or a file path
}

// Logger implements interfaces.Logger on a logrus logger
type Logger struct {
	entry *logrus.Entry
	file  *os.File
}

// New creates a logger from options. An invalid level falls back to info
// with a warning; an unopenable output file falls back to stderr.
func New(opts Options) *Logger {
	base := logrus.New()

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	base.SetLevel(level)

	switch strings.ToLower(opts.Format) {
	case "json":
		base.SetFormatter(&logrus.JSONFormatter{})
	default:
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	l := &Logger{entry: logrus.NewEntry(base)}

	var output io.Writer
	switch strings.ToLower(opts.Output) {
	case "stdout":
		output = os.Stdout
	case "", "stderr":
		output = os.Stderr
	default:
		//nolint:gosec // G304: log file path comes from configuration
		file, ferr := os.OpenFile(opts.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if ferr != nil {
			output = os.Stderr
			base.SetOutput(output)
			base.Warnf("Failed to open log file '%s', using stderr instead: %v", opts.Output, ferr)
		} else {
			output = file
			l.file = file
		}
	}
	base.SetOutput(output)

	if err != nil && opts.Level != "" {
		base.Warnf("Invalid log level '%s', using 'info' instead", opts.Level)
	}

	return l
}

// NewWithWriter creates a logger writing to w, mostly for tests
func NewWithWriter(w io.Writer, opts Options) *Logger {
	l := New(Options{Level: opts.Level, Format: opts.Format, Output: "stderr"})
	l.entry.Logger.SetOutput(w)
	return l
}

// Close releases the log file, if any
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// With returns a logger that always adds the given fields
func (l *Logger) With(fields ...interfaces.Field) *Logger {
	return &Logger{entry: l.entry.WithFields(toFields(fields)), file: l.file}
}

// Debug logs debug-level messages
func (l *Logger) Debug(msg string, fields ...interfaces.Field) {
	l.entry.WithFields(toFields(fields)).Debug(msg)
}

// Info logs informational messages
func (l *Logger) Info(msg string, fields ...interfaces.Field) {
	l.entry.WithFields(toFields(fields)).Info(msg)
}

// Warn logs warning messages
func (l *Logger) Warn(msg string, fields ...interfaces.Field) {
	l.entry.WithFields(toFields(fields)).Warn(msg)
}

// Error logs error messages
func (l *Logger) Error(msg string, fields ...interfaces.Field) {
	l.entry.WithFields(toFields(fields)).Error(msg)
}

func toFields(fields []interfaces.Field) logrus.Fields {
	out := make(logrus.Fields, len(fields))
	for _, f := range fields {
		if err, ok := f.Value.(error); ok {
			out[f.Key] = err.Error()
			continue
		}
		if s, ok := f.Value.(fmt.Stringer); ok {
			out[f.Key] = s.String()
			continue
		}
		out[f.Key] = f.Value
	}
	return out
}
