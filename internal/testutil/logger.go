package testutil

import (
	"sync"

	"github.com/ochairo/binscope/internal/domain/interfaces"
)

// LogEntry is one message captured by RecordingLogger
type LogEntry struct {
	Level   interfaces.Level
	Message string
	Fields  map[string]any
}

// RecordingLogger captures log entries so tests can assert on levels and fields
type RecordingLogger struct {
	mu      sync.Mutex
	entries []LogEntry
}

func (l *RecordingLogger) record(level interfaces.Level, msg string, fields []interfaces.Field) {
	entry := LogEntry{Level: level, Message: msg, Fields: make(map[string]any, len(fields))}
	for _, f := range fields {
		entry.Fields[f.Key] = f.Value
	}
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

// Debug records a debug entry
func (l *RecordingLogger) Debug(msg string, fields ...interfaces.Field) {
	l.record(interfaces.LevelDebug, msg, fields)
}

// Info records an info entry
func (l *RecordingLogger) Info(msg string, fields ...interfaces.Field) {
	l.record(interfaces.LevelInfo, msg, fields)
}

// Warn records a warning entry
func (l *RecordingLogger) Warn(msg string, fields ...interfaces.Field) {
	l.record(interfaces.LevelWarn, msg, fields)
}

// Error records an error entry
func (l *RecordingLogger) Error(msg string, fields ...interfaces.Field) {
	l.record(interfaces.LevelError, msg, fields)
}

// At returns the entries recorded at level, oldest first
func (l *RecordingLogger) At(level interfaces.Level) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []LogEntry
	for _, e := range l.entries {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}
