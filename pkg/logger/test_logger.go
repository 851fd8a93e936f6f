package logger

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// TestLogger is a logger implementation for testing that captures all log messages
type TestLogger struct {
	mu       sync.Mutex
	messages []LogMessage
}

// LogMessage represents a captured log message
type LogMessage struct {
	Level   string
	Message string
	Fields  map[string]interface{}
	Error   error
}

// NewTestLogger creates a new test logger
func NewTestLogger() *TestLogger {
	return &TestLogger{}
}

func (l *TestLogger) record(level, msg string, fields map[string]interface{}, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, LogMessage{Level: level, Message: msg, Fields: fields, Error: err})
}

// entry returns a child logger bound to this recorder
func (l *TestLogger) entry() *testEntry {
	return &testEntry{root: l, fields: map[string]interface{}{}}
}

func (l *TestLogger) Debug(msg string) { l.entry().Debug(msg) }
func (l *TestLogger) Info(msg string)  { l.entry().Info(msg) }
func (l *TestLogger) Warn(msg string)  { l.entry().Warn(msg) }
func (l *TestLogger) Error(msg string) { l.entry().Error(msg) }

func (l *TestLogger) WithField(key string, value interface{}) Logger {
	return l.entry().WithField(key, value)
}
func (l *TestLogger) WithFields(fields map[string]interface{}) Logger {
	return l.entry().WithFields(fields)
}
func (l *TestLogger) WithError(err error) Logger             { return l.entry().WithError(err) }
func (l *TestLogger) WithContext(ctx context.Context) Logger { return l }

func (l *TestLogger) DebugWithFields(msg string, fields map[string]interface{}) {
	l.entry().DebugWithFields(msg, fields)
}
func (l *TestLogger) InfoWithFields(msg string, fields map[string]interface{}) {
	l.entry().InfoWithFields(msg, fields)
}
func (l *TestLogger) WarnWithFields(msg string, fields map[string]interface{}) {
	l.entry().WarnWithFields(msg, fields)
}
func (l *TestLogger) ErrorWithFields(msg string, fields map[string]interface{}) {
	l.entry().ErrorWithFields(msg, fields)
}
func (l *TestLogger) GetZerolog() *zerolog.Logger { return nil }

// GetMessages returns all captured log messages
func (l *TestLogger) GetMessages() []LogMessage {
	l.mu.Lock()
	defer l.mu.Unlock()

	messages := make([]LogMessage, len(l.messages))
	copy(messages, l.messages)
	return messages
}

// GetMessagesByLevel returns all messages of a specific level
func (l *TestLogger) GetMessagesByLevel(level string) []LogMessage {
	var filtered []LogMessage
	for _, msg := range l.GetMessages() {
		if msg.Level == level {
			filtered = append(filtered, msg)
		}
	}
	return filtered
}

// HasMessage checks if a message with the given text was logged
func (l *TestLogger) HasMessage(text string) bool {
	for _, msg := range l.GetMessages() {
		if msg.Message == text {
			return true
		}
	}
	return false
}

// Clear clears all captured messages
func (l *TestLogger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = l.messages[:0]
}

// testEntry carries accumulated fields and error for a TestLogger
type testEntry struct {
	root   *TestLogger
	fields map[string]interface{}
	err    error
}

func (e *testEntry) merged(extra map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(e.fields)+len(extra))
	for k, v := range e.fields {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func (e *testEntry) Debug(msg string) { e.root.record("DEBUG", msg, e.merged(nil), e.err) }
func (e *testEntry) Info(msg string)  { e.root.record("INFO", msg, e.merged(nil), e.err) }
func (e *testEntry) Warn(msg string)  { e.root.record("WARN", msg, e.merged(nil), e.err) }
func (e *testEntry) Error(msg string) { e.root.record("ERROR", msg, e.merged(nil), e.err) }

func (e *testEntry) WithField(key string, value interface{}) Logger {
	return &testEntry{root: e.root, fields: e.merged(map[string]interface{}{key: value}), err: e.err}
}
func (e *testEntry) WithFields(fields map[string]interface{}) Logger {
	return &testEntry{root: e.root, fields: e.merged(fields), err: e.err}
}
func (e *testEntry) WithError(err error) Logger {
	return &testEntry{root: e.root, fields: e.merged(nil), err: err}
}
func (e *testEntry) WithContext(ctx context.Context) Logger { return e }

func (e *testEntry) DebugWithFields(msg string, fields map[string]interface{}) {
	e.root.record("DEBUG", msg, e.merged(fields), e.err)
}
func (e *testEntry) InfoWithFields(msg string, fields map[string]interface{}) {
	e.root.record("INFO", msg, e.merged(fields), e.err)
}
func (e *testEntry) WarnWithFields(msg string, fields map[string]interface{}) {
	e.root.record("WARN", msg, e.merged(fields), e.err)
}
func (e *testEntry) ErrorWithFields(msg string, fields map[string]interface{}) {
	e.root.record("ERROR", msg, e.merged(fields), e.err)
}
func (e *testEntry) GetZerolog() *zerolog.Logger { return nil }
