package logging

import "github.com/fawz-io/kcmanage/internal/ports"

// NopLogger discards all log entries. Used in tests.
type NopLogger struct{}

// NewNopLogger creates a new NopLogger.
func NewNopLogger() *NopLogger {
	return &NopLogger{}
}

// Debug discards the message.
func (l *NopLogger) Debug(string, ...ports.Field) {}

// Info discards the message.
func (l *NopLogger) Info(string, ...ports.Field) {}

// Warn discards the message.
func (l *NopLogger) Warn(string, ...ports.Field) {}

// Error discards the message.
func (l *NopLogger) Error(string, ...ports.Field) {}

// With returns the logger unchanged.
func (l *NopLogger) With(...ports.Field) ports.Logger { return l }

// Level returns LevelError.
func (l *NopLogger) Level() ports.Level { return ports.LevelError }

// SetLevel is a no-op.
func (l *NopLogger) SetLevel(ports.Level) {}

// Ensure NopLogger implements Logger.
var _ ports.Logger = (*NopLogger)(nil)
