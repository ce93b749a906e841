package logging

import "github.com/fawz-io/kcmanage/internal/ports"

// TeeLogger fans every entry out to multiple loggers, typically a console
// logger plus the persistent file logger.
type TeeLogger struct {
	loggers []ports.Logger
}

// NewTeeLogger creates a TeeLogger over the given loggers.
func NewTeeLogger(loggers ...ports.Logger) *TeeLogger {
	return &TeeLogger{loggers: loggers}
}

// Debug logs to all underlying loggers.
func (l *TeeLogger) Debug(msg string, fields ...ports.Field) {
	for _, lg := range l.loggers {
		lg.Debug(msg, fields...)
	}
}

// Info logs to all underlying loggers.
func (l *TeeLogger) Info(msg string, fields ...ports.Field) {
	for _, lg := range l.loggers {
		lg.Info(msg, fields...)
	}
}

// Warn logs to all underlying loggers.
func (l *TeeLogger) Warn(msg string, fields ...ports.Field) {
	for _, lg := range l.loggers {
		lg.Warn(msg, fields...)
	}
}

// Error logs to all underlying loggers.
func (l *TeeLogger) Error(msg string, fields ...ports.Field) {
	for _, lg := range l.loggers {
		lg.Error(msg, fields...)
	}
}

// With returns a new TeeLogger with the fields applied to every logger.
func (l *TeeLogger) With(fields ...ports.Field) ports.Logger {
	out := make([]ports.Logger, len(l.loggers))
	for i, lg := range l.loggers {
		out[i] = lg.With(fields...)
	}
	return &TeeLogger{loggers: out}
}

// Level returns the most verbose level among the underlying loggers.
func (l *TeeLogger) Level() ports.Level {
	level := ports.LevelError
	for _, lg := range l.loggers {
		if lg.Level() < level {
			level = lg.Level()
		}
	}
	return level
}

// SetLevel sets the level on every underlying logger.
func (l *TeeLogger) SetLevel(level ports.Level) {
	for _, lg := range l.loggers {
		lg.SetLevel(level)
	}
}

// Ensure TeeLogger implements Logger.
var _ ports.Logger = (*TeeLogger)(nil)
