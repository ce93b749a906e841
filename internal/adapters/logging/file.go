package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fawz-io/kcmanage/internal/ports"
)

// FileLogger appends every entry to a persistent deployment log for
// postmortem analysis. It never filters by level below Warn of the console:
// the file keeps everything down to Debug so a failed run can be replayed.
type FileLogger struct {
	mu     sync.Mutex
	path   string
	fields []ports.Field
	level  ports.Level
}

// NewFileLogger creates a FileLogger writing to the given path.
// The parent directory is created on first write if missing.
func NewFileLogger(path string) *FileLogger {
	return &FileLogger{path: path, level: ports.LevelDebug}
}

// Path returns the log file path.
func (l *FileLogger) Path() string {
	return l.path
}

// Debug logs a debug message.
func (l *FileLogger) Debug(msg string, fields ...ports.Field) {
	l.log(ports.LevelDebug, msg, fields)
}

// Info logs an informational message.
func (l *FileLogger) Info(msg string, fields ...ports.Field) {
	l.log(ports.LevelInfo, msg, fields)
}

// Warn logs a warning message.
func (l *FileLogger) Warn(msg string, fields ...ports.Field) {
	l.log(ports.LevelWarn, msg, fields)
}

// Error logs an error message.
func (l *FileLogger) Error(msg string, fields ...ports.Field) {
	l.log(ports.LevelError, msg, fields)
}

// With returns a new logger with additional fields.
func (l *FileLogger) With(fields ...ports.Field) ports.Logger {
	newFields := make([]ports.Field, len(l.fields)+len(fields))
	copy(newFields, l.fields)
	copy(newFields[len(l.fields):], fields)

	return &FileLogger{path: l.path, fields: newFields, level: l.level}
}

// Level returns the minimum log level.
func (l *FileLogger) Level() ports.Level {
	return l.level
}

// SetLevel sets the minimum log level.
func (l *FileLogger) SetLevel(level ports.Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *FileLogger) log(level ports.Level, msg string, fields []ports.Field) {
	if level < l.level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()

	line := fmt.Sprintf("%s [%s] %s", time.Now().Format(time.RFC3339), level.String(), msg)
	for _, fld := range l.fields {
		line += fmt.Sprintf(" %s=%v", fld.Key, fld.Value)
	}
	for _, fld := range fields {
		line += fmt.Sprintf(" %s=%v", fld.Key, fld.Value)
	}

	_, _ = fmt.Fprintln(f, line)
}

// Ensure FileLogger implements Logger.
var _ ports.Logger = (*FileLogger)(nil)
