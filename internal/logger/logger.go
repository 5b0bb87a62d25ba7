// Package logger provides a simple logging interface for sshscre components.
// It allows packages to log debug, info, warn, and error messages without
// being coupled to a specific logging implementation, and to record the raw
// lines of an interactive session to a debug log.
package logger

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DebugEnv enables debug output when set to any non-empty value.
const DebugEnv = "SSHSCRE_DEBUG"

// Logger defines the interface for logging operations.
// All methods accept a format string and arguments, similar to fmt.Printf.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// Sink records raw interaction lines under a tag, e.g. PRINT for a rendered
// line or INPUT for a line the user typed.
type Sink interface {
	Record(tag, line string)
}

// Standard sink tags.
const (
	TagPrint = "PRINT"
	TagInput = "INPUT"
	TagBoot  = "BOOT"
	TagExit  = "EXIT"
	TagCrash = "CRASH"
)

// envLogger implements Logger and logs to stderr based on environment.
// Debug and info messages are only printed when SSHSCRE_DEBUG is set.
type envLogger struct {
	prefix string
}

// NewEnvLogger creates a logger that respects the SSHSCRE_DEBUG environment variable.
// The prefix is prepended to all log messages (e.g., "[session]" or "[transfer]").
func NewEnvLogger(prefix string) Logger {
	return &envLogger{prefix: prefix}
}

func (l *envLogger) Debug(format string, args ...interface{}) {
	if os.Getenv(DebugEnv) != "" {
		log.Printf(l.prefix+" "+format, args...)
	}
}

func (l *envLogger) Info(format string, args ...interface{}) {
	if os.Getenv(DebugEnv) != "" {
		log.Printf(l.prefix+" "+format, args...)
	}
}

func (l *envLogger) Warn(format string, args ...interface{}) {
	log.Printf(l.prefix+" WARN: "+format, args...)
}

func (l *envLogger) Error(format string, args ...interface{}) {
	log.Printf(l.prefix+" ERROR: "+format, args...)
}

// FileLogger appends timestamped, tagged lines to a debug log file:
//
//	[15:04:05] [TAG] message
//
// It satisfies both Logger and Sink.
type FileLogger struct {
	mu   sync.Mutex
	f    *os.File
	now  func() time.Time
	path string
}

// NewFileLogger opens (or creates) the log file at path in append mode.
func NewFileLogger(path string) (*FileLogger, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open debug log: %w", err)
	}
	return &FileLogger{f: f, now: time.Now, path: path}, nil
}

// Path returns the file the logger writes to.
func (l *FileLogger) Path() string {
	return l.path
}

// Record writes one line per input line under the given tag.
func (l *FileLogger) Record(tag, line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return
	}
	stamp := l.now().Format("15:04:05")
	for _, part := range strings.Split(strings.TrimRight(line, "\n"), "\n") {
		fmt.Fprintf(l.f, "[%s] [%s] %s\n", stamp, tag, part)
	}
}

func (l *FileLogger) Debug(format string, args ...interface{}) {
	l.Record("DEBUG", fmt.Sprintf(format, args...))
}

func (l *FileLogger) Info(format string, args ...interface{}) {
	l.Record("INFO", fmt.Sprintf(format, args...))
}

func (l *FileLogger) Warn(format string, args ...interface{}) {
	l.Record("WARN", fmt.Sprintf(format, args...))
}

func (l *FileLogger) Error(format string, args ...interface{}) {
	l.Record("ERROR", fmt.Sprintf(format, args...))
}

// Close closes the underlying file.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}

// NoopLogger implements Logger and Sink but discards all messages.
type NoopLogger struct{}

// Noop returns a logger that discards all messages.
func Noop() *NoopLogger {
	return &NoopLogger{}
}

func (l *NoopLogger) Debug(format string, args ...interface{}) {}
func (l *NoopLogger) Info(format string, args ...interface{})  {}
func (l *NoopLogger) Warn(format string, args ...interface{})  {}
func (l *NoopLogger) Error(format string, args ...interface{}) {}
func (l *NoopLogger) Record(tag, line string)                  {}

// LogMessage represents a captured log message.
type LogMessage struct {
	Level   string
	Message string
}

// BufferLogger captures log messages for testing.
// Recorded sink lines are captured with the tag as the level.
type BufferLogger struct {
	Messages []LogMessage
}

// NewBufferLogger creates a logger that captures messages for inspection.
func NewBufferLogger() *BufferLogger {
	return &BufferLogger{
		Messages: make([]LogMessage, 0),
	}
}

func (l *BufferLogger) Debug(format string, args ...interface{}) {
	l.Messages = append(l.Messages, LogMessage{Level: "debug", Message: fmt.Sprintf(format, args...)})
}

func (l *BufferLogger) Info(format string, args ...interface{}) {
	l.Messages = append(l.Messages, LogMessage{Level: "info", Message: fmt.Sprintf(format, args...)})
}

func (l *BufferLogger) Warn(format string, args ...interface{}) {
	l.Messages = append(l.Messages, LogMessage{Level: "warn", Message: fmt.Sprintf(format, args...)})
}

func (l *BufferLogger) Error(format string, args ...interface{}) {
	l.Messages = append(l.Messages, LogMessage{Level: "error", Message: fmt.Sprintf(format, args...)})
}

func (l *BufferLogger) Record(tag, line string) {
	l.Messages = append(l.Messages, LogMessage{Level: tag, Message: line})
}

// HasLevel returns true if any message was logged at the given level.
func (l *BufferLogger) HasLevel(level string) bool {
	for _, m := range l.Messages {
		if m.Level == level {
			return true
		}
	}
	return false
}

// ByLevel returns the messages logged at the given level, in order.
func (l *BufferLogger) ByLevel(level string) []string {
	var out []string
	for _, m := range l.Messages {
		if m.Level == level {
			out = append(out, m.Message)
		}
	}
	return out
}

// Clear removes all captured messages.
func (l *BufferLogger) Clear() {
	l.Messages = l.Messages[:0]
}
