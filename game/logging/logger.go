package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LogLevel represents the log level.
type LogLevel string

const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)

var levelRank = map[LogLevel]int{
	LogLevelDebug: 0,
	LogLevelInfo:  1,
	LogLevelWarn:  2,
	LogLevelError: 3,
}

// ParseLevel maps a config string to a LogLevel, defaulting to INFO.
func ParseLevel(s string) LogLevel {
	switch LogLevel(s) {
	case LogLevelDebug, "debug":
		return LogLevelDebug
	case LogLevelWarn, "warn":
		return LogLevelWarn
	case LogLevelError, "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// LogEntry represents a structured log entry.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
	Service   string    `json:"service"`
	Operation string    `json:"operation,omitempty"`
	GameID    string    `json:"game_id,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Logger writes one JSON object per line.
// All methods are no-ops on a nil *Logger.
type Logger struct {
	logPath string
	out     io.Writer
	closer  io.Closer
	mu      *sync.Mutex
	service string
	gameID  string
	min     LogLevel
}

// NewLogger creates a logger that appends to the file at logPath.
// service is the component name (e.g. "game-server" or "cli").
func NewLogger(logPath, service string) (*Logger, error) {
	logDir := filepath.Dir(logPath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return &Logger{
		logPath: logPath,
		out:     file,
		closer:  file,
		mu:      &sync.Mutex{},
		service: service,
		min:     LogLevelDebug,
	}, nil
}

// NewWriterLogger creates a logger that writes to w. Close does not close w.
func NewWriterLogger(w io.Writer, service string) *Logger {
	return &Logger{
		out:     w,
		mu:      &sync.Mutex{},
		service: service,
		min:     LogLevelDebug,
	}
}

// SetLevel drops entries below level.
func (l *Logger) SetLevel(level LogLevel) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.min = level
}

// WithGame returns a logger that tags every entry with gameID.
// The returned logger shares the underlying writer.
func (l *Logger) WithGame(gameID string) *Logger {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	child := *l
	l.mu.Unlock()
	child.gameID = gameID
	child.closer = nil
	return &child
}

// Path returns the log file path, empty for writer loggers.
func (l *Logger) Path() string {
	if l == nil {
		return ""
	}
	return l.logPath
}

// Close closes the log file.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closer != nil {
		err := l.closer.Close()
		l.closer = nil
		return err
	}
	return nil
}

func (l *Logger) log(level LogLevel, message, operation string, err error) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if levelRank[level] < levelRank[l.min] {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Message:   message,
		Service:   l.service,
		Operation: operation,
		GameID:    l.gameID,
	}
	if err != nil {
		entry.Error = err.Error()
	}

	jsonData, marshalErr := json.Marshal(entry)
	if marshalErr != nil {
		_, _ = fmt.Fprintf(l.out, "{\"timestamp\":\"%s\",\"level\":\"%s\",\"message\":%q,\"service\":\"%s\"}\n",
			time.Now().Format(time.RFC3339), level, message, l.service)
		return
	}

	_, _ = fmt.Fprintln(l.out, string(jsonData))
}

// Debug logs a debug message.
func (l *Logger) Debug(message string) {
	l.log(LogLevelDebug, message, "", nil)
}

// Debugf logs a formatted debug message.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.Debug(fmt.Sprintf(format, args...))
}

// DebugWithOperation logs a debug message with operation context.
func (l *Logger) DebugWithOperation(operation, message string) {
	l.log(LogLevelDebug, message, operation, nil)
}

// Info logs an info message.
func (l *Logger) Info(message string) {
	l.log(LogLevelInfo, message, "", nil)
}

// Infof logs a formatted info message.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.Info(fmt.Sprintf(format, args...))
}

// InfoWithOperation logs an info message with operation context.
func (l *Logger) InfoWithOperation(operation, message string) {
	l.log(LogLevelInfo, message, operation, nil)
}

// Warn logs a warning message.
func (l *Logger) Warn(message string) {
	l.log(LogLevelWarn, message, "", nil)
}

// Warnf logs a formatted warning message.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.Warn(fmt.Sprintf(format, args...))
}

// WarnWithOperation logs a warning message with operation context.
func (l *Logger) WarnWithOperation(operation, message string) {
	l.log(LogLevelWarn, message, operation, nil)
}

// Error logs an error message.
func (l *Logger) Error(message string, err error) {
	l.log(LogLevelError, message, "", err)
}

// Errorf logs a formatted error message.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.Error(fmt.Sprintf(format, args...), nil)
}

// ErrorWithOperation logs an error message with operation context.
func (l *Logger) ErrorWithOperation(operation, message string, err error) {
	l.log(LogLevelError, message, operation, err)
}
