// Package logging provides structured JSON-lines logging with levels,
// categories and per-request context.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log entry.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a config string such as "debug" or "WARN" to a Level.
// Unknown values fall back to INFO.
func ParseLevel(value string) Level {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Entry is a single structured log line.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Service   string         `json:"service,omitempty"`
	Category  string         `json:"category"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Duration  *int64         `json:"duration_ms,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Logger writes entries to every configured writer and fans them out to
// subscribers. A nil *Logger discards everything.
type Logger struct {
	mu          sync.RWMutex
	service     string
	minLevel    Level
	writers     []io.Writer
	subscribers []chan<- Entry
	now         func() time.Time
}

// New creates a Logger for service. With no writers it logs to stdout.
func New(service string, minLevel Level, writers ...io.Writer) *Logger {
	if len(writers) == 0 {
		writers = []io.Writer{os.Stdout}
	}
	return &Logger{
		service:  service,
		minLevel: minLevel,
		writers:  writers,
		now:      time.Now,
	}
}

// Nop returns a Logger that drops every entry.
func Nop() *Logger {
	return &Logger{minLevel: ERROR + 1, now: time.Now}
}

// Enabled reports whether entries at level are written.
func (l *Logger) Enabled(level Level) bool {
	if l == nil {
		return false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return level >= l.minLevel
}

// Subscribe adds a channel to receive entries as they are written. Sends are
// non-blocking. The returned func unsubscribes.
func (l *Logger) Subscribe(ch chan<- Entry) func() {
	if l == nil {
		return func() {}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subscribers = append(l.subscribers, ch)

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, sub := range l.subscribers {
			if sub == ch {
				l.subscribers = append(l.subscribers[:i], l.subscribers[i+1:]...)
				break
			}
		}
	}
}

// Log writes a log entry at the specified level.
func (l *Logger) Log(level Level, category, message string, fields map[string]any) {
	if !l.Enabled(level) {
		return
	}
	l.write(Entry{
		Level:    level.String(),
		Category: category,
		Message:  message,
		Fields:   fields,
	})
}

// Debug logs a debug message.
func (l *Logger) Debug(category, message string, fields map[string]any) {
	l.Log(DEBUG, category, message, fields)
}

// Info logs an info message.
func (l *Logger) Info(category, message string, fields map[string]any) {
	l.Log(INFO, category, message, fields)
}

// Warn logs a warning message.
func (l *Logger) Warn(category, message string, fields map[string]any) {
	l.Log(WARN, category, message, fields)
}

// Error logs an error message together with err.
func (l *Logger) Error(category, message string, err error, fields map[string]any) {
	if !l.Enabled(ERROR) {
		return
	}
	entry := Entry{
		Level:    ERROR.String(),
		Category: category,
		Message:  message,
		Fields:   fields,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	l.write(entry)
}

func (l *Logger) write(entry Entry) {
	if l == nil {
		return
	}
	l.mu.RLock()
	entry.Timestamp = l.now().UTC()
	entry.Service = l.service
	writers := l.writers
	subs := make([]chan<- Entry, len(l.subscribers))
	copy(subs, l.subscribers)
	l.mu.RUnlock()

	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal log entry: %v\n", err)
		return
	}
	data = append(data, '\n')

	for _, w := range writers {
		_, _ = w.Write(data)
	}
	for _, ch := range subs {
		select {
		case ch <- entry:
		default:
		}
	}
}

// LogContext carries a request id, category and fields across several
// log calls.
type LogContext struct {
	logger    *Logger
	requestID string
	category  string
	fields    map[string]any
}

// WithRequestID creates a logging context bound to a request id.
func (l *Logger) WithRequestID(requestID string) *LogContext {
	return &LogContext{
		logger:    l,
		requestID: requestID,
		fields:    make(map[string]any),
	}
}

// WithCategory sets the category for this context.
func (c *LogContext) WithCategory(category string) *LogContext {
	c.category = category
	return c
}

// WithField adds a field to this context.
func (c *LogContext) WithField(key string, value any) *LogContext {
	if c.fields == nil {
		c.fields = make(map[string]any)
	}
	c.fields[key] = value
	return c
}

func (c *LogContext) emit(level Level, message string, err error) {
	if c == nil || !c.logger.Enabled(level) {
		return
	}
	entry := Entry{
		Level:     level.String(),
		Category:  c.category,
		Message:   message,
		Fields:    c.fields,
		RequestID: c.requestID,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	c.logger.write(entry)
}

// Debug logs a debug message with the context's request id and fields.
func (c *LogContext) Debug(message string) { c.emit(DEBUG, message, nil) }

// Info logs an info message with the context's request id and fields.
func (c *LogContext) Info(message string) { c.emit(INFO, message, nil) }

// Warn logs a warning with the context's request id and fields.
func (c *LogContext) Warn(message string) { c.emit(WARN, message, nil) }

// Error logs an error with the context's request id and fields.
func (c *LogContext) Error(message string, err error) { c.emit(ERROR, message, err) }
