package logger

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

var levelNames = map[Level]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

// ParseLevel converts a level name ("debug", "INFO", ...) to a Level.
// Unknown names default to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
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

// Logger provides structured JSON logging with optional PII redaction.
// Subscriber emails routinely flow through log fields, so redaction is
// on by default and only disabled for local debugging.
type Logger struct {
	level     Level
	component string
	out       io.Writer
	mu        *sync.Mutex
	redactPII bool
}

var defaultLogger = &Logger{level: INFO, out: os.Stderr, mu: &sync.Mutex{}, redactPII: true}

// SetLevel sets the minimum log level for the default logger.
func SetLevel(l Level) { defaultLogger.level = l }

// SetRedactPII enables or disables PII redaction for the default logger.
func SetRedactPII(r bool) { defaultLogger.redactPII = r }

// With returns a logger that tags every entry with the given component name.
// The returned logger shares the default logger's level, output, and lock.
func With(component string) *Logger {
	return &Logger{
		level:     defaultLogger.level,
		component: component,
		out:       defaultLogger.out,
		mu:        defaultLogger.mu,
		redactPII: defaultLogger.redactPII,
	}
}

// Debug emits a DEBUG-level entry on the default logger.
func Debug(msg string, fields ...any) { defaultLogger.log(DEBUG, msg, fields...) }

// Info emits an INFO-level entry on the default logger.
func Info(msg string, fields ...any) { defaultLogger.log(INFO, msg, fields...) }

// Warn emits a WARN-level entry on the default logger.
func Warn(msg string, fields ...any) { defaultLogger.log(WARN, msg, fields...) }

// Error emits an ERROR-level entry on the default logger.
func Error(msg string, fields ...any) { defaultLogger.log(ERROR, msg, fields...) }

func (l *Logger) Debug(msg string, fields ...any) { l.log(DEBUG, msg, fields...) }
func (l *Logger) Info(msg string, fields ...any)  { l.log(INFO, msg, fields...) }
func (l *Logger) Warn(msg string, fields ...any)  { l.log(WARN, msg, fields...) }
func (l *Logger) Error(msg string, fields ...any) { l.log(ERROR, msg, fields...) }

func (l *Logger) log(level Level, msg string, fields ...any) {
	if level < l.level {
		return
	}

	entry := map[string]any{
		"time":  time.Now().UTC().Format(time.RFC3339),
		"level": levelNames[level],
		"msg":   msg,
	}
	if l.component != "" {
		entry["component"] = l.component
	}

	// fields are alternating key/value pairs; a trailing odd value is dropped
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		val := fmt.Sprintf("%v", fields[i+1])
		if l.redactPII {
			val = redactValue(key, val)
		}
		entry[key] = val
	}

	data, _ := json.Marshal(entry)
	l.mu.Lock()
	fmt.Fprintln(l.out, string(data))
	l.mu.Unlock()
}
