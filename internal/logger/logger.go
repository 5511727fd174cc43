package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents logging severity
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

// Fields carries structured key/value context for a log line
type Fields map[string]interface{}

// Logger is a leveled logger with a fixed component name. Output is
// either human-readable text or one JSON object per line.
type Logger struct {
	mu        sync.Mutex
	level     Level
	out       io.Writer
	component string
	format    string // "text" or "json"
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// Init sets up the process-wide default logger
func Init(level, format, component string) {
	once.Do(func() {
		defaultLogger = New(level, format, component)
	})
}

// New creates a logger writing to stdout
func New(levelStr, format, component string) *Logger {
	return &Logger{
		level:     parseLevel(levelStr),
		out:       os.Stdout,
		component: component,
		format:    format,
	}
}

// WithComponent returns a copy of the logger scoped to component
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		level:     l.level,
		out:       l.out,
		component: component,
		format:    l.format,
	}
}

// SetOutput redirects log output (used by tests)
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = w
}

// Debug logs at DEBUG level
func (l *Logger) Debug(msg string, fields ...Fields) { l.log(DEBUG, msg, merge(fields...)) }

// Info logs at INFO level
func (l *Logger) Info(msg string, fields ...Fields) { l.log(INFO, msg, merge(fields...)) }

// Warn logs at WARN level
func (l *Logger) Warn(msg string, fields ...Fields) { l.log(WARN, msg, merge(fields...)) }

// Error logs at ERROR level
func (l *Logger) Error(msg string, fields ...Fields) { l.log(ERROR, msg, merge(fields...)) }

func (l *Logger) log(level Level, msg string, fields Fields) {
	if level < l.level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ts := time.Now().Format("2006-01-02 15:04:05.000")

	if l.format == "json" {
		entry := map[string]interface{}{
			"timestamp": ts,
			"level":     levelNames[level],
			"message":   msg,
		}
		if l.component != "" {
			entry["component"] = l.component
		}
		for k, v := range fields {
			if err, ok := v.(error); ok {
				entry[k] = err.Error()
				continue
			}
			entry[k] = v
		}
		line, err := json.Marshal(entry)
		if err != nil {
			fmt.Fprintf(l.out, `{"level":"ERROR","message":"failed to encode log entry: %v"}`+"\n", err)
			return
		}
		fmt.Fprintln(l.out, string(line))
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %-5s", ts, levelNames[level])
	if l.component != "" {
		fmt.Fprintf(&b, " [%s]", l.component)
	}
	b.WriteByte(' ')
	b.WriteString(msg)

	// Deterministic field order keeps lines diffable
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}

	fmt.Fprintln(l.out, b.String())
}

func parseLevel(s string) Level {
	switch strings.ToUpper(s) {
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

func merge(fields ...Fields) Fields {
	if len(fields) == 1 {
		return fields[0]
	}
	out := Fields{}
	for _, f := range fields {
		for k, v := range f {
			out[k] = v
		}
	}
	return out
}

// GetDefault returns the default logger, or a fallback INFO text logger
// when Init was never called.
func GetDefault() *Logger {
	if defaultLogger == nil {
		return New("info", "text", "")
	}
	return defaultLogger
}
