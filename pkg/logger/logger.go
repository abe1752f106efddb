package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

type LogLevel string

const (
	LevelDebug LogLevel = "DEBUG"
	LevelInfo  LogLevel = "INFO"
	LevelError LogLevel = "ERROR"
)

func (l LogLevel) rank() int {
	switch l {
	case LevelDebug:
		return 0
	case LevelError:
		return 2
	default:
		return 1
	}
}

// ParseLevel maps a config string to a level, defaulting to INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

type LogFields map[string]interface{}

type Logger interface {
	WithFields(fields LogFields) Logger

	Info(action, message string)
	Debug(action, message string)
	Error(action string, err error)
}

// jsonLogger writes one JSON object per line.
type jsonLogger struct {
	mu         *sync.Mutex // shared by every logger derived via WithFields
	out        io.Writer
	min        LogLevel
	service    string
	hostname   string
	baseFields LogFields
}

type logEntry struct {
	Timestamp string   `json:"timestamp"`
	Level     LogLevel `json:"level"`
	Service   string   `json:"service"`
	Action    string   `json:"action"`
	Message   string   `json:"message"`
	Hostname  string   `json:"hostname"`
	Domain    string   `json:"domain,omitempty"`
	Event     string   `json:"event,omitempty"`

	Error *errorEntry `json:"error,omitempty"`

	Fields LogFields `json:"fields,omitempty"`
}

type errorEntry struct {
	Msg   string `json:"msg"`
	Stack string `json:"stack"`
}

// New creates a structured JSON logger writing to out, dropping entries below min.
func New(serviceName string, out io.Writer, min LogLevel) Logger {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}

	return &jsonLogger{
		mu:         &sync.Mutex{},
		out:        out,
		min:        min,
		service:    serviceName,
		hostname:   host,
		baseFields: make(LogFields),
	}
}

// Nop returns a logger that discards everything. Handy in tests.
func Nop() Logger {
	return New("nop", io.Discard, LevelError)
}

// WithFields returns a logger carrying the receiver's fields plus fields.
func (l *jsonLogger) WithFields(fields LogFields) Logger {
	newFields := make(LogFields, len(l.baseFields)+len(fields))
	for k, v := range l.baseFields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}

	return &jsonLogger{
		mu:         l.mu,
		out:        l.out,
		min:        l.min,
		service:    l.service,
		hostname:   l.hostname,
		baseFields: newFields,
	}
}

func (l *jsonLogger) Info(action, message string) {
	l.log(LevelInfo, action, message, nil)
}

func (l *jsonLogger) Debug(action, message string) {
	l.log(LevelDebug, action, message, nil)
}

// Error logs err together with a trimmed stack trace.
func (l *jsonLogger) Error(action string, err error) {
	if err == nil {
		err = fmt.Errorf("%s", action)
	}
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)

	errData := &errorEntry{
		Msg:   err.Error(),
		Stack: cleanStack(string(buf[:n])),
	}
	l.log(LevelError, action, err.Error(), errData)
}

func (l *jsonLogger) log(level LogLevel, action, message string, errData *errorEntry) {
	if level.rank() < l.min.rank() {
		return
	}
	entry := &logEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Service:   l.service,
		Action:    action,
		Message:   message,
		Hostname:  l.hostname,
		Error:     errData,
		Fields:    make(LogFields),
	}

	for k, v := range l.baseFields {
		switch k {
		case "domain":
			if s, ok := v.(string); ok {
				entry.Domain = s
			}
		case "event":
			if s, ok := v.(string); ok {
				entry.Event = s
			}
		default:
			entry.Fields[k] = v
		}
	}
	if len(entry.Fields) == 0 {
		entry.Fields = nil
	}

	line, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to marshal log: %v\n", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out, string(line))
}

// cleanStack drops runtime, testing and logger frames from a goroutine dump.
func cleanStack(stack string) string {
	lines := strings.Split(stack, "\n")
	var cleaned []string

	if len(lines) > 0 {
		cleaned = append(cleaned, lines[0])
	}

	for i := 1; i+1 < len(lines); i += 2 {
		funcName := lines[i]
		filePath := lines[i+1]

		if strings.HasPrefix(funcName, "runtime.") ||
			strings.HasPrefix(funcName, "testing.") ||
			strings.Contains(funcName, "logger.(*jsonLogger)") {
			continue
		}

		cleaned = append(cleaned, funcName, "    "+strings.TrimSpace(filePath))
	}

	return strings.Join(cleaned, "\n")
}
