package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"pickup-market/internal/common/contextx"
)

// Level orders log lines; lines below the logger's minimum are dropped.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelError
)

func (lv Level) String() string {
	switch lv {
	case LevelDebug:
		return "DEBUG"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// ParseLevel accepts debug, info or error in any case. Anything else is info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// ErrorObject is emitted only for error logs.
type ErrorObject struct {
	Msg   string `json:"msg"`
	Stack string `json:"stack"`
}

// LogEntry is one JSON line.
type LogEntry struct {
	Timestamp string       `json:"timestamp"`
	Level     string       `json:"level"`
	Service   string       `json:"service"` // driver-agent | seller-agent
	Action    string       `json:"action"`  // event name, e.g. location_flushed
	Message   string       `json:"message"`
	Hostname  string       `json:"hostname"`
	RequestID string       `json:"request_id,omitempty"`
	ContactID string       `json:"contact_id,omitempty"`
	Details   any          `json:"details,omitempty"`
	Error     *ErrorObject `json:"error,omitempty"`
}

type Logger struct {
	service  string
	hostname string
	min      Level
	now      func() time.Time

	mu  sync.Mutex
	out io.Writer
}

// New creates a logger writing to stdout. PICKUP_LOG_LEVEL sets the minimum level.
func New(service string) *Logger {
	hn, err := os.Hostname()
	if err != nil || strings.TrimSpace(hn) == "" {
		hn = "unknown-hostname"
	}
	if strings.TrimSpace(service) == "" {
		service = "unknown-service"
	}

	return &Logger{
		service:  service,
		hostname: hn,
		min:      ParseLevel(os.Getenv("PICKUP_LOG_LEVEL")),
		now:      time.Now,
		out:      os.Stdout,
	}
}

// NewWithWriter is New with a custom sink and every level enabled; tests use it to
// capture output.
func NewWithWriter(service string, w io.Writer) *Logger {
	l := New(service)
	l.min = LevelDebug
	if w != nil {
		l.out = w
	}
	return l
}

// SetLevel changes the minimum level.
func (l *Logger) SetLevel(lv Level) {
	l.mu.Lock()
	l.min = lv
	l.mu.Unlock()
}

func (l *Logger) Debug(ctx context.Context, action, msg string, details any) {
	l.log(ctx, LevelDebug, action, msg, nil, details)
}

func (l *Logger) Info(ctx context.Context, action, msg string, details any) {
	l.log(ctx, LevelInfo, action, msg, nil, details)
}

// Error writes an ERROR line with the error text and the caller's stack.
func (l *Logger) Error(ctx context.Context, action, msg string, err error, details any) {
	if err == nil {
		err = fmt.Errorf("unknown error")
	}
	l.log(ctx, LevelError, action, msg, &ErrorObject{
		Msg:   strings.TrimSpace(err.Error()),
		Stack: string(debug.Stack()),
	}, details)
}

func (l *Logger) log(ctx context.Context, lv Level, action, msg string, errObj *ErrorObject, details any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lv < l.min {
		return
	}

	action = strings.TrimSpace(action)
	if action == "" {
		action = "unspecified"
	}

	l.write(LogEntry{
		Timestamp: l.now().UTC().Format(time.RFC3339),
		Level:     lv.String(),
		Service:   l.service,
		Action:    action,
		Message:   strings.TrimSpace(msg),
		Hostname:  l.hostname,
		RequestID: contextx.GetRequestID(ctx),
		ContactID: contextx.GetContactID(ctx),
		Details:   details,
		Error:     errObj,
	})
}

// write emits e as one line. Caller holds l.mu.
func (l *Logger) write(e LogEntry) {
	b, err := json.Marshal(e)
	if err != nil {
		// details are the usual culprit
		e.Details = nil
		b, err = json.Marshal(e)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "log marshal failed: %v\n", err)
		return
	}

	b = append(b, '\n')
	_, _ = l.out.Write(b)
}
