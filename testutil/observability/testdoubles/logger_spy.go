package testdoubles

import (
	"context"
	"strings"
	"sync"
)

// LogRecord is one captured log call.
type LogRecord struct {
	Level   string
	Message string
	Args    []any
	Ctx     context.Context
}

// Attr returns the value following key in the record's alternating key/value args.
func (r LogRecord) Attr(key string) (any, bool) {
	for i := 0; i+1 < len(r.Args); i += 2 {
		if k, ok := r.Args[i].(string); ok && k == key {
			return r.Args[i+1], true
		}
	}

	return nil, false
}

// LoggerSpy captures log calls. It satisfies both the plain and the context-aware logger interfaces.
type LoggerSpy struct {
	mu      sync.Mutex
	records []LogRecord
}

// NewLoggerSpy creates an empty spy.
func NewLoggerSpy() *LoggerSpy {
	return &LoggerSpy{}
}

func (s *LoggerSpy) add(ctx context.Context, level, msg string, args []any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, LogRecord{Level: level, Message: msg, Args: args, Ctx: ctx})
}

// Debug captures a debug message.
func (s *LoggerSpy) Debug(msg string, args ...any) { s.add(context.Background(), "debug", msg, args) }

// Info captures an info message.
func (s *LoggerSpy) Info(msg string, args ...any) { s.add(context.Background(), "info", msg, args) }

// Warn captures a warning.
func (s *LoggerSpy) Warn(msg string, args ...any) { s.add(context.Background(), "warn", msg, args) }

// Error captures an error message.
func (s *LoggerSpy) Error(msg string, args ...any) { s.add(context.Background(), "error", msg, args) }

// DebugContext captures a debug message with its context.
func (s *LoggerSpy) DebugContext(ctx context.Context, msg string, args ...any) {
	s.add(ctx, "debug", msg, args)
}

// InfoContext captures an info message with its context.
func (s *LoggerSpy) InfoContext(ctx context.Context, msg string, args ...any) {
	s.add(ctx, "info", msg, args)
}

// WarnContext captures a warning with its context.
func (s *LoggerSpy) WarnContext(ctx context.Context, msg string, args ...any) {
	s.add(ctx, "warn", msg, args)
}

// ErrorContext captures an error message with its context.
func (s *LoggerSpy) ErrorContext(ctx context.Context, msg string, args ...any) {
	s.add(ctx, "error", msg, args)
}

// Records returns a copy of all captured calls.
func (s *LoggerSpy) Records() []LogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]LogRecord, len(s.records))
	copy(out, s.records)

	return out
}

// HasMessage reports whether a record at level contains fragment in its message.
func (s *LoggerSpy) HasMessage(level, fragment string) bool {
	for _, r := range s.Records() {
		if r.Level == level && strings.Contains(r.Message, fragment) {
			return true
		}
	}

	return false
}

// Count returns the number of records at level.
func (s *LoggerSpy) Count(level string) int {
	count := 0

	for _, r := range s.Records() {
		if r.Level == level {
			count++
		}
	}

	return count
}
