// Package logging provides the zap-backed logger used by the service and handed to the event store,
// the runtime, and the handler wrappers through the eventstore.Logger and eventstore.ContextualLogger interfaces.
package logging

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rkamradt/vehicleevent/eventstore"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell"
)

// Correlation keys added by the *Context methods.
const (
	KeyRequestID = "request_id"
	KeyClientID  = "client_id"
	KeyOrigin    = "origin"
	KeyTraceID   = "trace_id"
	KeySpanID    = "span_id"
)

var (
	_ eventstore.Logger           = (*Logger)(nil)
	_ eventstore.ContextualLogger = (*Logger)(nil)
)

// Logger wraps a zap SugaredLogger with key/value methods.
type Logger struct {
	sugared *zap.SugaredLogger
}

// New builds a Logger. Mode "prod" or "production" selects zap's JSON production config, anything
// else the human-readable development config.
func New(mode string) (*Logger, error) {
	var cfg zap.Config

	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}

	zapLogger, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	return FromZap(zapLogger), nil
}

// FromZap wraps an existing zap logger; tests pass one built on zaptest/observer.
func FromZap(zapLogger *zap.Logger) *Logger {
	return &Logger{sugared: zapLogger.Sugar()}
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return FromZap(zap.NewNop())
}

// Sync flushes buffered entries.
func (l *Logger) Sync() {
	_ = l.sugared.Sync()
}

// With returns a child Logger that adds keysAndValues to every entry.
func (l *Logger) With(keysAndValues ...any) *Logger {
	return &Logger{sugared: l.sugared.With(keysAndValues...)}
}

// Enabled reports whether entries at level would be written.
func (l *Logger) Enabled(level zapcore.Level) bool {
	return l.sugared.Desugar().Core().Enabled(level)
}

func (l *Logger) Debug(msg string, keysAndValues ...any) { l.sugared.Debugw(msg, keysAndValues...) }
func (l *Logger) Info(msg string, keysAndValues ...any)  { l.sugared.Infow(msg, keysAndValues...) }
func (l *Logger) Warn(msg string, keysAndValues ...any)  { l.sugared.Warnw(msg, keysAndValues...) }
func (l *Logger) Error(msg string, keysAndValues ...any) { l.sugared.Errorw(msg, keysAndValues...) }

func (l *Logger) DebugContext(ctx context.Context, msg string, keysAndValues ...any) {
	l.sugared.Debugw(msg, withCorrelation(ctx, keysAndValues)...)
}

func (l *Logger) InfoContext(ctx context.Context, msg string, keysAndValues ...any) {
	l.sugared.Infow(msg, withCorrelation(ctx, keysAndValues)...)
}

func (l *Logger) WarnContext(ctx context.Context, msg string, keysAndValues ...any) {
	l.sugared.Warnw(msg, withCorrelation(ctx, keysAndValues)...)
}

func (l *Logger) ErrorContext(ctx context.Context, msg string, keysAndValues ...any) {
	l.sugared.Errorw(msg, withCorrelation(ctx, keysAndValues)...)
}

// withCorrelation appends the request context and the active span's ids, if any.
func withCorrelation(ctx context.Context, keysAndValues []any) []any {
	out := make([]any, 0, len(keysAndValues)+10)
	out = append(out, keysAndValues...)

	if rc, ok := shell.RequestContextFrom(ctx); ok {
		out = append(out, KeyRequestID, rc.RequestID, KeyClientID, rc.ClientID, KeyOrigin, rc.Origin)
	}

	if spanContext := trace.SpanContextFromContext(ctx); spanContext.IsValid() {
		out = append(out, KeyTraceID, spanContext.TraceID().String(), KeySpanID, spanContext.SpanID().String())
	}

	return out
}
