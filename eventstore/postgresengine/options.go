package postgresengine

import (
	"github.com/rkamradt/vehicleevent/eventstore"
)

type (
	// Logger is the plain logger the EventStore writes SQL and operational messages to.
	Logger = eventstore.Logger

	// ContextualLogger receives the same messages with the request context for trace correlation.
	ContextualLogger = eventstore.ContextualLogger

	// MetricsCollector receives durations, counts, conflicts, and database errors.
	MetricsCollector = eventstore.MetricsCollector

	// TracingCollector receives one span per load, read-all, and append.
	TracingCollector = eventstore.TracingCollector

	// SpanContext is an active span.
	SpanContext = eventstore.SpanContext
)

// Option defines a functional option for configuring EventStore.
type Option func(*EventStore) error

// WithTableName sets the table name for the EventStore.
func WithTableName(tableName string) Option {
	return func(es *EventStore) error {
		if tableName == "" {
			return eventstore.ErrEmptyEventsTableName
		}

		es.eventTableName = tableName

		return nil
	}
}

// WithLogger sets the logger for the EventStore.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL queries with execution timing (development use)
// Info level: Event counts, durations, concurrency conflicts (production-safe)
// Warn level: Non-critical issues like cleanup failures
// Error level: Critical failures that cause operation failures.
func WithLogger(logger Logger) Option {
	return func(es *EventStore) error {
		es.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the EventStore.
func WithMetrics(collector MetricsCollector) Option {
	return func(es *EventStore) error {
		es.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the EventStore.
func WithTracing(collector TracingCollector) Option {
	return func(es *EventStore) error {
		es.tracingCollector = collector
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the EventStore.
// Operational and error messages then carry request and trace correlation from the context.
func WithContextualLogger(logger ContextualLogger) Option {
	return func(es *EventStore) error {
		es.contextualLogger = logger
		return nil
	}
}
