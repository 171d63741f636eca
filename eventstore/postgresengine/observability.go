package postgresengine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rkamradt/vehicleevent/eventstore"
)

const (
	metricLoadDuration         = "eventstore_load_duration_seconds"
	metricAppendDuration       = "eventstore_append_duration_seconds"
	metricEventsLoaded         = "eventstore_events_loaded_total"
	metricEventsAppended       = "eventstore_events_appended_total"
	metricConcurrencyConflicts = "eventstore_concurrency_conflicts_total"
	metricDatabaseErrors       = "eventstore_database_errors_total"

	spanNameLoad    = "eventstore.load"
	spanNameReadAll = "eventstore.read_all"
	spanNameAppend  = "eventstore.append"

	spanAttrOperation    = "operation"
	spanAttrEventCount   = "event_count"
	spanAttrEventType    = "event_type"
	spanAttrVersion      = "version"
	spanAttrExpectedSeq  = "expected_sequence"
	spanAttrRowsAffected = "rows_affected"
	spanAttrDurationMS   = "duration_ms"
	spanAttrErrorType    = "error_type"

	operationLoad    = "load"
	operationReadAll = "read_all"
	operationAppend  = "append"

	statusSuccess = "success"
	statusError   = "error"

	errorTypeBuildQuery          = "build_query"
	errorTypeQuery               = "database_query"
	errorTypeExec                = "database_exec"
	errorTypeConcurrencyConflict = "concurrency_conflict"
)

// logQueryWithDuration logs SQL queries with execution time at debug level if the logger is configured.
func (es *EventStore) logQueryWithDuration(
	sqlQuery string,
	action string,
	duration time.Duration,
) {
	if es.logger != nil {
		es.logger.Debug(logMsgSQLExecuted+action, logAttrDurationMS, es.toMilliseconds(duration), logAttrQuery, sqlQuery)
	}
}

// logOperation logs operational information at info level if the logger is configured.
func (es *EventStore) logOperation(action string, args ...any) {
	if es.logger != nil {
		es.logger.Info(logMsgOperation+action, args...)
	}
}

// logError logs error information at the error level if the logger is configured.
func (es *EventStore) logError(
	message string,
	err error,
	args ...any,
) {
	if es.logger != nil {
		allArgs := []any{logAttrError, err.Error()}
		allArgs = append(allArgs, args...)
		es.logger.Error(message, allArgs...)
	}
}

// logOperationContext logs operational information with context correlation,
// falling back to the plain logger.
func (es *EventStore) logOperationContext(ctx context.Context, action string, args ...any) {
	if es.contextualLogger != nil {
		es.contextualLogger.InfoContext(ctx, logMsgOperation+action, args...)
		return
	}

	es.logOperation(action, args...)
}

// logErrorContext logs error information with context correlation, falling back to the plain logger.
func (es *EventStore) logErrorContext(
	ctx context.Context,
	message string,
	err error,
	args ...any,
) {
	if es.contextualLogger != nil {
		allArgs := []any{logAttrError, err.Error()}
		allArgs = append(allArgs, args...)
		es.contextualLogger.ErrorContext(ctx, message, allArgs...)

		return
	}

	es.logError(message, err, args...)
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func (es *EventStore) toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

func (es *EventStore) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if es.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := es.metricsCollector.(eventstore.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metric, labels)
		return
	}

	es.metricsCollector.IncrementCounter(metric, labels)
}

func (es *EventStore) recordDuration(ctx context.Context, metric string, duration time.Duration, labels map[string]string) {
	if es.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := es.metricsCollector.(eventstore.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metric, duration, labels)
		return
	}

	es.metricsCollector.RecordDuration(metric, duration, labels)
}

func (es *EventStore) recordValue(ctx context.Context, metric string, value float64, labels map[string]string) {
	if es.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := es.metricsCollector.(eventstore.ContextualMetricsCollector); ok {
		contextualCollector.RecordValueContext(ctx, metric, value, labels)
		return
	}

	es.metricsCollector.RecordValue(metric, value, labels)
}

// startTraceSpan starts a tracing span if the tracing collector is configured.
func (es *EventStore) startTraceSpan(
	ctx context.Context,
	name string,
	attrs map[string]string,
) (context.Context, SpanContext) {
	if es.tracingCollector != nil {
		return es.tracingCollector.StartSpan(ctx, name, attrs)
	}

	return ctx, nil
}

// finishTraceSpan finishes a tracing span if the tracing collector is configured.
func (es *EventStore) finishTraceSpan(
	spanCtx SpanContext,
	status string,
	attrs map[string]string,
) {
	if es.tracingCollector != nil && spanCtx != nil {
		es.tracingCollector.FinishSpan(spanCtx, status, attrs)
	}
}

func formatDurationMS(duration time.Duration) string {
	return fmt.Sprintf("%.2f", float64(duration.Nanoseconds())/1e6)
}

// === Tracing Observer Pattern ===

// queryTracingObserver encapsulates tracing span lifecycle management for load and read-all operations.
type queryTracingObserver struct {
	es   *EventStore
	span SpanContext
}

// appendTracingObserver encapsulates tracing span lifecycle management for append operations.
type appendTracingObserver struct {
	es   *EventStore
	span SpanContext
}

func (es *EventStore) startQueryTracing(ctx context.Context, operation string) (*queryTracingObserver, context.Context) {
	name := spanNameLoad
	if operation == operationReadAll {
		name = spanNameReadAll
	}

	newCtx, span := es.startTraceSpan(ctx, name, map[string]string{spanAttrOperation: operation})

	return &queryTracingObserver{es: es, span: span}, newCtx
}

func (es *EventStore) startAppendTracing(
	ctx context.Context,
	events eventstore.StorableEvents,
	expectedVersion eventstore.SequenceNumberUint,
) (*appendTracingObserver, context.Context) {

	attrs := map[string]string{
		spanAttrOperation:   operationAppend,
		spanAttrEventCount:  fmt.Sprintf("%d", len(events)),
		spanAttrExpectedSeq: fmt.Sprintf("%d", expectedVersion),
	}

	if len(events) > 0 {
		attrs[spanAttrEventType] = events[0].EventType
	}

	newCtx, span := es.startTraceSpan(ctx, spanNameAppend, attrs)

	return &appendTracingObserver{es: es, span: span}, newCtx
}

func (qto *queryTracingObserver) finishError(errorType string, duration time.Duration) {
	if qto.span == nil {
		return
	}

	qto.span.SetStatus(statusError)
	qto.span.AddAttribute(spanAttrErrorType, errorType)

	if duration > 0 {
		qto.span.AddAttribute(spanAttrDurationMS, formatDurationMS(duration))
	}

	qto.es.finishTraceSpan(qto.span, statusError, map[string]string{spanAttrErrorType: errorType})
}

func (qto *queryTracingObserver) finishSuccess(
	eventStream eventstore.StorableEvents,
	version eventstore.SequenceNumberUint,
	duration time.Duration,
) {
	if qto.span == nil {
		return
	}

	attrs := map[string]string{
		spanAttrEventCount: fmt.Sprintf("%d", len(eventStream)),
		spanAttrVersion:    fmt.Sprintf("%d", version),
		spanAttrDurationMS: formatDurationMS(duration),
	}

	qto.span.SetStatus(statusSuccess)

	qto.es.finishTraceSpan(qto.span, statusSuccess, attrs)
}

func (ato *appendTracingObserver) finishError(errorType string, duration time.Duration) {
	var attrs map[string]string
	if duration > 0 {
		attrs = map[string]string{spanAttrDurationMS: formatDurationMS(duration)}
	}

	ato.finishErrorWithAttrs(errorType, attrs)
}

func (ato *appendTracingObserver) finishErrorWithAttrs(errorType string, additionalAttrs map[string]string) {
	if ato.span == nil {
		return
	}

	ato.span.SetStatus(statusError)
	ato.span.AddAttribute(spanAttrErrorType, errorType)

	attrs := map[string]string{spanAttrErrorType: errorType}
	for key, value := range additionalAttrs {
		attrs[key] = value
	}

	ato.es.finishTraceSpan(ato.span, statusError, attrs)
}

func (ato *appendTracingObserver) finishSuccess(rowsAffected int64, duration time.Duration) {
	if ato.span == nil {
		return
	}

	ato.span.SetStatus(statusSuccess)

	ato.es.finishTraceSpan(ato.span, statusSuccess, map[string]string{
		spanAttrRowsAffected: fmt.Sprintf("%d", rowsAffected),
		spanAttrDurationMS:   formatDurationMS(duration),
	})
}

// === Metrics Observer Pattern ===

type queryMetricsObserver struct {
	es        *EventStore
	ctx       context.Context
	operation string
}

type appendMetricsObserver struct {
	es  *EventStore
	ctx context.Context
}

func (es *EventStore) startQueryMetrics(ctx context.Context, operation string) *queryMetricsObserver {
	return &queryMetricsObserver{es: es, ctx: ctx, operation: operation}
}

func (es *EventStore) startAppendMetrics(ctx context.Context) *appendMetricsObserver {
	return &appendMetricsObserver{es: es, ctx: ctx}
}

func (qmo *queryMetricsObserver) recordSuccess(eventStream eventstore.StorableEvents, duration time.Duration) {
	labels := map[string]string{spanAttrOperation: qmo.operation, "status": statusSuccess}
	qmo.es.recordDuration(qmo.ctx, metricLoadDuration, duration, labels)
	qmo.es.recordValue(qmo.ctx, metricEventsLoaded, float64(len(eventStream)), labels)
}

func (qmo *queryMetricsObserver) recordError(errorType string, duration time.Duration) {
	qmo.es.recordDuration(qmo.ctx, metricLoadDuration, duration, map[string]string{
		spanAttrOperation: qmo.operation,
		"status":          statusError,
	})
	qmo.es.incrementCounter(qmo.ctx, metricDatabaseErrors, map[string]string{
		spanAttrOperation: qmo.operation,
		"status":          statusError,
		spanAttrErrorType: errorType,
	})
}

func (amo *appendMetricsObserver) recordSuccess(eventCount int, duration time.Duration) {
	labels := map[string]string{spanAttrOperation: operationAppend, "status": statusSuccess}
	amo.es.recordDuration(amo.ctx, metricAppendDuration, duration, labels)
	amo.es.recordValue(amo.ctx, metricEventsAppended, float64(eventCount), labels)
}

func (amo *appendMetricsObserver) recordError(errorType string, duration time.Duration) {
	amo.es.recordDuration(amo.ctx, metricAppendDuration, duration, map[string]string{
		spanAttrOperation: operationAppend,
		"status":          statusError,
	})
	amo.es.incrementCounter(amo.ctx, metricDatabaseErrors, map[string]string{
		spanAttrOperation: operationAppend,
		"status":          statusError,
		spanAttrErrorType: errorType,
	})
}

func (amo *appendMetricsObserver) recordConcurrencyConflict() {
	amo.es.incrementCounter(amo.ctx, metricConcurrencyConflicts, map[string]string{
		spanAttrOperation: operationAppend,
		"conflict_type":   "concurrency",
	})
}
