// Package memengine provides an in-memory implementation of the aggregate event log.
//
// It keeps the same contract as the PostgreSQL engine: per-aggregate consecutive sequence
// numbers, atomic compare-and-append against an expected version, and global positions
// for replay. Events live only as long as the process.
package memengine

import (
	"context"
	"sync"
	"time"

	"github.com/rkamradt/vehicleevent/eventstore"
)

const (
	logMsgEventsAppended      = "eventstore operation: events appended"
	logMsgConcurrencyConflict = "eventstore operation: concurrency conflict detected"
	logAttrAggregateID        = "aggregate_id"
	logAttrEventCount         = "event_count"
	logAttrExpectedSequence   = "expected_sequence"
	logAttrActualSequence     = "actual_sequence"

	metricEventsAppended       = "eventstore_events_appended_total"
	metricConcurrencyConflicts = "eventstore_concurrency_conflicts_total"
	metricAppendDuration       = "eventstore_append_duration_seconds"
)

// EventStore is a mutex-guarded in-memory event log.
type EventStore struct {
	mu               sync.RWMutex
	streams          map[string]eventstore.StorableEvents
	log              eventstore.StorableEvents
	logger           eventstore.Logger
	metricsCollector eventstore.MetricsCollector
}

// Option defines a functional option for configuring EventStore.
type Option func(*EventStore)

// WithLogger sets the logger for the EventStore.
func WithLogger(logger eventstore.Logger) Option {
	return func(es *EventStore) {
		es.logger = logger
	}
}

// WithMetrics sets the metrics collector for the EventStore.
func WithMetrics(collector eventstore.MetricsCollector) Option {
	return func(es *EventStore) {
		es.metricsCollector = collector
	}
}

// NewEventStore creates an empty in-memory EventStore.
func NewEventStore(options ...Option) *EventStore {
	es := &EventStore{
		streams: make(map[string]eventstore.StorableEvents),
	}

	for _, option := range options {
		option(es)
	}

	return es
}

// Load returns all events of one aggregate ordered by sequence number and the aggregate's version.
func (es *EventStore) Load(ctx context.Context, aggregateID string) (
	eventstore.StorableEvents,
	eventstore.SequenceNumberUint,
	error,
) {

	return es.LoadAfter(ctx, aggregateID, 0)
}

// LoadAfter returns the events of one aggregate with a sequence number greater than after.
func (es *EventStore) LoadAfter(
	ctx context.Context,
	aggregateID string,
	after eventstore.SequenceNumberUint,
) (eventstore.StorableEvents, eventstore.SequenceNumberUint, error) {

	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	if aggregateID == "" {
		return nil, 0, eventstore.ErrEmptyAggregateID
	}

	es.mu.RLock()
	defer es.mu.RUnlock()

	stream := es.streams[aggregateID]
	if int(after) >= len(stream) {
		return eventstore.StorableEvents{}, after, nil
	}

	// sequence numbers start at 1, so event n sits at index n-1
	tail := make(eventstore.StorableEvents, len(stream)-int(after))
	copy(tail, stream[after:])

	return tail, eventstore.VersionOf(tail), nil
}

// ReadAll returns at most limit events with a global position greater than after, in global order.
func (es *EventStore) ReadAll(
	ctx context.Context,
	after eventstore.GlobalPositionUint,
	limit int,
) (eventstore.StorableEvents, error) {

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if limit <= 0 {
		return nil, eventstore.ErrInvalidReadLimit
	}

	es.mu.RLock()
	defer es.mu.RUnlock()

	// global positions start at 1 and have no gaps here
	if after >= eventstore.GlobalPositionUint(len(es.log)) {
		return eventstore.StorableEvents{}, nil
	}

	end := min(int(after)+limit, len(es.log))
	page := make(eventstore.StorableEvents, end-int(after))
	copy(page, es.log[after:end])

	return page, nil
}

// Append appends the events to the aggregate's stream if its version equals expectedVersion.
// The version check and the write happen under one lock.
func (es *EventStore) Append(
	ctx context.Context,
	aggregateID string,
	expectedVersion eventstore.SequenceNumberUint,
	event eventstore.StorableEvent,
	additionalEvents ...eventstore.StorableEvent,
) (eventstore.StorableEvents, error) {

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if aggregateID == "" {
		return nil, eventstore.ErrEmptyAggregateID
	}

	start := time.Now()

	allEvents := eventstore.StorableEvents{event}
	allEvents = append(allEvents, additionalEvents...)

	es.mu.Lock()

	stream := es.streams[aggregateID]
	actualVersion := eventstore.VersionOf(stream)

	if actualVersion != expectedVersion {
		es.mu.Unlock()
		es.recordConflict(aggregateID, expectedVersion, actualVersion)

		return nil, eventstore.ErrConcurrencyConflict
	}

	committed := make(eventstore.StorableEvents, len(allEvents))
	for i, e := range allEvents {
		committed[i] = e.WithPosition(
			aggregateID,
			expectedVersion+eventstore.SequenceNumberUint(i)+1,
			eventstore.GlobalPositionUint(len(es.log)+1),
		)
		es.log = append(es.log, committed[i])
	}

	es.streams[aggregateID] = append(stream, committed...)

	es.mu.Unlock()

	es.recordAppend(aggregateID, len(committed), time.Since(start))

	result := make(eventstore.StorableEvents, len(committed))
	copy(result, committed)

	return result, nil
}

func (es *EventStore) recordAppend(aggregateID string, count int, duration time.Duration) {
	if es.logger != nil {
		es.logger.Debug(logMsgEventsAppended, logAttrAggregateID, aggregateID, logAttrEventCount, count)
	}

	if es.metricsCollector != nil {
		labels := map[string]string{"operation": "append", "status": "success"}
		es.metricsCollector.RecordDuration(metricAppendDuration, duration, labels)
		es.metricsCollector.RecordValue(metricEventsAppended, float64(count), labels)
	}
}

func (es *EventStore) recordConflict(aggregateID string, expected, actual eventstore.SequenceNumberUint) {
	if es.logger != nil {
		es.logger.Info(logMsgConcurrencyConflict,
			logAttrAggregateID, aggregateID,
			logAttrExpectedSequence, expected,
			logAttrActualSequence, actual,
		)
	}

	if es.metricsCollector != nil {
		es.metricsCollector.IncrementCounter(metricConcurrencyConflicts, map[string]string{
			"operation":     "append",
			"conflict_type": "concurrency",
		})
	}
}
