// Package eventstoretest holds the behavioral test suite every event log engine must pass.
package eventstoretest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkamradt/vehicleevent/eventstore"
)

// EventLog is the contract exercised by the suite.
type EventLog interface {
	Load(ctx context.Context, aggregateID string) (eventstore.StorableEvents, eventstore.SequenceNumberUint, error)
	LoadAfter(ctx context.Context, aggregateID string, after eventstore.SequenceNumberUint) (eventstore.StorableEvents, eventstore.SequenceNumberUint, error)
	ReadAll(ctx context.Context, after eventstore.GlobalPositionUint, limit int) (eventstore.StorableEvents, error)
	Append(ctx context.Context, aggregateID string, expectedVersion eventstore.SequenceNumberUint, event eventstore.StorableEvent, additionalEvents ...eventstore.StorableEvent) (eventstore.StorableEvents, error)
}

// Factory returns a ready to use engine; it may share state between calls since every test uses fresh ids.
type Factory func(t *testing.T) EventLog

// Run executes the whole suite against the engine built by newLog.
func Run(t *testing.T, newLog Factory) {
	t.Run("load of an unknown aggregate is empty", func(t *testing.T) { loadUnknown(t, newLog(t)) })
	t.Run("append assigns consecutive sequence numbers", func(t *testing.T) { appendConsecutive(t, newLog(t)) })
	t.Run("append with stale version conflicts", func(t *testing.T) { appendStale(t, newLog(t)) })
	t.Run("load after returns the tail", func(t *testing.T) { loadAfter(t, newLog(t)) })
	t.Run("read all pages in global order", func(t *testing.T) { readAll(t, newLog(t)) })
	t.Run("concurrent appends at the same version", func(t *testing.T) { concurrentAppends(t, newLog(t)) })
	t.Run("empty aggregate id is rejected", func(t *testing.T) { emptyAggregateID(t, newLog(t)) })
}

// GivenUniqueAggregateID returns an id no other test uses.
func GivenUniqueAggregateID(t *testing.T) string {
	t.Helper()

	return "agg-" + uuid.NewString()
}

// FixtureEvent builds a storable event with a small valid payload.
func FixtureEvent(t *testing.T, eventType string, n int) eventstore.StorableEvent {
	t.Helper()

	event, err := eventstore.BuildStorableEvent(
		eventType,
		time.Unix(int64(n), 0).UTC(),
		[]byte(fmt.Sprintf(`{"n": %d}`, n)),
		[]byte(`{"messageId": "`+uuid.NewString()+`"}`),
	)
	require.NoError(t, err)

	return event
}

func testContext(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	return ctx
}

func loadUnknown(t *testing.T, log EventLog) {
	// arrange
	ctx := testContext(t)

	// act
	events, version, err := log.Load(ctx, GivenUniqueAggregateID(t))

	// assert
	assert.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, eventstore.SequenceNumberUint(0), version)
}

func appendConsecutive(t *testing.T, log EventLog) {
	// arrange
	ctx := testContext(t)
	aggregateID := GivenUniqueAggregateID(t)

	// act
	first, err := log.Append(ctx, aggregateID, 0, FixtureEvent(t, "Created", 1))
	require.NoError(t, err)
	more, err := log.Append(ctx, aggregateID, 1, FixtureEvent(t, "Changed", 2), FixtureEvent(t, "Changed", 3))
	require.NoError(t, err)

	// assert
	require.Len(t, first, 1)
	assert.Equal(t, eventstore.SequenceNumberUint(1), first[0].SequenceNumber)
	require.Len(t, more, 2)
	assert.Equal(t, eventstore.SequenceNumberUint(2), more[0].SequenceNumber)
	assert.Equal(t, eventstore.SequenceNumberUint(3), more[1].SequenceNumber)
	assert.Less(t, first[0].GlobalPosition, more[0].GlobalPosition)

	events, version, err := log.Load(ctx, aggregateID)
	assert.NoError(t, err)
	assert.Equal(t, eventstore.SequenceNumberUint(3), version)
	require.Len(t, events, 3)

	for i, event := range events {
		assert.Equal(t, aggregateID, event.AggregateID)
		assert.Equal(t, eventstore.SequenceNumberUint(i+1), event.SequenceNumber, "no gaps in the sequence")
	}

	assert.Equal(t, "Created", events[0].EventType)
	assert.JSONEq(t, `{"n": 3}`, string(events[2].PayloadJSON))
}

func appendStale(t *testing.T, log EventLog) {
	// arrange
	ctx := testContext(t)
	aggregateID := GivenUniqueAggregateID(t)
	_, err := log.Append(ctx, aggregateID, 0, FixtureEvent(t, "Created", 1))
	require.NoError(t, err)
	_, err = log.Append(ctx, aggregateID, 1, FixtureEvent(t, "Changed", 2))
	require.NoError(t, err)

	// act
	_, staleErr := log.Append(ctx, aggregateID, 1, FixtureEvent(t, "Changed", 3), FixtureEvent(t, "Changed", 4))
	_, aheadErr := log.Append(ctx, aggregateID, 5, FixtureEvent(t, "Changed", 5))

	// assert
	assert.ErrorIs(t, staleErr, eventstore.ErrConcurrencyConflict)
	assert.ErrorIs(t, aheadErr, eventstore.ErrConcurrencyConflict)

	events, version, err := log.Load(ctx, aggregateID)
	assert.NoError(t, err)
	assert.Len(t, events, 2, "a rejected append must not write anything")
	assert.Equal(t, eventstore.SequenceNumberUint(2), version)
}

func loadAfter(t *testing.T, log EventLog) {
	// arrange
	ctx := testContext(t)
	aggregateID := GivenUniqueAggregateID(t)
	_, err := log.Append(ctx, aggregateID, 0,
		FixtureEvent(t, "Created", 1), FixtureEvent(t, "Changed", 2), FixtureEvent(t, "Changed", 3))
	require.NoError(t, err)

	// act
	tail, tailVersion, tailErr := log.LoadAfter(ctx, aggregateID, 1)
	none, noneVersion, noneErr := log.LoadAfter(ctx, aggregateID, 3)

	// assert
	assert.NoError(t, tailErr)
	require.Len(t, tail, 2)
	assert.Equal(t, eventstore.SequenceNumberUint(2), tail[0].SequenceNumber)
	assert.Equal(t, eventstore.SequenceNumberUint(3), tailVersion)

	assert.NoError(t, noneErr)
	assert.Empty(t, none)
	assert.Equal(t, eventstore.SequenceNumberUint(3), noneVersion)
}

func readAll(t *testing.T, log EventLog) {
	// arrange
	ctx := testContext(t)
	first := GivenUniqueAggregateID(t)
	second := GivenUniqueAggregateID(t)

	committed, err := log.Append(ctx, first, 0, FixtureEvent(t, "Created", 1))
	require.NoError(t, err)
	_, err = log.Append(ctx, second, 0, FixtureEvent(t, "Created", 2))
	require.NoError(t, err)
	_, err = log.Append(ctx, first, 1, FixtureEvent(t, "Changed", 3))
	require.NoError(t, err)

	start := committed[0].GlobalPosition - 1
	ours := func(e eventstore.StorableEvent) bool { return e.AggregateID == first || e.AggregateID == second }

	// act
	var collected eventstore.StorableEvents
	position := start

	for {
		page, pageErr := log.ReadAll(ctx, position, 2)
		require.NoError(t, pageErr)

		if len(page) == 0 {
			break
		}

		for _, e := range page {
			if ours(e) {
				collected = append(collected, e)
			}
		}

		position = page[len(page)-1].GlobalPosition
	}

	// assert
	require.Len(t, collected, 3)
	assert.Equal(t, first, collected[0].AggregateID)
	assert.Equal(t, second, collected[1].AggregateID)
	assert.Equal(t, first, collected[2].AggregateID)
	assert.Equal(t, eventstore.SequenceNumberUint(2), collected[2].SequenceNumber)

	_, limitErr := log.ReadAll(ctx, 0, 0)
	assert.ErrorIs(t, limitErr, eventstore.ErrInvalidReadLimit)
}

func concurrentAppends(t *testing.T, log EventLog) {
	// arrange
	ctx := testContext(t)
	aggregateID := GivenUniqueAggregateID(t)
	_, err := log.Append(ctx, aggregateID, 0, FixtureEvent(t, "Created", 1))
	require.NoError(t, err)

	const writers = 8

	var successes, conflicts atomic.Int32
	var wg sync.WaitGroup
	startGate := make(chan struct{})

	// act
	for i := 0; i < writers; i++ {
		wg.Add(1)

		go func(n int) {
			defer wg.Done()
			<-startGate

			_, appendErr := log.Append(ctx, aggregateID, 1, FixtureEvent(t, "Moved", n))

			switch {
			case appendErr == nil:
				successes.Add(1)
			case assert.ErrorIs(t, appendErr, eventstore.ErrConcurrencyConflict):
				conflicts.Add(1)
			}
		}(i + 2)
	}

	close(startGate)
	wg.Wait()

	// assert
	assert.Equal(t, int32(1), successes.Load(), "exactly one append may win at a given version")
	assert.Equal(t, int32(writers-1), conflicts.Load())

	events, version, err := log.Load(ctx, aggregateID)
	assert.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Equal(t, eventstore.SequenceNumberUint(2), version)
}

func emptyAggregateID(t *testing.T, log EventLog) {
	ctx := testContext(t)

	_, _, loadErr := log.Load(ctx, "")
	_, appendErr := log.Append(ctx, "", 0, FixtureEvent(t, "Created", 1))

	assert.ErrorIs(t, loadErr, eventstore.ErrEmptyAggregateID)
	assert.ErrorIs(t, appendErr, eventstore.ErrEmptyAggregateID)
}
