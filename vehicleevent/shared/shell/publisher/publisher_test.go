package publisher_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkamradt/vehicleevent/eventstore"
	"github.com/rkamradt/vehicleevent/eventstore/memengine"
	"github.com/rkamradt/vehicleevent/testutil/observability/testdoubles"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/core"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell/publisher"
)

type recorder struct {
	mu   sync.Mutex
	seen map[string][]eventstore.SequenceNumberUint
}

func newRecorder() *recorder {
	return &recorder{seen: make(map[string][]eventstore.SequenceNumberUint)}
}

func (r *recorder) handle(_ context.Context, envelope shell.EventEnvelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seen[envelope.AggregateID] = append(r.seen[envelope.AggregateID], envelope.SequenceNumber)

	return nil
}

func (r *recorder) sequenceOf(aggregateID string) []eventstore.SequenceNumberUint {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]eventstore.SequenceNumberUint{}, r.seen[aggregateID]...)
}

func envelope(aggregateID string, seq eventstore.SequenceNumberUint) shell.EventEnvelope {
	return shell.EventEnvelope{
		DomainEvent:    core.BuildLotUpdated(aggregateID, fmt.Sprintf("name-%d", seq), "m", time.Now()),
		AggregateID:    aggregateID,
		SequenceNumber: seq,
	}
}

func givenRunningPublisher(t *testing.T, options ...publisher.Option) *publisher.Publisher {
	t.Helper()

	p, err := publisher.NewPublisher(options...)
	require.NoError(t, err)

	return p
}

func start(t *testing.T, p *publisher.Publisher) <-chan error {
	t.Helper()

	runErr := make(chan error, 1)
	go func() { runErr <- p.Run(context.Background()) }()

	return runErr
}

func Test_Publisher_PreservesPerAggregateOrder(t *testing.T) {
	// arrange
	rec := newRecorder()
	p := givenRunningPublisher(t, publisher.WithShards(4), publisher.WithQueueSize(8))
	p.Register(core.LotUpdatedEventType, rec.handle)
	runErr := start(t, p)

	const perAggregate = 50
	aggregates := []string{"lot-1", "lot-2", "lot-3", "lot-4", "lot-5"}

	// act
	var wg sync.WaitGroup
	for _, id := range aggregates {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for seq := eventstore.SequenceNumberUint(1); seq <= perAggregate; seq++ {
				assert.NoError(t, p.Publish(context.Background(), shell.EventEnvelopes{envelope(id, seq)}))
			}
		}()
	}

	wg.Wait()
	p.Close()
	require.NoError(t, <-runErr)

	// assert
	for _, id := range aggregates {
		seen := rec.sequenceOf(id)
		require.Len(t, seen, perAggregate, id)

		for i, seq := range seen {
			assert.Equal(t, eventstore.SequenceNumberUint(i+1), seq, "events of %s out of order", id)
		}
	}
}

func Test_Publisher_RetriesFailingHandler(t *testing.T) {
	// arrange
	var calls int
	var mu sync.Mutex
	p := givenRunningPublisher(t, publisher.WithShards(1), publisher.WithHandlerRetries(3))
	p.Register(core.LotUpdatedEventType, func(context.Context, shell.EventEnvelope) error {
		mu.Lock()
		defer mu.Unlock()

		calls++
		if calls < 3 {
			return errors.New("transient")
		}

		return nil
	})
	runErr := start(t, p)

	// act
	require.NoError(t, p.Publish(context.Background(), shell.EventEnvelopes{envelope("lot-9", 1)}))
	p.Close()
	require.NoError(t, <-runErr)

	// assert
	assert.Equal(t, 3, calls)
}

func Test_Publisher_LogsAndCountsPermanentHandlerFailure(t *testing.T) {
	// arrange
	metrics := testdoubles.NewMetricsCollectorSpy(true)
	logger := testdoubles.NewLoggerSpy()
	rec := newRecorder()
	p := givenRunningPublisher(t,
		publisher.WithShards(1),
		publisher.WithHandlerRetries(2),
		publisher.WithMetrics(metrics),
		publisher.WithContextualLogger(logger),
	)
	p.Register(core.LotUpdatedEventType, func(context.Context, shell.EventEnvelope) error { return errors.New("broken") })
	p.Register(core.LotUpdatedEventType, rec.handle)
	runErr := start(t, p)

	// act
	require.NoError(t, p.Publish(context.Background(), shell.EventEnvelopes{envelope("lot-7", 1)}))
	p.Close()
	require.NoError(t, <-runErr)

	// assert
	assert.True(t, metrics.HasCounterRecordForMetric(publisher.MetricHandlerFailures).
		WithLabel("event_type", core.LotUpdatedEventType).
		Assert())
	assert.True(t, logger.HasMessage("error", "projection handler failed"))
	assert.Len(t, rec.sequenceOf("lot-7"), 1, "a failing handler must not block the next one")
}

func Test_Publisher_PublishAfterCloseFails(t *testing.T) {
	p := givenRunningPublisher(t)
	runErr := start(t, p)

	p.Close()
	require.NoError(t, <-runErr)

	err := p.Publish(context.Background(), shell.EventEnvelopes{envelope("lot-1", 1)})

	assert.ErrorIs(t, err, publisher.ErrPublisherClosed)
}

func Test_Publisher_PublishReturnsWhenRunStopped(t *testing.T) {
	// arrange
	p := givenRunningPublisher(t, publisher.WithShards(1), publisher.WithQueueSize(1))
	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- p.Run(ctx) }()

	cancel()
	require.NoError(t, <-runErr)

	// act
	var err error
	for seq := eventstore.SequenceNumberUint(1); seq <= 3 && err == nil; seq++ {
		err = p.Publish(context.Background(), shell.EventEnvelopes{envelope("lot-1", seq)})
	}

	// assert
	assert.ErrorIs(t, err, publisher.ErrPublisherClosed)
}

func Test_Publisher_Replay_DispatchesWholeLogInOrder(t *testing.T) {
	// arrange
	ctx := context.Background()
	log := memengine.NewEventStore()
	runtime, err := shell.NewRuntime(log, core.ApplyLotEvent, core.LotState{})
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		_, err = runtime.Execute(ctx, "lot-r", func(state core.LotState) core.DecisionResult {
			if !state.Exists {
				return core.SuccessDecision(core.BuildLotCreated("lot-r", "start", "m", time.Now()))
			}

			return core.SuccessDecision(core.BuildLotUpdated("lot-r", fmt.Sprintf("n%d", i), "m", time.Now()))
		})
		require.NoError(t, err)
	}

	rec := newRecorder()
	metrics := testdoubles.NewMetricsCollectorSpy(true)
	p := givenRunningPublisher(t, publisher.WithReplayPageSize(2), publisher.WithMetrics(metrics))
	p.Register(core.LotCreatedEventType, rec.handle)
	p.Register(core.LotUpdatedEventType, rec.handle)

	// act
	replayed, err := p.Replay(ctx, log)

	// assert
	require.NoError(t, err)
	assert.Equal(t, 5, replayed)
	assert.Equal(t, []eventstore.SequenceNumberUint{1, 2, 3, 4, 5}, rec.sequenceOf("lot-r"))
	assert.Equal(t, float64(5), metrics.SumValues(publisher.MetricEventsReplayed))
}

func Test_NewPublisher_RejectsInvalidOptions(t *testing.T) {
	_, shardErr := publisher.NewPublisher(publisher.WithShards(0))
	_, queueErr := publisher.NewPublisher(publisher.WithQueueSize(0))

	assert.ErrorIs(t, shardErr, publisher.ErrInvalidShardCount)
	assert.ErrorIs(t, queueErr, publisher.ErrInvalidQueueSize)
}

func Test_Publisher_ReleasesEventsOfOneAggregateBySequenceNumber(t *testing.T) {
	// arrange
	rec := newRecorder()
	p := givenRunningPublisher(t, publisher.WithShards(1))
	p.Register(core.LotUpdatedEventType, rec.handle)
	runErr := start(t, p)

	// act
	require.NoError(t, p.Publish(context.Background(), shell.EventEnvelopes{envelope("lot-1", 1)}))
	require.NoError(t, p.Publish(context.Background(), shell.EventEnvelopes{envelope("lot-1", 3)}))
	require.NoError(t, p.Publish(context.Background(), shell.EventEnvelopes{envelope("lot-1", 2)}))
	require.NoError(t, p.Publish(context.Background(), shell.EventEnvelopes{envelope("lot-1", 2)}))
	p.Close()
	require.NoError(t, <-runErr)

	// assert
	assert.Equal(t, []eventstore.SequenceNumberUint{1, 2, 3}, rec.sequenceOf("lot-1"))
}

func Test_Publisher_FillsSequenceGapFromTheLog(t *testing.T) {
	// arrange
	ctx := context.Background()
	log := memengine.NewEventStore()
	runtime, err := shell.NewRuntime(log, core.ApplyLotEvent, core.LotState{})
	require.NoError(t, err)

	for _, name := range []string{"start", "a", "b"} {
		_, err = runtime.Execute(ctx, "lot-g", func(state core.LotState) core.DecisionResult {
			if !state.Exists {
				return core.SuccessDecision(core.BuildLotCreated("lot-g", name, "m", time.Now()))
			}

			return core.SuccessDecision(core.BuildLotUpdated("lot-g", name, "m", time.Now()))
		})
		require.NoError(t, err)
	}

	committed, _, err := log.Load(ctx, "lot-g")
	require.NoError(t, err)
	envelopes, err := shell.EventEnvelopesFrom(committed)
	require.NoError(t, err)
	require.Len(t, envelopes, 3)

	names := make(chan string, 4)
	metrics := testdoubles.NewMetricsCollectorSpy(true)
	p := givenRunningPublisher(t, publisher.WithShards(2), publisher.WithGapLoader(log), publisher.WithMetrics(metrics))
	p.Register(core.LotCreatedEventType, func(_ context.Context, e shell.EventEnvelope) error {
		names <- e.DomainEvent.(core.LotCreated).Name
		return nil
	})
	p.Register(core.LotUpdatedEventType, func(_ context.Context, e shell.EventEnvelope) error {
		names <- e.DomainEvent.(core.LotUpdated).Name
		return nil
	})
	runErr := start(t, p)

	// act
	// the committer of v2 stalls, so v3 is handed over first
	require.NoError(t, p.Publish(ctx, shell.EventEnvelopes{envelopes[0]}))
	require.NoError(t, p.Publish(ctx, shell.EventEnvelopes{envelopes[2]}))
	require.NoError(t, p.Publish(ctx, shell.EventEnvelopes{envelopes[1]}))
	p.Close()
	require.NoError(t, <-runErr)
	close(names)

	// assert
	var seen []string
	for name := range names {
		seen = append(seen, name)
	}

	assert.Equal(t, []string{"start", "a", "b"}, seen)
	assert.True(t, metrics.HasCounterRecordForMetric(publisher.MetricSequenceGaps).Assert())
	assert.True(t, metrics.HasCounterRecordForMetric(publisher.MetricStaleEvents).Assert())
}

func Test_Publisher_ReleasesHeldEventsWhenGapNeverFills(t *testing.T) {
	// arrange
	rec := newRecorder()
	logger := testdoubles.NewLoggerSpy()
	p := givenRunningPublisher(t,
		publisher.WithShards(1),
		publisher.WithQueueSize(2),
		publisher.WithContextualLogger(logger),
	)
	p.Register(core.LotUpdatedEventType, rec.handle)
	runErr := start(t, p)

	// act
	for seq := eventstore.SequenceNumberUint(2); seq <= 4; seq++ {
		require.NoError(t, p.Publish(context.Background(), shell.EventEnvelopes{envelope("lot-1", seq)}))
	}

	p.Close()
	require.NoError(t, <-runErr)

	// assert
	assert.Equal(t, []eventstore.SequenceNumberUint{2, 3, 4}, rec.sequenceOf("lot-1"))
	assert.True(t, logger.HasMessage("warn", "sequence gap not filled"))
}

func Test_Publisher_Publish_KeepsCommittedEventsWhenCallerIsCancelled(t *testing.T) {
	// arrange
	rec := newRecorder()
	p := givenRunningPublisher(t, publisher.WithShards(1), publisher.WithQueueSize(1))
	p.Register(core.LotUpdatedEventType, rec.handle)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	// act
	published := make(chan error, 1)
	go func() {
		published <- p.Publish(cancelled, shell.EventEnvelopes{
			envelope("lot-1", 1),
			envelope("lot-1", 2),
			envelope("lot-1", 3),
		})
	}()

	select {
	case err := <-published:
		t.Fatalf("Publish gave up on a full queue: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	runErr := start(t, p)
	require.NoError(t, <-published)
	p.Close()
	require.NoError(t, <-runErr)

	// assert
	assert.Equal(t, []eventstore.SequenceNumberUint{1, 2, 3}, rec.sequenceOf("lot-1"))
}

func Test_Publisher_Replay_MarksHandlerContextAndContinuesSequence(t *testing.T) {
	// arrange
	ctx := context.Background()
	log := memengine.NewEventStore()
	runtime, err := shell.NewRuntime(log, core.ApplyLotEvent, core.LotState{})
	require.NoError(t, err)

	_, err = runtime.Execute(ctx, "lot-r", func(core.LotState) core.DecisionResult {
		return core.SuccessDecision(core.BuildLotCreated("lot-r", "start", "m", time.Now()))
	})
	require.NoError(t, err)

	var mu sync.Mutex
	replaying := make(map[eventstore.SequenceNumberUint]bool)
	track := func(ctx context.Context, e shell.EventEnvelope) error {
		mu.Lock()
		defer mu.Unlock()

		replaying[e.SequenceNumber] = shell.IsReplay(ctx)

		return nil
	}

	p := givenRunningPublisher(t, publisher.WithShards(1))
	p.Register(core.LotCreatedEventType, track)
	p.Register(core.LotUpdatedEventType, track)

	// act
	_, err = p.Replay(ctx, log)
	require.NoError(t, err)

	runErr := start(t, p)
	require.NoError(t, p.Publish(ctx, shell.EventEnvelopes{envelope("lot-r", 1)}))
	require.NoError(t, p.Publish(ctx, shell.EventEnvelopes{envelope("lot-r", 2)}))
	p.Close()
	require.NoError(t, <-runErr)

	// assert
	assert.Equal(t, map[eventstore.SequenceNumberUint]bool{1: true, 2: false}, replaying)
}
