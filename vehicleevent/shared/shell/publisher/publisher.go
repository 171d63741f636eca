// Package publisher delivers committed events to projection handlers.
//
// Events are routed to one of N shards by a hash of their aggregate id. Each shard is a single
// goroutine draining a bounded FIFO queue, and different aggregates are processed in parallel.
// Concurrent commands may enqueue the events of one aggregate out of commit order, so each shard
// releases them by SequenceNumber: an event ahead of a gap waits until the gap is filled, from the
// event log when a gap loader is configured. Delivery is at least once: a failing handler is
// retried a bounded number of times, then the failure is logged and counted.
package publisher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/rkamradt/vehicleevent/eventstore"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell"
)

const (
	DefaultShards         = 8
	DefaultQueueSize      = 1024
	DefaultHandlerRetries = 3
	DefaultReplayPageSize = 200

	handlerRetryDelay = 10 * time.Millisecond

	MetricEventsDispatched = "publisher_events_dispatched_total"
	MetricHandlerFailures  = "publisher_handler_failures_total"
	MetricEventsReplayed   = "publisher_events_replayed_total"
	MetricSequenceGaps     = "publisher_sequence_gaps_total"
	MetricStaleEvents      = "publisher_stale_events_total"

	logMsgHandlerFailed  = "projection handler failed, event skipped"
	logMsgReplayFinished = "projection replay finished"
	logMsgGapFillFailed  = "loading events to fill sequence gap failed"
	logMsgGapSkipped     = "sequence gap not filled, held events released"
	logAttrSequence      = "sequence_number"
	logAttrExpected      = "expected_sequence_number"
)

var (
	// ErrPublisherClosed is returned by Publish after Close or after Run has returned.
	ErrPublisherClosed = errors.New("publisher is closed")

	// ErrInvalidShardCount is returned for a shard count below one.
	ErrInvalidShardCount = errors.New("shard count must be positive")

	// ErrInvalidQueueSize is returned for a queue size below one.
	ErrInvalidQueueSize = errors.New("queue size must be positive")
)

// Handler reacts to one committed event. Handlers must be idempotent, since delivery is at least once.
type Handler func(ctx context.Context, envelope shell.EventEnvelope) error

// LoadsEventsAfter reads the committed events of one aggregate. shell.EventLog satisfies it.
type LoadsEventsAfter interface {
	LoadAfter(ctx context.Context, aggregateID string, after eventstore.SequenceNumberUint) (
		eventstore.StorableEvents,
		eventstore.SequenceNumberUint,
		error,
	)
}

type job struct {
	ctx      context.Context
	envelope shell.EventEnvelope
}

// Publisher is the sharded, asynchronous event dispatcher.
type Publisher struct {
	handlers map[string][]Handler

	shards         []chan job
	sequencers     []*sequencer
	gapLoader      LoadsEventsAfter
	queueSize      int
	handlerRetries int
	replayPageSize int

	mu        sync.RWMutex
	closed    bool
	done      chan struct{}
	closeOnce sync.Once

	logger           shell.Logger
	contextualLogger shell.ContextualLogger
	metricsCollector shell.MetricsCollector
}

// Option configures a Publisher.
type Option func(*Publisher) error

// WithShards sets the number of shards.
func WithShards(shards int) Option {
	return func(p *Publisher) error {
		if shards < 1 {
			return ErrInvalidShardCount
		}

		p.shards = make([]chan job, shards)

		return nil
	}
}

// WithQueueSize sets the capacity of each shard's queue.
func WithQueueSize(size int) Option {
	return func(p *Publisher) error {
		if size < 1 {
			return ErrInvalidQueueSize
		}

		p.queueSize = size

		return nil
	}
}

// WithHandlerRetries sets how often a failing handler is called before the event is skipped for it.
func WithHandlerRetries(attempts int) Option {
	return func(p *Publisher) error {
		p.handlerRetries = max(attempts, 1)
		return nil
	}
}

// WithReplayPageSize sets the page size used by Replay.
func WithReplayPageSize(size int) Option {
	return func(p *Publisher) error {
		p.replayPageSize = max(size, 1)
		return nil
	}
}

// WithGapLoader lets a shard read missing events from the log instead of waiting for them.
func WithGapLoader(loader LoadsEventsAfter) Option {
	return func(p *Publisher) error {
		p.gapLoader = loader
		return nil
	}
}

// WithLogger sets the plain logger.
func WithLogger(logger shell.Logger) Option {
	return func(p *Publisher) error {
		p.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger.
func WithContextualLogger(logger shell.ContextualLogger) Option {
	return func(p *Publisher) error {
		p.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(collector shell.MetricsCollector) Option {
	return func(p *Publisher) error {
		p.metricsCollector = collector
		return nil
	}
}

// NewPublisher creates a Publisher. Register all handlers before calling Run.
func NewPublisher(options ...Option) (*Publisher, error) {
	p := &Publisher{
		handlers:       make(map[string][]Handler),
		shards:         make([]chan job, DefaultShards),
		queueSize:      DefaultQueueSize,
		handlerRetries: DefaultHandlerRetries,
		replayPageSize: DefaultReplayPageSize,
		done:           make(chan struct{}),
	}

	for _, option := range options {
		if err := option(p); err != nil {
			return nil, err
		}
	}

	p.sequencers = make([]*sequencer, len(p.shards))

	for i := range p.shards {
		p.shards[i] = make(chan job, p.queueSize)
		p.sequencers[i] = newSequencer()
	}

	return p, nil
}

// Register adds handler for eventType. Several handlers per type run in registration order.
func (p *Publisher) Register(eventType string, handler Handler) {
	p.handlers[eventType] = append(p.handlers[eventType], handler)
}

// Publish enqueues the envelopes on their shards. It blocks while a shard queue is full, and only
// stopping the publisher ends that wait: the events are committed, so a cancelled ctx must not drop them.
// Handlers run with a context that keeps ctx's values but not its cancellation.
func (p *Publisher) Publish(ctx context.Context, envelopes shell.EventEnvelopes) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPublisherClosed
	}

	detached := context.WithoutCancel(ctx)

	for _, envelope := range envelopes {
		select {
		case p.shards[p.shardOf(envelope.AggregateID)] <- job{ctx: detached, envelope: envelope}:
		case <-p.done:
			return ErrPublisherClosed
		}
	}

	return nil
}

// Run starts one worker per shard and blocks until Close has drained all queues or ctx is done.
func (p *Publisher) Run(ctx context.Context) error {
	defer p.closeOnce.Do(func() { close(p.done) })

	group, groupCtx := errgroup.WithContext(ctx)

	for i, queue := range p.shards {
		group.Go(func() error {
			for {
				select {
				case j, ok := <-queue:
					if !ok {
						return nil
					}

					p.deliver(p.sequencers[i], j)

				case <-groupCtx.Done():
					return nil
				}
			}
		})
	}

	return group.Wait()
}

// Close stops accepting events. Workers finish the events already queued, then Run returns.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	p.closed = true

	for _, queue := range p.shards {
		close(queue)
	}
}

// Replay pages through the whole log in global order and dispatches every event synchronously.
// Handlers see a context marked with shell.WithReplay. Run it before Run and before any Publish;
// the shards then expect the sequence numbers that follow the replayed ones.
// It returns the number of events replayed.
func (p *Publisher) Replay(ctx context.Context, reader shell.ReadsAllEvents) (int, error) {
	replayCtx := shell.WithReplay(ctx)

	var (
		position eventstore.GlobalPositionUint
		replayed int
	)

	for {
		page, err := reader.ReadAll(ctx, position, p.replayPageSize)
		if err != nil {
			return replayed, err
		}

		if len(page) == 0 {
			break
		}

		envelopes, err := shell.EventEnvelopesFrom(page)
		if err != nil {
			return replayed, err
		}

		for _, envelope := range envelopes {
			p.deliver(p.sequencers[p.shardOf(envelope.AggregateID)], job{ctx: replayCtx, envelope: envelope})
		}

		replayed += len(page)
		position = page[len(page)-1].GlobalPosition
	}

	shell.RecordValue(ctx, p.metricsCollector, MetricEventsReplayed, float64(replayed), nil)
	shell.LogInfo(ctx, p.logger, p.contextualLogger, logMsgReplayFinished, "event_count", replayed)

	return replayed, nil
}

func (p *Publisher) shardOf(aggregateID string) int {
	return int(xxhash.Sum64String(aggregateID) % uint64(len(p.shards)))
}

// deliver dispatches j and every held event it unblocks, in sequence order.
func (p *Publisher) deliver(seq *sequencer, j job) {
	ready, stale := seq.accept(j)
	if stale {
		shell.IncrementCounter(j.ctx, p.metricsCollector, MetricStaleEvents, nil)
		return
	}

	if len(ready) == 0 {
		ready = p.closeGap(seq, j)
	}

	for _, r := range ready {
		p.dispatch(r.ctx, r.envelope)
	}
}

// closeGap runs when j is held back. It loads the missing events from the log, or, without a loader,
// releases the held events once more of them wait than a queue holds.
func (p *Publisher) closeGap(seq *sequencer, j job) []job {
	id := j.envelope.AggregateID
	expected := seq.expected(id)

	shell.IncrementCounter(j.ctx, p.metricsCollector, MetricSequenceGaps, nil)

	if p.gapLoader == nil {
		if seq.held(id) <= p.queueSize {
			return nil
		}

		shell.LogWarn(j.ctx, p.logger, p.contextualLogger, logMsgGapSkipped,
			shell.LogAttrAggregateID, id,
			logAttrExpected, expected,
		)

		return seq.skipGap(id)
	}

	committed, _, err := p.gapLoader.LoadAfter(eventstore.WithStrongConsistency(j.ctx), id, expected-1)
	if err == nil {
		var missing shell.EventEnvelopes
		if missing, err = shell.EventEnvelopesFrom(committed); err == nil {
			var ready []job

			for _, envelope := range missing {
				if envelope.SequenceNumber >= j.envelope.SequenceNumber {
					break
				}

				released, _ := seq.accept(job{ctx: j.ctx, envelope: envelope})
				ready = append(ready, released...)
			}

			return ready
		}
	}

	shell.LogWarn(j.ctx, p.logger, p.contextualLogger, logMsgGapFillFailed,
		shell.LogAttrAggregateID, id,
		logAttrExpected, expected,
		logAttrSequence, j.envelope.SequenceNumber,
		shell.LogAttrError, err.Error(),
	)

	return nil
}

func (p *Publisher) dispatch(ctx context.Context, envelope shell.EventEnvelope) {
	eventType := envelope.DomainEvent.IsEventType()

	for _, handler := range p.handlers[eventType] {
		if err := p.handleWithRetry(ctx, handler, envelope); err != nil {
			shell.IncrementCounter(ctx, p.metricsCollector, MetricHandlerFailures, map[string]string{"event_type": eventType})
			shell.LogError(ctx, p.logger, p.contextualLogger, logMsgHandlerFailed,
				"event_type", eventType,
				shell.LogAttrAggregateID, envelope.AggregateID,
				logAttrSequence, envelope.SequenceNumber,
				shell.LogAttrError, err.Error(),
			)
		}
	}

	shell.IncrementCounter(ctx, p.metricsCollector, MetricEventsDispatched, map[string]string{"event_type": eventType})
}

func (p *Publisher) handleWithRetry(ctx context.Context, handler Handler, envelope shell.EventEnvelope) error {
	var err error

	for attempt := 1; attempt <= p.handlerRetries; attempt++ {
		if err = handler(ctx, envelope); err == nil {
			return nil
		}

		if attempt < p.handlerRetries {
			select {
			case <-time.After(handlerRetryDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return errors.Join(err, ctx.Err())
			}
		}
	}

	return err
}
