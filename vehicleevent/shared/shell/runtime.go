package shell

import (
	"context"
	"errors"

	"github.com/rkamradt/vehicleevent/eventstore"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/core"
)

// ApplyFunc folds one event into the state of an aggregate.
type ApplyFunc[S any] func(state S, event core.DomainEvent) S

// DecideFunc is the pure business decision of a command on the current state.
type DecideFunc[S any] func(state S) core.DecisionResult

// Runtime executes commands against one aggregate type: load and replay, decide, append at the
// replayed version, and retry from the start on a concurrency conflict.
type Runtime[S any] struct {
	eventLog         EventLog
	apply            ApplyFunc[S]
	zero             S
	cache            StateCache[S]
	publisher        PublishesEvents
	retryOptions     []RetryOption
	logger           Logger
	contextualLogger ContextualLogger
}

// RuntimeOption configures a Runtime.
type RuntimeOption[S any] func(*Runtime[S]) error

// WithStateCache lets the Runtime start from a cached state and only load the events after its version.
func WithStateCache[S any](cache StateCache[S]) RuntimeOption[S] {
	return func(r *Runtime[S]) error {
		r.cache = cache
		return nil
	}
}

// WithPublisher hands the envelopes of every successful append to publisher.
func WithPublisher[S any](publisher PublishesEvents) RuntimeOption[S] {
	return func(r *Runtime[S]) error {
		r.publisher = publisher
		return nil
	}
}

// WithRetryOptions sets the retry behavior for every command this Runtime executes.
func WithRetryOptions[S any](options ...RetryOption) RuntimeOption[S] {
	return func(r *Runtime[S]) error {
		r.retryOptions = append(r.retryOptions, options...)
		return nil
	}
}

// WithRuntimeLogger sets the plain logger.
func WithRuntimeLogger[S any](logger Logger) RuntimeOption[S] {
	return func(r *Runtime[S]) error {
		r.logger = logger
		return nil
	}
}

// WithRuntimeContextualLogger sets the contextual logger.
func WithRuntimeContextualLogger[S any](logger ContextualLogger) RuntimeOption[S] {
	return func(r *Runtime[S]) error {
		r.contextualLogger = logger
		return nil
	}
}

// NewRuntime creates a Runtime that rebuilds state by folding apply over zero.
func NewRuntime[S any](eventLog EventLog, apply ApplyFunc[S], zero S, options ...RuntimeOption[S]) (*Runtime[S], error) {
	if eventLog == nil {
		return nil, ErrNilEventLog
	}

	if apply == nil {
		return nil, ErrNilApplyFunc
	}

	r := &Runtime[S]{
		eventLog: eventLog,
		apply:    apply,
		zero:     zero,
	}

	for _, option := range options {
		if err := option(r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Execute runs decide against the current state of aggregateID and appends the decided events.
//
// A rejected decision is returned as is and never retried. An idempotent decision appends nothing and
// reports the unchanged version. Conflicts are retried with backoff; once attempts are exhausted the
// error wraps both eventstore.ErrConcurrencyConflict and ErrMaxRetriesReached.
//
// A publisher failure does not fail the command, since the events are already committed.
func (r *Runtime[S]) Execute(
	ctx context.Context,
	aggregateID string,
	decide DecideFunc[S],
	retryOptions ...RetryOption,
) (HandlerResult, error) {

	if aggregateID == "" {
		return HandlerResult{}, ErrEmptyAggregateID
	}

	var (
		version    eventstore.SequenceNumberUint
		idempotent bool
		committed  eventstore.StorableEvents
	)

	options := append(append([]RetryOption{}, r.retryOptions...), retryOptions...)

	retryMetrics, err := RetryWithExponentialBackoff(ctx, func(ctx context.Context) error {
		state, loadedVersion, loadErr := r.loadState(ctx, aggregateID)
		if loadErr != nil {
			return loadErr
		}

		decision := decide(state)
		if decisionErr := decision.HasError(); decisionErr != nil {
			return decisionErr
		}

		if !decision.HasEventsToAppend() {
			idempotent = true
			version = loadedVersion

			return nil
		}

		storableEvents, mapErr := StorableEventsFrom(decision.Events, EventMetadataForRequest(ctx))
		if mapErr != nil {
			return mapErr
		}

		appended, appendErr := r.eventLog.Append(ctx, aggregateID, loadedVersion, storableEvents[0], storableEvents[1:]...)
		if appendErr != nil {
			if errors.Is(appendErr, eventstore.ErrConcurrencyConflict) {
				r.invalidate(aggregateID)
				return appendErr
			}

			return errors.Join(ErrAppendingEventsFailed, appendErr)
		}

		idempotent = false
		version = eventstore.VersionOf(appended)
		committed = appended

		if r.cache != nil {
			r.cache.Put(aggregateID, core.Fold(r.apply, state, decision.Events), version)
		}

		return nil
	}, options...)

	if err != nil {
		return NewErrorResult(aggregateID, retryMetrics), err
	}

	if idempotent {
		return NewIdempotentResult(aggregateID, version, retryMetrics), nil
	}

	r.publish(ctx, committed)

	return NewSuccessResult(aggregateID, version, retryMetrics), nil
}

// State returns the state and version of aggregateID without deciding anything.
// It may be served by a replica, so it can lag behind the latest append.
func (r *Runtime[S]) State(ctx context.Context, aggregateID string) (S, eventstore.SequenceNumberUint, error) {
	if aggregateID == "" {
		return r.zero, 0, ErrEmptyAggregateID
	}

	return r.loadState(eventstore.WithEventualConsistency(ctx), aggregateID)
}

func (r *Runtime[S]) loadState(ctx context.Context, aggregateID string) (S, eventstore.SequenceNumberUint, error) {
	base, after := r.zero, eventstore.SequenceNumberUint(0)

	var (
		storableEvents eventstore.StorableEvents
		version        eventstore.SequenceNumberUint
		err            error
	)

	if cached, cachedVersion, ok := r.cachedState(aggregateID); ok {
		base, after = cached, cachedVersion
		storableEvents, version, err = r.eventLog.LoadAfter(ctx, aggregateID, after)
	} else {
		storableEvents, version, err = r.eventLog.Load(ctx, aggregateID)
	}

	if err != nil {
		return r.zero, 0, errors.Join(ErrLoadingEventsFailed, err)
	}

	domainEvents, err := DomainEventsFrom(storableEvents)
	if err != nil {
		return r.zero, 0, err
	}

	return core.Fold(r.apply, base, domainEvents), version, nil
}

func (r *Runtime[S]) cachedState(aggregateID string) (S, eventstore.SequenceNumberUint, bool) {
	if r.cache == nil {
		return r.zero, 0, false
	}

	return r.cache.Get(aggregateID)
}

func (r *Runtime[S]) invalidate(aggregateID string) {
	if r.cache != nil {
		r.cache.Invalidate(aggregateID)
	}
}

func (r *Runtime[S]) publish(ctx context.Context, committed eventstore.StorableEvents) {
	if r.publisher == nil || len(committed) == 0 {
		return
	}

	envelopes, err := EventEnvelopesFrom(committed)
	if err == nil {
		err = r.publisher.Publish(ctx, envelopes)
	}

	if err != nil {
		LogWarn(ctx, r.logger, r.contextualLogger, LogMsgPublishFailed,
			LogAttrAggregateID, committed[0].AggregateID,
			LogAttrVersion, eventstore.VersionOf(committed),
			LogAttrError, err.Error(),
		)
	}
}
