package shell

import (
	"context"

	"github.com/rkamradt/vehicleevent/eventstore"
)

// EventLog is what the Runtime needs from an event store engine.
type EventLog interface {
	Load(ctx context.Context, aggregateID string) (eventstore.StorableEvents, eventstore.SequenceNumberUint, error)

	LoadAfter(ctx context.Context, aggregateID string, after eventstore.SequenceNumberUint) (
		eventstore.StorableEvents,
		eventstore.SequenceNumberUint,
		error,
	)

	Append(
		ctx context.Context,
		aggregateID string,
		expectedVersion eventstore.SequenceNumberUint,
		event eventstore.StorableEvent,
		additionalEvents ...eventstore.StorableEvent,
	) (eventstore.StorableEvents, error)
}

// ReadsAllEvents pages through the whole log in global order. Projection replay uses it.
type ReadsAllEvents interface {
	ReadAll(ctx context.Context, after eventstore.GlobalPositionUint, limit int) (eventstore.StorableEvents, error)
}

// PublishesEvents receives the envelopes of every successful append.
// Implementations must not block on slow consumers.
type PublishesEvents interface {
	Publish(ctx context.Context, envelopes EventEnvelopes) error
}

// Command represents the contract for all command types.
// The CommandType method enables polymorphic handling and observability instrumentation.
type Command interface {
	CommandType() string
}

// CoreCommandHandler processes commands without observability concerns.
// It returns the business outcome (version, idempotency) and retry metadata.
type CoreCommandHandler[C Command] interface {
	Handle(ctx context.Context, command C) (HandlerResult, error)
}

// Query represents the contract for all query types.
type Query interface {
	QueryType() string
}

// CoreQueryHandler answers queries from projections without observability concerns.
type CoreQueryHandler[Q Query, R any] interface {
	Handle(ctx context.Context, query Q) (R, error)
}

// ForwardsUpdates hands projection updates to the live subscriptions of other instances.
type ForwardsUpdates interface {
	Forward(ctx context.Context, queryType string, record any) error
}
