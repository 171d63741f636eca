package eventstore

import "context"

// ConsistencyLevel tells an engine with a read replica where a read may be served from.
type ConsistencyLevel int

const (
	// StrongConsistency reads from the primary. Appends and the loads that precede a decision need it,
	// so it is what a context without a level gets.
	StrongConsistency ConsistencyLevel = iota

	// EventualConsistency allows reads from a replica that may lag behind the primary.
	EventualConsistency
)

type consistencyKey struct{}

// WithStrongConsistency returns a copy of ctx whose reads go to the primary.
func WithStrongConsistency(ctx context.Context) context.Context {
	return context.WithValue(ctx, consistencyKey{}, StrongConsistency)
}

// WithEventualConsistency returns a copy of ctx whose reads may go to a replica.
//
//	events, version, err := es.Load(eventstore.WithEventualConsistency(ctx), vehicleID)
func WithEventualConsistency(ctx context.Context) context.Context {
	return context.WithValue(ctx, consistencyKey{}, EventualConsistency)
}

// GetConsistencyLevel returns the level stored in ctx, or StrongConsistency.
func GetConsistencyLevel(ctx context.Context) ConsistencyLevel {
	if level, ok := ctx.Value(consistencyKey{}).(ConsistencyLevel); ok {
		return level
	}

	return StrongConsistency
}

func (c ConsistencyLevel) String() string {
	switch c {
	case StrongConsistency:
		return "strong"
	case EventualConsistency:
		return "eventual"
	default:
		return "unknown"
	}
}
