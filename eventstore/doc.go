// Package eventstore provides core abstractions and types for an event log of
// aggregate streams with optimistic concurrency control.
//
// Every event belongs to exactly one aggregate, identified by an opaque string id.
// Within an aggregate, events are numbered 1, 2, 3, ... without gaps; the sequence
// number of the last event is the aggregate's version. Append takes the version the
// caller based its decision on and fails with ErrConcurrencyConflict if another
// writer got there first.
//
// Key types:
//   - StorableEvent: Represents an event that can be stored and retrieved
//   - StorableEvents: Collection of storable events
//   - SequenceNumberUint: Per-aggregate position, the aggregate version
//   - GlobalPositionUint: Position within the whole log, used for projection replay
//
// Common usage pattern:
//
//	events, version, err := store.Load(ctx, vehicleID)
//	if err != nil {
//		// handle error
//	}
//
//	newEvent, err := eventstore.BuildStorableEvent(eventType, time.Now(), payload, metadata)
//	committed, err := store.Append(ctx, vehicleID, version, newEvent)
//	if errors.Is(err, eventstore.ErrConcurrencyConflict) {
//		// reload and decide again
//	}
package eventstore
