package eventstore

import (
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var ErrInvalidPayloadJSON = errors.New("payload json is not valid")
var ErrInvalidMetadataJSON = errors.New("metadata json is not valid")

// StorableEvents is an alias type for a slice of StorableEvent
type StorableEvents = []StorableEvent

// StorableEvent is a DTO (data transfer object) used by the EventStore to append events and load them back.
//
// It is built on scalars to be completely agnostic of the implementation of Domain Events in the client code.
//
// AggregateID, SequenceNumber, and GlobalPosition are assigned by the EventStore on Append;
// values set by the client are ignored.
//
// While its properties are exported, it should only be constructed with the supplied factory methods:
//   - BuildStorableEvent
//   - BuildStorableEventWithEmptyMetadata
type StorableEvent struct {
	AggregateID    string
	SequenceNumber SequenceNumberUint
	GlobalPosition GlobalPositionUint
	EventType      string
	OccurredAt     time.Time
	PayloadJSON    []byte
	MetadataJSON   []byte
}

// BuildStorableEvent is a factory method for StorableEvent.
//
// It populates the StorableEvent with the given scalar input.
// Returns an error if payloadJSON or metadataJSON are not valid JSON.
func BuildStorableEvent(eventType string, occurredAt time.Time, payloadJSON []byte, metadataJSON []byte) (StorableEvent, error) {
	if !jsoniter.Valid(payloadJSON) {
		return StorableEvent{}, ErrInvalidPayloadJSON
	}

	if !jsoniter.Valid(metadataJSON) {
		return StorableEvent{}, ErrInvalidMetadataJSON
	}

	return StorableEvent{
		EventType:    eventType,
		OccurredAt:   occurredAt,
		PayloadJSON:  payloadJSON,
		MetadataJSON: metadataJSON,
	}, nil
}

// BuildStorableEventWithEmptyMetadata is a factory method for StorableEvent.
//
// It populates the StorableEvent with the given scalar input and creates valid empty JSON for MetadataJSON.
// Returns an error if payloadJSON is not valid JSON.
func BuildStorableEventWithEmptyMetadata(eventType string, occurredAt time.Time, payloadJSON []byte) (StorableEvent, error) {
	return BuildStorableEvent(eventType, occurredAt, payloadJSON, []byte("{}"))
}

// VersionOf returns the sequence number of the last event, or zero for an empty sequence.
func VersionOf(events StorableEvents) SequenceNumberUint {
	if len(events) == 0 {
		return 0
	}

	return events[len(events)-1].SequenceNumber
}

// WithPosition returns a copy of the event stamped with the given aggregate id, sequence number, and global position.
func (e StorableEvent) WithPosition(
	aggregateID string,
	sequenceNumber SequenceNumberUint,
	globalPosition GlobalPositionUint,
) StorableEvent {
	e.AggregateID = aggregateID
	e.SequenceNumber = sequenceNumber
	e.GlobalPosition = globalPosition

	return e
}
