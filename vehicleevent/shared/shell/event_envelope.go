package shell

import (
	"errors"

	"github.com/rkamradt/vehicleevent/eventstore"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/core"
)

// ErrEventEnvelopeFromStorableEventFailed is returned when event envelope conversion fails
var ErrEventEnvelopeFromStorableEventFailed = errors.New("event envelope from storable event failed")

// EventEnvelopes is a slice of EventEnvelope instances
type EventEnvelopes = []EventEnvelope

// EventEnvelope combines a committed domain event with its metadata and log position.
type EventEnvelope struct {
	DomainEvent    core.DomainEvent
	EventMetadata  EventMetadata
	AggregateID    string
	SequenceNumber eventstore.SequenceNumberUint
	GlobalPosition eventstore.GlobalPositionUint
}

// EventEnvelopeFrom converts a committed StorableEvent to an EventEnvelope
func EventEnvelopeFrom(storableEvent eventstore.StorableEvent) (EventEnvelope, error) {
	metadata, err := EventMetadataFrom(storableEvent)
	if err != nil {
		return EventEnvelope{}, errors.Join(ErrEventEnvelopeFromStorableEventFailed, err)
	}

	domainEvent, err := DomainEventFrom(storableEvent)
	if err != nil {
		return EventEnvelope{}, errors.Join(ErrEventEnvelopeFromStorableEventFailed, err)
	}

	return EventEnvelope{
		DomainEvent:    domainEvent,
		EventMetadata:  metadata,
		AggregateID:    storableEvent.AggregateID,
		SequenceNumber: storableEvent.SequenceNumber,
		GlobalPosition: storableEvent.GlobalPosition,
	}, nil
}

// EventEnvelopesFrom converts multiple StorableEvents to EventEnvelopes
func EventEnvelopesFrom(storableEvents eventstore.StorableEvents) (EventEnvelopes, error) {
	envelopes := make(EventEnvelopes, 0, len(storableEvents))

	for _, storableEvent := range storableEvents {
		envelope, err := EventEnvelopeFrom(storableEvent)
		if err != nil {
			return nil, err
		}

		envelopes = append(envelopes, envelope)
	}

	return envelopes, nil
}

// IsNewerThan reports whether the envelope is not yet folded into a read model that stores version.
// An envelope without a sequence number always counts as newer.
func (e EventEnvelope) IsNewerThan(version int64) bool {
	return e.SequenceNumber == 0 || int64(e.SequenceNumber) > version
}
