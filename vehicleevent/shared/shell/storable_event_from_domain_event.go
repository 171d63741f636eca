package shell

import (
	"errors"

	jsoniter "github.com/json-iterator/go"

	"github.com/rkamradt/vehicleevent/eventstore"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/core"
)

// ErrMappingToStorableEventFailed is returned when storable event conversion fails.
var ErrMappingToStorableEventFailed = errors.New("mapping to storable event failed")

// StorableEventFrom converts a DomainEvent and its metadata to a StorableEvent.
func StorableEventFrom(event core.DomainEvent, metadata EventMetadata) (eventstore.StorableEvent, error) {
	switch event.(type) {
	case core.VehiclePurchased, core.VehicleSentToLot, core.VehicleSold,
		core.LotCreated, core.LotUpdated, core.PurchaseOrderAdded:
	default:
		return eventstore.StorableEvent{}, errors.Join(ErrMappingToStorableEventFailed, ErrMappingToDomainEventUnknownEventType)
	}

	payloadJSON, err := jsoniter.ConfigFastest.Marshal(event)
	if err != nil {
		return eventstore.StorableEvent{}, errors.Join(ErrMappingToStorableEventFailed, err)
	}

	metadataJSON, err := jsoniter.ConfigFastest.Marshal(metadata)
	if err != nil {
		return eventstore.StorableEvent{}, errors.Join(ErrMappingToStorableEventFailed, err)
	}

	storableEvent, err := eventstore.BuildStorableEvent(event.IsEventType(), event.HasOccurredAt(), payloadJSON, metadataJSON)
	if err != nil {
		return eventstore.StorableEvent{}, errors.Join(ErrMappingToStorableEventFailed, err)
	}

	return storableEvent, nil
}

// StorableEventsFrom converts DomainEvents to StorableEvents, each with its own message id.
func StorableEventsFrom(events core.DomainEvents, metadata EventMetadata) (eventstore.StorableEvents, error) {
	storableEvents := make(eventstore.StorableEvents, 0, len(events))

	for i, event := range events {
		eventMetadata := metadata
		if i > 0 {
			eventMetadata.MessageID = newMessageID()
		}

		storableEvent, err := StorableEventFrom(event, eventMetadata)
		if err != nil {
			return nil, err
		}

		storableEvents = append(storableEvents, storableEvent)
	}

	return storableEvents, nil
}
