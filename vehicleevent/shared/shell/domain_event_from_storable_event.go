package shell

import (
	"errors"

	jsoniter "github.com/json-iterator/go"

	"github.com/rkamradt/vehicleevent/eventstore"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/core"
)

var (
	// ErrMappingToDomainEventFailed is returned when domain event conversion fails.
	ErrMappingToDomainEventFailed = errors.New("mapping to domain event failed")

	// ErrMappingToDomainEventUnknownEventType is returned for unrecognized event types.
	ErrMappingToDomainEventUnknownEventType = errors.New("unknown event type")
)

// DomainEventsFrom converts multiple StorableEvents to DomainEvents.
func DomainEventsFrom(storableEvents eventstore.StorableEvents) (core.DomainEvents, error) {
	domainEvents := make(core.DomainEvents, 0, len(storableEvents))

	for _, storableEvent := range storableEvents {
		domainEvent, err := DomainEventFrom(storableEvent)
		if err != nil {
			return nil, err
		}

		domainEvents = append(domainEvents, domainEvent)
	}

	return domainEvents, nil
}

// DomainEventFrom converts a StorableEvent to its corresponding DomainEvent.
func DomainEventFrom(storableEvent eventstore.StorableEvent) (core.DomainEvent, error) {
	switch storableEvent.EventType {
	case core.VehiclePurchasedEventType:
		return unmarshalPayload[core.VehiclePurchased](storableEvent.PayloadJSON)

	case core.VehicleSentToLotEventType:
		return unmarshalPayload[core.VehicleSentToLot](storableEvent.PayloadJSON)

	case core.VehicleSoldEventType:
		return unmarshalPayload[core.VehicleSold](storableEvent.PayloadJSON)

	case core.LotCreatedEventType:
		return unmarshalPayload[core.LotCreated](storableEvent.PayloadJSON)

	case core.LotUpdatedEventType:
		return unmarshalPayload[core.LotUpdated](storableEvent.PayloadJSON)

	case core.PurchaseOrderAddedEventType:
		return unmarshalPayload[core.PurchaseOrderAdded](storableEvent.PayloadJSON)
	}

	return nil, errors.Join(ErrMappingToDomainEventFailed, ErrMappingToDomainEventUnknownEventType)
}

func unmarshalPayload[E core.DomainEvent](payloadJSON []byte) (core.DomainEvent, error) {
	var payload E

	if err := jsoniter.ConfigFastest.Unmarshal(payloadJSON, &payload); err != nil {
		return nil, errors.Join(ErrMappingToDomainEventFailed, err)
	}

	return payload, nil
}
