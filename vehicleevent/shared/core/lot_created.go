package core

import (
	"time"
)

// LotCreatedEventType is the event type identifier.
const LotCreatedEventType = "LotCreated"

// LotCreated creates a lot aggregate.
type LotCreated struct {
	LotID      LotIDString  `json:"lotId"`
	Name       string       `json:"name"`
	Manager    string       `json:"manager"`
	OccurredAt OccurredAtTS `json:"occurredAt"`
}

// BuildLotCreated creates a new LotCreated event.
func BuildLotCreated(lotID string, name string, manager string, occurredAt time.Time) LotCreated {
	return LotCreated{
		LotID:      lotID,
		Name:       name,
		Manager:    manager,
		OccurredAt: ToOccurredAt(occurredAt),
	}
}

// IsEventType returns the event type identifier.
func (e LotCreated) IsEventType() string {
	return LotCreatedEventType
}

// HasOccurredAt returns when this event occurred.
func (e LotCreated) HasOccurredAt() time.Time {
	return e.OccurredAt
}

// HasAggregateID returns the lot id.
func (e LotCreated) HasAggregateID() string {
	return e.LotID
}
