package core

import (
	"time"
)

// LotUpdatedEventType is the event type identifier.
const LotUpdatedEventType = "LotUpdated"

// LotUpdated replaces the name and manager of a lot.
type LotUpdated struct {
	LotID      LotIDString  `json:"lotId"`
	Name       string       `json:"name"`
	Manager    string       `json:"manager"`
	OccurredAt OccurredAtTS `json:"occurredAt"`
}

// BuildLotUpdated creates a new LotUpdated event.
func BuildLotUpdated(lotID string, name string, manager string, occurredAt time.Time) LotUpdated {
	return LotUpdated{
		LotID:      lotID,
		Name:       name,
		Manager:    manager,
		OccurredAt: ToOccurredAt(occurredAt),
	}
}

// IsEventType returns the event type identifier.
func (e LotUpdated) IsEventType() string {
	return LotUpdatedEventType
}

// HasOccurredAt returns when this event occurred.
func (e LotUpdated) HasOccurredAt() time.Time {
	return e.OccurredAt
}

// HasAggregateID returns the lot id.
func (e LotUpdated) HasAggregateID() string {
	return e.LotID
}
