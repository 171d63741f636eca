package core

import (
	"time"
)

// VehicleSoldEventType is the event type identifier.
const VehicleSoldEventType = "VehicleSold"

// VehicleSold moves a vehicle into its terminal state.
type VehicleSold struct {
	VehicleID  VehicleIDString `json:"vehicleId"`
	Price      Amount          `json:"price"`
	OccurredAt OccurredAtTS    `json:"occurredAt"`
}

// BuildVehicleSold creates a new VehicleSold event.
func BuildVehicleSold(vehicleID string, price Amount, occurredAt time.Time) VehicleSold {
	return VehicleSold{
		VehicleID:  vehicleID,
		Price:      price,
		OccurredAt: ToOccurredAt(occurredAt),
	}
}

// IsEventType returns the event type identifier.
func (e VehicleSold) IsEventType() string {
	return VehicleSoldEventType
}

// HasOccurredAt returns when this event occurred.
func (e VehicleSold) HasOccurredAt() time.Time {
	return e.OccurredAt
}

// HasAggregateID returns the vehicle id.
func (e VehicleSold) HasAggregateID() string {
	return e.VehicleID
}
