package core

import (
	"time"
)

// VehiclePurchasedEventType is the event type identifier.
const VehiclePurchasedEventType = "VehiclePurchased"

// VehiclePurchased creates a vehicle aggregate.
type VehiclePurchased struct {
	VehicleID  VehicleIDString `json:"vehicleId"`
	Price      Amount          `json:"price"`
	Type       string          `json:"type"`
	OccurredAt OccurredAtTS    `json:"occurredAt"`
}

// BuildVehiclePurchased creates a new VehiclePurchased event.
func BuildVehiclePurchased(vehicleID string, price Amount, vehicleType string, occurredAt time.Time) VehiclePurchased {
	return VehiclePurchased{
		VehicleID:  vehicleID,
		Price:      price,
		Type:       vehicleType,
		OccurredAt: ToOccurredAt(occurredAt),
	}
}

// IsEventType returns the event type identifier.
func (e VehiclePurchased) IsEventType() string {
	return VehiclePurchasedEventType
}

// HasOccurredAt returns when this event occurred.
func (e VehiclePurchased) HasOccurredAt() time.Time {
	return e.OccurredAt
}

// HasAggregateID returns the vehicle id.
func (e VehiclePurchased) HasAggregateID() string {
	return e.VehicleID
}
