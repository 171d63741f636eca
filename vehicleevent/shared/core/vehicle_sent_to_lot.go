package core

import (
	"time"
)

// VehicleSentToLotEventType is the event type identifier.
const VehicleSentToLotEventType = "VehicleSentToLot"

// VehicleSentToLot records a vehicle being moved to a lot. Lot is the lot code, LotID the resolved lot aggregate.
type VehicleSentToLot struct {
	VehicleID  VehicleIDString `json:"vehicleId"`
	Lot        string          `json:"lot"`
	LotID      LotIDString     `json:"lotId"`
	OccurredAt OccurredAtTS    `json:"occurredAt"`
}

// BuildVehicleSentToLot creates a new VehicleSentToLot event.
func BuildVehicleSentToLot(vehicleID string, lot string, lotID string, occurredAt time.Time) VehicleSentToLot {
	return VehicleSentToLot{
		VehicleID:  vehicleID,
		Lot:        lot,
		LotID:      lotID,
		OccurredAt: ToOccurredAt(occurredAt),
	}
}

// IsEventType returns the event type identifier.
func (e VehicleSentToLot) IsEventType() string {
	return VehicleSentToLotEventType
}

// HasOccurredAt returns when this event occurred.
func (e VehicleSentToLot) HasOccurredAt() time.Time {
	return e.OccurredAt
}

// HasAggregateID returns the vehicle id.
func (e VehicleSentToLot) HasAggregateID() string {
	return e.VehicleID
}
