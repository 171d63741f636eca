package core

import (
	"time"
)

// PurchaseOrderAddedEventType is the event type identifier.
const PurchaseOrderAddedEventType = "PurchaseOrderAdded"

// PurchaseOrderAdded creates a purchase order aggregate.
type PurchaseOrderAdded struct {
	PurchaseOrderID PurchaseOrderIDString `json:"purchaseOrderId"`
	Price           Amount                `json:"price"`
	Type            string                `json:"type"`
	OccurredAt      OccurredAtTS          `json:"occurredAt"`
}

// BuildPurchaseOrderAdded creates a new PurchaseOrderAdded event.
func BuildPurchaseOrderAdded(purchaseOrderID string, price Amount, vehicleType string, occurredAt time.Time) PurchaseOrderAdded {
	return PurchaseOrderAdded{
		PurchaseOrderID: purchaseOrderID,
		Price:           price,
		Type:            vehicleType,
		OccurredAt:      ToOccurredAt(occurredAt),
	}
}

// IsEventType returns the event type identifier.
func (e PurchaseOrderAdded) IsEventType() string {
	return PurchaseOrderAddedEventType
}

// HasOccurredAt returns when this event occurred.
func (e PurchaseOrderAdded) HasOccurredAt() time.Time {
	return e.OccurredAt
}

// HasAggregateID returns the purchase order id.
func (e PurchaseOrderAdded) HasAggregateID() string {
	return e.PurchaseOrderID
}
