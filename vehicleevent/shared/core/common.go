package core

import (
	"time"
)

// VehicleIDString identifies a vehicle aggregate.
type VehicleIDString = string

// LotIDString identifies a lot aggregate.
type LotIDString = string

// PurchaseOrderIDString identifies a purchase order aggregate.
type PurchaseOrderIDString = string

// EventTypeString is the stored name of a domain event type.
type EventTypeString = string

// OccurredAtTS is when an event occurred.
type OccurredAtTS = time.Time

// ToOccurredAt normalizes t to UTC with microsecond precision, which is what PostgreSQL keeps.
func ToOccurredAt(t time.Time) OccurredAtTS {
	return t.UTC().Truncate(time.Microsecond)
}

// Lot codes a vehicle may be sent to.
const (
	LotCodeA = "a"
	LotCodeB = "b"
	LotCodeC = "c"
)

// IsValidLotCode reports whether code is one of the known lot codes.
func IsValidLotCode(code string) bool {
	switch code {
	case LotCodeA, LotCodeB, LotCodeC:
		return true
	default:
		return false
	}
}
