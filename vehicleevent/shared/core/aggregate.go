package core

import (
	"time"
)

// Fold replays events onto zero through apply. Given the same events it always yields the same state.
func Fold[S any](apply func(S, DomainEvent) S, zero S, events DomainEvents) S {
	state := zero
	for _, event := range events {
		state = apply(state, event)
	}

	return state
}

// VehicleState is the write-side state of one vehicle.
type VehicleState struct {
	ID          VehicleIDString
	Exists      bool
	Price       Amount
	Type        string
	Lot         string
	LotID       LotIDString
	Sold        bool
	SellPrice   Amount
	PurchasedAt time.Time
	MovedAt     time.Time
	SoldAt      time.Time
}

// ApplyVehicleEvent folds one vehicle event into state. Events of other aggregates leave it unchanged.
func ApplyVehicleEvent(state VehicleState, event DomainEvent) VehicleState {
	switch e := event.(type) {
	case VehiclePurchased:
		state.ID = e.VehicleID
		state.Exists = true
		state.Price = e.Price
		state.Type = e.Type
		state.PurchasedAt = e.OccurredAt

	case VehicleSentToLot:
		state.Lot = e.Lot
		state.LotID = e.LotID
		state.MovedAt = e.OccurredAt

	case VehicleSold:
		state.Sold = true
		state.SellPrice = e.Price
		state.SoldAt = e.OccurredAt
	}

	return state
}

// LotState is the write-side state of one lot.
type LotState struct {
	ID        LotIDString
	Exists    bool
	Name      string
	Manager   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ApplyLotEvent folds one lot event into state.
func ApplyLotEvent(state LotState, event DomainEvent) LotState {
	switch e := event.(type) {
	case LotCreated:
		state.ID = e.LotID
		state.Exists = true
		state.Name = e.Name
		state.Manager = e.Manager
		state.CreatedAt = e.OccurredAt
		state.UpdatedAt = e.OccurredAt

	case LotUpdated:
		state.Name = e.Name
		state.Manager = e.Manager
		state.UpdatedAt = e.OccurredAt
	}

	return state
}

// PurchaseOrderState is the write-side state of one purchase order.
type PurchaseOrderState struct {
	ID      PurchaseOrderIDString
	Exists  bool
	Price   Amount
	Type    string
	AddedAt time.Time
}

// ApplyPurchaseOrderEvent folds one purchase order event into state.
func ApplyPurchaseOrderEvent(state PurchaseOrderState, event DomainEvent) PurchaseOrderState {
	if e, ok := event.(PurchaseOrderAdded); ok {
		state.ID = e.PurchaseOrderID
		state.Exists = true
		state.Price = e.Price
		state.Type = e.Type
		state.AddedAt = e.OccurredAt
	}

	return state
}
