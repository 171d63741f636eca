package core

import (
	"errors"
	"fmt"
)

// Error categories. Callers classify with errors.Is; the message after the colon is the rejection reason.
var (
	ErrValidation          = errors.New("validation error")
	ErrNotFound            = errors.New("not found")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// Rejection reasons used by the Decide functions.
const (
	ReasonAmountNotPositive    = "amount <= 0"
	ReasonVehicleAlreadySold   = "vehicle already sold"
	ReasonInvalidLotCode       = "lot must be a, b, or c"
	ReasonVehicleAlreadyExists = "vehicle already exists"
	ReasonLotAlreadyExists     = "lot already exists"
	ReasonOrderAlreadyExists   = "purchase order already exists"
	ReasonEmptyID              = "id must not be empty"
	ReasonEmptyName            = "name must not be empty"
)

// NewValidationError wraps ErrValidation with a rejection reason.
func NewValidationError(reason string) error {
	return fmt.Errorf("%w: %s", ErrValidation, reason)
}

// NewNotFoundError wraps ErrNotFound with the kind and id of the missing entity.
func NewNotFoundError(kind string, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
}
