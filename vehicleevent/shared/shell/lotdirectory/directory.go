// Package lotdirectory resolves a lot name to the lot record, either from the lot query service over HTTP
// or from the local lot projection.
package lotdirectory

import (
	"context"
)

// Lot is the part of a lot summary the vehicle commands need.
type Lot struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Manager string `json:"manager"`
}

// Directory finds a lot by its name.
//
// A lot that does not exist is reported as core.ErrNotFound. Any other failure of the
// lookup is reported as core.ErrUpstreamUnavailable.
type Directory interface {
	FindByName(ctx context.Context, name string) (Lot, error)
}
