package lotdirectory

import (
	"context"
	"fmt"

	"github.com/rkamradt/vehicleevent/vehicleevent/shared/core"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell/projectionstore"
)

// ProjectionDirectory answers lookups from a local lot projection whose records are of type R.
// It is used when no lot query service is configured.
type ProjectionDirectory[R any] struct {
	store      projectionstore.Store[R]
	nameColumn string
	toLot      func(R) Lot
}

// NewProjectionDirectory creates a ProjectionDirectory that matches names on nameColumn of store.
func NewProjectionDirectory[R any](store projectionstore.Store[R], nameColumn string, toLot func(R) Lot) *ProjectionDirectory[R] {
	return &ProjectionDirectory[R]{
		store:      store,
		nameColumn: nameColumn,
		toLot:      toLot,
	}
}

// FindByName returns the lot with the lowest id whose name matches.
func (d *ProjectionDirectory[R]) FindByName(ctx context.Context, name string) (Lot, error) {
	if name == "" {
		return Lot{}, core.NewNotFoundError("lot", name)
	}

	records, err := d.store.List(ctx, projectionstore.Criteria{Column: d.nameColumn, Like: name, Limit: 1})
	if err != nil {
		return Lot{}, fmt.Errorf("%w: %w", core.ErrUpstreamUnavailable, err)
	}

	if len(records) == 0 {
		return Lot{}, core.NewNotFoundError("lot", name)
	}

	return d.toLot(records[0]), nil
}
