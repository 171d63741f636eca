// Package projectionstore keeps the read models that the projections build from the event stream.
//
// Records are keyed by id. Inserts are idempotent so that a replayed creation event never
// produces a second record, and updates are read-modify-write operations that report a missing record
// instead of creating one.
package projectionstore

import (
	"context"
	"errors"
)

// Store errors.
var (
	ErrEmptyID            = errors.New("record id must not be empty")
	ErrNilMutation        = errors.New("mutation must not be nil")
	ErrUnknownColumn      = errors.New("unknown column")
	ErrInvalidCriteria    = errors.New("invalid criteria")
	ErrNilDatabase        = errors.New("database connection must not be nil")
	ErrUnsupportedDialect = errors.New("unsupported sql dialect")
	ErrQueryFailed        = errors.New("projection store query failed")
	ErrCreatingSchema     = errors.New("creating projection schema failed")
)

// Criteria filters and pages List.
//
// Like is a SQL LIKE pattern (% and _ wildcards, case-sensitive) matched against Column.
// An empty Like matches every record. A Limit of zero means no limit.
type Criteria struct {
	Column string
	Like   string
	Limit  int
	Offset int
}

// Store holds read-model records of type R.
type Store[R any] interface {
	// Insert adds the record unless one with the same id exists. It reports whether it inserted.
	Insert(ctx context.Context, id string, record R) (bool, error)

	// Update applies mutate to the stored record and persists the result.
	// A missing record is reported with found=false and no error.
	Update(ctx context.Context, id string, mutate func(*R)) (R, bool, error)

	// Get returns the record with the given id.
	Get(ctx context.Context, id string) (R, bool, error)

	// List returns the matching records ordered by id, skipping Offset and returning at most Limit.
	List(ctx context.Context, criteria Criteria) ([]R, error)
}

func (c Criteria) validate() error {
	if c.Limit < 0 || c.Offset < 0 {
		return ErrInvalidCriteria
	}

	if c.Like != "" && c.Column == "" {
		return errors.Join(ErrInvalidCriteria, ErrUnknownColumn)
	}

	return nil
}
