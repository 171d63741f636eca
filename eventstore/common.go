package eventstore

import (
	"errors"
)

var (
	ErrEmptyEventsTableName        = errors.New("empty events table name supplied")
	ErrNilDatabaseConnection       = errors.New("database connection is nil")
	ErrEmptyAggregateID            = errors.New("empty aggregate id supplied")
	ErrInvalidReadLimit            = errors.New("read limit must be positive")
	ErrConcurrencyConflict         = errors.New("concurrency error, expected version does not match")
	ErrBuildingQueryFailed         = errors.New("building sql query failed")
	ErrQueryingEventsFailed        = errors.New("querying events failed")
	ErrScanningDBRowFailed         = errors.New("scanning db row failed")
	ErrBuildingStorableEventFailed = errors.New("building storable event failed")
	ErrAppendingEventFailed        = errors.New("appending events failed")
	ErrCreatingSchemaFailed        = errors.New("creating event table failed")
)

// SequenceNumberUint is the per-aggregate sequence number of an event.
// The sequence number of the last event of an aggregate is its version.
type SequenceNumberUint = uint

// GlobalPositionUint is the position of an event within the whole event log.
type GlobalPositionUint = uint64
