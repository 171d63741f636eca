package shell

import (
	"errors"
)

var (
	// ErrEmptyAggregateID is returned when a command names no aggregate.
	ErrEmptyAggregateID = errors.New("aggregate id must not be empty")

	// ErrNilEventLog is returned when a Runtime is built without an event log.
	ErrNilEventLog = errors.New("event log must not be nil")

	// ErrNilApplyFunc is returned when a Runtime is built without an apply function.
	ErrNilApplyFunc = errors.New("apply function must not be nil")

	// ErrLoadingEventsFailed wraps event log read failures.
	ErrLoadingEventsFailed = errors.New("loading events failed")

	// ErrAppendingEventsFailed wraps event log write failures other than conflicts.
	ErrAppendingEventsFailed = errors.New("appending events failed")
)
