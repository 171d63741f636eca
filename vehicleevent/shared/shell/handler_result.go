package shell

import (
	"time"

	"github.com/rkamradt/vehicleevent/eventstore"
)

// HandlerResult represents the outcome of a command handler execution.
type HandlerResult struct {
	// AggregateID is the id of the aggregate the command targeted.
	AggregateID string

	// Version is the aggregate version after the command; for idempotent commands the unchanged version.
	Version eventstore.SequenceNumberUint

	// Idempotent indicates that no state change was needed. It is a business outcome, not an error.
	Idempotent bool

	// RetryAttempts is the total number of attempts made (1 for no retries, 2+ for retries).
	RetryAttempts int

	// TotalRetryDelay is the cumulative time spent in backoff delays.
	TotalRetryDelay time.Duration

	// LastErrorType is one of "none", "concurrency_conflict", "context_canceled", "context_deadline_exceeded", "other".
	LastErrorType string

	// RetriesExhausted is true when all attempts failed with a retryable error.
	RetriesExhausted bool
}

// NewSuccessResult creates a HandlerResult for a command that appended events.
func NewSuccessResult(aggregateID string, version eventstore.SequenceNumberUint, retryMetrics RetryMetrics) HandlerResult {
	result := fromRetryMetrics(retryMetrics)
	result.AggregateID = aggregateID
	result.Version = version

	return result
}

// NewIdempotentResult creates a HandlerResult for a command that needed no state change.
func NewIdempotentResult(aggregateID string, version eventstore.SequenceNumberUint, retryMetrics RetryMetrics) HandlerResult {
	result := NewSuccessResult(aggregateID, version, retryMetrics)
	result.Idempotent = true

	return result
}

// NewErrorResult creates a HandlerResult for a failed command that still reports retry metadata.
func NewErrorResult(aggregateID string, retryMetrics RetryMetrics) HandlerResult {
	result := fromRetryMetrics(retryMetrics)
	result.AggregateID = aggregateID

	return result
}

func fromRetryMetrics(retryMetrics RetryMetrics) HandlerResult {
	return HandlerResult{
		RetryAttempts:    retryMetrics.Attempts,
		TotalRetryDelay:  retryMetrics.TotalDelay,
		LastErrorType:    retryMetrics.LastErrorType,
		RetriesExhausted: retryMetrics.RetriesExhausted,
	}
}
