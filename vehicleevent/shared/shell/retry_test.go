package shell_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rkamradt/vehicleevent/eventstore"
	"github.com/rkamradt/vehicleevent/testutil/observability/testdoubles"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell"
)

func Test_RetryWithExponentialBackoff_Success_NoRetries(t *testing.T) {
	// arrange
	callCount := 0
	fn := func(_ context.Context) error {
		callCount++
		return nil
	}

	// act
	meta, err := shell.RetryWithExponentialBackoff(context.Background(), fn)

	// assert
	assert.NoError(t, err)
	assert.Equal(t, 1, callCount)
	assert.Equal(t, 1, meta.Attempts)
	assert.Equal(t, time.Duration(0), meta.TotalDelay)
	assert.Equal(t, "none", meta.LastErrorType)
	assert.False(t, meta.RetriesExhausted)
}

func Test_RetryWithExponentialBackoff_RetryOnConcurrencyConflict(t *testing.T) {
	// arrange
	callCount := 0
	fn := func(_ context.Context) error {
		callCount++
		if callCount < 3 {
			return eventstore.ErrConcurrencyConflict
		}
		return nil
	}

	// act
	meta, err := shell.RetryWithExponentialBackoff(context.Background(), fn, shell.WithBaseDelay(time.Millisecond))

	// assert
	assert.NoError(t, err)
	assert.Equal(t, 3, callCount)
	assert.Equal(t, 3, meta.Attempts)
	assert.Greater(t, meta.TotalDelay, time.Duration(0))
	assert.Equal(t, "none", meta.LastErrorType)
}

func Test_RetryWithExponentialBackoff_ExhaustsAfterDefaultAttempts(t *testing.T) {
	// arrange
	callCount := 0
	fn := func(_ context.Context) error {
		callCount++
		return eventstore.ErrConcurrencyConflict
	}

	// act
	meta, err := shell.RetryWithExponentialBackoff(context.Background(), fn, shell.WithBaseDelay(0))

	// assert
	assert.ErrorIs(t, err, eventstore.ErrConcurrencyConflict)
	assert.ErrorIs(t, err, shell.ErrMaxRetriesReached)
	assert.Equal(t, shell.DefaultMaxAttempts, callCount)
	assert.True(t, meta.RetriesExhausted)
	assert.Equal(t, "concurrency_conflict", meta.LastErrorType)
}

func Test_RetryWithExponentialBackoff_PermanentErrorIsNotRetried(t *testing.T) {
	// arrange
	permanent := errors.New("boom")
	callCount := 0
	fn := func(_ context.Context) error {
		callCount++
		return permanent
	}

	// act
	meta, err := shell.RetryWithExponentialBackoff(context.Background(), fn)

	// assert
	assert.ErrorIs(t, err, permanent)
	assert.NotErrorIs(t, err, shell.ErrMaxRetriesReached)
	assert.Equal(t, 1, callCount)
	assert.Equal(t, "other", meta.LastErrorType)
}

func Test_RetryWithExponentialBackoff_StopsWaitingWhenContextIsCanceled(t *testing.T) {
	// arrange
	ctx, cancel := context.WithCancel(context.Background())
	fn := func(_ context.Context) error {
		cancel()
		return eventstore.ErrConcurrencyConflict
	}

	// act
	meta, err := shell.RetryWithExponentialBackoff(ctx, fn, shell.WithBaseDelay(time.Second))

	// assert
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, meta.Attempts)
	assert.Equal(t, "context_canceled", meta.LastErrorType)
}

func Test_RetryWithExponentialBackoff_InvalidOptions(t *testing.T) {
	fn := func(_ context.Context) error { return nil }

	testCases := []struct {
		name     string
		option   shell.RetryOption
		expected error
	}{
		{"zero attempts", shell.WithMaxAttempts(0), shell.ErrInvalidMaxAttempts},
		{"negative delay", shell.WithBaseDelay(-time.Millisecond), shell.ErrNegativeBaseDelay},
		{"jitter above one", shell.WithJitterFactor(1.5), shell.ErrInvalidJitterFactor},
		{"jitter below zero", shell.WithJitterFactor(-0.1), shell.ErrInvalidJitterFactor},
		{"nil collector", shell.WithMetrics(nil, "PurchaseVehicle"), shell.ErrNilMetricsCollector},
		{"empty command type", shell.WithMetrics(testdoubles.NewMetricsCollectorSpy(false), ""), shell.ErrEmptyCommandType},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := shell.RetryWithExponentialBackoff(context.Background(), fn, tc.option)

			assert.ErrorIs(t, err, tc.expected)
		})
	}
}

func Test_RetryWithExponentialBackoff_RecordsRetryMetrics(t *testing.T) {
	// arrange
	metrics := testdoubles.NewMetricsCollectorSpy(true)
	fn := func(_ context.Context) error { return eventstore.ErrConcurrencyConflict }

	// act
	_, err := shell.RetryWithExponentialBackoff(context.Background(), fn,
		shell.WithMaxAttempts(3),
		shell.WithBaseDelay(0),
		shell.WithMetrics(metrics, "SendVehicleToLot"),
	)

	// assert
	assert.Error(t, err)
	assert.Equal(t, 2, metrics.Count(testdoubles.KindCounter, shell.CommandHandlerRetriesMetric))
	assert.Equal(t, 2, metrics.Count(testdoubles.KindDuration, shell.CommandHandlerRetryDelayMetric))
	assert.True(t, metrics.HasCounterRecordForMetric(shell.CommandHandlerMaxRetriesReachedMetric).
		WithLabel("final_error_type", "concurrency_conflict").
		WithLabel(shell.LogAttrCommandType, "SendVehicleToLot").
		Assert())
}
