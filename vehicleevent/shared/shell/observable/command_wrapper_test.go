package observable_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkamradt/vehicleevent/eventstore"
	"github.com/rkamradt/vehicleevent/testutil/observability/testdoubles"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell/observable"
)

type mockCommand struct {
	ID string
}

func (mockCommand) CommandType() string { return "TestCommand" }

type mockHandler struct {
	mu     sync.Mutex
	result shell.HandlerResult
	err    error
	calls  []mockCommand
}

func newMockHandler(result shell.HandlerResult, err error) *mockHandler {
	return &mockHandler{result: result, err: err}
}

func (h *mockHandler) Handle(_ context.Context, command mockCommand) (shell.HandlerResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.calls = append(h.calls, command)

	return h.result, h.err
}

type observers struct {
	metrics *testdoubles.MetricsCollectorSpy
	tracing *testdoubles.TracingCollectorSpy
	logger  *testdoubles.LoggerSpy
}

func givenWrappedHandler(t *testing.T, handler *mockHandler) (*observable.CommandWrapper[mockCommand], observers) {
	t.Helper()

	o := observers{
		metrics: testdoubles.NewMetricsCollectorSpy(true),
		tracing: testdoubles.NewTracingCollectorSpy(),
		logger:  testdoubles.NewLoggerSpy(),
	}

	wrapper, err := observable.NewCommandWrapper[mockCommand](
		handler,
		observable.WithCommandMetrics[mockCommand](o.metrics),
		observable.WithCommandTracing[mockCommand](o.tracing),
		observable.WithCommandContextualLogging[mockCommand](o.logger),
	)
	require.NoError(t, err)

	return wrapper, o
}

func Test_CommandWrapper_Handle_Success(t *testing.T) {
	// arrange
	expected := shell.HandlerResult{AggregateID: "v1", Version: 2, RetryAttempts: 1, LastErrorType: "none"}
	handler := newMockHandler(expected, nil)
	wrapper, o := givenWrappedHandler(t, handler)

	// act
	result, err := wrapper.Handle(context.Background(), mockCommand{ID: "v1"})

	// assert
	require.NoError(t, err)
	assert.Equal(t, expected, result)
	assert.Equal(t, []mockCommand{{ID: "v1"}}, handler.calls)

	assert.True(t, o.metrics.HasCounterRecordForMetric(shell.CommandHandlerCallsMetric).
		WithLabel("command_type", "TestCommand").
		WithStatus(shell.StatusSuccess).
		Assert())
	assert.True(t, o.metrics.HasDurationRecordForMetric(shell.CommandHandlerDurationMetric).
		WithStatus(shell.StatusSuccess).
		Assert())
	assert.Zero(t, o.metrics.Count(testdoubles.KindCounter, shell.CommandHandlerRetriesMetric))

	span := o.tracing.SpanNamed(shell.SpanNameCommandHandle)
	require.NotNil(t, span)
	assert.True(t, span.Finished())
	assert.Equal(t, shell.StatusSuccess, span.Status())

	assert.True(t, o.logger.HasMessage("info", shell.LogMsgCommandStarted))
	assert.True(t, o.logger.HasMessage("info", shell.LogMsgCommandCompleted))
}

func Test_CommandWrapper_Handle_Idempotent(t *testing.T) {
	// arrange
	wrapper, o := givenWrappedHandler(t, newMockHandler(shell.HandlerResult{Idempotent: true, RetryAttempts: 1}, nil))

	// act
	result, err := wrapper.Handle(context.Background(), mockCommand{})

	// assert
	require.NoError(t, err)
	assert.True(t, result.Idempotent)
	assert.True(t, o.metrics.HasCounterRecordForMetric(shell.CommandHandlerIdempotentMetric).Assert())
	assert.Equal(t, shell.StatusIdempotent, o.tracing.SpanNamed(shell.SpanNameCommandHandle).Status())
}

func Test_CommandWrapper_Handle_ClassifiesErrors(t *testing.T) {
	testCases := []struct {
		name           string
		err            error
		expectedStatus string
		expectedMetric string
	}{
		{"canceled", fmt.Errorf("load: %w", context.Canceled), shell.StatusCanceled, shell.CommandHandlerCanceledMetric},
		{"timeout", context.DeadlineExceeded, shell.StatusTimeout, shell.CommandHandlerTimeoutMetric},
		{
			"concurrency conflict",
			errors.Join(shell.ErrMaxRetriesReached, eventstore.ErrConcurrencyConflict),
			shell.StatusConcurrencyConflict,
			shell.CommandHandlerConcurrencyConflictMetric,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// arrange
			wrapper, o := givenWrappedHandler(t, newMockHandler(shell.HandlerResult{RetryAttempts: 1}, tc.err))

			// act
			_, err := wrapper.Handle(context.Background(), mockCommand{})

			// assert
			assert.ErrorIs(t, err, tc.err)
			assert.True(t, o.metrics.HasCounterRecordForMetric(tc.expectedMetric).WithStatus(tc.expectedStatus).Assert())
			assert.True(t, o.metrics.HasCounterRecordForMetric(shell.CommandHandlerCallsMetric).WithStatus(tc.expectedStatus).Assert())
			assert.Equal(t, tc.expectedStatus, o.tracing.SpanNamed(shell.SpanNameCommandHandle).Status())
			assert.True(t, o.logger.HasMessage("error", shell.LogMsgCommandFailed))
		})
	}
}

func Test_CommandWrapper_Handle_BusinessErrorIsPlainError(t *testing.T) {
	// arrange
	rejection := errors.New("validation error: amount <= 0")
	wrapper, o := givenWrappedHandler(t, newMockHandler(shell.HandlerResult{RetryAttempts: 1}, rejection))

	// act
	_, err := wrapper.Handle(context.Background(), mockCommand{})

	// assert
	assert.ErrorIs(t, err, rejection)
	assert.True(t, o.metrics.HasCounterRecordForMetric(shell.CommandHandlerCallsMetric).WithStatus(shell.StatusError).Assert())

	span := o.tracing.SpanNamed(shell.SpanNameCommandHandle)
	assert.Equal(t, shell.StatusError, span.Status())
	assert.Equal(t, rejection.Error(), span.Attributes()["error"])
}

func Test_CommandWrapper_Handle_RecordsRetrySummary(t *testing.T) {
	// arrange
	result := shell.HandlerResult{
		RetryAttempts:    5,
		LastErrorType:    "concurrency_conflict",
		RetriesExhausted: true,
	}
	wrapper, o := givenWrappedHandler(t, newMockHandler(result, eventstore.ErrConcurrencyConflict))

	// act
	_, _ = wrapper.Handle(context.Background(), mockCommand{})

	// assert
	assert.True(t, o.metrics.HasCounterRecordForMetric(shell.CommandHandlerRetriesMetric).
		WithLabel("attempt_number", "4").
		WithErrorType("concurrency_conflict").
		Assert())
	assert.True(t, o.metrics.HasDurationRecordForMetric(shell.CommandHandlerRetryDelayMetric).Assert())
	assert.True(t, o.metrics.HasCounterRecordForMetric(shell.CommandHandlerMaxRetriesReachedMetric).Assert())
}

func Test_CommandWrapper_Handle_WithoutObservers(t *testing.T) {
	wrapper, err := observable.NewCommandWrapper[mockCommand](newMockHandler(shell.HandlerResult{}, nil))
	require.NoError(t, err)

	_, err = wrapper.Handle(context.Background(), mockCommand{})

	assert.NoError(t, err)
}
