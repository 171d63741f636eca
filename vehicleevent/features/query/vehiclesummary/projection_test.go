package vehiclesummary_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkamradt/vehicleevent/eventstore"
	"github.com/rkamradt/vehicleevent/testutil/observability/testdoubles"
	"github.com/rkamradt/vehicleevent/vehicleevent/features/query/vehiclesummary"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/core"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell/projectionstore"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell/publisher"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell/subscription"
)

type registrarSpy struct {
	handlers map[string][]publisher.Handler
}

func (r *registrarSpy) Register(eventType string, handler publisher.Handler) {
	r.handlers[eventType] = append(r.handlers[eventType], handler)
}

func (r *registrarSpy) deliver(t *testing.T, events ...core.DomainEvent) {
	t.Helper()

	for _, event := range events {
		envelope := shell.EventEnvelope{DomainEvent: event, AggregateID: event.HasAggregateID()}
		for _, handler := range r.handlers[event.IsEventType()] {
			require.NoError(t, handler(context.Background(), envelope))
		}
	}
}

func (r *registrarSpy) deliverAt(ctx context.Context, t *testing.T, seq eventstore.SequenceNumberUint, event core.DomainEvent) {
	t.Helper()

	envelope := shell.EventEnvelope{DomainEvent: event, AggregateID: event.HasAggregateID(), SequenceNumber: seq}
	for _, handler := range r.handlers[event.IsEventType()] {
		require.NoError(t, handler(ctx, envelope))
	}
}

type forwarderSpy struct {
	mu      sync.Mutex
	records []any
	err     error
}

func (f *forwarderSpy) Forward(_ context.Context, _ string, record any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.records = append(f.records, record)

	return f.err
}

type fixture struct {
	store     *projectionstore.MemoryStore[vehiclesummary.VehicleSummary]
	registry  *subscription.Registry[vehiclesummary.VehicleSummary]
	registrar *registrarSpy
	logger    *testdoubles.LoggerSpy
	metrics   *testdoubles.MetricsCollectorSpy
}

func givenProjection(t *testing.T, opts ...vehiclesummary.ProjectionOption) fixture {
	t.Helper()

	registry, err := subscription.NewRegistry[vehiclesummary.VehicleSummary]()
	require.NoError(t, err)
	t.Cleanup(registry.Close)

	f := fixture{
		store:     projectionstore.NewMemoryStore(vehiclesummary.Columns()),
		registry:  registry,
		registrar: &registrarSpy{handlers: make(map[string][]publisher.Handler)},
		logger:    testdoubles.NewLoggerSpy(),
		metrics:   testdoubles.NewMetricsCollectorSpy(true),
	}

	opts = append(opts, vehiclesummary.WithLogger(f.logger), vehiclesummary.WithMetrics(f.metrics))
	vehiclesummary.NewProjection(f.store, registry, opts...).Register(f.registrar)

	return f
}

func receive(t *testing.T, sub *subscription.Subscription[vehiclesummary.VehicleSummary]) vehiclesummary.VehicleSummary {
	t.Helper()

	select {
	case summary := <-sub.Updates():
		return summary
	case <-time.After(time.Second):
		t.Fatal("no update received")
		return vehiclesummary.VehicleSummary{}
	}
}

func Test_Projection_FoldsTheVehicleLifecycle(t *testing.T) {
	// arrange
	f := givenProjection(t)
	purchasedAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	sub, err := vehiclesummary.Subscribe(context.Background(), f.registry, "v1")
	require.NoError(t, err)

	// act
	f.registrar.deliver(t,
		core.BuildVehiclePurchased("v1", core.MustParseAmount("25000.00"), "sedan", purchasedAt),
		core.BuildVehicleSentToLot("v1", "a", "lot-a", purchasedAt.Add(time.Hour)),
		core.BuildVehicleSold("v1", core.MustParseAmount("28000.00"), purchasedAt.Add(2*time.Hour)),
	)

	// assert
	moved := receive(t, sub)
	sold := receive(t, sub)

	assert.Equal(t, "a", moved.Lot)
	assert.Equal(t, core.Amount(""), moved.SellPrice)
	assert.Equal(t, core.Amount("28000.00"), sold.SellPrice)

	summary, found, err := f.store.Get(context.Background(), "v1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, vehiclesummary.VehicleSummary{
		ID:         "v1",
		Price:      "25000.00",
		Type:       "sedan",
		Lot:        "a",
		LotID:      "lot-a",
		SellPrice:  "28000.00",
		InductTime: "2026-03-01T09:00:00Z",
		ToLotTime:  "2026-03-01T10:00:00Z",
		SellTime:   "2026-03-01T11:00:00Z",
	}, summary)
}

func Test_Projection_RepeatedPurchaseKeepsOneRecord(t *testing.T) {
	// arrange
	f := givenProjection(t)
	event := core.BuildVehiclePurchased("v1", core.MustParseAmount("25000.00"), "sedan", time.Now())

	// act
	f.registrar.deliver(t, event, event)

	// assert
	assert.Equal(t, 1, f.store.Len())
	assert.True(t, f.logger.HasMessage("info", "vehicle summary created"))
	assert.Equal(t, 1, f.logger.Count("info"))
}

func Test_Projection_MutationOfMissingRecordIsDropped(t *testing.T) {
	// arrange
	f := givenProjection(t)

	sub, err := vehiclesummary.Subscribe(context.Background(), f.registry, "ghost")
	require.NoError(t, err)

	// act
	f.registrar.deliver(t, core.BuildVehicleSold("ghost", core.MustParseAmount("1.00"), time.Now()))

	// assert
	assert.Equal(t, 0, f.store.Len())
	assert.True(t, f.logger.HasMessage("warn", "update dropped"))
	assert.True(t, f.metrics.HasCounterRecordForMetric(shell.ProjectionDroppedMutationsMetric).
		WithLabel("event_type", core.VehicleSoldEventType).
		Assert())
	assert.Empty(t, sub.Updates())
}

func Test_Projection_ForwardsEveryEmittedUpdate(t *testing.T) {
	// arrange
	forwarder := &forwarderSpy{err: errors.New("redis down")}
	f := givenProjection(t, vehiclesummary.WithForwarder(forwarder))

	// act
	f.registrar.deliver(t,
		core.BuildVehiclePurchased("v1", core.MustParseAmount("25000.00"), "sedan", time.Now()),
		core.BuildVehicleSentToLot("v1", "b", "lot-b", time.Now()),
	)

	// assert
	require.Len(t, forwarder.records, 1)
	assert.Equal(t, "b", forwarder.records[0].(vehiclesummary.VehicleSummary).Lot)
	assert.True(t, f.logger.HasMessage("warn", "forwarding vehicle summary update failed"))
}

func Test_Projection_SkipsEventsTheSummaryAlreadyHolds(t *testing.T) {
	// arrange
	ctx := context.Background()
	f := givenProjection(t)

	sub, err := vehiclesummary.Subscribe(ctx, f.registry, "v1")
	require.NoError(t, err)

	f.registrar.deliverAt(ctx, t, 1, core.BuildVehiclePurchased("v1", core.MustParseAmount("25000.00"), "sedan", time.Now()))

	// act
	f.registrar.deliverAt(ctx, t, 3, core.BuildVehicleSentToLot("v1", "b", "lot-b", time.Now()))
	f.registrar.deliverAt(ctx, t, 2, core.BuildVehicleSentToLot("v1", "a", "lot-a", time.Now()))
	f.registrar.deliverAt(ctx, t, 3, core.BuildVehicleSentToLot("v1", "b", "lot-b", time.Now()))

	// assert
	summary, found, err := f.store.Get(ctx, "v1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "b", summary.Lot)
	assert.EqualValues(t, 3, summary.Version)

	assert.Equal(t, "b", receive(t, sub).Lot)
	assert.Empty(t, sub.Updates())
	assert.Equal(t, 2, f.metrics.Count(testdoubles.KindCounter, shell.ProjectionStaleEventsMetric))
}

func Test_Projection_ReplayRestoresStoreWithoutNotifying(t *testing.T) {
	// arrange
	forwarder := &forwarderSpy{}
	f := givenProjection(t, vehiclesummary.WithForwarder(forwarder))
	replay := shell.WithReplay(context.Background())

	sub, err := vehiclesummary.Subscribe(context.Background(), f.registry, "v1")
	require.NoError(t, err)

	// act
	f.registrar.deliverAt(replay, t, 1, core.BuildVehiclePurchased("v1", core.MustParseAmount("25000.00"), "sedan", time.Now()))
	f.registrar.deliverAt(replay, t, 2, core.BuildVehicleSentToLot("v1", "a", "lot-a", time.Now()))
	f.registrar.deliverAt(replay, t, 3, core.BuildVehicleSold("v1", core.MustParseAmount("27000.00"), time.Now()))

	// assert
	summary, found, err := f.store.Get(context.Background(), "v1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "a", summary.Lot)
	assert.Equal(t, core.Amount("27000.00"), summary.SellPrice)

	assert.Empty(t, forwarder.records)
	assert.Empty(t, sub.Updates())
}
