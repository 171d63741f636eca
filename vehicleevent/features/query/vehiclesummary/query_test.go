package vehiclesummary_test

import (
	"context"
	"sync"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkamradt/vehicleevent/eventstore"
	"github.com/rkamradt/vehicleevent/eventstore/memengine"
	"github.com/rkamradt/vehicleevent/testutil/observability/testdoubles"
	"github.com/rkamradt/vehicleevent/vehicleevent/features/command/purchasevehicle"
	"github.com/rkamradt/vehicleevent/vehicleevent/features/query/vehiclesummary"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/core"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell/projectionstore"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell/publisher"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell/subscription"
)

func Test_QueryHandler_Handle_NotFound(t *testing.T) {
	// arrange
	handler := vehiclesummary.NewQueryHandler(projectionstore.NewMemoryStore(vehiclesummary.Columns()))

	// act
	_, err := handler.Handle(context.Background(), vehiclesummary.BuildQuery("v404"))

	// assert
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorContains(t, err, "v404")
}

func Test_PurchasedVehicle_EventuallyHasSummaryWithoutSellPrice(t *testing.T) {
	// arrange
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub, err := publisher.NewPublisher()
	require.NoError(t, err)

	registry, err := subscription.NewRegistry[vehiclesummary.VehicleSummary]()
	require.NoError(t, err)

	store := projectionstore.NewMemoryStore(vehiclesummary.Columns())
	vehiclesummary.NewProjection(store, registry).Register(pub)

	go func() { _ = pub.Run(ctx) }()
	t.Cleanup(pub.Close)

	runtime, err := shell.NewRuntime(memengine.NewEventStore(), core.ApplyVehicleEvent, core.VehicleState{},
		shell.WithPublisher[core.VehicleState](pub))
	require.NoError(t, err)

	query := vehiclesummary.NewQueryHandler(store)

	// act
	result, err := purchasevehicle.NewCommandHandler(runtime).Handle(ctx,
		purchasevehicle.BuildCommand("v1", core.MustParseAmount("25000.00"), "sedan", time.Now()))
	require.NoError(t, err)

	// assert
	assert.EqualValues(t, 1, result.Version)

	var summary vehiclesummary.VehicleSummary
	require.Eventually(t, func() bool {
		summary, err = query.Handle(ctx, vehiclesummary.BuildQuery("v1"))
		return err == nil
	}, time.Second, 5*time.Millisecond)

	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(summary)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, jsoniter.Unmarshal(data, &body))
	assert.Equal(t, "v1", body["id"])
	assert.InDelta(t, 25000.00, body["price"], 0.001)
	assert.Equal(t, "sedan", body["type"])
	assert.Contains(t, body, "sellPrice")
	assert.Nil(t, body["sellPrice"])
}

// stallingLog commits the first append at version 1, then holds its caller back.
type stallingLog struct {
	*memengine.EventStore

	committed chan struct{}
	once      sync.Once
}

func (l *stallingLog) Append(
	ctx context.Context,
	aggregateID string,
	expectedVersion eventstore.SequenceNumberUint,
	event eventstore.StorableEvent,
	additionalEvents ...eventstore.StorableEvent,
) (eventstore.StorableEvents, error) {
	committed, err := l.EventStore.Append(ctx, aggregateID, expectedVersion, event, additionalEvents...)
	if err == nil && expectedVersion == 1 {
		l.once.Do(func() {
			close(l.committed)
			time.Sleep(100 * time.Millisecond)
		})
	}

	return committed, err
}

func Test_ConcurrentMoves_SummaryFollowsCommitOrder(t *testing.T) {
	// arrange
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := &stallingLog{EventStore: memengine.NewEventStore(), committed: make(chan struct{})}
	metrics := testdoubles.NewMetricsCollectorSpy(true)

	pub, err := publisher.NewPublisher(publisher.WithGapLoader(log), publisher.WithMetrics(metrics))
	require.NoError(t, err)

	registry, err := subscription.NewRegistry[vehiclesummary.VehicleSummary]()
	require.NoError(t, err)
	t.Cleanup(registry.Close)

	store := projectionstore.NewMemoryStore(vehiclesummary.Columns())
	vehiclesummary.NewProjection(store, registry).Register(pub)

	go func() { _ = pub.Run(ctx) }()
	t.Cleanup(pub.Close)

	runtime, err := shell.NewRuntime(log, core.ApplyVehicleEvent, core.VehicleState{},
		shell.WithPublisher[core.VehicleState](pub))
	require.NoError(t, err)

	_, err = purchasevehicle.NewCommandHandler(runtime).Handle(ctx,
		purchasevehicle.BuildCommand("v1", core.MustParseAmount("25000.00"), "sedan", time.Now()))
	require.NoError(t, err)

	sub, err := vehiclesummary.Subscribe(ctx, registry, "v1")
	require.NoError(t, err)

	moveTo := func(lot string) {
		_, err := runtime.Execute(ctx, "v1", func(core.VehicleState) core.DecisionResult {
			return core.SuccessDecision(core.BuildVehicleSentToLot("v1", lot, "lot-"+lot, time.Now()))
		})
		assert.NoError(t, err)
	}

	// act
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		moveTo("a")
	}()

	go func() {
		defer wg.Done()
		<-log.committed
		moveTo("b")
	}()

	wg.Wait()

	// assert
	require.Eventually(t, func() bool {
		return metrics.HasCounterRecordForMetric(publisher.MetricStaleEvents).Assert()
	}, time.Second, 5*time.Millisecond)

	_, version, err := log.Load(ctx, "v1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, version)

	summary, found, err := store.Get(ctx, "v1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "b", summary.Lot)

	assert.Equal(t, "a", receive(t, sub).Lot)
	assert.Equal(t, "b", receive(t, sub).Lot)
	assert.Empty(t, sub.Updates())
}

func Test_Replay_ForwardsNothingToOtherInstances(t *testing.T) {
	// arrange
	ctx := context.Background()
	log := memengine.NewEventStore()

	runtime, err := shell.NewRuntime(log, core.ApplyVehicleEvent, core.VehicleState{})
	require.NoError(t, err)

	_, err = purchasevehicle.NewCommandHandler(runtime).Handle(ctx,
		purchasevehicle.BuildCommand("v1", core.MustParseAmount("25000.00"), "sedan", time.Now()))
	require.NoError(t, err)

	for _, lot := range []string{"a", "b"} {
		_, err = runtime.Execute(ctx, "v1", func(core.VehicleState) core.DecisionResult {
			return core.SuccessDecision(core.BuildVehicleSentToLot("v1", lot, "lot-"+lot, time.Now()))
		})
		require.NoError(t, err)
	}

	pub, err := publisher.NewPublisher()
	require.NoError(t, err)

	registry, err := subscription.NewRegistry[vehiclesummary.VehicleSummary]()
	require.NoError(t, err)
	t.Cleanup(registry.Close)

	forwarder := &forwarderSpy{}
	store := projectionstore.NewMemoryStore(vehiclesummary.Columns())
	vehiclesummary.NewProjection(store, registry, vehiclesummary.WithForwarder(forwarder)).Register(pub)

	// act
	replayed, err := pub.Replay(ctx, log)

	// assert
	require.NoError(t, err)
	assert.Equal(t, 3, replayed)
	assert.Empty(t, forwarder.records)

	summary, found, err := store.Get(ctx, "v1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "b", summary.Lot)
	assert.EqualValues(t, 3, summary.Version)
}
