package relay_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkamradt/vehicleevent/testutil/observability/testdoubles"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell/relay"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell/subscription"
)

type summary struct {
	ID    string `json:"id"`
	Price string `json:"price"`
}

type clientSpy struct {
	mu        sync.Mutex
	published [][]byte
}

func (c *clientSpy) Publish(_ context.Context, _ string, message any) *redis.IntCmd {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.published = append(c.published, message.([]byte))

	return redis.NewIntResult(1, nil)
}

func (c *clientSpy) Subscribe(context.Context, ...string) *redis.PubSub {
	return nil
}

func givenRegistry(t *testing.T) *subscription.Registry[summary] {
	t.Helper()

	registry, err := subscription.NewRegistry[summary]()
	require.NoError(t, err)
	t.Cleanup(registry.Close)

	return registry
}

func Test_RedisRelay_ForwardedUpdateReachesOtherInstance(t *testing.T) {
	// arrange
	ctx := context.Background()
	client := &clientSpy{}
	metrics := testdoubles.NewMetricsCollectorSpy(true)

	sender, err := relay.NewRedisRelay(client, "updates", relay.WithMetrics(metrics))
	require.NoError(t, err)

	receiver, err := relay.NewRedisRelay(client, "updates")
	require.NoError(t, err)

	registry := givenRegistry(t)
	receiver.Register("vehicle-summary", relay.EmitTo(registry))

	sub, err := registry.Subscribe(ctx, "vehicle-summary", func(s summary) bool { return s.ID == "v1" })
	require.NoError(t, err)

	// act
	require.NoError(t, sender.Forward(ctx, "vehicle-summary", summary{ID: "v1", Price: "25000.00"}))
	require.Len(t, client.published, 1)
	dispatchErr := receiver.Dispatch(ctx, client.published[0])

	// assert
	require.NoError(t, dispatchErr)

	select {
	case got := <-sub.Updates():
		assert.Equal(t, summary{ID: "v1", Price: "25000.00"}, got)
	case <-time.After(time.Second):
		t.Fatal("no update delivered")
	}

	assert.True(t, metrics.HasCounterRecordForMetric("relay_updates_forwarded_total").WithLabel("query_type", "vehicle-summary").Assert())
}

func Test_RedisRelay_Dispatch_SkipsOwnMessages(t *testing.T) {
	// arrange
	ctx := context.Background()
	client := &clientSpy{}

	self, err := relay.NewRedisRelay(client, "updates")
	require.NoError(t, err)

	registry := givenRegistry(t)
	self.Register("vehicle-summary", relay.EmitTo(registry))

	sub, err := registry.Subscribe(ctx, "vehicle-summary", func(summary) bool { return true })
	require.NoError(t, err)

	require.NoError(t, self.Forward(ctx, "vehicle-summary", summary{ID: "v1"}))

	// act
	dispatchErr := self.Dispatch(ctx, client.published[0])

	// assert
	assert.NoError(t, dispatchErr)
	assert.Empty(t, sub.Updates())
}

func Test_RedisRelay_Dispatch_Rejects(t *testing.T) {
	ctx := context.Background()

	r, err := relay.NewRedisRelay(&clientSpy{}, "updates")
	require.NoError(t, err)
	r.Register("vehicle-summary", relay.EmitTo(givenRegistry(t)))

	malformedErr := r.Dispatch(ctx, []byte(`{"origin":`))
	unknownErr := r.Dispatch(ctx, []byte(`{"origin":"other","queryType":"nope","record":{}}`))
	badRecordErr := r.Dispatch(ctx, []byte(`{"origin":"other","queryType":"vehicle-summary","record":[1]}`))

	assert.ErrorIs(t, malformedErr, relay.ErrMalformedUpdate)
	assert.ErrorIs(t, unknownErr, relay.ErrUnknownQuery)
	assert.ErrorIs(t, badRecordErr, relay.ErrMalformedUpdate)
}

func Test_NewRedisRelay_RejectsBadInput(t *testing.T) {
	_, nilErr := relay.NewRedisRelay(nil, "updates")
	_, channelErr := relay.NewRedisRelay(&clientSpy{}, "")

	assert.ErrorIs(t, nilErr, relay.ErrNilClient)
	assert.ErrorIs(t, channelErr, relay.ErrEmptyChannel)
}

func Test_RedisRelay_Run_AgainstRedis(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set, skipping Redis integration test")
	}

	// arrange
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	channel := "relay-test-" + time.Now().Format(time.RFC3339Nano)

	sender, err := relay.NewRedisRelay(client, channel)
	require.NoError(t, err)

	receiver, err := relay.NewRedisRelay(client, channel)
	require.NoError(t, err)

	registry := givenRegistry(t)
	receiver.Register("vehicle-summary", relay.EmitTo(registry))

	sub, err := registry.Subscribe(ctx, "vehicle-summary", func(summary) bool { return true })
	require.NoError(t, err)

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)

	go func() { done <- receiver.Run(runCtx) }()

	// act
	var got summary

	require.Eventually(t, func() bool {
		_ = sender.Forward(ctx, "vehicle-summary", summary{ID: "v9"})

		select {
		case got = <-sub.Updates():
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 4*time.Second, 100*time.Millisecond)

	stop()

	// assert
	assert.Equal(t, "v9", got.ID)
	assert.NoError(t, <-done)
}
