// Package subscription fans projection updates out to live query subscribers.
//
// Every subscription owns a bounded channel. Emit never blocks: when a subscriber's channel is
// full, the overflow policy either discards the oldest queued update or disconnects the subscriber.
package subscription

import (
	"context"
	"errors"
	"sync"

	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell"
)

// DefaultBufferSize is the channel capacity of a subscription.
const DefaultBufferSize = 16

const (
	MetricDroppedUpdates     = "subscription_dropped_updates_total"
	MetricSlowDisconnects    = "subscription_slow_disconnects_total"
	MetricActiveSubscribers  = "subscription_active_subscribers"
	logMsgSlowSubscriber     = "slow subscriber disconnected"
	logAttrQueryType         = "query_type"
	logAttrSubscriptionCount = "subscriptions"
)

var (
	// ErrSlowSubscriber is reported by Subscription.Err when it was closed for falling behind.
	ErrSlowSubscriber = errors.New("subscriber too slow, subscription closed")

	// ErrRegistryClosed is returned by Subscribe after Close.
	ErrRegistryClosed = errors.New("subscription registry is closed")

	// ErrInvalidBufferSize is returned for a buffer size below one.
	ErrInvalidBufferSize = errors.New("buffer size must be positive")
)

// OverflowPolicy decides what happens when a subscriber's channel is full.
type OverflowPolicy int

const (
	// DropOldest discards the oldest queued update to make room for the new one.
	DropOldest OverflowPolicy = iota

	// Disconnect closes the subscription with ErrSlowSubscriber.
	Disconnect
)

// ParseOverflowPolicy maps "drop-oldest" and "disconnect" to a policy; anything else is DropOldest.
func ParseOverflowPolicy(name string) OverflowPolicy {
	if name == "disconnect" {
		return Disconnect
	}

	return DropOldest
}

// Predicate selects the records a subscriber wants.
type Predicate[R any] func(record R) bool

// Registry holds the live subscriptions for records of type R, grouped by query type.
type Registry[R any] struct {
	mu            sync.RWMutex
	subscriptions map[string]map[*Subscription[R]]struct{}
	closed        bool

	bufferSize int
	policy     OverflowPolicy

	logger           shell.Logger
	metricsCollector shell.MetricsCollector
}

// Option configures a Registry.
type Option func(*registryConfig) error

type registryConfig struct {
	bufferSize       int
	policy           OverflowPolicy
	logger           shell.Logger
	metricsCollector shell.MetricsCollector
}

// WithBufferSize sets the channel capacity of every new subscription.
func WithBufferSize(size int) Option {
	return func(c *registryConfig) error {
		if size < 1 {
			return ErrInvalidBufferSize
		}

		c.bufferSize = size

		return nil
	}
}

// WithOverflowPolicy sets the policy applied to full subscriber channels.
func WithOverflowPolicy(policy OverflowPolicy) Option {
	return func(c *registryConfig) error {
		c.policy = policy
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger shell.Logger) Option {
	return func(c *registryConfig) error {
		c.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(collector shell.MetricsCollector) Option {
	return func(c *registryConfig) error {
		c.metricsCollector = collector
		return nil
	}
}

// NewRegistry creates an empty Registry.
func NewRegistry[R any](options ...Option) (*Registry[R], error) {
	cfg := registryConfig{bufferSize: DefaultBufferSize, policy: DropOldest}

	for _, option := range options {
		if err := option(&cfg); err != nil {
			return nil, err
		}
	}

	return &Registry[R]{
		subscriptions:    make(map[string]map[*Subscription[R]]struct{}),
		bufferSize:       cfg.bufferSize,
		policy:           cfg.policy,
		logger:           cfg.logger,
		metricsCollector: cfg.metricsCollector,
	}, nil
}

// Subscribe registers interest in future records of queryType that match predicate. There is no backfill.
// The subscription is cancelled when ctx is done.
func (r *Registry[R]) Subscribe(ctx context.Context, queryType string, predicate Predicate[R]) (*Subscription[R], error) {
	sub := &Subscription[R]{
		queryType: queryType,
		predicate: predicate,
		updates:   make(chan R, r.bufferSize),
		done:      make(chan struct{}),
		registry:  r,
	}

	r.mu.Lock()

	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}

	if r.subscriptions[queryType] == nil {
		r.subscriptions[queryType] = make(map[*Subscription[R]]struct{})
	}

	r.subscriptions[queryType][sub] = struct{}{}
	active := r.countLocked()

	r.mu.Unlock()

	shell.RecordValue(ctx, r.metricsCollector, MetricActiveSubscribers, float64(active), nil)

	go func() {
		select {
		case <-ctx.Done():
			sub.Cancel()
		case <-sub.done:
		}
	}()

	return sub, nil
}

// Emit offers record to every subscription of queryType whose predicate matches. It never blocks.
func (r *Registry[R]) Emit(queryType string, record R) {
	r.mu.RLock()

	matching := make([]*Subscription[R], 0, len(r.subscriptions[queryType]))
	for sub := range r.subscriptions[queryType] {
		if sub.predicate == nil || sub.predicate(record) {
			matching = append(matching, sub)
		}
	}

	r.mu.RUnlock()

	for _, sub := range matching {
		sub.offer(record, r.policy)
	}
}

// Unsubscribe cancels sub. It is the same as sub.Cancel.
func (r *Registry[R]) Unsubscribe(sub *Subscription[R]) {
	sub.Cancel()
}

// Count returns the number of live subscriptions of queryType.
func (r *Registry[R]) Count(queryType string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.subscriptions[queryType])
}

// Close cancels every subscription and rejects new ones.
func (r *Registry[R]) Close() {
	r.mu.Lock()
	r.closed = true

	var all []*Subscription[R]
	for _, subs := range r.subscriptions {
		for sub := range subs {
			all = append(all, sub)
		}
	}

	r.mu.Unlock()

	for _, sub := range all {
		sub.Cancel()
	}
}

func (r *Registry[R]) remove(sub *Subscription[R]) {
	r.mu.Lock()

	if subs, ok := r.subscriptions[sub.queryType]; ok {
		delete(subs, sub)

		if len(subs) == 0 {
			delete(r.subscriptions, sub.queryType)
		}
	}

	active := r.countLocked()

	r.mu.Unlock()

	shell.RecordValue(context.Background(), r.metricsCollector, MetricActiveSubscribers, float64(active), nil)
}

func (r *Registry[R]) countLocked() int {
	count := 0
	for _, subs := range r.subscriptions {
		count += len(subs)
	}

	return count
}

func (r *Registry[R]) onDropped(queryType string) {
	shell.IncrementCounter(context.Background(), r.metricsCollector, MetricDroppedUpdates,
		map[string]string{logAttrQueryType: queryType})
}

func (r *Registry[R]) onDisconnected(queryType string) {
	shell.IncrementCounter(context.Background(), r.metricsCollector, MetricSlowDisconnects,
		map[string]string{logAttrQueryType: queryType})

	if r.logger != nil {
		r.logger.Warn(logMsgSlowSubscriber, logAttrQueryType, queryType, logAttrSubscriptionCount, r.Count(queryType))
	}
}
