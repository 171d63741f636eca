// Package relay fans projection updates out to the live subscriptions of other instances through a Redis
// pub/sub channel.
//
// Every instance emits its own projection updates locally and forwards them on the channel. Messages that
// come back from the channel are emitted into the local subscription registries unless they originate from
// this instance.
package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"

	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell/subscription"
)

const (
	logMsgForwardFailed  = "relay: forwarding projection update failed"
	logMsgBadPayload     = "relay: ignoring malformed message"
	logMsgDeliveryFailed = "relay: delivering projection update failed"
	logAttrQueryType     = "query_type"
	logAttrError         = "error"

	metricForwarded = "relay_updates_forwarded_total"
	metricReceived  = "relay_updates_received_total"
)

// Relay errors.
var (
	ErrNilClient       = errors.New("redis client must not be nil")
	ErrEmptyChannel    = errors.New("relay channel must not be empty")
	ErrUnknownQuery    = errors.New("no sink registered for query type")
	ErrMalformedUpdate = errors.New("malformed relay message")
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client is the part of the go-redis client the relay uses. *redis.Client satisfies it.
type Client interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// Message is one projection update on the channel.
type Message struct {
	Origin    string              `json:"origin"`
	QueryType string              `json:"queryType"`
	Record    jsoniter.RawMessage `json:"record"`
}

// Sink receives the encoded record of a remote update for one query type.
type Sink func(ctx context.Context, queryType string, record []byte) error

// EmitTo returns a Sink that decodes the record and emits it into registry.
func EmitTo[R any](registry *subscription.Registry[R]) Sink {
	return func(_ context.Context, queryType string, record []byte) error {
		var decoded R
		if err := json.Unmarshal(record, &decoded); err != nil {
			return errors.Join(ErrMalformedUpdate, err)
		}

		registry.Emit(queryType, decoded)

		return nil
	}
}

// RedisRelay forwards updates to and receives updates from one Redis channel.
type RedisRelay struct {
	client           Client
	channel          string
	origin           string
	mu               sync.RWMutex
	sinks            map[string]Sink
	logger           shell.Logger
	metricsCollector shell.MetricsCollector
}

// Option configures a RedisRelay.
type Option func(*RedisRelay)

// WithLogger sets the logger for relay failures.
func WithLogger(logger shell.Logger) Option {
	return func(r *RedisRelay) {
		r.logger = logger
	}
}

// WithMetrics sets the collector for forwarded and received updates.
func WithMetrics(collector shell.MetricsCollector) Option {
	return func(r *RedisRelay) {
		r.metricsCollector = collector
	}
}

// WithOrigin overrides the generated instance id.
func WithOrigin(origin string) Option {
	return func(r *RedisRelay) {
		if origin != "" {
			r.origin = origin
		}
	}
}

// NewRedisRelay creates a relay on channel.
func NewRedisRelay(client Client, channel string, options ...Option) (*RedisRelay, error) {
	if client == nil {
		return nil, ErrNilClient
	}

	if channel == "" {
		return nil, ErrEmptyChannel
	}

	r := &RedisRelay{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		sinks:   make(map[string]Sink),
	}

	for _, option := range options {
		option(r)
	}

	return r, nil
}

// Origin returns the instance id stamped on forwarded messages.
func (r *RedisRelay) Origin() string {
	return r.origin
}

// Register routes remote updates of queryType to sink.
func (r *RedisRelay) Register(queryType string, sink Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sinks[queryType] = sink
}

// Forward publishes record as an update of queryType.
func (r *RedisRelay) Forward(ctx context.Context, queryType string, record any) error {
	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode relay record: %w", err)
	}

	payload, err := json.Marshal(Message{Origin: r.origin, QueryType: queryType, Record: encoded})
	if err != nil {
		return fmt.Errorf("encode relay message: %w", err)
	}

	if err = r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		if r.logger != nil {
			r.logger.Warn(logMsgForwardFailed, logAttrQueryType, queryType, logAttrError, err.Error())
		}

		return fmt.Errorf("redis publish: %w", err)
	}

	shell.IncrementCounter(ctx, r.metricsCollector, metricForwarded, map[string]string{logAttrQueryType: queryType})

	return nil
}

// Dispatch handles one raw channel payload. Messages of this instance are skipped.
func (r *RedisRelay) Dispatch(ctx context.Context, payload []byte) error {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return errors.Join(ErrMalformedUpdate, err)
	}

	if msg.Origin == r.origin {
		return nil
	}

	r.mu.RLock()
	sink, ok := r.sinks[msg.QueryType]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownQuery, msg.QueryType)
	}

	if err := sink(ctx, msg.QueryType, msg.Record); err != nil {
		return err
	}

	shell.IncrementCounter(ctx, r.metricsCollector, metricReceived, map[string]string{logAttrQueryType: msg.QueryType})

	return nil
}

// Run subscribes to the channel and dispatches messages until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}

	messages := sub.Channel()

	for {
		select {
		case <-ctx.Done():
			return nil

		case m, ok := <-messages:
			if !ok {
				return nil
			}

			if err := r.Dispatch(ctx, []byte(m.Payload)); err != nil && r.logger != nil {
				msg := logMsgDeliveryFailed
				if errors.Is(err, ErrMalformedUpdate) {
					msg = logMsgBadPayload
				}

				r.logger.Warn(msg, logAttrError, err.Error())
			}
		}
	}
}
