package lotsummary

import (
	"context"
	"errors"
	"fmt"

	"github.com/rkamradt/vehicleevent/vehicleevent/shared/core"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell/projectionstore"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell/publisher"
)

const (
	logMsgMutationDropped  = "lot summary missing, update dropped"
	logMsgForwardingFailed = "forwarding lot summary update failed"
)

// ErrUnexpectedEvent is returned when a handler receives an event type it was not registered for.
var ErrUnexpectedEvent = errors.New("unexpected event for lot summary projection")

// EmitsUpdates receives every mutated summary. *subscription.Registry[LotSummary] satisfies it.
type EmitsUpdates interface {
	Emit(queryType string, record LotSummary)
}

// RegistersHandlers is the dispatch table the projection subscribes to. *publisher.Publisher satisfies it.
type RegistersHandlers interface {
	Register(eventType string, handler publisher.Handler)
}

// Projection keeps the LotSummary store in step with the lot events.
type Projection struct {
	store            projectionstore.Store[LotSummary]
	updates          EmitsUpdates
	forwarder        shell.ForwardsUpdates
	logger           shell.Logger
	contextualLogger shell.ContextualLogger
	metricsCollector shell.MetricsCollector
}

// ProjectionOption configures a Projection.
type ProjectionOption func(*Projection)

// WithForwarder hands every emitted update to other instances as well.
func WithForwarder(forwarder shell.ForwardsUpdates) ProjectionOption {
	return func(p *Projection) { p.forwarder = forwarder }
}

// WithLogger sets the logger for the Projection.
func WithLogger(logger shell.Logger) ProjectionOption {
	return func(p *Projection) { p.logger = logger }
}

// WithContextualLogger sets the contextual logger for the Projection.
func WithContextualLogger(logger shell.ContextualLogger) ProjectionOption {
	return func(p *Projection) { p.contextualLogger = logger }
}

// WithMetrics sets the metrics collector for the Projection.
func WithMetrics(collector shell.MetricsCollector) ProjectionOption {
	return func(p *Projection) { p.metricsCollector = collector }
}

// NewProjection creates a Projection writing to store and emitting to updates.
func NewProjection(store projectionstore.Store[LotSummary], updates EmitsUpdates, opts ...ProjectionOption) *Projection {
	p := &Projection{
		store:   store,
		updates: updates,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Register adds the projection's handlers to the dispatch table.
func (p *Projection) Register(registrar RegistersHandlers) {
	registrar.Register(core.LotCreatedEventType, p.onLotCreated)
	registrar.Register(core.LotUpdatedEventType, p.onLotUpdated)
}

func (p *Projection) onLotCreated(ctx context.Context, envelope shell.EventEnvelope) error {
	event, ok := envelope.DomainEvent.(core.LotCreated)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnexpectedEvent, envelope.DomainEvent.IsEventType())
	}

	created := formatTime(event.OccurredAt)

	_, err := p.store.Insert(ctx, event.LotID, LotSummary{
		ID:         event.LotID,
		Name:       event.Name,
		Manager:    event.Manager,
		CreateTime: created,
		UpdateTime: created,
		Version:    int64(envelope.SequenceNumber),
	})

	return err
}

func (p *Projection) onLotUpdated(ctx context.Context, envelope shell.EventEnvelope) error {
	event, ok := envelope.DomainEvent.(core.LotUpdated)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnexpectedEvent, envelope.DomainEvent.IsEventType())
	}

	applied := false

	summary, found, err := p.store.Update(ctx, event.LotID, func(summary *LotSummary) {
		if !envelope.IsNewerThan(summary.Version) {
			return
		}

		summary.Name = event.Name
		summary.Manager = event.Manager
		summary.UpdateTime = formatTime(event.OccurredAt)
		summary.Version = max(summary.Version, int64(envelope.SequenceNumber))
		applied = true
	})
	if err != nil {
		return err
	}

	if !found {
		shell.IncrementCounter(ctx, p.metricsCollector, shell.ProjectionDroppedMutationsMetric, map[string]string{
			"projection": TableName,
			"event_type": event.IsEventType(),
		})
		shell.LogWarn(ctx, p.logger, p.contextualLogger, logMsgMutationDropped, shell.LogAttrAggregateID, event.LotID)

		return nil
	}

	if !applied {
		shell.IncrementCounter(ctx, p.metricsCollector, shell.ProjectionStaleEventsMetric, map[string]string{
			"projection": TableName,
			"event_type": event.IsEventType(),
		})

		return nil
	}

	// a rebuild from the log only restores the table
	if shell.IsReplay(ctx) {
		return nil
	}

	p.updates.Emit(QueryTypeName, summary)

	if p.forwarder != nil {
		if err := p.forwarder.Forward(ctx, QueryTypeName, summary); err != nil {
			shell.LogWarn(ctx, p.logger, p.contextualLogger, logMsgForwardingFailed,
				shell.LogAttrAggregateID, event.LotID,
				shell.LogAttrError, err.Error(),
			)
		}
	}

	return nil
}
