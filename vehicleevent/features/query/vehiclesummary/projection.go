package vehiclesummary

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
	logMsgSummaryCreated   = "vehicle summary created"
	logMsgMutationDropped  = "vehicle summary missing, update dropped"
	logMsgForwardingFailed = "forwarding vehicle summary update failed"
	logAttrEventType       = "event_type"
)

// ErrUnexpectedEvent is returned when a handler receives an event type it was not registered for.
var ErrUnexpectedEvent = errors.New("unexpected event for vehicle summary projection")

// EmitsUpdates receives every mutated summary. *subscription.Registry[VehicleSummary] satisfies it.
type EmitsUpdates interface {
	Emit(queryType string, record VehicleSummary)
}

// RegistersHandlers is the dispatch table the projection subscribes to. *publisher.Publisher satisfies it.
type RegistersHandlers interface {
	Register(eventType string, handler publisher.Handler)
}

// Projection keeps the VehicleSummary store in step with the vehicle events.
type Projection struct {
	store            projectionstore.Store[VehicleSummary]
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
	return func(p *Projection) {
		p.forwarder = forwarder
	}
}

// WithLogger sets the logger for the Projection.
func WithLogger(logger shell.Logger) ProjectionOption {
	return func(p *Projection) {
		p.logger = logger
	}
}

// WithContextualLogger sets the contextual logger for the Projection.
func WithContextualLogger(logger shell.ContextualLogger) ProjectionOption {
	return func(p *Projection) {
		p.contextualLogger = logger
	}
}

// WithMetrics sets the metrics collector for the Projection.
func WithMetrics(collector shell.MetricsCollector) ProjectionOption {
	return func(p *Projection) {
		p.metricsCollector = collector
	}
}

// NewProjection creates a Projection writing to store and emitting to updates.
func NewProjection(store projectionstore.Store[VehicleSummary], updates EmitsUpdates, opts ...ProjectionOption) *Projection {
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
	registrar.Register(core.VehiclePurchasedEventType, p.onVehiclePurchased)
	registrar.Register(core.VehicleSentToLotEventType, p.onVehicleSentToLot)
	registrar.Register(core.VehicleSoldEventType, p.onVehicleSold)
}

func (p *Projection) onVehiclePurchased(ctx context.Context, envelope shell.EventEnvelope) error {
	event, ok := envelope.DomainEvent.(core.VehiclePurchased)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnexpectedEvent, envelope.DomainEvent.IsEventType())
	}

	inserted, err := p.store.Insert(ctx, event.VehicleID, VehicleSummary{
		ID:         event.VehicleID,
		Price:      event.Price,
		Type:       event.Type,
		InductTime: formatTime(event.OccurredAt),
		Version:    int64(envelope.SequenceNumber),
	})
	if err != nil {
		return err
	}

	if inserted {
		shell.LogInfo(ctx, p.logger, p.contextualLogger, logMsgSummaryCreated, shell.LogAttrAggregateID, event.VehicleID)
	}

	return nil
}

func (p *Projection) onVehicleSentToLot(ctx context.Context, envelope shell.EventEnvelope) error {
	event, ok := envelope.DomainEvent.(core.VehicleSentToLot)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnexpectedEvent, envelope.DomainEvent.IsEventType())
	}

	return p.update(ctx, envelope, func(summary *VehicleSummary) {
		summary.Lot = event.Lot
		summary.LotID = event.LotID
		summary.ToLotTime = formatTime(event.OccurredAt)
	})
}

func (p *Projection) onVehicleSold(ctx context.Context, envelope shell.EventEnvelope) error {
	event, ok := envelope.DomainEvent.(core.VehicleSold)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnexpectedEvent, envelope.DomainEvent.IsEventType())
	}

	return p.update(ctx, envelope, func(summary *VehicleSummary) {
		summary.SellPrice = event.Price
		summary.SellTime = formatTime(event.OccurredAt)
	})
}

// update folds one envelope into the stored summary. A summary that already holds the envelope's
// sequence number is left alone and nothing is emitted; under a replay context nothing is emitted either.
func (p *Projection) update(ctx context.Context, envelope shell.EventEnvelope, mutate func(*VehicleSummary)) error {
	vehicleID := envelope.AggregateID
	eventType := envelope.DomainEvent.IsEventType()
	applied := false

	summary, found, err := p.store.Update(ctx, vehicleID, func(summary *VehicleSummary) {
		if !envelope.IsNewerThan(summary.Version) {
			return
		}

		mutate(summary)
		summary.Version = max(summary.Version, int64(envelope.SequenceNumber))
		applied = true
	})
	if err != nil {
		return err
	}

	if !found {
		shell.IncrementCounter(ctx, p.metricsCollector, shell.ProjectionDroppedMutationsMetric, map[string]string{
			"projection": TableName,
			"event_type": eventType,
		})
		shell.LogWarn(ctx, p.logger, p.contextualLogger, logMsgMutationDropped,
			shell.LogAttrAggregateID, vehicleID,
			logAttrEventType, eventType,
		)

		return nil
	}

	if !applied {
		shell.IncrementCounter(ctx, p.metricsCollector, shell.ProjectionStaleEventsMetric, map[string]string{
			"projection": TableName,
			"event_type": eventType,
		})

		return nil
	}

	if shell.IsReplay(ctx) {
		return nil
	}

	p.updates.Emit(QueryTypeName, summary)

	if p.forwarder != nil {
		if err := p.forwarder.Forward(ctx, QueryTypeName, summary); err != nil {
			shell.LogWarn(ctx, p.logger, p.contextualLogger, logMsgForwardingFailed,
				shell.LogAttrAggregateID, vehicleID,
				shell.LogAttrError, err.Error(),
			)
		}
	}

	return nil
}
