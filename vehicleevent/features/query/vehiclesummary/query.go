package vehiclesummary

import (
	"context"

	"github.com/rkamradt/vehicleevent/vehicleevent/shared/core"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell/projectionstore"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell/subscription"
)

// QueryTypeName identifies the vehicle summary query in metrics, live subscriptions and the relay.
const QueryTypeName = "VehicleSummary"

// Query asks for the summary of one vehicle.
type Query struct {
	VehicleID string
}

// QueryType returns the type identifier for this query.
func (q Query) QueryType() string {
	return QueryTypeName
}

// BuildQuery creates a new Query.
func BuildQuery(vehicleID string) Query {
	return Query{VehicleID: vehicleID}
}

// QueryHandler reads summaries from the projection store.
type QueryHandler struct {
	store projectionstore.Store[VehicleSummary]
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(store projectionstore.Store[VehicleSummary]) QueryHandler {
	return QueryHandler{store: store}
}

// Handle returns the summary, or an error wrapping core.ErrNotFound.
func (h QueryHandler) Handle(ctx context.Context, query Query) (VehicleSummary, error) {
	summary, found, err := h.store.Get(ctx, query.VehicleID)
	if err != nil {
		return VehicleSummary{}, err
	}

	if !found {
		return VehicleSummary{}, core.NewNotFoundError("vehicle", query.VehicleID)
	}

	return summary, nil
}

// Subscribe streams every future update of one vehicle's summary until ctx is done or the subscription is cancelled.
func Subscribe(
	ctx context.Context,
	registry *subscription.Registry[VehicleSummary],
	vehicleID string,
) (*subscription.Subscription[VehicleSummary], error) {

	return registry.Subscribe(ctx, QueryTypeName, func(summary VehicleSummary) bool {
		return summary.ID == vehicleID
	})
}
