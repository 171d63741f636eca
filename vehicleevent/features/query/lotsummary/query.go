package lotsummary

import (
	"context"

	"github.com/rkamradt/vehicleevent/vehicleevent/shared/core"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell/projectionstore"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell/subscription"
)

const (
	// QueryTypeName identifies the lot summary query in metrics, live subscriptions and the relay.
	QueryTypeName = "LotSummary"

	listQueryTypeName = "LotSummaryList"
)

// Query asks for the summary of one lot.
type Query struct {
	LotID string
}

// QueryType returns the type identifier for this query.
func (q Query) QueryType() string {
	return QueryTypeName
}

// QueryHandler reads one summary from the projection store.
type QueryHandler struct {
	store projectionstore.Store[LotSummary]
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(store projectionstore.Store[LotSummary]) QueryHandler {
	return QueryHandler{store: store}
}

// Handle returns the summary, or an error wrapping core.ErrNotFound.
func (h QueryHandler) Handle(ctx context.Context, query Query) (LotSummary, error) {
	summary, found, err := h.store.Get(ctx, query.LotID)
	if err != nil {
		return LotSummary{}, err
	}

	if !found {
		return LotSummary{}, core.NewNotFoundError("lot", query.LotID)
	}

	return summary, nil
}

// ListQuery asks for lots by name.
//
// Name is a case-sensitive LIKE pattern. Without a wildcard it matches as a prefix; an empty name
// matches every lot. Offset is applied before Limit, and a Limit of zero means no limit.
type ListQuery struct {
	Name   string
	Limit  int
	Offset int
}

// QueryType returns the type identifier for this query.
func (q ListQuery) QueryType() string {
	return listQueryTypeName
}

// ListHandler lists summaries by name, ordered by id.
type ListHandler struct {
	store projectionstore.Store[LotSummary]
}

// NewListHandler creates a new ListHandler.
func NewListHandler(store projectionstore.Store[LotSummary]) ListHandler {
	return ListHandler{store: store}
}

// Handle returns the matching lots, never nil.
func (h ListHandler) Handle(ctx context.Context, query ListQuery) ([]LotSummary, error) {
	criteria := projectionstore.Criteria{
		Limit:  query.Limit,
		Offset: query.Offset,
	}

	if query.Name != "" {
		criteria.Column = NameColumn
		criteria.Like = query.Name

		if !projectionstore.HasWildcard(query.Name) {
			criteria.Like += "%"
		}
	}

	lots, err := h.store.List(ctx, criteria)
	if err != nil {
		return nil, err
	}

	if lots == nil {
		lots = []LotSummary{}
	}

	return lots, nil
}

// Subscribe streams every future update of one lot's summary until ctx is done or the subscription is cancelled.
func Subscribe(
	ctx context.Context,
	registry *subscription.Registry[LotSummary],
	lotID string,
) (*subscription.Subscription[LotSummary], error) {

	return registry.Subscribe(ctx, QueryTypeName, func(summary LotSummary) bool {
		return summary.ID == lotID
	})
}
