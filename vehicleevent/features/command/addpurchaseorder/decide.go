package addpurchaseorder

import (
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/core"
)

// Decide implements the business logic of adding a purchase order.
//
// Business Rules:
//
//	GIVEN: No purchase order with the command's id
//	WHEN: AddPurchaseOrder command is received
//	THEN: PurchaseOrderAdded event is generated
//	ERROR: "purchase order already exists" if the id is taken
//	ERROR: "amount <= 0" if the price is not positive
func Decide(state core.PurchaseOrderState, command Command) core.DecisionResult {
	if state.Exists {
		return core.ErrorDecision(core.NewValidationError(core.ReasonOrderAlreadyExists))
	}

	if !command.Price.IsPositive() {
		return core.ErrorDecision(core.NewValidationError(core.ReasonAmountNotPositive))
	}

	return core.SuccessDecision(
		core.BuildPurchaseOrderAdded(
			command.PurchaseOrderID,
			command.Price,
			command.Type,
			command.OccurredAt,
		),
	)
}
