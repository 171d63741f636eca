package updatelot

import (
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/core"
)

// Decide implements the business logic of updating a lot.
//
// Business Rules:
//
//	GIVEN: An existing lot
//	WHEN: UpdateLot command is received
//	THEN: LotUpdated event is generated
//	IDEMPOTENCY: If name and manager are unchanged, no event is generated (no error)
//	ERROR: NotFound if the lot does not exist
//	ERROR: validation error if the name is empty
func Decide(state core.LotState, command Command) core.DecisionResult {
	if !state.Exists {
		return core.ErrorDecision(core.NewNotFoundError("lot", command.LotID))
	}

	if command.Name == "" {
		return core.ErrorDecision(core.NewValidationError(core.ReasonEmptyName))
	}

	if state.Name == command.Name && state.Manager == command.Manager {
		return core.IdempotentDecision()
	}

	return core.SuccessDecision(
		core.BuildLotUpdated(
			command.LotID,
			command.Name,
			command.Manager,
			command.OccurredAt,
		),
	)
}
