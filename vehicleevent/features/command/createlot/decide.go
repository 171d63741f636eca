package createlot

import (
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/core"
)

// Decide implements the business logic of creating a lot.
//
// Business Rules:
//
//	GIVEN: No lot with the command's id
//	WHEN: CreateLot command is received
//	THEN: LotCreated event is generated
//	ERROR: validation error if id or name is empty
//	ERROR: "lot already exists" if the id is taken
func Decide(state core.LotState, command Command) core.DecisionResult {
	if command.LotID == "" {
		return core.ErrorDecision(core.NewValidationError(core.ReasonEmptyID))
	}

	if command.Name == "" {
		return core.ErrorDecision(core.NewValidationError(core.ReasonEmptyName))
	}

	if state.Exists {
		return core.ErrorDecision(core.NewValidationError(core.ReasonLotAlreadyExists))
	}

	return core.SuccessDecision(
		core.BuildLotCreated(
			command.LotID,
			command.Name,
			command.Manager,
			command.OccurredAt,
		),
	)
}
