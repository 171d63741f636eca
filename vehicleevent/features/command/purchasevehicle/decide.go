package purchasevehicle

import (
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/core"
)

// Decide implements the business logic of purchasing a vehicle.
//
// Business Rules:
//
//	GIVEN: A vehicle id that has no history
//	WHEN: PurchaseVehicle command is received
//	THEN: VehiclePurchased event is generated
//	ERROR: "id must not be empty" if the vehicle id is empty
//	ERROR: "vehicle already exists" if the vehicle was purchased before
//	ERROR: "amount <= 0" if the price is not positive
func Decide(state core.VehicleState, command Command) core.DecisionResult {
	if command.VehicleID == "" {
		return core.ErrorDecision(core.NewValidationError(core.ReasonEmptyID))
	}

	if state.Exists {
		return core.ErrorDecision(core.NewValidationError(core.ReasonVehicleAlreadyExists))
	}

	if !command.Price.IsPositive() {
		return core.ErrorDecision(core.NewValidationError(core.ReasonAmountNotPositive))
	}

	return core.SuccessDecision(
		core.BuildVehiclePurchased(
			command.VehicleID,
			command.Price,
			command.Type,
			command.OccurredAt,
		),
	)
}
