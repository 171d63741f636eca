package sellvehicle

import (
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/core"
)

// Decide implements the business logic of selling a vehicle.
//
// Business Rules:
//
//	GIVEN: A purchased vehicle
//	WHEN: SellVehicle command is received
//	THEN: VehicleSold event is generated
//	ERROR: NotFound if the vehicle was never purchased
//	ERROR: "vehicle already sold" if the vehicle was sold before, whatever the price
//	ERROR: "amount <= 0" if the price is not positive
func Decide(state core.VehicleState, command Command) core.DecisionResult {
	if !state.Exists {
		return core.ErrorDecision(core.NewNotFoundError("vehicle", command.VehicleID))
	}

	if state.Sold {
		return core.ErrorDecision(core.NewValidationError(core.ReasonVehicleAlreadySold))
	}

	if !command.Price.IsPositive() {
		return core.ErrorDecision(core.NewValidationError(core.ReasonAmountNotPositive))
	}

	return core.SuccessDecision(
		core.BuildVehicleSold(
			command.VehicleID,
			command.Price,
			command.OccurredAt,
		),
	)
}
