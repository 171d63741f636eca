package sendvehicletolot

import (
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/core"
)

// Decide implements the business logic of moving a vehicle to a resolved lot.
//
// Business Rules:
//
//	GIVEN: A purchased vehicle and the id of the lot named in the command
//	WHEN: SendVehicleToLot command is received
//	THEN: VehicleSentToLot event is generated, also when the vehicle is already on that lot
//	ERROR: NotFound if the vehicle was never purchased
//	ERROR: "lot must be a, b, or c" if the lot name is not a known lot code
func Decide(state core.VehicleState, command Command, lotID core.LotIDString) core.DecisionResult {
	if !state.Exists {
		return core.ErrorDecision(core.NewNotFoundError("vehicle", command.VehicleID))
	}

	if !core.IsValidLotCode(command.Lot) {
		return core.ErrorDecision(core.NewValidationError(core.ReasonInvalidLotCode))
	}

	return core.SuccessDecision(
		core.BuildVehicleSentToLot(
			command.VehicleID,
			command.Lot,
			lotID,
			command.OccurredAt,
		),
	)
}
