package sellvehicle

import (
	"time"

	"github.com/rkamradt/vehicleevent/vehicleevent/shared/core"
)

const (
	commandType = "SellVehicle"
)

// Command represents the intent to register the sale of a vehicle.
type Command struct {
	VehicleID  core.VehicleIDString
	Price      core.Amount
	OccurredAt core.OccurredAtTS
}

// CommandType returns the type identifier for this command, used for observability and routing.
func (c Command) CommandType() string {
	return commandType
}

// BuildCommand creates a new Command with the provided parameters.
func BuildCommand(vehicleID string, price core.Amount, occurredAt time.Time) Command {
	return Command{
		VehicleID:  vehicleID,
		Price:      price,
		OccurredAt: core.ToOccurredAt(occurredAt),
	}
}
