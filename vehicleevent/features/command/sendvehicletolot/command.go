package sendvehicletolot

import (
	"time"

	"github.com/rkamradt/vehicleevent/vehicleevent/shared/core"
)

const (
	commandType = "SendVehicleToLot"
)

// Command represents the intent to move a vehicle to the lot with the given name.
type Command struct {
	VehicleID  core.VehicleIDString
	Lot        string
	OccurredAt core.OccurredAtTS
}

// CommandType returns the type identifier for this command, used for observability and routing.
func (c Command) CommandType() string {
	return commandType
}

// BuildCommand creates a new Command with the provided parameters.
func BuildCommand(vehicleID string, lot string, occurredAt time.Time) Command {
	return Command{
		VehicleID:  vehicleID,
		Lot:        lot,
		OccurredAt: core.ToOccurredAt(occurredAt),
	}
}
