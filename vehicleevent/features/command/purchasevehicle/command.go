package purchasevehicle

import (
	"time"

	"github.com/rkamradt/vehicleevent/vehicleevent/shared/core"
)

const (
	commandType = "PurchaseVehicle"
)

// Command represents the intent to register a purchased vehicle.
type Command struct {
	VehicleID  core.VehicleIDString
	Price      core.Amount
	Type       string
	OccurredAt core.OccurredAtTS
}

// CommandType returns the type identifier for this command, used for observability and routing.
func (c Command) CommandType() string {
	return commandType
}

// BuildCommand creates a new Command with the provided parameters.
func BuildCommand(vehicleID string, price core.Amount, vehicleType string, occurredAt time.Time) Command {
	return Command{
		VehicleID:  vehicleID,
		Price:      price,
		Type:       vehicleType,
		OccurredAt: core.ToOccurredAt(occurredAt),
	}
}
