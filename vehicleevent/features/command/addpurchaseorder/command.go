package addpurchaseorder

import (
	"time"

	"github.com/rkamradt/vehicleevent/vehicleevent/shared/core"
)

const (
	commandType = "AddPurchaseOrder"
)

// Command represents the intent to record a purchase order for a vehicle type.
type Command struct {
	PurchaseOrderID core.PurchaseOrderIDString
	Price           core.Amount
	Type            string
	OccurredAt      core.OccurredAtTS
}

// CommandType returns the type identifier for this command, used for observability and routing.
func (c Command) CommandType() string {
	return commandType
}

// BuildCommand creates a new Command with the provided parameters.
func BuildCommand(purchaseOrderID string, price core.Amount, vehicleType string, occurredAt time.Time) Command {
	return Command{
		PurchaseOrderID: purchaseOrderID,
		Price:           price,
		Type:            vehicleType,
		OccurredAt:      core.ToOccurredAt(occurredAt),
	}
}
