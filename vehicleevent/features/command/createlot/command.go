package createlot

import (
	"time"

	"github.com/rkamradt/vehicleevent/vehicleevent/shared/core"
)

const (
	commandType = "CreateLot"
)

// Command represents the intent to create a lot.
type Command struct {
	LotID      core.LotIDString
	Name       string
	Manager    string
	OccurredAt core.OccurredAtTS
}

// CommandType returns the type identifier for this command, used for observability and routing.
func (c Command) CommandType() string {
	return commandType
}

// BuildCommand creates a new Command with the provided parameters.
func BuildCommand(lotID string, name string, manager string, occurredAt time.Time) Command {
	return Command{
		LotID:      lotID,
		Name:       name,
		Manager:    manager,
		OccurredAt: core.ToOccurredAt(occurredAt),
	}
}
