package sendvehicletolot

import (
	"context"

	"github.com/rkamradt/vehicleevent/vehicleevent/shared/core"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell/lotdirectory"
)

// Runtime defines what the CommandHandler needs from the vehicle aggregate runtime.
type Runtime interface {
	Execute(
		ctx context.Context,
		aggregateID string,
		decide shell.DecideFunc[core.VehicleState],
		retryOptions ...shell.RetryOption,
	) (shell.HandlerResult, error)
}

// CommandHandler resolves the lot, then runs Decide inside the aggregate runtime.
// The lookup happens once per command; conflict retries reuse the resolved lot id.
type CommandHandler struct {
	runtime      Runtime
	lots         lotdirectory.Directory
	retryOptions []shell.RetryOption
}

// Option configures a CommandHandler.
type Option func(*CommandHandler)

// WithRetryOptions sets a custom retry configuration for the handler.
func WithRetryOptions(opts ...shell.RetryOption) Option {
	return func(h *CommandHandler) {
		h.retryOptions = opts
	}
}

// NewCommandHandler creates a new CommandHandler with optional configuration.
func NewCommandHandler(runtime Runtime, lots lotdirectory.Directory, opts ...Option) CommandHandler {
	handler := CommandHandler{
		runtime: runtime,
		lots:    lots,
	}

	for _, opt := range opts {
		opt(&handler)
	}

	return handler
}

// Handle moves the vehicle. Lookup failures are returned as they are: core.ErrNotFound for
// an unknown lot, core.ErrUpstreamUnavailable for anything else.
func (h CommandHandler) Handle(ctx context.Context, command Command) (shell.HandlerResult, error) {
	lot, err := h.lots.FindByName(ctx, command.Lot)
	if err != nil {
		return shell.NewErrorResult(command.VehicleID, shell.RetryMetrics{}), err
	}

	return h.runtime.Execute(ctx, command.VehicleID, func(state core.VehicleState) core.DecisionResult {
		return Decide(state, command, lot.ID)
	}, h.retryOptions...)
}
