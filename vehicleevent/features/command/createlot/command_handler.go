package createlot

import (
	"context"

	"github.com/rkamradt/vehicleevent/vehicleevent/shared/core"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell"
)

// Runtime defines what the CommandHandler needs from the lot aggregate runtime.
type Runtime interface {
	Execute(
		ctx context.Context,
		aggregateID string,
		decide shell.DecideFunc[core.LotState],
		retryOptions ...shell.RetryOption,
	) (shell.HandlerResult, error)
}

// CommandHandler runs Decide inside the lot runtime.
type CommandHandler struct {
	runtime      Runtime
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
func NewCommandHandler(runtime Runtime, opts ...Option) CommandHandler {
	handler := CommandHandler{
		runtime: runtime,
	}

	for _, opt := range opts {
		opt(&handler)
	}

	return handler
}

// Handle creates the lot.
func (h CommandHandler) Handle(ctx context.Context, command Command) (shell.HandlerResult, error) {
	if command.LotID == "" {
		return shell.HandlerResult{}, core.NewValidationError(core.ReasonEmptyID)
	}

	return h.runtime.Execute(ctx, command.LotID, func(state core.LotState) core.DecisionResult {
		return Decide(state, command)
	}, h.retryOptions...)
}
