package workflows

import (
	"context"
	"errors"

	"go.temporal.io/sdk/temporal"

	"erpai/internal/engine"
)

type Activities struct {
	Dispatcher *engine.Dispatcher
}

// DispatchExecution drives one approved execution to a terminal state.
// Handler failures land on the execution row and return nil; a state-machine
// violation is marked non-retryable so Temporal does not replay a dispatch
// that already advanced.
func (a *Activities) DispatchExecution(ctx context.Context, executionID string) error {
	_, err := a.Dispatcher.Dispatch(ctx, executionID)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidTransition) {
			return temporal.NewNonRetryableApplicationError(err.Error(), "InvalidTransition", err)
		}
		return err
	}
	return nil
}
