package workflows

import (
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

type DispatchInput struct {
	ExecutionID string
}

// DispatchWorkflow runs one approved execution as a durable activity. The
// dispatcher records failures on the execution itself, so the activity only
// errors on infrastructure faults; state-machine violations are not retried.
func DispatchWorkflow(ctx workflow.Context, input DispatchInput) error {
	if input.ExecutionID == "" {
		return errors.New("execution_id required")
	}
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        time.Minute,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{"InvalidTransition"},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	return workflow.ExecuteActivity(ctx, "DispatchExecution", input.ExecutionID).Get(ctx, nil)
}
