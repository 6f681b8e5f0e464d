package workflows

import (
	"context"
	"errors"

	"go.temporal.io/sdk/client"
)

// TemporalStarter hands approved executions to the worker pool.
type TemporalStarter struct {
	Client    client.Client
	TaskQueue string
}

func (s *TemporalStarter) StartDispatch(ctx context.Context, executionID string) (string, error) {
	if s == nil || s.Client == nil {
		return "", errors.New("temporal client required")
	}
	if executionID == "" {
		return "", errors.New("execution_id required")
	}
	opts := client.StartWorkflowOptions{
		ID:        "dispatch-" + executionID,
		TaskQueue: s.TaskQueue,
	}
	run, err := s.Client.ExecuteWorkflow(ctx, opts, DispatchWorkflow, DispatchInput{ExecutionID: executionID})
	if err != nil {
		return "", err
	}
	return run.GetID(), nil
}
