package workflows

import (
	"context"
	"errors"
	"testing"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"
)

func TestDispatchWorkflowSuccess(t *testing.T) {
	var dispatched []string

	suite := testsuite.WorkflowTestSuite{}
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(DispatchWorkflow)
	env.RegisterActivityWithOptions(func(ctx context.Context, executionID string) error {
		dispatched = append(dispatched, executionID)
		return nil
	}, activity.RegisterOptions{Name: "DispatchExecution"})

	env.ExecuteWorkflow(DispatchWorkflow, DispatchInput{ExecutionID: "exec_1"})
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow err: %v", err)
	}
	if len(dispatched) != 1 || dispatched[0] != "exec_1" {
		t.Fatalf("dispatched: %#v", dispatched)
	}
}

func TestDispatchWorkflowMissingExecutionID(t *testing.T) {
	suite := testsuite.WorkflowTestSuite{}
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(DispatchWorkflow)

	env.ExecuteWorkflow(DispatchWorkflow, DispatchInput{})
	if err := env.GetWorkflowError(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestDispatchWorkflowActivityError(t *testing.T) {
	suite := testsuite.WorkflowTestSuite{}
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(DispatchWorkflow)
	env.RegisterActivityWithOptions(func(ctx context.Context, executionID string) error {
		return errors.New("ledger unavailable")
	}, activity.RegisterOptions{Name: "DispatchExecution"})

	env.ExecuteWorkflow(DispatchWorkflow, DispatchInput{ExecutionID: "exec_1"})
	if err := env.GetWorkflowError(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestStarterRequiresClient(t *testing.T) {
	var s *TemporalStarter
	if _, err := s.StartDispatch(context.Background(), "exec_1"); err == nil {
		t.Fatalf("expected error")
	}
	s = &TemporalStarter{}
	if _, err := s.StartDispatch(context.Background(), "exec_1"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestStarterRequiresExecutionID(t *testing.T) {
	s := &TemporalStarter{Client: nil}
	if _, err := s.StartDispatch(context.Background(), ""); err == nil {
		t.Fatalf("expected error")
	}
}
