package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"erpai/internal/metrics"
)

// ConfigStore loads action rows with their config already parsed.
type ConfigStore interface {
	ListActiveActions(ctx context.Context) ([]Action, error)
	GetAction(ctx context.Context, id string) (Action, error)
}

// Ledger is the execution store slice the dispatcher drives. Transitions are
// compare-and-set on the current status so concurrent dispatches of the same
// execution cannot both advance it. CompleteExecutionUnderQuota marks the
// execution completed and bumps the action counters only if the per-user
// daily completion count is still under the limit, all in one transaction.
type Ledger interface {
	CreateExecution(ctx context.Context, exec Execution) (string, error)
	GetExecution(ctx context.Context, id string) (Execution, error)
	TransitionExecution(ctx context.Context, id string, from, to Status) error
	FailExecution(ctx context.Context, id, reason string) error
	CountCompletedSince(ctx context.Context, actionID, userID string, since time.Time) (int, error)
	CompleteExecutionUnderQuota(ctx context.Context, id, actionID, userID string, limit int, since time.Time, result []byte, recordsAffected int) (bool, error)
}

// Dispatcher runs approved executions through the lifecycle state machine:
// approved -> executing -> completed or failed. Handler and safety failures
// are recorded on the execution and returned as structured error results;
// only ledger faults propagate as Go errors.
type Dispatcher struct {
	Config  ConfigStore
	Ledger  Ledger
	Data    DataStore
	Mailer  Mailer
	Reports ReportRunner
	Gate    *Gate
	Logger  *slog.Logger
	Now     func() time.Time
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// Dispatch runs one approved execution to a terminal state.
func (d *Dispatcher) Dispatch(ctx context.Context, executionID string) (Result, error) {
	exec, err := d.Ledger.GetExecution(ctx, executionID)
	if err != nil {
		return Result{}, err
	}
	if exec.Status != StatusApproved {
		return Result{}, fmt.Errorf("%w: execution %s is %s, want %s", ErrInvalidTransition, executionID, exec.Status, StatusApproved)
	}
	action, err := d.Config.GetAction(ctx, exec.ActionID)
	if err != nil {
		return Result{}, err
	}
	if err := d.Ledger.TransitionExecution(ctx, executionID, StatusApproved, StatusExecuting); err != nil {
		return Result{}, err
	}
	return d.run(ctx, action, exec)
}

// run executes the action body for an execution already in the executing
// state. The per-(action, user) lock covers the quota pre-check and the
// conditional completion, so two in-flight executions cannot both take the
// last quota slot.
func (d *Dispatcher) run(ctx context.Context, action Action, exec Execution) (Result, error) {
	start := d.now()
	unlock := d.Gate.Lock(action.ID, exec.UserID)
	defer unlock()

	ok, err := d.Gate.Check(ctx, action, exec.UserID)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return d.fail(ctx, action, exec, fmt.Sprintf("daily execution limit reached (%d)", action.MaxExecutionsPerDay), true)
	}

	handler := d.handlerFor(action.Type)
	if handler == nil {
		return d.fail(ctx, action, exec, fmt.Sprintf("action type %s is not executable", action.Type), false)
	}

	hres, err := handler(ctx, action, exec.Params)
	if err != nil {
		if errors.Is(err, ErrSafetyLimit) {
			return d.fail(ctx, action, exec, err.Error(), true)
		}
		return d.fail(ctx, action, exec, err.Error(), false)
	}

	payload, err := json.Marshal(hres)
	if err != nil {
		return Result{}, err
	}
	completed, err := d.Ledger.CompleteExecutionUnderQuota(ctx, exec.ID, action.ID, exec.UserID,
		action.MaxExecutionsPerDay, startOfDay(d.now()), payload, hres.RecordsAffected)
	if err != nil {
		return Result{}, err
	}
	if !completed {
		return d.fail(ctx, action, exec, fmt.Sprintf("daily execution limit reached (%d)", action.MaxExecutionsPerDay), true)
	}

	metrics.ActionExecutionsTotal.WithLabelValues(string(action.Type), "completed").Inc()
	metrics.ActionExecutionDuration.WithLabelValues(string(action.Type)).Observe(d.now().Sub(start).Seconds())
	d.logger().Info("execution completed",
		"execution_id", exec.ID,
		"action_id", action.ID,
		"action_type", string(action.Type),
		"records_affected", hres.RecordsAffected)
	return Result{
		Status:      "completed",
		ExecutionID: exec.ID,
		ActionName:  action.Name,
		Parameters:  exec.Params,
		Result:      payload,
	}, nil
}

// fail records a terminal failure and converts it into a structured result.
func (d *Dispatcher) fail(ctx context.Context, action Action, exec Execution, reason string, safety bool) (Result, error) {
	if err := d.Ledger.FailExecution(ctx, exec.ID, reason); err != nil {
		return Result{}, err
	}
	if safety {
		metrics.SafetyGateRejectionsTotal.Inc()
	}
	metrics.ActionExecutionsTotal.WithLabelValues(string(action.Type), "failed").Inc()
	d.logger().Warn("execution failed",
		"execution_id", exec.ID,
		"action_id", action.ID,
		"reason", reason)
	return Result{
		Status:      "error",
		Message:     reason,
		ExecutionID: exec.ID,
		ActionName:  action.Name,
	}, nil
}
