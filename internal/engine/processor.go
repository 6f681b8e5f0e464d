package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Processor turns a raw user prompt into an execution: match a trigger,
// extract parameters, record the execution, then either dispatch immediately
// or park it for approval.
type Processor struct {
	Config     ConfigStore
	Ledger     Ledger
	Dispatcher *Dispatcher
	Logger     *slog.Logger
	Now        func() time.Time
}

func (p *Processor) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// Process handles one prompt for one user. Prompts that match nothing return
// a no_match result rather than an error; configuration faults in the matched
// action surface as structured errors without creating an execution.
func (p *Processor) Process(ctx context.Context, prompt, userID string) (Result, error) {
	actions, err := p.Config.ListActiveActions(ctx)
	if err != nil {
		return Result{}, err
	}
	matched := MatchActions(prompt, actions)
	if len(matched) == 0 {
		return Result{
			Status:  "no_match",
			Message: "no action matched the request",
		}, nil
	}
	action := matched[0]

	params, err := ExtractParams(prompt, action.Config)
	if err != nil {
		if errors.Is(err, ErrConfig) {
			p.logger().Error("action misconfigured", "action_id", action.ID, "error", err)
			return Result{
				Status:     "error",
				Message:    err.Error(),
				ActionName: action.Name,
			}, nil
		}
		return Result{}, err
	}

	status := StatusApproved
	if action.RequiresApproval {
		status = StatusPending
	}
	id, err := p.Ledger.CreateExecution(ctx, Execution{
		ActionID:       action.ID,
		UserID:         userID,
		OriginalPrompt: prompt,
		Params:         params,
		Status:         status,
	})
	if err != nil {
		return Result{}, err
	}
	p.logger().Info("execution created",
		"execution_id", id,
		"action_id", action.ID,
		"user_id", userID,
		"status", string(status))

	if action.RequiresApproval {
		return Result{
			Status:      "pending_approval",
			Message:     fmt.Sprintf("action %q requires approval", action.Name),
			ExecutionID: id,
			ActionName:  action.Name,
			Parameters:  params,
		}, nil
	}
	return p.Dispatcher.Dispatch(ctx, id)
}
