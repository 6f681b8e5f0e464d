package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"erpai/internal/engine"
)

// CreateExecution records a new execution in its initial status.
func (d *DB) CreateExecution(ctx context.Context, exec engine.Execution) (string, error) {
	if exec.ActionID == "" {
		return "", errors.New("action id required")
	}
	if exec.Status != engine.StatusPending && exec.Status != engine.StatusApproved {
		return "", fmt.Errorf("%w: executions start pending or approved, got %s", engine.ErrInvalidTransition, exec.Status)
	}
	paramsJSON, err := json.Marshal(exec.Params)
	if err != nil {
		return "", err
	}
	execID := newID("exec")
	_, err = d.conn.ExecContext(ctx, `
		INSERT INTO executions(execution_id, action_id, user_id, original_prompt, parsed_parameters_json, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, execID, exec.ActionID, exec.UserID, exec.OriginalPrompt, paramsJSON, string(exec.Status), time.Now().UTC())
	if err != nil {
		return "", err
	}
	return execID, nil
}

func (d *DB) GetExecution(ctx context.Context, execID string) (engine.Execution, error) {
	if execID == "" {
		return engine.Execution{}, errors.New("execution id required")
	}
	var exec engine.Execution
	var paramsJSON, resultJSON []byte
	var status string
	var approvedBy, approvalNotes sql.NullString
	var approvedAt, completedAt sql.NullTime
	row := d.conn.QueryRowContext(ctx, `
		SELECT action_id, user_id, original_prompt, parsed_parameters_json, status, execution_result_json,
			records_affected, approved_by, approved_at, approval_notes, created_at, completed_at
		FROM executions WHERE execution_id=$1
	`, execID)
	err := row.Scan(&exec.ActionID, &exec.UserID, &exec.OriginalPrompt, &paramsJSON, &status, &resultJSON,
		&exec.RecordsAffected, &approvedBy, &approvedAt, &approvalNotes, &exec.CreatedAt, &completedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return engine.Execution{}, engine.ErrNotFound
		}
		return engine.Execution{}, err
	}
	exec.ID = execID
	exec.Status = engine.Status(status)
	if len(paramsJSON) > 0 {
		if err := json.Unmarshal(paramsJSON, &exec.Params); err != nil {
			return engine.Execution{}, err
		}
	}
	if len(resultJSON) > 0 {
		exec.Result = json.RawMessage(resultJSON)
	}
	if approvedBy.Valid {
		exec.ApprovedBy = approvedBy.String
	}
	if approvalNotes.Valid {
		exec.ApprovalNotes = approvalNotes.String
	}
	if approvedAt.Valid {
		exec.ApprovedAt = approvedAt.Time
	}
	if completedAt.Valid {
		exec.CompletedAt = completedAt.Time
	}
	return exec, nil
}

func (d *DB) ListExecutions(ctx context.Context, limit, offset int) ([]byte, error) {
	limit, offset = clampPagination(limit, offset)
	query := `SELECT COALESCE(jsonb_agg(
		jsonb_build_object(
			'execution_id', execution_id,
			'action_id', action_id,
			'user_id', user_id,
			'status', status,
			'records_affected', records_affected,
			'created_at', created_at,
			'completed_at', completed_at
		) ORDER BY created_at DESC
	), '[]'::jsonb)
	FROM (
		SELECT execution_id, action_id, user_id, status, records_affected, created_at, completed_at
		FROM executions
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	) AS page`
	row := d.conn.QueryRowContext(ctx, query, limit, offset)
	var out []byte
	if err := row.Scan(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// TransitionExecution moves an execution between lifecycle states with a
// compare-and-set on the current status. A no-op update means the execution
// is missing or not in the expected state.
func (d *DB) TransitionExecution(ctx context.Context, execID string, from, to engine.Status) error {
	if execID == "" {
		return errors.New("execution id required")
	}
	if !engine.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", engine.ErrInvalidTransition, from, to)
	}
	res, err := d.conn.ExecContext(ctx, `
		UPDATE executions SET status=$1 WHERE execution_id=$2 AND status=$3
	`, string(to), execID, string(from))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: execution %s not in %s", engine.ErrInvalidTransition, execID, from)
	}
	return nil
}

// ApproveExecution marks a pending execution approved and records the
// approver.
func (d *DB) ApproveExecution(ctx context.Context, execID, approver, notes string) error {
	if execID == "" {
		return errors.New("execution id required")
	}
	res, err := d.conn.ExecContext(ctx, `
		UPDATE executions SET status=$1, approved_by=$2, approved_at=$3, approval_notes=$4
		WHERE execution_id=$5 AND status=$6
	`, string(engine.StatusApproved), nullString(approver), time.Now().UTC(), nullString(notes),
		execID, string(engine.StatusPending))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: execution %s is not pending", engine.ErrInvalidTransition, execID)
	}
	return nil
}

// CancelExecution cancels an execution that has not started running.
func (d *DB) CancelExecution(ctx context.Context, execID string) error {
	if execID == "" {
		return errors.New("execution id required")
	}
	res, err := d.conn.ExecContext(ctx, `
		UPDATE executions SET status=$1, completed_at=$2
		WHERE execution_id=$3 AND status IN ($4, $5)
	`, string(engine.StatusCancelled), time.Now().UTC(), execID,
		string(engine.StatusPending), string(engine.StatusApproved))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: execution %s cannot be cancelled", engine.ErrInvalidTransition, execID)
	}
	return nil
}

// FailExecution moves a running execution to failed and stores the reason.
func (d *DB) FailExecution(ctx context.Context, execID, reason string) error {
	if execID == "" {
		return errors.New("execution id required")
	}
	resultJSON, _ := json.Marshal(map[string]string{"error": reason})
	res, err := d.conn.ExecContext(ctx, `
		UPDATE executions SET status=$1, execution_result_json=$2, completed_at=$3
		WHERE execution_id=$4 AND status=$5
	`, string(engine.StatusFailed), resultJSON, time.Now().UTC(), execID, string(engine.StatusExecuting))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: execution %s is not executing", engine.ErrInvalidTransition, execID)
	}
	return nil
}

// CountCompletedSince counts completions for one action and user from the
// given instant onward.
func (d *DB) CountCompletedSince(ctx context.Context, actionID, userID string, since time.Time) (int, error) {
	row := d.conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM executions
		WHERE action_id=$1 AND user_id=$2 AND status=$3 AND created_at >= $4
	`, actionID, userID, string(engine.StatusCompleted), since.UTC())
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// CompleteExecutionUnderQuota marks a running execution completed only while
// the user's daily completion count for the action is still under the limit,
// and bumps the action's counters in the same transaction. Returns false when
// the quota re-check loses, leaving the execution untouched for the caller to
// fail.
func (d *DB) CompleteExecutionUnderQuota(ctx context.Context, execID, actionID, userID string, limit int, since time.Time, result []byte, recordsAffected int) (bool, error) {
	if execID == "" {
		return false, errors.New("execution id required")
	}
	if len(result) == 0 {
		result = []byte("{}")
	}
	now := time.Now().UTC()
	completed := false
	err := d.withTx(ctx, func(conn dbConn) error {
		res, err := conn.ExecContext(ctx, `
			UPDATE executions SET status=$1, execution_result_json=$2, records_affected=$3, completed_at=$4
			WHERE execution_id=$5 AND status=$6
			AND (
				SELECT COUNT(*) FROM executions
				WHERE action_id=$7 AND user_id=$8 AND status=$1 AND created_at >= $9
			) < $10
		`, string(engine.StatusCompleted), result, recordsAffected, now, execID,
			string(engine.StatusExecuting), actionID, userID, since.UTC(), limit)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return nil
		}
		if _, err := conn.ExecContext(ctx, `
			UPDATE actions SET execution_count = execution_count + 1, last_executed=$1 WHERE action_id=$2
		`, now, actionID); err != nil {
			return err
		}
		completed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return completed, nil
}
