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

type actionRow struct {
	ActionID            string          `json:"action_id"`
	Name                string          `json:"name"`
	Description         string          `json:"description"`
	TriggerPhrase       string          `json:"trigger_phrase"`
	ActionType          string          `json:"action_type"`
	TargetEntity        string          `json:"target_entity"`
	ActionConfig        json.RawMessage `json:"action_config"`
	RequiresApproval    bool            `json:"requires_approval"`
	ApproverIDs         json.RawMessage `json:"approver_ids"`
	MaxExecutionsPerDay int             `json:"max_executions_per_day"`
	MaxRecordsAffected  int             `json:"max_records_affected"`
	IsActive            bool            `json:"is_active"`
	ExecutionCount      int             `json:"execution_count"`
	LastExecuted        *time.Time      `json:"last_executed"`
}

func (r actionRow) toAction() (engine.Action, error) {
	actionType, err := engine.ParseActionType(r.ActionType)
	if err != nil {
		return engine.Action{}, fmt.Errorf("action %s: %w", r.ActionID, err)
	}
	cfg, err := engine.ParseActionConfig(r.ActionConfig)
	if err != nil {
		return engine.Action{}, fmt.Errorf("action %s: %w", r.ActionID, err)
	}
	var approvers []string
	if len(r.ApproverIDs) > 0 {
		if err := json.Unmarshal(r.ApproverIDs, &approvers); err != nil {
			return engine.Action{}, fmt.Errorf("action %s: approver_ids: %w", r.ActionID, err)
		}
	}
	a := engine.Action{
		ID:                  r.ActionID,
		Name:                r.Name,
		Description:         r.Description,
		TriggerPhrase:       r.TriggerPhrase,
		Type:                actionType,
		TargetEntity:        r.TargetEntity,
		Config:              cfg,
		RequiresApproval:    r.RequiresApproval,
		ApproverIDs:         approvers,
		MaxExecutionsPerDay: r.MaxExecutionsPerDay,
		MaxRecordsAffected:  r.MaxRecordsAffected,
		Active:              r.IsActive,
		ExecutionCount:      r.ExecutionCount,
	}
	if r.LastExecuted != nil {
		a.LastExecuted = *r.LastExecuted
	}
	return a, nil
}

const actionColumnsJSON = `
	'action_id', action_id,
	'name', name,
	'description', COALESCE(description, ''),
	'trigger_phrase', trigger_phrase,
	'action_type', action_type,
	'target_entity', COALESCE(target_entity, ''),
	'action_config', action_config_json,
	'requires_approval', requires_approval,
	'approver_ids', approver_ids_json,
	'max_executions_per_day', max_executions_per_day,
	'max_records_affected', max_records_affected,
	'is_active', is_active,
	'execution_count', execution_count,
	'last_executed', last_executed`

// ListActiveActions returns all active actions with their config parsed. A
// row with unparseable config fails the whole listing so a bad action is
// caught at load, not mid-dispatch.
func (d *DB) ListActiveActions(ctx context.Context) ([]engine.Action, error) {
	query := `SELECT COALESCE(jsonb_agg(
		jsonb_build_object(` + actionColumnsJSON + `
		) ORDER BY created_at
	), '[]'::jsonb) FROM actions WHERE is_active`
	row := d.conn.QueryRowContext(ctx, query)
	var out []byte
	if err := row.Scan(&out); err != nil {
		return nil, err
	}
	var rows []actionRow
	if err := json.Unmarshal(out, &rows); err != nil {
		return nil, err
	}
	actions := make([]engine.Action, 0, len(rows))
	for _, r := range rows {
		a, err := r.toAction()
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, nil
}

func (d *DB) GetAction(ctx context.Context, actionID string) (engine.Action, error) {
	if actionID == "" {
		return engine.Action{}, errors.New("action id required")
	}
	query := `SELECT jsonb_build_object(` + actionColumnsJSON + `
	) FROM actions WHERE action_id=$1`
	row := d.conn.QueryRowContext(ctx, query, actionID)
	var out []byte
	if err := row.Scan(&out); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return engine.Action{}, engine.ErrNotFound
		}
		return engine.Action{}, err
	}
	var r actionRow
	if err := json.Unmarshal(out, &r); err != nil {
		return engine.Action{}, err
	}
	return r.toAction()
}

type actionPayload struct {
	Name                string          `json:"name"`
	Description         string          `json:"description"`
	TriggerPhrase       string          `json:"trigger_phrase"`
	ActionType          string          `json:"action_type"`
	TargetEntity        string          `json:"target_entity"`
	ActionConfig        json.RawMessage `json:"action_config"`
	RequiresApproval    bool            `json:"requires_approval"`
	ApproverIDs         []string        `json:"approver_ids"`
	MaxExecutionsPerDay *int            `json:"max_executions_per_day"`
	MaxRecordsAffected  *int            `json:"max_records_affected"`
	IsActive            *bool           `json:"is_active"`
}

// CreateAction stores a new action definition. The config blob and action
// type are validated before the insert.
func (d *DB) CreateAction(ctx context.Context, payload []byte) (string, error) {
	var data actionPayload
	if err := json.Unmarshal(payload, &data); err != nil {
		return "", err
	}
	if data.Name == "" || data.TriggerPhrase == "" {
		return "", errors.New("name and trigger_phrase required")
	}
	if _, err := engine.ParseActionType(data.ActionType); err != nil {
		return "", err
	}
	if _, err := engine.ParseActionConfig(data.ActionConfig); err != nil {
		return "", err
	}
	configJSON := data.ActionConfig
	if len(configJSON) == 0 {
		configJSON = []byte("{}")
	}
	approversJSON, _ := json.Marshal(data.ApproverIDs)
	maxPerDay := 10
	if data.MaxExecutionsPerDay != nil {
		maxPerDay = *data.MaxExecutionsPerDay
	}
	maxRecords := 100
	if data.MaxRecordsAffected != nil {
		maxRecords = *data.MaxRecordsAffected
	}
	active := true
	if data.IsActive != nil {
		active = *data.IsActive
	}
	actionID := newID("act")
	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO actions(action_id, created_at, name, description, trigger_phrase, action_type, target_entity,
			action_config_json, requires_approval, approver_ids_json, max_executions_per_day, max_records_affected,
			is_active, execution_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 0)
	`, actionID, time.Now().UTC(), data.Name, nullString(data.Description), data.TriggerPhrase, data.ActionType,
		nullString(data.TargetEntity), []byte(configJSON), data.RequiresApproval, approversJSON, maxPerDay,
		maxRecords, active)
	if err != nil {
		return "", err
	}
	return actionID, nil
}
