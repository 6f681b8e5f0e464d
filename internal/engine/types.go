package engine

import (
	"encoding/json"
	"fmt"
	"time"
)

// ActionType is the closed set of automated operations an action may perform.
type ActionType string

const (
	ActionCreate         ActionType = "create"
	ActionUpdate         ActionType = "update"
	ActionDelete         ActionType = "delete"
	ActionSendEmail      ActionType = "send_email"
	ActionGenerateReport ActionType = "generate_report"
	ActionCustomCode     ActionType = "custom_code"
)

// ParseActionType maps a stored string onto the closed enum. Unknown values
// are a configuration error surfaced at load time, not at dispatch.
func ParseActionType(s string) (ActionType, error) {
	switch ActionType(s) {
	case ActionCreate, ActionUpdate, ActionDelete, ActionSendEmail, ActionGenerateReport, ActionCustomCode:
		return ActionType(s), nil
	}
	return "", fmt.Errorf("%w: unknown action type %q", ErrConfig, s)
}

// Status is an execution lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusExecuting Status = "executing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// transitions is the only reachable lifecycle graph. Terminal states have no
// outgoing edges.
var transitions = map[Status][]Status{
	StatusPending:   {StatusApproved, StatusCancelled},
	StatusApproved:  {StatusExecuting, StatusCancelled},
	StatusExecuting: {StatusCompleted, StatusFailed},
}

// CanTransition reports whether from -> to is a legal lifecycle edge.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status has no outgoing transitions.
func IsTerminal(s Status) bool {
	return len(transitions[s]) == 0
}

// EmailConfig is the send_email handler payload.
type EmailConfig struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

// ActionConfig is the typed form of the action_config JSON blob, parsed once
// when the action is loaded. ParameterPatterns maps parameter names to regexp
// patterns applied against the prompt; the remaining sections carry the
// per-type handler payload. Templated values may reference extracted
// parameters as {name}.
type ActionConfig struct {
	ParameterPatterns map[string]string `json:"parameter_patterns"`
	Defaults          map[string]any    `json:"defaults"`
	Filters           map[string]string `json:"filters"`
	Values            map[string]string `json:"values"`
	Email             *EmailConfig      `json:"email"`
	ReportTemplateID  string            `json:"report_template_id"`
}

// Action is a configured, triggerable automated operation.
type Action struct {
	ID                  string       `json:"action_id"`
	Name                string       `json:"name"`
	Description         string       `json:"description,omitempty"`
	TriggerPhrase       string       `json:"trigger_phrase"`
	Type                ActionType   `json:"action_type"`
	TargetEntity        string       `json:"target_entity,omitempty"`
	Config              ActionConfig `json:"action_config"`
	RequiresApproval    bool         `json:"requires_approval"`
	ApproverIDs         []string     `json:"approver_ids,omitempty"`
	MaxExecutionsPerDay int          `json:"max_executions_per_day"`
	MaxRecordsAffected  int          `json:"max_records_affected"`
	Active              bool         `json:"is_active"`
	ExecutionCount      int          `json:"execution_count"`
	LastExecuted        time.Time    `json:"last_executed,omitempty"`
}

// Execution is one concrete attempt to run an action for a user prompt.
type Execution struct {
	ID              string            `json:"execution_id"`
	ActionID        string            `json:"action_id"`
	UserID          string            `json:"user_id"`
	OriginalPrompt  string            `json:"original_prompt"`
	Params          map[string]string `json:"parsed_parameters,omitempty"`
	Status          Status            `json:"status"`
	Result          json.RawMessage   `json:"execution_result,omitempty"`
	RecordsAffected int               `json:"records_affected"`
	ApprovedBy      string            `json:"approved_by,omitempty"`
	ApprovedAt      time.Time         `json:"approved_at,omitempty"`
	ApprovalNotes   string            `json:"approval_notes,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	CompletedAt     time.Time         `json:"completed_at,omitempty"`
}

// Result is the structured outcome returned to the caller of the pipeline.
type Result struct {
	Status      string            `json:"status"` // no_match | pending_approval | completed | error
	Message     string            `json:"message,omitempty"`
	ExecutionID string            `json:"execution_id,omitempty"`
	ActionName  string            `json:"action_name,omitempty"`
	Parameters  map[string]string `json:"parameters,omitempty"`
	Result      json.RawMessage   `json:"result,omitempty"`
}

// HandlerResult is what a type-specific handler returns on success.
type HandlerResult struct {
	RecordsAffected int            `json:"records_affected"`
	Detail          map[string]any `json:"detail,omitempty"`
}
