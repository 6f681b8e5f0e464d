package engine

import (
	"context"
	"fmt"
	"strings"
)

// DataStore mutates and reads business records through the configured entity
// allowlist.
type DataStore interface {
	Query(ctx context.Context, entity string, filters map[string]any, fields []string) ([]map[string]any, error)
	Insert(ctx context.Context, entity string, values map[string]any) error
	Update(ctx context.Context, entity string, filters, values map[string]any, maxRecords int) (int, error)
}

// Mailer delivers the send_email action payload.
type Mailer interface {
	Send(ctx context.Context, to []string, subject, body string) error
}

// ReportRunner runs a report template on behalf of a generate_report action.
type ReportRunner interface {
	Run(ctx context.Context, templateID string) (map[string]any, error)
}

type handlerFunc func(ctx context.Context, action Action, params map[string]string) (HandlerResult, error)

// handlerFor selects the type-specific handler. The delete and custom_code
// types are valid configuration but have no handler wired, so dispatching
// them fails the execution with ErrUnsupportedActionType.
func (d *Dispatcher) handlerFor(t ActionType) handlerFunc {
	switch t {
	case ActionCreate:
		return d.handleCreate
	case ActionUpdate:
		return d.handleUpdate
	case ActionSendEmail:
		return d.handleSendEmail
	case ActionGenerateReport:
		return d.handleGenerateReport
	}
	return nil
}

// handleCreate inserts one record into the target entity. Values come from
// the config defaults, overlaid with the templated value map; with no value
// map configured the extracted parameters map straight onto columns.
func (d *Dispatcher) handleCreate(ctx context.Context, action Action, params map[string]string) (HandlerResult, error) {
	if strings.TrimSpace(action.TargetEntity) == "" {
		return HandlerResult{}, fmt.Errorf("%w: action %s has no target entity", ErrConfig, action.ID)
	}
	values := map[string]any{}
	for k, v := range action.Config.Defaults {
		values[k] = v
	}
	if len(action.Config.Values) > 0 {
		for field, tmpl := range action.Config.Values {
			values[field] = substitute(tmpl, params)
		}
	} else {
		for name, value := range params {
			values[name] = value
		}
	}
	if len(values) == 0 {
		return HandlerResult{}, fmt.Errorf("%w: action %s produced no values to insert", ErrConfig, action.ID)
	}
	if err := d.Data.Insert(ctx, action.TargetEntity, values); err != nil {
		return HandlerResult{}, err
	}
	return HandlerResult{
		RecordsAffected: 1,
		Detail:          map[string]any{"entity": action.TargetEntity, "values": values},
	}, nil
}

// handleUpdate applies the templated value map to every record matching the
// templated filters, capped by max_records_affected.
func (d *Dispatcher) handleUpdate(ctx context.Context, action Action, params map[string]string) (HandlerResult, error) {
	if strings.TrimSpace(action.TargetEntity) == "" {
		return HandlerResult{}, fmt.Errorf("%w: action %s has no target entity", ErrConfig, action.ID)
	}
	if len(action.Config.Values) == 0 {
		return HandlerResult{}, fmt.Errorf("%w: action %s has no values to apply", ErrConfig, action.ID)
	}
	filters := map[string]any{}
	for field, tmpl := range action.Config.Filters {
		filters[field] = substitute(tmpl, params)
	}
	values := map[string]any{}
	for field, tmpl := range action.Config.Values {
		values[field] = substitute(tmpl, params)
	}
	affected, err := d.Data.Update(ctx, action.TargetEntity, filters, values, action.MaxRecordsAffected)
	if err != nil {
		return HandlerResult{}, err
	}
	return HandlerResult{
		RecordsAffected: affected,
		Detail:          map[string]any{"entity": action.TargetEntity, "filters": filters},
	}, nil
}

// handleSendEmail renders the configured subject and body with the extracted
// parameters and hands the message to the mailer. A "to" parameter extracted
// from the prompt is appended to the configured recipients.
func (d *Dispatcher) handleSendEmail(ctx context.Context, action Action, params map[string]string) (HandlerResult, error) {
	cfg := action.Config.Email
	if cfg == nil {
		return HandlerResult{}, fmt.Errorf("%w: action %s has no email config", ErrConfig, action.ID)
	}
	if d.Mailer == nil {
		return HandlerResult{}, fmt.Errorf("%w: no mailer configured", ErrUpstream)
	}
	to := append([]string(nil), cfg.To...)
	if extra := strings.TrimSpace(params["to"]); extra != "" {
		to = append(to, extra)
	}
	if len(to) == 0 {
		return HandlerResult{}, fmt.Errorf("%w: action %s has no recipients", ErrConfig, action.ID)
	}
	subject := substitute(cfg.Subject, params)
	body := substitute(cfg.Body, params)
	if err := d.Mailer.Send(ctx, to, subject, body); err != nil {
		return HandlerResult{}, err
	}
	return HandlerResult{
		Detail: map[string]any{"recipients": len(to), "subject": subject},
	}, nil
}

// handleGenerateReport runs the referenced report template and embeds its
// summary in the execution result.
func (d *Dispatcher) handleGenerateReport(ctx context.Context, action Action, params map[string]string) (HandlerResult, error) {
	templateID := strings.TrimSpace(action.Config.ReportTemplateID)
	if templateID == "" {
		return HandlerResult{}, fmt.Errorf("%w: action %s has no report template", ErrConfig, action.ID)
	}
	if d.Reports == nil {
		return HandlerResult{}, fmt.Errorf("%w: no report runner configured", ErrUpstream)
	}
	summary, err := d.Reports.Run(ctx, templateID)
	if err != nil {
		return HandlerResult{}, err
	}
	return HandlerResult{Detail: map[string]any{"report": summary}}, nil
}
