package db

import (
	"context"
	"encoding/json"
	"time"
)

type auditPayload struct {
	OccurredAt string          `json:"occurred_at"`
	Actor      string          `json:"actor"`
	Action     string          `json:"action"`
	Decision   string          `json:"decision"`
	Context    json.RawMessage `json:"context"`
	Note       string          `json:"note"`
}

// InsertAuditEvent records one decision in the audit trail.
func (d *DB) InsertAuditEvent(ctx context.Context, payload []byte) (string, error) {
	id := newID("audit")
	occurredAt := time.Now().UTC()
	actor := "system"
	action := "unknown"
	decision := "allow"
	contextJSON := []byte("{}")
	note := ""
	if len(payload) > 0 {
		var data auditPayload
		if err := json.Unmarshal(payload, &data); err != nil {
			return "", err
		}
		if data.OccurredAt != "" {
			parsed, err := time.Parse(time.RFC3339, data.OccurredAt)
			if err != nil {
				return "", err
			}
			occurredAt = parsed
		}
		if data.Actor != "" {
			actor = data.Actor
		}
		if data.Action != "" {
			action = data.Action
		}
		if data.Decision != "" {
			decision = data.Decision
		}
		if len(data.Context) > 0 {
			contextJSON = data.Context
		}
		note = data.Note
	}
	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO audit_events(event_id, occurred_at, actor, action, decision, context_json, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, id, occurredAt, actor, action, decision, contextJSON, nullString(note))
	if err != nil {
		return "", err
	}
	return id, nil
}

// ListAuditEvents returns recent audit events, newest first.
func (d *DB) ListAuditEvents(ctx context.Context, limit, offset int) ([]byte, error) {
	limit, offset = clampPagination(limit, offset)
	query := `SELECT COALESCE(jsonb_agg(
		jsonb_build_object(
			'event_id', event_id,
			'occurred_at', occurred_at,
			'actor', actor,
			'action', action,
			'decision', decision,
			'context', context_json,
			'note', note
		) ORDER BY occurred_at DESC
	), '[]'::jsonb)
	FROM (
		SELECT event_id, occurred_at, actor, action, decision, context_json, note
		FROM audit_events
		ORDER BY occurred_at DESC
		LIMIT $1 OFFSET $2
	) AS page`
	row := d.conn.QueryRowContext(ctx, query, limit, offset)
	var out []byte
	if err := row.Scan(&out); err != nil {
		return nil, err
	}
	return out, nil
}
