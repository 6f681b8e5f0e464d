package audit

import (
	"context"
	"encoding/json"
	"time"
)

// Event is one recorded decision: who did what to which execution or
// template, and whether it was allowed.
type Event struct {
	Actor    string
	Action   string
	Decision string
	Context  map[string]any
	Note     string
}

type Writer interface {
	InsertAuditEvent(ctx context.Context, payload []byte) (string, error)
}

// Store writes audit events. A nil Writer makes every record a no-op so the
// trail can be disabled in tests.
type Store struct {
	DB Writer
}

func NewWithDB(db Writer) *Store {
	return &Store{DB: db}
}

func (s *Store) Record(ctx context.Context, ev Event) error {
	if s == nil || s.DB == nil {
		return nil
	}
	contextJSON, err := json.Marshal(ev.Context)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(map[string]any{
		"occurred_at": time.Now().UTC().Format(time.RFC3339),
		"actor":       ev.Actor,
		"action":      ev.Action,
		"decision":    ev.Decision,
		"context":     json.RawMessage(contextJSON),
		"note":        ev.Note,
	})
	if err != nil {
		return err
	}
	_, err = s.DB.InsertAuditEvent(ctx, payload)
	return err
}
