package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

type schedulePayload struct {
	TemplateID string `json:"template_id"`
	Cron       string `json:"cron"`
	Narrate    bool   `json:"narrate"`
	Enabled    *bool  `json:"enabled"`
}

// CreateReportSchedule stores a cron-driven report run.
func (d *DB) CreateReportSchedule(ctx context.Context, payload []byte) (string, error) {
	var data schedulePayload
	if err := json.Unmarshal(payload, &data); err != nil {
		return "", err
	}
	if data.TemplateID == "" || data.Cron == "" {
		return "", errors.New("template_id and cron required")
	}
	enabled := true
	if data.Enabled != nil {
		enabled = *data.Enabled
	}
	scheduleID := newID("sched")
	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO report_schedules(schedule_id, created_at, template_id, cron, narrate, enabled)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, scheduleID, time.Now().UTC(), data.TemplateID, data.Cron, data.Narrate, enabled)
	if err != nil {
		return "", err
	}
	return scheduleID, nil
}

func (d *DB) ListReportSchedules(ctx context.Context) ([]byte, error) {
	query := `SELECT COALESCE(jsonb_agg(
		jsonb_build_object(
			'schedule_id', schedule_id,
			'created_at', created_at,
			'template_id', template_id,
			'cron', cron,
			'narrate', narrate,
			'enabled', enabled,
			'last_run_at', last_run_at
		) ORDER BY created_at DESC
	), '[]'::jsonb) FROM report_schedules`
	row := d.conn.QueryRowContext(ctx, query)
	var out []byte
	if err := row.Scan(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *DB) UpdateScheduleLastRun(ctx context.Context, scheduleID string, at time.Time) error {
	if scheduleID == "" {
		return errors.New("schedule id required")
	}
	_, err := d.conn.ExecContext(ctx, `
		UPDATE report_schedules SET last_run_at=$1 WHERE schedule_id=$2
	`, at, scheduleID)
	return err
}

func (d *DB) DeleteReportSchedule(ctx context.Context, scheduleID string) error {
	if scheduleID == "" {
		return errors.New("schedule id required")
	}
	_, err := d.conn.ExecContext(ctx, `
		DELETE FROM report_schedules WHERE schedule_id=$1
	`, scheduleID)
	return err
}
