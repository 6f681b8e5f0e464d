package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"erpai/internal/engine"
	"erpai/internal/report"
)

// CreateTemplate stores a report template definition. The payload is schema
// validated before the insert.
func (d *DB) CreateTemplate(ctx context.Context, payload []byte) (string, error) {
	if err := report.ValidateTemplatePayload(payload); err != nil {
		return "", err
	}
	var tmpl report.Template
	if err := json.Unmarshal(payload, &tmpl); err != nil {
		return "", err
	}
	sourcesJSON, _ := json.Marshal(tmpl.DataSources)
	filtersJSON, _ := json.Marshal(tmpl.Filters)
	groupingJSON, _ := json.Marshal(tmpl.Grouping)
	calcsJSON, _ := json.Marshal(tmpl.Calculations)
	active := true
	var flags map[string]any
	if err := json.Unmarshal(payload, &flags); err == nil {
		if raw, ok := flags["is_active"].(bool); ok {
			active = raw
		}
	}
	templateID := newID("tmpl")
	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO report_templates(template_id, created_at, name, description, category, data_sources_json,
			filters_json, grouping_json, calculations_json, narration_prompt, output_format, is_active, usage_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 0)
	`, templateID, time.Now().UTC(), tmpl.Name, nullString(tmpl.Description), nullString(tmpl.Category),
		sourcesJSON, filtersJSON, groupingJSON, calcsJSON, nullString(tmpl.NarrationPrompt),
		nullString(tmpl.OutputFormat), active)
	if err != nil {
		return "", err
	}
	return templateID, nil
}

func (d *DB) GetTemplate(ctx context.Context, templateID string) (report.Template, error) {
	if templateID == "" {
		return report.Template{}, errors.New("template id required")
	}
	var tmpl report.Template
	var description, category, narration, format sql.NullString
	var sourcesJSON, filtersJSON, groupingJSON, calcsJSON []byte
	row := d.conn.QueryRowContext(ctx, `
		SELECT name, description, category, data_sources_json, filters_json, grouping_json, calculations_json,
			narration_prompt, output_format, is_active, usage_count, created_at
		FROM report_templates WHERE template_id=$1
	`, templateID)
	err := row.Scan(&tmpl.Name, &description, &category, &sourcesJSON, &filtersJSON, &groupingJSON, &calcsJSON,
		&narration, &format, &tmpl.Active, &tmpl.UsageCount, &tmpl.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return report.Template{}, engine.ErrNotFound
		}
		return report.Template{}, err
	}
	tmpl.ID = templateID
	if description.Valid {
		tmpl.Description = description.String
	}
	if category.Valid {
		tmpl.Category = category.String
	}
	if narration.Valid {
		tmpl.NarrationPrompt = narration.String
	}
	if format.Valid {
		tmpl.OutputFormat = format.String
	}
	for blob, dest := range map[*[]byte]any{
		&sourcesJSON:  &tmpl.DataSources,
		&filtersJSON:  &tmpl.Filters,
		&groupingJSON: &tmpl.Grouping,
		&calcsJSON:    &tmpl.Calculations,
	} {
		if len(*blob) == 0 {
			continue
		}
		if err := json.Unmarshal(*blob, dest); err != nil {
			return report.Template{}, err
		}
	}
	return tmpl, nil
}

func (d *DB) ListTemplates(ctx context.Context, limit, offset int) ([]byte, error) {
	limit, offset = clampPagination(limit, offset)
	query := `SELECT COALESCE(jsonb_agg(
		jsonb_build_object(
			'template_id', template_id,
			'name', name,
			'description', description,
			'category', category,
			'is_active', is_active,
			'usage_count', usage_count,
			'created_at', created_at
		) ORDER BY created_at DESC
	), '[]'::jsonb)
	FROM (
		SELECT template_id, name, description, category, is_active, usage_count, created_at
		FROM report_templates
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

func (d *DB) BumpTemplateUsage(ctx context.Context, templateID string) error {
	if templateID == "" {
		return errors.New("template id required")
	}
	_, err := d.conn.ExecContext(ctx, `
		UPDATE report_templates SET usage_count = usage_count + 1 WHERE template_id=$1
	`, templateID)
	return err
}
