package db

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"

	"erpai/internal/config"
	"erpai/internal/engine"
)

// RecordStore reads and mutates business records through the configured
// entity allowlist. Table and column names come only from the allowlist and
// are quoted with pq.QuoteIdentifier; caller input reaches SQL exclusively
// through bind parameters.
type RecordStore struct {
	DB       *DB
	Entities map[string]config.EntityConfig
}

func (r *RecordStore) entity(name string) (config.EntityConfig, error) {
	entity, ok := r.Entities[name]
	if !ok {
		return config.EntityConfig{}, fmt.Errorf("%w: unknown entity %q", engine.ErrConfig, name)
	}
	return entity, nil
}

func (r *RecordStore) column(entity config.EntityConfig, field string) (string, error) {
	for _, allowed := range entity.Fields {
		if allowed == field {
			return pq.QuoteIdentifier(field), nil
		}
	}
	return "", fmt.Errorf("%w: field %q not allowed on table %s", engine.ErrConfig, field, entity.Table)
}

// whereClause builds an equality WHERE clause from the filters, with
// deterministic column order.
func (r *RecordStore) whereClause(entity config.EntityConfig, filters map[string]any, argOffset int) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}
	fields := make([]string, 0, len(filters))
	for field := range filters {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	var conds []string
	var args []any
	for _, field := range fields {
		col, err := r.column(entity, field)
		if err != nil {
			return "", nil, err
		}
		args = append(args, filters[field])
		conds = append(conds, fmt.Sprintf("%s=$%d", col, argOffset+len(args)))
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// Query returns records from one entity. Requested fields are intersected
// with the allowlist; no requested fields means all allowed fields.
func (r *RecordStore) Query(ctx context.Context, entityName string, filters map[string]any, fields []string) ([]map[string]any, error) {
	entity, err := r.entity(entityName)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		fields = entity.Fields
	}
	var cols []string
	for _, field := range fields {
		col, err := r.column(entity, field)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	where, args, err := r.whereClause(entity, filters, 0)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(
		`SELECT COALESCE(jsonb_agg(to_jsonb(sub)), '[]'::jsonb) FROM (SELECT %s FROM %s%s) AS sub`,
		strings.Join(cols, ", "), pq.QuoteIdentifier(entity.Table), where)
	row := r.DB.conn.QueryRowContext(ctx, query, args...)
	var out []byte
	if err := row.Scan(&out); err != nil {
		return nil, fmt.Errorf("%w: query %s: %v", engine.ErrUpstream, entityName, err)
	}
	var records []map[string]any
	if err := json.Unmarshal(out, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Insert adds one record to an entity. Every value column must be on the
// allowlist.
func (r *RecordStore) Insert(ctx context.Context, entityName string, values map[string]any) error {
	entity, err := r.entity(entityName)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return fmt.Errorf("%w: no values to insert", engine.ErrConfig)
	}
	fields := make([]string, 0, len(values))
	for field := range values {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	var cols, params []string
	var args []any
	for _, field := range fields {
		col, err := r.column(entity, field)
		if err != nil {
			return err
		}
		args = append(args, normalizeArg(values[field]))
		cols = append(cols, col)
		params = append(params, fmt.Sprintf("$%d", len(args)))
	}
	query := fmt.Sprintf("INSERT INTO %s(%s) VALUES (%s)",
		pq.QuoteIdentifier(entity.Table), strings.Join(cols, ", "), strings.Join(params, ", "))
	if _, err := r.DB.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: insert %s: %v", engine.ErrUpstream, entityName, err)
	}
	return nil
}

// Update applies values to every record matching the filters. When
// maxRecords is positive the matching count is checked first and the update
// is refused if it would exceed the cap.
func (r *RecordStore) Update(ctx context.Context, entityName string, filters, values map[string]any, maxRecords int) (int, error) {
	entity, err := r.entity(entityName)
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, fmt.Errorf("%w: no values to apply", engine.ErrConfig)
	}
	where, whereArgs, err := r.whereClause(entity, filters, 0)
	if err != nil {
		return 0, err
	}
	if maxRecords > 0 {
		countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", pq.QuoteIdentifier(entity.Table), where)
		row := r.DB.conn.QueryRowContext(ctx, countQuery, whereArgs...)
		var matching int
		if err := row.Scan(&matching); err != nil {
			return 0, fmt.Errorf("%w: count %s: %v", engine.ErrUpstream, entityName, err)
		}
		if matching > maxRecords {
			return 0, fmt.Errorf("%w: update would affect %d records, cap is %d", engine.ErrSafetyLimit, matching, maxRecords)
		}
	}
	fields := make([]string, 0, len(values))
	for field := range values {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	var sets []string
	var args []any
	for _, field := range fields {
		col, err := r.column(entity, field)
		if err != nil {
			return 0, err
		}
		args = append(args, normalizeArg(values[field]))
		sets = append(sets, fmt.Sprintf("%s=$%d", col, len(args)))
	}
	where, whereArgs, err = r.whereClause(entity, filters, len(args))
	if err != nil {
		return 0, err
	}
	args = append(args, whereArgs...)
	query := fmt.Sprintf("UPDATE %s SET %s%s", pq.QuoteIdentifier(entity.Table), strings.Join(sets, ", "), where)
	res, err := r.DB.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%w: update %s: %v", engine.ErrUpstream, entityName, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

// normalizeArg converts composite values to JSON so they can bind as jsonb.
func normalizeArg(value any) any {
	switch value.(type) {
	case map[string]any, []any:
		encoded, err := json.Marshal(value)
		if err != nil {
			return value
		}
		return encoded
	}
	return value
}
