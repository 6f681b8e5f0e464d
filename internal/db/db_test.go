package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"
)

var errTest = errors.New("test error")

type fakeResult struct {
	affected int64
}

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.affected, nil }

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i := range dest {
		switch d := dest[i].(type) {
		case *string:
			*d = r.values[i].(string)
		case *[]byte:
			*d = r.values[i].([]byte)
		case *int:
			*d = r.values[i].(int)
		case *bool:
			*d = r.values[i].(bool)
		case *time.Time:
			*d = r.values[i].(time.Time)
		case *sql.NullTime:
			*d = r.values[i].(sql.NullTime)
		case *sql.NullString:
			*d = r.values[i].(sql.NullString)
		}
	}
	return nil
}

type fakeConn struct {
	row           rowScanner
	rows          []rowScanner
	queryCalls    int
	execErr       error
	affected      *int64
	execCalls     int
	lastQuery     string
	lastArgs      []any
	lastExecQuery string
	lastExecArgs  []any
	execQueries   []string
	execArgs      [][]any
}

func (c *fakeConn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	c.lastExecQuery = query
	c.lastExecArgs = args
	c.execQueries = append(c.execQueries, query)
	c.execArgs = append(c.execArgs, args)
	c.execCalls++
	if c.execErr != nil {
		return nil, c.execErr
	}
	affected := int64(1)
	if c.affected != nil {
		affected = *c.affected
	}
	return fakeResult{affected: affected}, nil
}

func (c *fakeConn) QueryRowContext(ctx context.Context, query string, args ...any) rowScanner {
	c.lastQuery = query
	c.lastArgs = args
	c.queryCalls++
	if len(c.rows) > 0 {
		row := c.rows[0]
		c.rows = c.rows[1:]
		return row
	}
	if c.row != nil {
		return c.row
	}
	return fakeRow{err: sql.ErrNoRows}
}

func zeroAffected() *int64 {
	n := int64(0)
	return &n
}

func TestCloseNil(t *testing.T) {
	var d *DB
	if err := d.Close(); err != nil {
		t.Fatalf("err: %v", err)
	}
}

func TestNewDBOpenError(t *testing.T) {
	old := openDB
	openDB = func(driverName, dataSourceName string) (*sql.DB, error) {
		return nil, errors.New("open error")
	}
	defer func() { openDB = old }()

	if _, err := NewDB("dsn"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestDefaultPoolConfig(t *testing.T) {
	cfg := DefaultPoolConfig()
	if cfg.MaxOpenConns != 25 || cfg.MaxIdleConns != 5 || cfg.ConnMaxLifetime != 5*time.Minute {
		t.Fatalf("pool: %#v", cfg)
	}
}

func TestClampPagination(t *testing.T) {
	cases := [][4]int{
		{0, 0, 50, 0},
		{-1, -5, 50, 0},
		{10, 3, 10, 3},
		{500, 0, 200, 0},
	}
	for _, c := range cases {
		limit, offset := clampPagination(c[0], c[1])
		if limit != c[2] || offset != c[3] {
			t.Fatalf("clamp(%d,%d) = %d,%d", c[0], c[1], limit, offset)
		}
	}
}

func TestNullString(t *testing.T) {
	if nullString("") != nil {
		t.Fatalf("empty should be nil")
	}
	if nullString("x") != "x" {
		t.Fatalf("value should pass through")
	}
}

func TestNewIDPrefix(t *testing.T) {
	id := newID("exec")
	if len(id) < 6 || id[:5] != "exec_" {
		t.Fatalf("id: %s", id)
	}
}
