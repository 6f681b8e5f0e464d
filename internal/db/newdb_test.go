package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"io"
	"sync"
	"testing"
)

type fakeDriver struct{}

type fakeDriverConn struct{}

func (fakeDriverConn) Prepare(query string) (driver.Stmt, error) { return nil, nil }
func (fakeDriverConn) Close() error                              { return nil }
func (fakeDriverConn) Begin() (driver.Tx, error)                 { return nil, nil }
func (fakeDriverConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	return fakeDriverResult{}, nil
}
func (fakeDriverConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	return fakeDriverRows{}, nil
}

func (fakeDriver) Open(name string) (driver.Conn, error) { return fakeDriverConn{}, nil }

type fakeDriverResult struct{}

func (fakeDriverResult) LastInsertId() (int64, error) { return 0, nil }
func (fakeDriverResult) RowsAffected() (int64, error) { return 0, nil }

type fakeDriverRows struct{}

func (fakeDriverRows) Columns() []string              { return []string{} }
func (fakeDriverRows) Close() error                   { return nil }
func (fakeDriverRows) Next(dest []driver.Value) error { return io.EOF }

var registerOnce sync.Once

const testDriverName = "erpai_test_postgres"

func registerFakeDriver() {
	registerOnce.Do(func() {
		defer func() { _ = recover() }()
		sql.Register(testDriverName, fakeDriver{})
	})
}

func TestNewDBSuccess(t *testing.T) {
	registerFakeDriver()
	oldOpen := openDB
	openDB = func(driverName, dataSourceName string) (*sql.DB, error) {
		return sql.Open(testDriverName, dataSourceName)
	}
	defer func() { openDB = oldOpen }()
	d, err := NewDB("dsn")
	if err != nil {
		t.Skipf("driver error: %v", err)
	}
	if d == nil || d.Conn() == nil {
		t.Fatalf("db: %#v", d)
	}
	_ = d.Close()
}

func TestNewDBWithPoolCustomConfig(t *testing.T) {
	registerFakeDriver()
	oldOpen := openDB
	openDB = func(driverName, dataSourceName string) (*sql.DB, error) {
		return sql.Open(testDriverName, dataSourceName)
	}
	defer func() { openDB = oldOpen }()

	d, err := NewDBWithPool("dsn", PoolConfig{MaxOpenConns: 50, MaxIdleConns: 10})
	if err != nil {
		t.Skipf("driver error: %v", err)
	}
	if d == nil || d.Conn() == nil {
		t.Fatalf("db: %#v", d)
	}
	_ = d.Close()
}
