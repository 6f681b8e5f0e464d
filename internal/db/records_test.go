package db

import (
	"context"
	"errors"
	"strings"
	"testing"

	"erpai/internal/config"
	"erpai/internal/engine"
)

func testRecordStore(conn *fakeConn) *RecordStore {
	return &RecordStore{
		DB: &DB{conn: conn},
		Entities: map[string]config.EntityConfig{
			"order": {Table: "sale_orders", Fields: []string{"amount", "status", "customer"}},
		},
	}
}

func TestRecordQueryAllowedFields(t *testing.T) {
	conn := &fakeConn{row: fakeRow{values: []any{[]byte(`[{"amount": 100, "status": "open"}]`)}}}
	rs := testRecordStore(conn)
	records, err := rs.Query(context.Background(), "order", map[string]any{"status": "open"}, []string{"amount", "status"})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(records) != 1 || records[0]["status"] != "open" {
		t.Fatalf("records: %#v", records)
	}
	if !strings.Contains(conn.lastQuery, `FROM "sale_orders"`) {
		t.Fatalf("query: %s", conn.lastQuery)
	}
	if !strings.Contains(conn.lastQuery, `"status"=$1`) {
		t.Fatalf("query: %s", conn.lastQuery)
	}
	if conn.lastArgs[0] != "open" {
		t.Fatalf("args: %#v", conn.lastArgs)
	}
}

func TestRecordQueryDefaultsToAllFields(t *testing.T) {
	conn := &fakeConn{row: fakeRow{values: []any{[]byte(`[]`)}}}
	rs := testRecordStore(conn)
	if _, err := rs.Query(context.Background(), "order", nil, nil); err != nil {
		t.Fatalf("err: %v", err)
	}
	for _, col := range []string{`"amount"`, `"status"`, `"customer"`} {
		if !strings.Contains(conn.lastQuery, col) {
			t.Fatalf("query missing %s: %s", col, conn.lastQuery)
		}
	}
}

func TestRecordQueryUnknownEntity(t *testing.T) {
	rs := testRecordStore(&fakeConn{})
	if _, err := rs.Query(context.Background(), "payroll", nil, nil); !errors.Is(err, engine.ErrConfig) {
		t.Fatalf("err: %v", err)
	}
}

func TestRecordQueryDisallowedField(t *testing.T) {
	rs := testRecordStore(&fakeConn{})
	if _, err := rs.Query(context.Background(), "order", nil, []string{"password"}); !errors.Is(err, engine.ErrConfig) {
		t.Fatalf("err: %v", err)
	}
}

func TestRecordQueryDisallowedFilter(t *testing.T) {
	rs := testRecordStore(&fakeConn{})
	_, err := rs.Query(context.Background(), "order", map[string]any{"secret": 1}, []string{"amount"})
	if !errors.Is(err, engine.ErrConfig) {
		t.Fatalf("err: %v", err)
	}
}

func TestRecordInsertOK(t *testing.T) {
	conn := &fakeConn{}
	rs := testRecordStore(conn)
	err := rs.Insert(context.Background(), "order", map[string]any{"amount": 100, "customer": "Acme"})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if !strings.Contains(conn.lastExecQuery, `INSERT INTO "sale_orders"`) {
		t.Fatalf("query: %s", conn.lastExecQuery)
	}
	// sorted field order: amount, customer
	if conn.lastExecArgs[0] != 100 || conn.lastExecArgs[1] != "Acme" {
		t.Fatalf("args: %#v", conn.lastExecArgs)
	}
}

func TestRecordInsertNoValues(t *testing.T) {
	rs := testRecordStore(&fakeConn{})
	if err := rs.Insert(context.Background(), "order", nil); !errors.Is(err, engine.ErrConfig) {
		t.Fatalf("err: %v", err)
	}
}

func TestRecordUpdateUnderCap(t *testing.T) {
	conn := &fakeConn{row: fakeRow{values: []any{3}}}
	n := int64(3)
	conn.affected = &n
	rs := testRecordStore(conn)
	affected, err := rs.Update(context.Background(), "order",
		map[string]any{"status": "open"}, map[string]any{"status": "closed"}, 10)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if affected != 3 {
		t.Fatalf("affected: %d", affected)
	}
	if !strings.Contains(conn.lastExecQuery, `UPDATE "sale_orders" SET "status"=$1`) {
		t.Fatalf("query: %s", conn.lastExecQuery)
	}
}

func TestRecordUpdateOverCap(t *testing.T) {
	conn := &fakeConn{row: fakeRow{values: []any{500}}}
	rs := testRecordStore(conn)
	_, err := rs.Update(context.Background(), "order",
		map[string]any{"status": "open"}, map[string]any{"status": "closed"}, 100)
	if !errors.Is(err, engine.ErrSafetyLimit) {
		t.Fatalf("err: %v", err)
	}
	if conn.execCalls != 0 {
		t.Fatalf("update ran despite cap: %d", conn.execCalls)
	}
}

func TestRecordUpdateNoCapSkipsCount(t *testing.T) {
	conn := &fakeConn{}
	rs := testRecordStore(conn)
	if _, err := rs.Update(context.Background(), "order", nil, map[string]any{"status": "x"}, 0); err != nil {
		t.Fatalf("err: %v", err)
	}
	if conn.queryCalls != 0 {
		t.Fatalf("count query ran: %d", conn.queryCalls)
	}
}

func TestNormalizeArgComposite(t *testing.T) {
	out := normalizeArg(map[string]any{"a": 1})
	if _, ok := out.([]byte); !ok {
		t.Fatalf("out: %T", out)
	}
	if normalizeArg("plain") != "plain" {
		t.Fatalf("scalar should pass through")
	}
}
