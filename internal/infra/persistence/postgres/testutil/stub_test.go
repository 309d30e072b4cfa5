package testutil

import (
	"context"
	"database/sql/driver"
	"testing"
)

func TestStubConnConditionalWrites(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()

	if err := conn.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	res, err := conn.ExecContext(ctx, "INSERT INTO state(bucket,payload,version) VALUES($1,$2,1) ON CONFLICT(bucket) DO NOTHING", []driver.NamedValue{
		{Value: "wastes"},
		{Value: []byte(`[]`)},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		t.Fatalf("expected 1 row inserted, got %d", n)
	}
	res, err = conn.ExecContext(ctx, "UPDATE state SET payload=$1, version=version+1 WHERE bucket=$2 AND version=$3", []driver.NamedValue{
		{Value: []byte(`[{"id":"w1"}]`)},
		{Value: "wastes"},
		{Value: int64(7)},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if n, _ := res.RowsAffected(); n != 0 {
		t.Fatalf("expected stale update to affect no rows, got %d", n)
	}

	rows, err := conn.QueryContext(ctx, "SELECT payload, version FROM state WHERE bucket = $1", []driver.NamedValue{{Value: "wastes"}})
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	defer func() { _ = rows.Close() }()
	dest := make([]driver.Value, 2)
	if err := rows.Next(dest); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if string(dest[0].([]byte)) != `[]` || dest[1].(int64) != 1 {
		t.Fatalf("unexpected row values: %v", dest)
	}
}

func TestStubTxRollbackRestoresRows(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()
	tx, err := conn.BeginTx(ctx, driver.TxOptions{})
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	if _, err := conn.ExecContext(ctx, "INSERT INTO state(bucket,payload,version) VALUES($1,$2,1)", []driver.NamedValue{{Value: "users"}, {Value: []byte(`[]`)}}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if len(conn.Rows) != 0 {
		t.Fatalf("expected rollback to discard rows, got %v", conn.Rows)
	}
}
