// Package testutil provides a stub database emulating the postgres state table.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
)

// StubRow is one stored state row.
type StubRow struct {
	Payload []byte
	Version int64
}

// StubConn records statements and keeps state rows in memory. Transactions
// snapshot the rows on begin and restore them on rollback.
type StubConn struct {
	Execs      []string
	Rows       map[string]StubRow
	FailExec   bool
	FailPing   bool
	FailBegin  bool
	FailQuery  bool
	FailCommit bool

	snapshot map[string]StubRow
}

var stubSeq atomic.Uint64

// NewStubDB registers a sql.DB backed by an in-memory stub connection.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{Rows: make(map[string]StubRow)}
	name := fmt.Sprintf("stubpg%d", stubSeq.Add(1))
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	db.SetMaxOpenConns(1)
	return db, conn
}

type stubDriver struct {
	conn *StubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) {
	return d.conn, nil
}

// Prepare implements driver.Conn.
func (c *StubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger.
func (c *StubConn) Ping(_ context.Context) error {
	if c.FailPing {
		return fmt.Errorf("ping fail")
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx.
func (c *StubConn) BeginTx(_ context.Context, _ driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, fmt.Errorf("begin fail")
	}
	c.snapshot = make(map[string]StubRow, len(c.Rows))
	for k, v := range c.Rows {
		c.snapshot[k] = v
	}
	return &stubTx{conn: c}, nil
}

// ExecContext implements driver.ExecerContext for the statements issued by the store.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.Execs = append(c.Execs, query)
	if c.FailExec {
		return nil, fmt.Errorf("exec fail")
	}
	upper := strings.ToUpper(strings.TrimSpace(query))
	switch {
	case strings.HasPrefix(upper, "CREATE TABLE"):
		return driver.RowsAffected(0), nil
	case strings.HasPrefix(upper, "INSERT INTO STATE"):
		if len(args) != 2 {
			return nil, fmt.Errorf("insert expects 2 args, got %d", len(args))
		}
		bucket, _ := args[0].Value.(string)
		if _, exists := c.Rows[bucket]; exists {
			return driver.RowsAffected(0), nil
		}
		c.Rows[bucket] = StubRow{Payload: bytesOf(args[1].Value), Version: 1}
		return driver.RowsAffected(1), nil
	case strings.HasPrefix(upper, "UPDATE STATE"):
		if len(args) != 3 {
			return nil, fmt.Errorf("update expects 3 args, got %d", len(args))
		}
		bucket, _ := args[1].Value.(string)
		version, _ := args[2].Value.(int64)
		row, ok := c.Rows[bucket]
		if !ok || row.Version != version {
			return driver.RowsAffected(0), nil
		}
		c.Rows[bucket] = StubRow{Payload: bytesOf(args[0].Value), Version: version + 1}
		return driver.RowsAffected(1), nil
	}
	return nil, fmt.Errorf("unsupported statement: %s", query)
}

// QueryContext implements driver.QueryerContext for single-bucket selects.
func (c *StubConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if c.FailQuery {
		return nil, fmt.Errorf("query fail")
	}
	upper := strings.ToUpper(strings.TrimSpace(query))
	versionOnly := strings.HasPrefix(upper, "SELECT VERSION FROM STATE")
	if !versionOnly && !strings.HasPrefix(upper, "SELECT PAYLOAD, VERSION FROM STATE") {
		return nil, fmt.Errorf("unsupported query: %s", query)
	}
	if len(args) != 1 {
		return nil, fmt.Errorf("select expects 1 arg, got %d", len(args))
	}
	bucket, _ := args[0].Value.(string)
	row, ok := c.Rows[bucket]
	if versionOnly {
		rows := &stubRows{cols: []string{"version"}}
		if ok {
			rows.rows = append(rows.rows, []driver.Value{row.Version})
		}
		return rows, nil
	}
	rows := &stubRows{cols: []string{"payload", "version"}}
	if ok {
		rows.rows = append(rows.rows, []driver.Value{row.Payload, row.Version})
	}
	return rows, nil
}

func bytesOf(v driver.Value) []byte {
	switch t := v.(type) {
	case []byte:
		out := make([]byte, len(t))
		copy(out, t)
		return out
	case string:
		return []byte(t)
	default:
		return nil
	}
}

type stubTx struct {
	conn *StubConn
}

func (t *stubTx) Commit() error {
	if t.conn.FailCommit {
		t.conn.Rows = t.conn.snapshot
		return fmt.Errorf("commit fail")
	}
	t.conn.snapshot = nil
	return nil
}

func (t *stubTx) Rollback() error {
	if t.conn.snapshot != nil {
		t.conn.Rows = t.conn.snapshot
		t.conn.snapshot = nil
	}
	return nil
}

type stubRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}
