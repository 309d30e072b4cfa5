// Package postgres persists collections to a Postgres state table with JSONB
// payloads through the pgx database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"ehscore/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.KeyedStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/ehscore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store keeps one JSONB row per collection key.
type Store struct {
	db *sql.DB
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back to defaultDSN)
// and ensures the state table exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureStateTable(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func ensureStateTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload JSONB NOT NULL,
		version BIGINT NOT NULL DEFAULT 0
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure state table: %w", err)
	}
	return nil
}

// Load reads the payload and version stored under key.
func (s *Store) Load(ctx context.Context, key string) (domain.Record, error) {
	rec := domain.Record{Key: key}
	err := s.db.QueryRowContext(ctx, `SELECT payload, version FROM state WHERE bucket = $1`, key).Scan(&rec.Payload, &rec.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Record{Key: key}, nil
	}
	if err != nil {
		return domain.Record{}, domain.PersistenceError{Key: key, Op: "load", Err: err}
	}
	return rec, nil
}

// Save writes all records in one transaction, each conditional on its loaded
// version. CheckOnly records are locked FOR SHARE and compared after the writes.
func (s *Store) Save(ctx context.Context, records ...domain.Record) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.PersistenceError{Op: "begin", Err: err}
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for _, rec := range records {
		if rec.CheckOnly {
			continue
		}
		payload := rec.Payload
		if payload == nil {
			payload = []byte("null")
		}
		var res sql.Result
		if rec.Version == 0 {
			res, err = tx.ExecContext(ctx, `INSERT INTO state(bucket,payload,version) VALUES($1,$2,1) ON CONFLICT(bucket) DO NOTHING`, rec.Key, payload)
		} else {
			res, err = tx.ExecContext(ctx, `UPDATE state SET payload=$1, version=version+1 WHERE bucket=$2 AND version=$3`, payload, rec.Key, rec.Version)
		}
		if err != nil {
			return domain.PersistenceError{Key: rec.Key, Op: "save", Err: err}
		}
		n, err := res.RowsAffected()
		if err != nil {
			return domain.PersistenceError{Key: rec.Key, Op: "save", Err: err}
		}
		if n != 1 {
			return domain.PersistenceError{Key: rec.Key, Op: "save", Err: domain.ErrVersionConflict}
		}
	}
	for _, rec := range records {
		if !rec.CheckOnly {
			continue
		}
		var version int64
		err := tx.QueryRowContext(ctx, `SELECT version FROM state WHERE bucket=$1 FOR SHARE`, rec.Key).Scan(&version)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return domain.PersistenceError{Key: rec.Key, Op: "check", Err: err}
		}
		if version != rec.Version {
			return domain.PersistenceError{Key: rec.Key, Op: "check", Err: domain.ErrVersionConflict}
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.PersistenceError{Op: "commit", Err: err}
	}
	committed = true
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
