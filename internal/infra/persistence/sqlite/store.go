// Package sqlite persists collections to a single SQLite table using the
// pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"ehscore/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.KeyedStore = (*Store)(nil)

// DefaultPath is used when no database path is configured.
const DefaultPath = "ehscore.db"

// Store keeps one row per collection key in the state table.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the database at path and ensures the state table exists.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serialises writers inside this process; busy_timeout
	// covers other processes sharing the file.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL,
		version INTEGER NOT NULL DEFAULT 0
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Load reads the payload and version stored under key.
func (s *Store) Load(ctx context.Context, key string) (domain.Record, error) {
	rec := domain.Record{Key: key}
	err := s.db.QueryRowContext(ctx, `SELECT payload, version FROM state WHERE bucket = ?`, key).Scan(&rec.Payload, &rec.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Record{Key: key}, nil
	}
	if err != nil {
		return domain.Record{}, domain.PersistenceError{Key: key, Op: "load", Err: err}
	}
	return rec, nil
}

// Save writes all records in one transaction. Each write is conditional on the
// version observed at load time. CheckOnly records are compared after the
// writes, while the transaction holds the write lock.
func (s *Store) Save(ctx context.Context, records ...domain.Record) (retErr error) {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.PersistenceError{Op: "begin", Err: err}
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, rec := range records {
		if rec.CheckOnly {
			continue
		}
		if err := saveOne(ctx, tx, rec); err != nil {
			return err
		}
	}
	for _, rec := range records {
		if !rec.CheckOnly {
			continue
		}
		if err := checkOne(ctx, tx, rec); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.PersistenceError{Op: "commit", Err: err}
	}
	return nil
}

func saveOne(ctx context.Context, tx *sql.Tx, rec domain.Record) error {
	payload := rec.Payload
	if payload == nil {
		payload = []byte("null")
	}
	var (
		res sql.Result
		err error
	)
	if rec.Version == 0 {
		res, err = tx.ExecContext(ctx, `INSERT INTO state(bucket, payload, version) VALUES(?, ?, 1) ON CONFLICT(bucket) DO NOTHING`, rec.Key, payload)
	} else {
		res, err = tx.ExecContext(ctx, `UPDATE state SET payload = ?, version = version + 1 WHERE bucket = ? AND version = ?`, payload, rec.Key, rec.Version)
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
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

func checkOne(ctx context.Context, tx *sql.Tx, rec domain.Record) error {
	var version int64
	err := tx.QueryRowContext(ctx, `SELECT version FROM state WHERE bucket = ?`, rec.Key).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return domain.PersistenceError{Key: rec.Key, Op: "check", Err: err}
	}
	if version != rec.Version {
		return domain.PersistenceError{Key: rec.Key, Op: "check", Err: domain.ErrVersionConflict}
	}
	return nil
}
