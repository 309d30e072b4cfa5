// Package memory provides a process-local KeyedStore used by tests and
// ephemeral deployments.
package memory

import (
	"context"
	"sync"

	"ehscore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.KeyedStore = (*Store)(nil)

type entry struct {
	payload []byte
	version int64
}

// Store keeps collection payloads in a map guarded by a mutex.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{entries: make(map[string]entry)}
}

// Load returns a copy of the stored payload for key.
func (s *Store) Load(ctx context.Context, key string) (domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return domain.Record{}, domain.PersistenceError{Key: key, Op: "load", Err: err}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return domain.Record{Key: key}, nil
	}
	return domain.Record{Key: key, Payload: clone(e.payload), Version: e.version}, nil
}

// Save replaces every record in one step after checking all versions.
func (s *Store) Save(ctx context.Context, records ...domain.Record) error {
	if err := ctx.Err(); err != nil {
		return domain.PersistenceError{Op: "save", Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		if current := s.entries[rec.Key].version; current != rec.Version {
			return domain.PersistenceError{Key: rec.Key, Op: "save", Err: domain.ErrVersionConflict}
		}
	}
	for _, rec := range records {
		if rec.CheckOnly {
			continue
		}
		s.entries[rec.Key] = entry{payload: clone(rec.Payload), version: rec.Version + 1}
	}
	return nil
}

// Keys returns the stored collection keys.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.entries))
	for k := range s.entries {
		out = append(out, k)
	}
	return out
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
