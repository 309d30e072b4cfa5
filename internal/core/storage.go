package core

import (
	"context"
	"fmt"

	"ehscore/internal/infra/persistence/memory"
	"ehscore/internal/infra/persistence/postgres"
	"ehscore/internal/infra/persistence/sqlite"
	"ehscore/pkg/domain"
)

// StorageDriver identifies a KeyedStore backend.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StorageConfig selects and parameterises a backend. An empty driver selects sqlite.
type StorageConfig struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
}

// ClosableStore is a KeyedStore holding external resources.
type ClosableStore interface {
	domain.KeyedStore
	Close() error
}

type memoryCloser struct{ *memory.Store }

func (memoryCloser) Close() error { return nil }

// OpenKeyedStore opens the configured backend.
func OpenKeyedStore(ctx context.Context, cfg StorageConfig) (ClosableStore, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memoryCloser{memory.NewStore()}, nil
	case StorageSQLite:
		store, err := sqlite.NewStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoragePostgres:
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
