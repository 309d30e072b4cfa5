package core

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

func TestOpenKeyedStoreDrivers(t *testing.T) {
	ctx := context.Background()
	if _, err := OpenKeyedStore(ctx, StorageConfig{Driver: "mongo"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
	mem, err := OpenKeyedStore(ctx, StorageConfig{Driver: StorageMemory})
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	if err := mem.Close(); err != nil {
		t.Fatalf("close memory: %v", err)
	}
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	cfg := StorageConfig{SQLitePath: filepath.Join(t.TempDir(), "ehs.db")}
	kv, err := OpenKeyedStore(ctx, cfg)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	svc := NewService(kv, WithBcryptCost(bcrypt.MinCost), WithClock(fixedClock()))
	admin, _, err := svc.Bootstrap(ctx)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	item := mustPpe(t, svc, admin.ID, 9)
	if err := kv.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	kv, err = OpenKeyedStore(ctx, cfg)
	if err != nil {
		t.Fatalf("reopen sqlite: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })
	got, err := NewService(kv).GetPpeItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item after reopen: %v", err)
	}
	if !got.Stock.Equal(decimal.NewFromInt(9)) {
		t.Fatalf("expected persisted stock 9, got %s", got.Stock)
	}
}
