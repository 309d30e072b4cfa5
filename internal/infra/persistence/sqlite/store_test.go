package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"ehscore/pkg/domain"
)

func openStore(t *testing.T, path string) *Store {
	t.Helper()
	store, err := NewStore(path)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStorePersistAndReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")
	store := openStore(t, path)
	if err := store.Save(ctx, domain.Record{Key: domain.KeyWastes, Payload: []byte(`[{"id":"w1"}]`)}); err != nil {
		t.Fatalf("save: %v", err)
	}
	reloaded := openStore(t, path)
	rec, err := reloaded.Load(ctx, domain.KeyWastes)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rec.Version != 1 || string(rec.Payload) != `[{"id":"w1"}]` {
		t.Fatalf("unexpected record %+v", rec)
	}
	if reloaded.Path() != path {
		t.Fatalf("expected path %s, got %s", path, reloaded.Path())
	}
}

func TestSQLiteStoreLoadMissingKey(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "state.db"))
	rec, err := store.Load(context.Background(), domain.KeyAudits)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rec.Version != 0 || rec.Payload != nil {
		t.Fatalf("expected zero record, got %+v", rec)
	}
}

func TestSQLiteStoreSharedFileDetectsStaleWriter(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")
	first := openStore(t, path)
	second := openStore(t, path)

	if err := first.Save(ctx, domain.Record{Key: domain.KeyPpeItems, Payload: []byte(`[]`)}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	a, _ := first.Load(ctx, domain.KeyPpeItems)
	b, _ := second.Load(ctx, domain.KeyPpeItems)

	a.Payload = []byte(`[{"id":"p1","stock":2}]`)
	if err := first.Save(ctx, a); err != nil {
		t.Fatalf("first writer: %v", err)
	}
	b.Payload = []byte(`[{"id":"p1","stock":9}]`)
	err := second.Save(ctx,
		domain.Record{Key: domain.KeyPpeDeliveries, Payload: []byte(`[{"id":"d1"}]`)},
		b,
	)
	if !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}
	deliveries, _ := first.Load(ctx, domain.KeyPpeDeliveries)
	if deliveries.Payload != nil {
		t.Fatalf("expected rollback of the whole batch, got %s", deliveries.Payload)
	}
	items, _ := first.Load(ctx, domain.KeyPpeItems)
	if items.Version != 2 || string(items.Payload) != `[{"id":"p1","stock":2}]` {
		t.Fatalf("unexpected items record %+v", items)
	}
}

func TestSQLiteStoreInsertConflictOnExistingKey(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, filepath.Join(t.TempDir(), "state.db"))
	if err := store.Save(ctx, domain.Record{Key: domain.KeyUsers, Payload: []byte(`[]`)}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	err := store.Save(ctx, domain.Record{Key: domain.KeyUsers, Payload: []byte(`[{"id":"u"}]`)})
	if !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected conflict for version 0 over existing row, got %v", err)
	}
}

func TestSQLiteStoreCheckOnlyRecordsAcrossHandles(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")
	first := openStore(t, path)
	second := openStore(t, path)
	if err := first.Save(ctx,
		domain.Record{Key: domain.KeyWastes, Payload: []byte(`[{"id":"w1"}]`)},
		domain.Record{Key: domain.KeyWasteLogs, Payload: []byte(`[]`)},
	); err != nil {
		t.Fatalf("seed: %v", err)
	}
	wastes, _ := first.Load(ctx, domain.KeyWastes)
	logs, _ := first.Load(ctx, domain.KeyWasteLogs)

	if err := second.Save(ctx, domain.Record{Key: domain.KeyWasteLogs, Payload: []byte(`[{"id":"l1","wasteId":"w1"}]`), Version: logs.Version}); err != nil {
		t.Fatalf("second handle log write: %v", err)
	}
	wastes.Payload = []byte(`[]`)
	err := first.Save(ctx, wastes, domain.Record{Key: domain.KeyWasteLogs, Version: logs.Version, CheckOnly: true})
	if !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected stale read to conflict, got %v", err)
	}
	got, _ := first.Load(ctx, domain.KeyWastes)
	if got.Version != 1 || string(got.Payload) != `[{"id":"w1"}]` {
		t.Fatalf("rejected batch must roll back, got %+v", got)
	}

	logs, _ = first.Load(ctx, domain.KeyWasteLogs)
	if err := first.Save(ctx, domain.Record{Key: domain.KeyAudits, Payload: []byte(`[]`)}, domain.Record{Key: domain.KeyWasteLogs, Version: logs.Version, CheckOnly: true}); err != nil {
		t.Fatalf("current check: %v", err)
	}
	if again, _ := first.Load(ctx, domain.KeyWasteLogs); again.Version != logs.Version {
		t.Fatalf("check-only record must not bump its version, got %d", again.Version)
	}
}
