package memory

import (
	"context"
	"errors"
	"testing"

	"ehscore/pkg/domain"
)

func TestStoreLoadMissingKey(t *testing.T) {
	store := NewStore()
	rec, err := store.Load(context.Background(), domain.KeyEmployees)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rec.Version != 0 || rec.Payload != nil {
		t.Fatalf("expected empty record, got %+v", rec)
	}
}

func TestStoreSaveBumpsVersionAndCopies(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	payload := []byte(`[{"id":"e1"}]`)
	if err := store.Save(ctx, domain.Record{Key: domain.KeyEmployees, Payload: payload}); err != nil {
		t.Fatalf("save: %v", err)
	}
	payload[0] = 'x'
	rec, err := store.Load(ctx, domain.KeyEmployees)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rec.Version != 1 {
		t.Fatalf("expected version 1, got %d", rec.Version)
	}
	if string(rec.Payload) != `[{"id":"e1"}]` {
		t.Fatalf("payload aliased caller slice: %s", rec.Payload)
	}
	rec.Payload[0] = 'y'
	again, _ := store.Load(ctx, domain.KeyEmployees)
	if again.Payload[0] != '[' {
		t.Fatalf("load returned shared slice")
	}
}

func TestStoreSaveRejectsStaleBatch(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	if err := store.Save(ctx, domain.Record{Key: domain.KeyPpeItems, Payload: []byte(`[]`)}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	err := store.Save(ctx,
		domain.Record{Key: domain.KeyPpeDeliveries, Payload: []byte(`[{"id":"d1"}]`)},
		domain.Record{Key: domain.KeyPpeItems, Payload: []byte(`[{"id":"p1"}]`), Version: 0},
	)
	if !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	rec, _ := store.Load(ctx, domain.KeyPpeDeliveries)
	if rec.Payload != nil {
		t.Fatalf("expected no partial write, got %s", rec.Payload)
	}
	if got := len(store.Keys()); got != 1 {
		t.Fatalf("expected 1 key, got %d", got)
	}
}

func TestStoreHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := NewStore()
	if _, err := store.Load(ctx, domain.KeyUsers); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation on load, got %v", err)
	}
	if err := store.Save(ctx, domain.Record{Key: domain.KeyUsers}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation on save, got %v", err)
	}
}

func TestStoreCheckOnlyRecordsAssertWithoutWriting(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	if err := store.Save(ctx,
		domain.Record{Key: domain.KeyWastes, Payload: []byte(`[{"id":"w1"}]`)},
		domain.Record{Key: domain.KeyWasteLogs, Payload: []byte(`[]`)},
	); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := store.Save(ctx,
		domain.Record{Key: domain.KeyWastes, Payload: []byte(`[]`), Version: 1},
		domain.Record{Key: domain.KeyWasteLogs, Version: 1, CheckOnly: true},
	); err != nil {
		t.Fatalf("save with current check: %v", err)
	}
	logs, _ := store.Load(ctx, domain.KeyWasteLogs)
	if logs.Version != 1 || string(logs.Payload) != `[]` {
		t.Fatalf("check-only record must not be written, got %+v", logs)
	}

	if err := store.Save(ctx, domain.Record{Key: domain.KeyWasteLogs, Payload: []byte(`[{"id":"l1"}]`), Version: 1}); err != nil {
		t.Fatalf("concurrent log write: %v", err)
	}
	err := store.Save(ctx,
		domain.Record{Key: domain.KeyWastes, Payload: []byte(`[{"id":"w2"}]`), Version: 2},
		domain.Record{Key: domain.KeyWasteLogs, Version: 1, CheckOnly: true},
	)
	if !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected stale check to conflict, got %v", err)
	}
	wastes, _ := store.Load(ctx, domain.KeyWastes)
	if wastes.Version != 2 || string(wastes.Payload) != `[]` {
		t.Fatalf("rejected batch must not write, got %+v", wastes)
	}
}
