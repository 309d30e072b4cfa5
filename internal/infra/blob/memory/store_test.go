package memory

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"ehscore/internal/blob/core"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	if s.Driver() != core.DriverMemory {
		t.Fatalf("unexpected driver %s", s.Driver())
	}
	meta := map[string]string{"entity": "chemical"}
	info, err := s.Put(ctx, "chemicals/c1/sds.pdf", strings.NewReader("sheet"), core.PutOptions{ContentType: "application/pdf", Metadata: meta})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	meta["entity"] = "mutated"
	if info.Size != 5 || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := s.Put(ctx, "chemicals/c1/sds.pdf", strings.NewReader("again"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	got, rc, err := s.Get(ctx, "chemicals/c1/sds.pdf")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "sheet" || got.Metadata["entity"] != "chemical" {
		t.Fatalf("unexpected blob %q %+v", body, got)
	}
	if _, err := s.PresignURL(ctx, "chemicals/c1/sds.pdf", 0); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected unsupported presign, got %v", err)
	}
	if _, err := s.Put(ctx, "incidents/i1/evidence.png", strings.NewReader("img"), core.PutOptions{}); err != nil {
		t.Fatalf("put second: %v", err)
	}
	list, _ := s.List(ctx, "chemicals/")
	if len(list) != 1 || list[0].Key != "chemicals/c1/sds.pdf" {
		t.Fatalf("unexpected list %+v", list)
	}
	if ok, _ := s.Delete(ctx, "chemicals/c1/sds.pdf"); !ok {
		t.Fatalf("expected delete to report existing blob")
	}
	if ok, _ := s.Delete(ctx, "chemicals/c1/sds.pdf"); ok {
		t.Fatalf("expected second delete to report missing blob")
	}
	if _, err := s.Head(ctx, "chemicals/c1/sds.pdf"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, _, err := s.Get(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from get, got %v", err)
	}
}
