package fs

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"ehscore/internal/blob/core"
)

func TestFilesystemStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	info, err := s.Put(ctx, "waste_logs/l1/manifest.pdf", strings.NewReader("manifest"), core.PutOptions{ContentType: "application/pdf", Metadata: map[string]string{"folio": "RD-00001"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != int64(len("manifest")) || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := s.Put(ctx, "waste_logs/l1/manifest.pdf", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	head, err := s.Head(ctx, "waste_logs/l1/manifest.pdf")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if head.Metadata["folio"] != "RD-00001" || head.ContentType != "application/pdf" {
		t.Fatalf("unexpected head %+v", head)
	}
	_, rc, err := s.Get(ctx, "waste_logs/l1/manifest.pdf")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "manifest" {
		t.Fatalf("unexpected body %q", body)
	}
	list, err := s.List(ctx, "waste_logs/")
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one listed blob, got %v %v", list, err)
	}
	url, err := s.PresignURL(ctx, "waste_logs/l1/manifest.pdf", 0)
	if err != nil || !strings.HasPrefix(url, "file://") {
		t.Fatalf("unexpected url %q %v", url, err)
	}
	if ok, err := s.Delete(ctx, "waste_logs/l1/manifest.pdf"); err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, _ := s.Delete(ctx, "waste_logs/l1/manifest.pdf"); ok {
		t.Fatalf("expected second delete to report false")
	}
	if _, _, err := s.Get(ctx, "waste_logs/l1/manifest.pdf"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFilesystemStoreRejectsUnsafeKeys(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for _, key := range []string{"", "  ", "/etc/passwd", "../escape", "a/../../b", "x.meta"} {
		if _, err := s.Put(context.Background(), key, strings.NewReader("x"), core.PutOptions{}); err == nil {
			t.Fatalf("expected key %q to be rejected", key)
		}
	}
}
