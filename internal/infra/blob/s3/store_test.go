package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"ehscore/internal/blob/core"
)

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected bucket error")
	}
}

func TestNewWithStaticCredentials(t *testing.T) {
	s, err := New(context.Background(), Config{
		Bucket:          "ehs-attachments",
		Endpoint:        "http://localhost:9000",
		AccessKeyID:     "minio",
		SecretAccessKey: "minio-secret",
		PathStyle:       true,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if s.Bucket() != "ehs-attachments" || s.Driver() != core.DriverS3 {
		t.Fatalf("unexpected store %+v", s)
	}
	url, err := s.PresignURL(context.Background(), "chemicals/c1/sds.pdf", 0)
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.Contains(url, "chemicals/c1/sds.pdf") || !strings.Contains(url, "X-Amz-Signature") {
		t.Fatalf("unexpected presigned url %s", url)
	}
}

func TestMockStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMockForTests()
	if _, err := s.Head(ctx, "incidents/i1/evidence.jpg"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	info, err := s.Put(ctx, "incidents/i1/evidence.jpg", strings.NewReader("jpeg"), core.PutOptions{ContentType: "image/jpeg"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "incidents/i1/evidence.jpg" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := s.Put(ctx, "incidents/i1/evidence.jpg", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	_, rc, err := s.Get(ctx, "incidents/i1/evidence.jpg")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "jpeg" {
		t.Fatalf("unexpected body %q", body)
	}
	list, err := s.List(ctx, "incidents/")
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one object, got %v %v", list, err)
	}
	if ok, err := s.Delete(ctx, "incidents/i1/evidence.jpg"); err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, err := s.Delete(ctx, "incidents/i1/evidence.jpg"); err != nil || ok {
		t.Fatalf("expected missing delete to report false, got %v %v", ok, err)
	}
}
