package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"ehscore/internal/blob"
	"ehscore/internal/infra/persistence/memory"
	"ehscore/pkg/domain"
)

func TestMigrateHashesLegacyPasswordsAndNormalizesLists(t *testing.T) {
	ctx := context.Background()
	backend := memory.NewStore()
	legacy := []byte(`[{"id":"u1","employeeNumber":"ops","password":"planta123","fullName":"Operaciones","level":"Supervisor","permissions":null}]`)
	trainings := []byte(`[{"id":"t1","topic":"Altura","date":"2024-01-01","trainingType":"Interna","instructor":"X","durationHours":1,"attendees":null}]`)
	if err := backend.Save(ctx,
		domain.Record{Key: domain.KeyUsers, Payload: legacy},
		domain.Record{Key: domain.KeyTrainings, Payload: trainings},
	); err != nil {
		t.Fatalf("seed: %v", err)
	}
	svc := NewService(backend, WithBcryptCost(bcrypt.MinCost), WithClock(fixedClock()))

	if v, err := svc.SchemaVersion(ctx); err != nil || v != 0 {
		t.Fatalf("expected unmigrated snapshot, got %d %v", v, err)
	}
	if _, err := svc.Authenticate(ctx, "ops", "planta123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("plaintext passwords must not authenticate before migration, got %v", err)
	}

	version, err := svc.Migrate(ctx)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if version != CurrentSchemaVersion {
		t.Fatalf("expected version %d, got %d", CurrentSchemaVersion, version)
	}
	if _, err := svc.Authenticate(ctx, "ops", "planta123"); err != nil {
		t.Fatalf("authenticate after migration: %v", err)
	}

	rec, err := backend.Load(ctx, domain.KeyUsers)
	if err != nil {
		t.Fatalf("load users: %v", err)
	}
	if bytes.Contains(rec.Payload, []byte("planta123")) || bytes.Contains(rec.Payload, []byte(`"password"`)) {
		t.Fatalf("plaintext password still stored: %s", rec.Payload)
	}
	var users []User
	if err := json.Unmarshal(rec.Payload, &users); err != nil {
		t.Fatalf("decode users: %v", err)
	}
	if users[0].Permissions == nil || users[0].PasswordHash == "" {
		t.Fatalf("unexpected migrated user %+v", users[0])
	}
	rec, err = backend.Load(ctx, domain.KeyTrainings)
	if err != nil {
		t.Fatalf("load trainings: %v", err)
	}
	if !bytes.Contains(rec.Payload, []byte(`"attendees":[]`)) {
		t.Fatalf("expected attendees to be normalized: %s", rec.Payload)
	}

	again, err := svc.Migrate(ctx)
	if err != nil || again != CurrentSchemaVersion {
		t.Fatalf("second migrate should be a no-op: %d %v", again, err)
	}
}

func newAttachmentService(t *testing.T) (*Service, string, blob.Store) {
	t.Helper()
	store, err := blob.Open(context.Background(), blob.Config{Driver: blob.DriverMemory})
	if err != nil {
		t.Fatalf("open blob store: %v", err)
	}
	svc, admin := newTestService(t, WithAttachments(blob.NewAttachments(store)))
	return svc, admin, store
}

func TestUploadsReplacePreviousAttachment(t *testing.T) {
	ctx := context.Background()
	svc, admin, store := newAttachmentService(t)
	chem, _, err := svc.CreateChemical(ctx, admin, Chemical{Name: "Acetona", Provider: "Química SA", Location: "Bodega 2", Pictograms: []domain.PictogramKey{"flammable"}})
	if err != nil {
		t.Fatalf("create chemical: %v", err)
	}

	first, err := svc.UploadSafetyDataSheet(ctx, admin, chem.ID, "hds.pdf", strings.NewReader("%PDF-1"))
	if err != nil {
		t.Fatalf("upload sds: %v", err)
	}
	second, err := svc.UploadSafetyDataSheet(ctx, admin, chem.ID, "hds-v2.pdf", strings.NewReader("%PDF-2"))
	if err != nil {
		t.Fatalf("replace sds: %v", err)
	}
	if _, err := store.Head(ctx, first.Key); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("previous sheet should be removed, got %v", err)
	}
	chems, err := svc.ListChemicals(ctx)
	if err != nil {
		t.Fatalf("list chemicals: %v", err)
	}
	if chems[0].SdsURL != second.Key {
		t.Fatalf("expected chemical to point at %s, got %s", second.Key, chems[0].SdsURL)
	}
	_, rc, err := svc.OpenAttachment(ctx, second.Key)
	if err != nil {
		t.Fatalf("open attachment: %v", err)
	}
	body, _ := io.ReadAll(rc)
	rc.Close()
	if string(body) != "%PDF-2" {
		t.Fatalf("unexpected content %q", body)
	}
	if url, err := svc.AttachmentURL(ctx, second.Key, 0); err != nil || url != second.Key {
		t.Fatalf("memory backend should fall back to the key: %q %v", url, err)
	}

	if _, err := svc.DeleteChemical(ctx, admin, chem.ID); err != nil {
		t.Fatalf("delete chemical: %v", err)
	}
	if _, err := store.Head(ctx, second.Key); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("sheet should be removed with the chemical, got %v", err)
	}
}

func TestFailedUploadLeavesNoBlob(t *testing.T) {
	ctx := context.Background()
	svc, admin, store := newAttachmentService(t)
	if _, err := svc.UploadWasteManifest(ctx, admin, "missing-log", "m.pdf", "application/pdf", strings.NewReader("x")); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected missing log, got %v", err)
	}
	if _, err := svc.AttachIncidentEvidence(ctx, admin, "i1", "notes.txt", "text/plain", strings.NewReader("x")); !errors.Is(err, blob.ErrRejected) {
		t.Fatalf("expected media type rejection, got %v", err)
	}
	left, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("list blobs: %v", err)
	}
	if len(left) != 0 {
		t.Fatalf("expected no orphaned blobs, got %+v", left)
	}
}

func TestCompanyLogoUpload(t *testing.T) {
	ctx := context.Background()
	svc, admin, _ := newAttachmentService(t)
	info, err := svc.UploadCompanyLogo(ctx, admin, "logo.png", "image/png", strings.NewReader("png"))
	if err != nil {
		t.Fatalf("upload logo: %v", err)
	}
	settings, err := svc.Settings(ctx)
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if settings.CompanyLogo != info.Key || !strings.HasPrefix(info.Key, "settings/company/") {
		t.Fatalf("unexpected logo key %q", settings.CompanyLogo)
	}
}

func TestUploadsWithoutAttachmentStore(t *testing.T) {
	svc, admin := newTestService(t)
	if _, err := svc.UploadCompanyLogo(context.Background(), admin, "logo.png", "image/png", strings.NewReader("png")); !errors.Is(err, ErrAttachmentsDisabled) {
		t.Fatalf("expected attachments disabled, got %v", err)
	}
}
