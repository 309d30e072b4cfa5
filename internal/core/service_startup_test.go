package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"ehscore/internal/infra/persistence/memory"
	"ehscore/pkg/domain"
)

func startupOptions() []ServiceOption {
	return []ServiceOption{WithBcryptCost(bcrypt.MinCost), WithClock(fixedClock())}
}

func seedRaw(t *testing.T, backend domain.KeyedStore, key string, v any) {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("encode %s: %v", key, err)
	}
	if err := backend.Save(context.Background(), domain.Record{Key: key, Payload: raw}); err != nil {
		t.Fatalf("seed %s: %v", key, err)
	}
}

func TestOpenBootstrapsEmptyStore(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewStore(), startupOptions()...)
	started, err := svc.Open(ctx)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !started.AdminCreated || started.Admin.ID != domain.DefaultAdminID || started.Admin.PasswordHash != "" {
		t.Fatalf("unexpected startup %+v", started)
	}
	if started.SchemaVersion != CurrentSchemaVersion {
		t.Fatalf("expected schema %d, got %d", CurrentSchemaVersion, started.SchemaVersion)
	}
	if _, err := svc.Authenticate(ctx, domain.DefaultAdminLogin, domain.DefaultAdminPassword); err != nil {
		t.Fatalf("default admin login: %v", err)
	}
	again, err := svc.Open(ctx)
	if err != nil || again.AdminCreated {
		t.Fatalf("second open should not create users: %+v %v", again, err)
	}
}

func TestOpenMigratesLegacySnapshot(t *testing.T) {
	ctx := context.Background()
	backend := memory.NewStore()
	if err := backend.Save(ctx, domain.Record{
		Key:     domain.KeyUsers,
		Payload: []byte(`[{"id":"u100","employeeNumber":"100","password":"secreto","fullName":"Jefe EHS","level":"Administrador","permissions":null}]`),
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	svc := NewService(backend, startupOptions()...)

	started, err := svc.Open(ctx)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if started.AdminCreated {
		t.Fatalf("legacy users are present, no admin expected")
	}
	if v, err := svc.SchemaVersion(ctx); err != nil || v != CurrentSchemaVersion {
		t.Fatalf("expected migrated schema, got %d %v", v, err)
	}
	if _, err := svc.Authenticate(ctx, "100", "secreto"); err != nil {
		t.Fatalf("legacy login after open: %v", err)
	}
	rec, err := backend.Load(ctx, domain.KeyUsers)
	if err != nil {
		t.Fatalf("load users: %v", err)
	}
	if bytes.Contains(rec.Payload, []byte("secreto")) {
		t.Fatalf("plaintext password persisted: %s", rec.Payload)
	}
}

func TestLegacyDuplicateFoliosStayEditable(t *testing.T) {
	ctx := context.Background()
	backend := memory.NewStore()
	seedRaw(t, backend, domain.KeyAudits, []Audit{
		{Base: domain.Base{ID: "a3"}, Folio: "AUD-0002", Title: "Tercera", StartDate: "2024-03-01", AuditorIDs: []string{},
			Findings: []AuditFinding{{ID: "f1", AuditID: "a3", Description: "Pasillo obstruido", Type: domain.FindingNonConformity, Severity: domain.SeverityMajor, Status: domain.FindingOpen}}},
		{Base: domain.Base{ID: "a2"}, Folio: "AUD-0002", Title: "Segunda", StartDate: "2024-02-01", AuditorIDs: []string{}, Findings: []AuditFinding{}},
		{Base: domain.Base{ID: "a1"}, Folio: "AUD-0001", Title: "Primera", StartDate: "2024-01-01", AuditorIDs: []string{}, Findings: []AuditFinding{}},
	})
	svc := NewService(backend, startupOptions()...)
	started, err := svc.Open(ctx)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	admin := started.Admin.ID

	closed, _, err := svc.CloseFinding(ctx, admin, "a3", "f1")
	if err != nil {
		t.Fatalf("close finding on legacy audit: %v", err)
	}
	if closed.Status != domain.FindingClosed {
		t.Fatalf("unexpected finding %+v", closed)
	}
	if _, _, err := svc.AddFinding(ctx, admin, "a2", AuditFinding{Description: "Sin bitácora", Type: domain.FindingNonConformity}); err != nil {
		t.Fatalf("add finding on legacy audit: %v", err)
	}
	created, _, err := svc.CreateAudit(ctx, admin, Audit{Title: "Cuarta", Standard: "ISO 14001", StartDate: "2024-05-01"})
	if err != nil {
		t.Fatalf("create audit next to legacy duplicates: %v", err)
	}
	if created.Folio != "AUD-0003" {
		t.Fatalf("expected AUD-0003, got %s", created.Folio)
	}
}

func TestOpenSurfacesMigrationFailure(t *testing.T) {
	ctx := context.Background()
	backend := memory.NewStore()
	if err := backend.Save(ctx, domain.Record{Key: domain.KeyTrainings, Payload: []byte(`{"not":"a list"}`)}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	svc := NewService(backend, startupOptions()...)
	if _, err := svc.Open(ctx); !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected decode failure to stop startup, got %v", err)
	}
}
