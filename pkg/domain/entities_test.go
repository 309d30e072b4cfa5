package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDate(t *testing.T) {
	d := DateOf(time.Date(2024, 2, 29, 23, 59, 0, 0, time.UTC))
	if d != "2024-02-29" {
		t.Fatalf("unexpected date %s", d)
	}
	parsed, err := d.Time()
	if err != nil || parsed.Day() != 29 || parsed.Hour() != 0 {
		t.Fatalf("unexpected parse %v %v", parsed, err)
	}
	if _, err := Date("29/02/2024").Time(); err == nil {
		t.Fatalf("expected layout mismatch to fail")
	}
	if !Date("").IsZero() || d.IsZero() {
		t.Fatalf("unexpected IsZero")
	}
}

func TestUserPermissionsAndRedaction(t *testing.T) {
	u := User{
		Base:           Base{ID: "u1"},
		PasswordHash:   "$2a$hash",
		LegacyPassword: "plain",
		Permissions:    []Permission{PermManagePpe},
	}
	if !u.HasPermission(PermManagePpe) || u.HasPermission(PermManageUsers) {
		t.Fatalf("unexpected permission checks")
	}
	r := u.Redacted()
	if r.PasswordHash != "" || r.LegacyPassword != "" {
		t.Fatalf("credentials leaked: %+v", r)
	}
	r.Permissions[0] = PermManageUsers
	if u.Permissions[0] != PermManagePpe {
		t.Fatalf("redacted copy must not alias permissions")
	}
	if u.PasswordHash == "" {
		t.Fatalf("original must keep its hash")
	}
}

func TestAuditFindFinding(t *testing.T) {
	a := Audit{Findings: []AuditFinding{{ID: "f1"}, {ID: "f2"}}}
	if f, idx, ok := a.FindFinding("f2"); !ok || idx != 1 || f.ID != "f2" {
		t.Fatalf("unexpected lookup %+v %d %v", f, idx, ok)
	}
	if _, idx, ok := a.FindFinding("nope"); ok || idx != -1 {
		t.Fatalf("expected miss")
	}
}

func TestCollectionKeysAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, k := range CollectionKeys {
		if seen[k] {
			t.Fatalf("duplicate key %s", k)
		}
		seen[k] = true
	}
	if !seen[KeyStockMovements] || !seen[KeySchemaMeta] {
		t.Fatalf("missing keys in %v", CollectionKeys)
	}
	if len(AllPermissions) != 16 {
		t.Fatalf("expected 16 permissions, got %d", len(AllPermissions))
	}
}

func TestDefaultAppSettings(t *testing.T) {
	s := DefaultAppSettings()
	if s.CompanyName == "" || s.CompanyLogo != "" {
		t.Fatalf("unexpected defaults %+v", s)
	}
}

func TestDecimalsMarshalAsNumbers(t *testing.T) {
	raw, err := json.Marshal(PpeItem{Base: Base{ID: "p1"}, Stock: decimal.RequireFromString("5.5")})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"stock":5.5`) {
		t.Fatalf("expected numeric stock, got %s", raw)
	}
	var quoted PpeItem
	if err := json.Unmarshal([]byte(`{"id":"p2","stock":"3"}`), &quoted); err != nil {
		t.Fatalf("unmarshal quoted: %v", err)
	}
	if !quoted.Stock.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("unexpected stock %s", quoted.Stock)
	}
}
