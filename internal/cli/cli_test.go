package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"ehscore/pkg/domain"
)

func setupCLI(t *testing.T) {
	t.Helper()
	color.NoColor = true
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("EHS_CONFIG_FILE", "")
	t.Setenv("EHS_STORAGE_DRIVER", "sqlite")
	t.Setenv("EHS_SQLITE_PATH", filepath.Join(dir, "ehs.db"))
	t.Setenv("EHS_POSTGRES_DSN", "")
	t.Setenv("EHS_BLOB_DRIVER", "memory")
	t.Setenv("EHS_CORRECTIVE_ACTION_POLICY", "")
	t.Setenv("EHS_LOG_LEVEL", "error")
	t.Setenv("EHS_METRICS", "")
	t.Setenv("EHS_METRICS_FILE", "")
	t.Setenv("EHS_TRACE_FILE", "")
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := RootCmd("test")
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestBootstrapAndFolioCommands(t *testing.T) {
	setupCLI(t)

	out, err := runCLI(t, "bootstrap")
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if !strings.Contains(out, domain.DefaultAdminID) {
		t.Fatalf("expected admin to be created, got %q", out)
	}
	out, err = runCLI(t, "bootstrap")
	if err != nil || !strings.Contains(out, "nothing to do") {
		t.Fatalf("second bootstrap should be a no-op: %q %v", out, err)
	}

	for family, want := range map[string]string{"incident": "I-0001", "RD": "RD-00001", "permit": "PT-0001"} {
		out, err = runCLI(t, "folio", "next", family)
		if err != nil {
			t.Fatalf("folio next %s: %v", family, err)
		}
		if strings.TrimSpace(out) != want {
			t.Fatalf("folio next %s: expected %s, got %q", family, want, out)
		}
	}
	if _, err := runCLI(t, "folio", "next", "bogus"); err == nil || !strings.Contains(err.Error(), "unknown folio family") {
		t.Fatalf("expected unknown family error, got %v", err)
	}
}

func TestSchemaCommands(t *testing.T) {
	setupCLI(t)
	out, err := runCLI(t, "schema", "migrate")
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !strings.Contains(out, "schema at version") {
		t.Fatalf("unexpected migrate output %q", out)
	}
	out, err = runCLI(t, "schema", "version")
	if err != nil || !strings.Contains(out, "current") {
		t.Fatalf("expected current schema, got %q %v", out, err)
	}
}

func TestPpeCommandErrors(t *testing.T) {
	setupCLI(t)
	if _, err := runCLI(t, "bootstrap"); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	out, err := runCLI(t, "ppe", "list")
	if err != nil {
		t.Fatalf("ppe list: %v", err)
	}
	if !strings.HasPrefix(out, "ID") {
		t.Fatalf("expected table header, got %q", out)
	}

	if _, err := runCLI(t, "ppe", "receive", "p1", "abc"); err == nil || !strings.Contains(err.Error(), "quantity") {
		t.Fatalf("expected quantity parse error, got %v", err)
	}
	_, err = runCLI(t, "ppe", "receive", "missing", "2")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if got := describeError(err); !strings.HasPrefix(got, "not found: ") {
		t.Fatalf("unexpected description %q", got)
	}
	_, err = runCLI(t, "--actor", "ghost", "ppe", "withdraw", "missing", "1")
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected unknown actor to be forbidden, got %v", err)
	}
}

func TestStorageFlagOverridesConfig(t *testing.T) {
	setupCLI(t)
	if _, err := runCLI(t, "--storage", "memory", "bootstrap"); err != nil {
		t.Fatalf("bootstrap in memory: %v", err)
	}
	// The sqlite file never saw the memory bootstrap.
	out, err := runCLI(t, "bootstrap")
	if err != nil || !strings.Contains(out, domain.DefaultAdminID) {
		t.Fatalf("expected sqlite store to still be empty: %q %v", out, err)
	}

	other := filepath.Join(t.TempDir(), "other.db")
	out, err = runCLI(t, "--sqlite-path", other, "bootstrap")
	if err != nil || !strings.Contains(out, domain.DefaultAdminID) {
		t.Fatalf("expected a fresh store at %s: %q %v", other, out, err)
	}
}

func TestStatusLabelAndPrintError(t *testing.T) {
	color.NoColor = true
	if got := statusLabel(string(domain.PermitClosed)); got != "Cerrado" {
		t.Fatalf("unexpected label %q", got)
	}
	var buf bytes.Buffer
	PrintError(&buf, domain.PersistenceError{Err: domain.ErrVersionConflict})
	if !strings.Contains(buf.String(), "conflict: ") || !strings.Contains(buf.String(), "retry") {
		t.Fatalf("unexpected error output %q", buf.String())
	}
}

func TestFreshStoreAcceptsCommandsWithoutBootstrap(t *testing.T) {
	setupCLI(t)
	_, err := runCLI(t, "permit", "approve", "nope")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected the default admin to reach the lookup, got %v", err)
	}
	out, err := runCLI(t, "bootstrap")
	if err != nil || !strings.Contains(out, "nothing to do") {
		t.Fatalf("admin should already exist after the first command: %q %v", out, err)
	}
	out, err = runCLI(t, "schema", "version")
	if err != nil || !strings.Contains(out, "current") {
		t.Fatalf("expected the first command to migrate the schema: %q %v", out, err)
	}
}

func TestMetricsAndTraceFiles(t *testing.T) {
	cases := []struct {
		exporter string
		want     string
	}{
		{"prometheus", "ehs_operations_total"},
		{"expvar", `"list_ppe_items"`},
	}
	for _, tc := range cases {
		t.Run(tc.exporter, func(t *testing.T) {
			setupCLI(t)
			dir := t.TempDir()
			metrics := filepath.Join(dir, "metrics.out")
			trace := filepath.Join(dir, "trace.jsonl")
			t.Setenv("EHS_METRICS", tc.exporter)
			t.Setenv("EHS_METRICS_FILE", metrics)
			t.Setenv("EHS_TRACE_FILE", trace)

			if _, err := runCLI(t, "ppe", "list"); err != nil {
				t.Fatalf("ppe list: %v", err)
			}
			raw, err := os.ReadFile(metrics)
			if err != nil {
				t.Fatalf("read metrics: %v", err)
			}
			if !strings.Contains(string(raw), tc.want) {
				t.Fatalf("expected %s in metrics, got %s", tc.want, raw)
			}
			raw, err = os.ReadFile(trace)
			if err != nil {
				t.Fatalf("read trace: %v", err)
			}
			for _, op := range []string{`"operation":"migrate"`, `"operation":"bootstrap"`, `"operation":"list_ppe_items"`} {
				if !strings.Contains(string(raw), op) {
					t.Fatalf("expected %s in trace, got %s", op, raw)
				}
			}
		})
	}
}
