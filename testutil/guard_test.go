package testutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

type recordingFatal struct {
	msg string
}

func (r *recordingFatal) Fatalf(format string, args ...any) {
	r.msg = fmt.Sprintf(format, args...)
}

func TestImportPredicates(t *testing.T) {
	cases := []struct {
		in       string
		internal bool
		infra    bool
	}{
		{"ehscore/internal/core", true, false},
		{"ehscore/internal/infra/blob/s3", true, true},
		{"ehscore/internal", true, false},
		{"ehscore/pkg/domain", false, false},
	}
	for _, c := range cases {
		if got := InternalImportForbidden(c.in); got != c.internal {
			t.Fatalf("InternalImportForbidden(%q)=%v want %v", c.in, got, c.internal)
		}
		if got := InfraImportForbidden(c.in); got != c.infra {
			t.Fatalf("InfraImportForbidden(%q)=%v want %v", c.in, got, c.infra)
		}
	}
}

func TestDirectImportViolationsIgnoresTestsAndSubdirs(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"main.go":      "package tmp\nimport \"fmt\"\nimport \"bad/pkg\"\nfunc X() { fmt.Println() }\n",
		"main_test.go": "package tmp\nimport \"other/bad\"\n",
		"sub/sub.go":   "package sub\nimport \"other/bad\"\n",
	}
	for name, src := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(src), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	viols, err := directImportViolations(dir, func(p string) bool { return strings.Contains(p, "bad") })
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || viols[0] != "bad/pkg (in main.go)" {
		t.Fatalf("unexpected violations %v", viols)
	}
	AssertNoDirectImports(t, dir, func(string) bool { return false }, "none")

	if _, err := directImportViolations(filepath.Join(dir, "missing"), nil); err == nil {
		t.Fatalf("expected missing dir error")
	}
}

func stubLoader(t *testing.T, pkgs []*packages.Package, err error) {
	t.Helper()
	orig := loadPackages
	loadPackages = func(*packages.Config, string) ([]*packages.Package, error) { return pkgs, err }
	t.Cleanup(func() { loadPackages = orig })
}

func TestLoaderBackedViolations(t *testing.T) {
	infra := &packages.Package{PkgPath: "ehscore/internal/infra/blob/fs", Imports: map[string]*packages.Package{}}
	core := &packages.Package{PkgPath: "ehscore/internal/core", Imports: map[string]*packages.Package{infra.PkgPath: infra}}
	domain := &packages.Package{PkgPath: "ehscore/pkg/domain", Imports: map[string]*packages.Package{}}
	stubLoader(t, []*packages.Package{core, domain}, nil)

	deps, err := transitiveDependencyViolations("./...", InfraImportForbidden)
	if err != nil {
		t.Fatalf("transitive: %v", err)
	}
	if len(deps) != 1 || deps[0] != infra.PkgPath {
		t.Fatalf("unexpected transitive violations %v", deps)
	}

	imports, err := moduleImportViolations("./...", func(pkgPath, importPath string) bool {
		return pkgPath != "ehscore/internal/blob" && InfraImportForbidden(importPath)
	})
	if err != nil {
		t.Fatalf("imports: %v", err)
	}
	if len(imports) != 1 || imports[0] != "ehscore/internal/core: "+infra.PkgPath {
		t.Fatalf("unexpected import violations %v", imports)
	}

	stubLoader(t, nil, errors.New("boom"))
	if _, err := transitiveDependencyViolations("./...", InfraImportForbidden); err == nil {
		t.Fatalf("expected loader error")
	}
	if _, err := moduleImportViolations("./...", nil); err == nil {
		t.Fatalf("expected loader error")
	}
}

func TestFailIfViolations(t *testing.T) {
	var r recordingFatal
	failIfViolations(&r, "forbidden imports detected", "reason", nil)
	if r.msg != "" {
		t.Fatalf("no violations must not fail, got %q", r.msg)
	}
	failIfViolations(&r, "forbidden imports detected", "reason", []string{"a", "b"})
	if r.msg != "forbidden imports detected (reason):\na\nb" {
		t.Fatalf("unexpected message %q", r.msg)
	}
}
