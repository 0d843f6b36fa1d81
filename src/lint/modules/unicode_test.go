package modules

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sofmeright/qualitygate/src/lint"
)

func writeTempFile(t *testing.T, name string, content []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

func runUnicodeOnDisk(t *testing.T, opts map[string]any, logicalPath, absPath string) []lint.Finding {
	t.Helper()

	m := newUnicodeModule()
	if err := m.Configure(opts); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	findings, err := m.Check(context.Background(), lint.FileInfo{Path: logicalPath, AbsPath: absPath})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	return findings
}

func hasMessage(findings []lint.Finding, substr string) bool {
	for _, f := range findings {
		if strings.Contains(f.Message, substr) {
			return true
		}
	}
	return false
}

func hasCritical(findings []lint.Finding) bool {
	for _, f := range findings {
		if f.Severity == lint.SeverityCritical {
			return true
		}
	}
	return false
}

var ansiOpts = map[string]any{
	"allow_control_ascii_in_paths": []any{"docs/**/*.py"},
	"allow_control_ascii":          []any{27}, // ESC only
}

func TestUnicode_AllowlistScopesOnlyASCIIControl(t *testing.T) {
	abs := writeTempFile(t, "colors.py", []byte("RED = \"\x1b[31mred\x1b[0m\"\n"))

	allowed := runUnicodeOnDisk(t, ansiOpts, "docs/examples/colors.py", abs)
	if hasMessage(allowed, "ASCII control") {
		t.Fatalf("expected no ASCII control findings on allowed path; got: %#v", allowed)
	}

	denied := runUnicodeOnDisk(t, ansiOpts, "skada/colors.py", abs)
	if !hasMessage(denied, "ASCII control") {
		t.Fatalf("expected ASCII control finding on non-allowed path; got: %#v", denied)
	}
}

func TestUnicode_BidiAndZeroWidthCriticalEvenInAllowedPath(t *testing.T) {
	tests := map[string]string{
		"bidi":       "# \u202e bidi\n",
		"zero-width": "# \u200b zws\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			abs := writeTempFile(t, "x.py", []byte(content))
			findings := runUnicodeOnDisk(t, ansiOpts, "docs/examples/x.py", abs)
			if !hasCritical(findings) {
				t.Fatalf("expected a critical finding; got: %#v", findings)
			}
		})
	}
}

func TestUnicode_DisableControlASCIIOnly(t *testing.T) {
	opts := map[string]any{"detect_control_ascii": false}

	ansi := writeTempFile(t, "ansi.py", []byte("RED = \"\x1b[31mred\x1b[0m\"\n"))
	if f := runUnicodeOnDisk(t, opts, "skada/ansi.py", ansi); hasMessage(f, "ASCII control") {
		t.Fatalf("expected no ASCII control findings when disabled; got: %#v", f)
	}

	bidi := writeTempFile(t, "bidi.py", []byte("# \u202e bidi\n"))
	if f := runUnicodeOnDisk(t, opts, "skada/bidi.py", bidi); !hasCritical(f) {
		t.Fatalf("expected critical bidi finding with control detection off; got: %#v", f)
	}
}

func TestUnicode_LeadingBOMAllowed(t *testing.T) {
	abs := writeTempFile(t, "bom.py", []byte("\ufeffimport os\n"))
	if f := runUnicodeOnDisk(t, nil, "bom.py", abs); len(f) != 0 {
		t.Fatalf("leading BOM flagged: %#v", f)
	}
}

func TestUnicode_SkipsBinary(t *testing.T) {
	abs := writeTempFile(t, "data.npy", []byte{0x93, 'N', 'U', 'M', 'P', 'Y', 0x00, 0x01, 0x1b})
	if f := runUnicodeOnDisk(t, nil, "data.npy", abs); len(f) != 0 {
		t.Fatalf("binary file flagged: %#v", f)
	}
}

func TestUnicode_ConfigValidation(t *testing.T) {
	for _, codes := range [][]int{{9}, {999}, {-1}, {65}} {
		m := newUnicodeModule()
		if err := m.Configure(map[string]any{"allow_control_ascii": codes}); err == nil {
			t.Errorf("allow_control_ascii=%v: expected error", codes)
		}
	}
}
