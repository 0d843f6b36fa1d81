package output

import (
	"bytes"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sofmeright/qualitygate/src/lint"
)

func readSuites(t *testing.T, path string) JUnitTestSuites {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	var root JUnitTestSuites
	if err := xml.Unmarshal(data, &root); err != nil {
		t.Fatalf("parsing %s: %v", path, err)
	}
	return root
}

func TestWriteLintJUnit(t *testing.T) {
	dir := t.TempDir()
	rep := &lint.Report{
		Files: 2,
		Paths: []string{"a.py", "b.yml"},
		Findings: []lint.Finding{
			{File: "b.yml", Line: 3, Module: "yaml", Severity: lint.SeverityCritical, Message: "duplicate key"},
			{File: "a.py", Line: 1, Module: "lineendings", Severity: lint.SeverityWarning, Message: "trailing whitespace"},
		},
	}

	if err := WriteLintJUnit(dir, rep, []string{"lineendings", "yaml"}, 2*time.Second); err != nil {
		t.Fatalf("WriteLintJUnit: %v", err)
	}
	root := readSuites(t, filepath.Join(dir, "lint.xml"))

	if root.Tests != 4 {
		t.Errorf("tests = %d, want 4 (2 modules x 2 files)", root.Tests)
	}
	if root.Failures != 1 {
		t.Errorf("failures = %d, want 1 (warnings are not failures)", root.Failures)
	}
	if len(root.Suites) != 2 || root.Suites[1].Name != "lint/yaml" {
		t.Fatalf("suites = %+v", root.Suites)
	}
	fail := root.Suites[1].Cases[1].Failure
	if fail == nil || !strings.Contains(fail.Body, "duplicate key") {
		t.Errorf("b.yml case failure = %+v", fail)
	}
}

func TestWriteJobsJUnit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	jobs := []JobRow{
		{Name: "Lint", Status: "success", Steps: []StepRow{{Name: "checkout", Status: "success"}, {Name: "lint", Status: "success"}}},
		{Name: "Test-full", Status: "failure", Steps: []StepRow{
			{Name: "install", Status: "failure", Message: "pip exited 1"},
			{Name: "test", Status: "skipped"},
		}},
	}
	if err := WriteJobsJUnit(dir, "abcd1234", jobs, time.Minute); err != nil {
		t.Fatalf("WriteJobsJUnit: %v", err)
	}
	root := readSuites(t, filepath.Join(dir, "jobs.xml"))
	if root.Tests != 4 || root.Failures != 1 {
		t.Errorf("tests=%d failures=%d", root.Tests, root.Failures)
	}
	if root.Suites[1].Skipped != 1 || root.Suites[1].Cases[1].Skipped == nil {
		t.Errorf("skipped step not recorded: %+v", root.Suites[1])
	}
}

func TestFindingsSummaryLine(t *testing.T) {
	if got := FindingsSummaryLine(0, 0, 0, 0, 12, false); got != "0 findings in 12 files: no findings" {
		t.Errorf("clean = %q", got)
	}
	got := FindingsSummaryLine(4, 1, 2, 1, 3, false)
	if got != "4 findings in 3 files: 1 critical, 2 warning, 1 info" {
		t.Errorf("mixed = %q", got)
	}
}

func TestGroupMarkers(t *testing.T) {
	t.Setenv("GITHUB_ACTIONS", "true")
	t.Setenv("GITLAB_CI", "")
	var buf bytes.Buffer
	GroupStart(&buf, "job Lint", "Lint")
	GroupEnd(&buf, "job Lint")
	if buf.String() != "::group::Lint\n::endgroup::\n" {
		t.Errorf("github markers = %q", buf.String())
	}

	t.Setenv("GITHUB_ACTIONS", "")
	t.Setenv("GITLAB_CI", "true")
	buf.Reset()
	GroupStart(&buf, "job Lint", "Lint")
	if !strings.Contains(buf.String(), ":job_lint[collapsed=true]") {
		t.Errorf("gitlab marker = %q", buf.String())
	}

	t.Setenv("GITLAB_CI", "")
	buf.Reset()
	GroupStart(&buf, "x", "x")
	if buf.Len() != 0 {
		t.Errorf("outside CI wrote %q", buf.String())
	}
}

func TestCIContext(t *testing.T) {
	vars := map[string]string{
		"GITHUB_EVENT_NAME": "pull_request",
		"GITHUB_REF_NAME":   "42/merge",
		"GITHUB_SHA":        "0123456789abcdef",
	}
	kv := CIContext(func(k string) string { return vars[k] })
	want := []KV{{"event", "pull_request"}, {"ref", "42/merge"}, {"sha", "01234567"}}
	if len(kv) != len(want) {
		t.Fatalf("kv = %v", kv)
	}
	for i := range want {
		if kv[i] != want[i] {
			t.Errorf("kv[%d] = %v, want %v", i, kv[i], want[i])
		}
	}
}

func TestRunSummary(t *testing.T) {
	var buf bytes.Buffer
	RunSummary(&buf, []JobRow{
		{Name: "Lint", Status: "success", Detail: "0 findings"},
		{Name: "Test-full", Status: "failure", Detail: "test failed"},
	}, 90*time.Second, false)
	out := buf.String()
	for _, want := range []string{"Summary", "Lint", "✓", "Test-full", "✗", "1m30.0s"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}
