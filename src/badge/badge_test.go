package badge

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sofmeright/qualitygate/src/coverage"
	"github.com/sofmeright/qualitygate/src/job"
	"github.com/sofmeright/qualitygate/src/logging"
)

func testEngine(t *testing.T, embed bool) *Engine {
	t.Helper()
	m, err := LoadGoFont(11)
	if err != nil {
		t.Fatalf("LoadGoFont: %v", err)
	}
	return New(m, embed)
}

func TestTextWidthScalesWithLength(t *testing.T) {
	m, err := LoadGoFont(11)
	if err != nil {
		t.Fatalf("LoadGoFont: %v", err)
	}
	if m.FontName() == "" {
		t.Error("font name should be read from the name table")
	}
	short, long := m.TextWidth("ok"), m.TextWidth("coverage report")
	if short <= 0 || long <= short {
		t.Errorf("widths: %q=%v %q=%v", "ok", short, "coverage report", long)
	}
	if m.TextWidth("☃") <= 0 {
		t.Error("unmapped runes should use the fallback width")
	}
}

func TestGenerate(t *testing.T) {
	svg := testEngine(t, false).Generate(Badge{Label: "Test-full", Value: "a<b", Color: "#4c1"})
	if !strings.HasPrefix(svg, "<svg") || !strings.HasSuffix(svg, "</svg>") {
		t.Fatalf("not an svg document: %.60s", svg)
	}
	if !strings.Contains(svg, "a&lt;b") {
		t.Error("value should be XML-escaped")
	}
	if strings.Contains(svg, "@font-face") {
		t.Error("font should not be embedded")
	}

	embedded := testEngine(t, true).Generate(Badge{Label: "x", Value: "y", Color: "#4c1"})
	if !strings.Contains(embedded, "@font-face") || !strings.Contains(embedded, "format('truetype')") {
		t.Error("embedded badge should carry the font")
	}
}

func TestCoverageColor(t *testing.T) {
	tests := []struct {
		pct  float64
		want string
	}{
		{100, "#4c1"},
		{90, "#4c1"},
		{85, "#97ca00"},
		{72.5, "#a4a61d"},
		{60, "#dfb317"},
		{55, "#fe7d37"},
		{10, "#e05d44"},
	}
	for _, tt := range tests {
		if got := CoverageColor(tt.pct); got != tt.want {
			t.Errorf("CoverageColor(%v) = %s, want %s", tt.pct, got, tt.want)
		}
	}
	if b := Coverage(87.6); b.Value != "88%" {
		t.Errorf("Coverage value = %q", b.Value)
	}
}

func TestWriterWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "badges")
	w, err := NewWriter(dir, 0, logging.Discard())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	paths, err := w.Write(&job.Result{
		Name:     "Test-full",
		Status:   job.StatusSuccess,
		Artifact: &coverage.Artifact{Percent: 93},
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("paths = %v", paths)
	}
	data, err := os.ReadFile(filepath.Join(dir, "coverage-Test-full.svg"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "93%") {
		t.Error("coverage badge should show the percentage")
	}

	paths, err = w.Write(&job.Result{Name: "Lint / style", Status: job.StatusFailure})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(paths) != 1 || filepath.Base(paths[0]) != "job-Lint_style.svg" {
		t.Fatalf("paths = %v", paths)
	}
	data, err = os.ReadFile(paths[0])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "failed") || !strings.Contains(string(data), "#e05d44") {
		t.Error("failed job badge should be red")
	}
}
