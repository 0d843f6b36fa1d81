package modules

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/sofmeright/qualitygate/src/lint"
)

func init() {
	lint.Register("lineendings", func() lint.Module {
		return &lineEndingsModule{severity: lint.SeverityCritical}
	})
}

// lineEndingsModule mirrors the trailing-whitespace, end-of-file-fixer and
// mixed-line-ending hooks.
type lineEndingsModule struct {
	severity lint.Severity
}

func (m *lineEndingsModule) Name() string        { return "lineendings" }
func (m *lineEndingsModule) DefaultEnabled() bool { return true }
func (m *lineEndingsModule) AutoDetect() []string { return nil }

// Configure implements lint.ConfigurableModule.
func (m *lineEndingsModule) Configure(opts map[string]any) error {
	sev, err := parseSeverity(opts, lint.SeverityCritical)
	if err != nil {
		return err
	}
	m.severity = sev
	return nil
}

func (m *lineEndingsModule) Check(ctx context.Context, file lint.FileInfo) ([]lint.Finding, error) {
	data, err := os.ReadFile(file.AbsPath)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || isBinary(data) {
		return nil, nil
	}

	var findings []lint.Finding
	add := func(line int, sev lint.Severity, msg string) {
		findings = append(findings, lint.Finding{
			File:     file.Path,
			Line:     line,
			Module:   m.Name(),
			Severity: sev,
			Message:  msg,
		})
	}

	crlfCount := bytes.Count(data, []byte("\r\n"))
	lfCount := bytes.Count(data, []byte("\n")) - crlfCount

	if crlfCount > 0 && lfCount > 0 {
		add(1, m.severity, "mixed line endings (CRLF and LF)")
	}
	if crlfCount > 0 && lfCount == 0 {
		add(1, lint.SeverityInfo, "file uses CRLF line endings")
	}

	// Markdown uses two trailing spaces as a hard line break.
	markdown := strings.EqualFold(filepath.Ext(file.Path), ".md")

	lines := bytes.Split(data, []byte("\n"))
	for i, line := range lines {
		if i == len(lines)-1 && len(line) == 0 {
			continue
		}
		stripped := bytes.TrimRight(line, "\r")
		trimmed := bytes.TrimRight(stripped, " \t")
		if len(trimmed) == len(stripped) {
			continue
		}
		if markdown && len(trimmed) > 0 && string(stripped[len(trimmed):]) == "  " {
			continue
		}
		add(i+1, m.severity, "trailing whitespace")
	}

	if data[len(data)-1] != '\n' {
		add(len(lines), m.severity, "missing final newline")
	} else if bytes.HasSuffix(data, []byte("\n\n")) || bytes.HasSuffix(data, []byte("\r\n\r\n")) {
		add(len(lines)-1, m.severity, "extra blank lines at end of file")
	}

	return findings, nil
}
