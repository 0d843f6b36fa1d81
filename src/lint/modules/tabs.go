package modules

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/sofmeright/qualitygate/src/lint"
)

func init() {
	lint.Register("tabs", func() lint.Module { return &tabsModule{} })
}

// tabsModule flags tab indentation where it breaks parsing: YAML forbids
// it outright, and Python rejects blocks that mix tabs and spaces.
type tabsModule struct{}

func (m *tabsModule) Name() string        { return "tabs" }
func (m *tabsModule) DefaultEnabled() bool { return true }
func (m *tabsModule) AutoDetect() []string { return []string{"*.yml", "*.yaml", "*.py"} }

// yamlTemplateSuffixes lists compound extensions where the inner layer is YAML.
var yamlTemplateSuffixes = []string{
	".yaml.tmpl", ".yml.tmpl",
	".yaml.j2", ".yml.j2",
	".yaml.in", ".yml.in",
}

func (m *tabsModule) Check(ctx context.Context, file lint.FileInfo) ([]lint.Finding, error) {
	yamlFile := isYAMLPath(file.Path)
	pyFile := strings.HasSuffix(file.Path, ".py") || strings.HasSuffix(file.Path, ".pyi")
	if !yamlFile && !pyFile {
		return nil, nil
	}

	f, err := os.Open(file.AbsPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var (
		findings   []lint.Finding
		tabLines   []int
		spaceLines int
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "\t"):
			tabLines = append(tabLines, lineNum)
		case strings.HasPrefix(line, " "):
			spaceLines++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	severity, msg := lint.SeverityCritical, "tab indentation (spaces expected)"
	if pyFile {
		if spaceLines > 0 {
			msg = "inconsistent use of tabs and spaces in indentation"
		} else {
			severity = lint.SeverityWarning
		}
	}
	for _, n := range tabLines {
		findings = append(findings, lint.Finding{
			File:     file.Path,
			Line:     n,
			Module:   m.Name(),
			Severity: severity,
			Message:  msg,
		})
	}
	return findings, nil
}

func isYAMLPath(path string) bool {
	ext := filepath.Ext(path)
	if ext == ".yml" || ext == ".yaml" {
		return true
	}
	base := filepath.Base(path)
	for _, suffix := range yamlTemplateSuffixes {
		if strings.HasSuffix(base, suffix) {
			return true
		}
	}
	return false
}
