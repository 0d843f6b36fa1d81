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
	lint.Register("conflicts", func() lint.Module { return &conflictsModule{} })
}

// conflictsModule flags merge conflict markers and paths that collide on
// case-insensitive filesystems.
type conflictsModule struct{}

func (m *conflictsModule) Name() string        { return "conflicts" }
func (m *conflictsModule) DefaultEnabled() bool { return true }
func (m *conflictsModule) AutoDetect() []string { return nil }

// A bare "=======" line is also a reStructuredText underline, so it only
// counts when the file has an opening or closing marker too.
func (m *conflictsModule) Check(ctx context.Context, file lint.FileInfo) ([]lint.Finding, error) {
	f, err := os.Open(file.AbsPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var (
		findings  []lint.Finding
		separator []lint.Finding
		bracketed bool
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r")

		var marker string
		switch {
		case strings.HasPrefix(line, "<<<<<<< "), line == "<<<<<<<":
			marker = "<<<<<<<"
		case strings.HasPrefix(line, ">>>>>>> "), line == ">>>>>>>":
			marker = ">>>>>>>"
		case line == "=======":
			separator = append(separator, m.finding(file, lineNum, "======="))
			continue
		default:
			continue
		}
		bracketed = true
		findings = append(findings, m.finding(file, lineNum, marker))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if bracketed {
		findings = append(findings, separator...)
	}
	return findings, nil
}

func (m *conflictsModule) finding(file lint.FileInfo, line int, marker string) lint.Finding {
	return lint.Finding{
		File:     file.Path,
		Line:     line,
		Module:   m.Name(),
		Severity: lint.SeverityCritical,
		Message:  "merge conflict marker: " + marker,
	}
}

// CheckTree implements lint.TreeModule.
func (m *conflictsModule) CheckTree(files []lint.FileInfo) []lint.Finding {
	return CheckFilenameCollisions(files)
}

// CheckFilenameCollisions detects case-insensitive filename collisions across a set of files.
func CheckFilenameCollisions(files []lint.FileInfo) []lint.Finding {
	seen := make(map[string]string) // lowercase path -> original path
	var findings []lint.Finding

	for _, f := range files {
		lower := strings.ToLower(filepath.ToSlash(f.Path))
		if original, exists := seen[lower]; exists && original != f.Path {
			findings = append(findings, lint.Finding{
				File:     f.Path,
				Module:   "conflicts",
				Severity: lint.SeverityCritical,
				Message:  "case-insensitive filename collision with " + original,
			})
		} else {
			seen[lower] = f.Path
		}
	}

	return findings
}
