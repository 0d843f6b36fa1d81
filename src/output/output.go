// Package output renders terminal sections, CI log groups and JUnit reports.
package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/sofmeright/qualitygate/src/lint"
)

// Colors for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// FindingsSummaryLine returns a one-line findings summary, optionally colored.
func FindingsSummaryLine(total, critical, warning, info, filesScanned int, color bool) string {
	parts := []string{}
	if critical > 0 {
		s := fmt.Sprintf("%d critical", critical)
		if color {
			s = colorRed + s + colorReset
		}
		parts = append(parts, s)
	}
	if warning > 0 {
		s := fmt.Sprintf("%d warning", warning)
		if color {
			s = colorYellow + s + colorReset
		}
		parts = append(parts, s)
	}
	if info > 0 {
		parts = append(parts, fmt.Sprintf("%d info", info))
	}

	summary := "no findings"
	if len(parts) > 0 {
		summary = strings.Join(parts, ", ")
	}

	totalStr := fmt.Sprintf("%d", total)
	if color {
		totalStr = colorBold + totalStr + colorReset
	}
	return fmt.Sprintf("%s findings in %d files: %s", totalStr, filesScanned, summary)
}

// severityTag returns a short severity label, optionally colored.
func severityTag(s lint.Severity, color bool) string {
	switch s {
	case lint.SeverityCritical:
		if color {
			return colorRed + "CRIT" + colorReset
		}
		return "CRIT"
	case lint.SeverityWarning:
		if color {
			return colorYellow + "WARN" + colorReset
		}
		return "WARN"
	case lint.SeverityInfo:
		if color {
			return colorGray + "INFO" + colorReset
		}
		return "INFO"
	default:
		return s.String()
	}
}

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// UseColor reports whether colored output should be used.
// Respects NO_COLOR, TERM=dumb and terminal detection.
func UseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return isTerminal() || IsCI()
}

// LintTable writes a per-module stats table inside a section.
func LintTable(w io.Writer, stats []lint.ModuleStats, color bool) {
	fmt.Fprintf(w, "    │ %-16s%6s  %6s  %8s  %s\n", "module", "files", "cached", "findings", "critical")

	for _, s := range stats {
		crit := fmt.Sprintf("%5d", s.Critical)
		if color && s.Critical > 0 {
			crit = colorRed + crit + colorReset
		}
		fmt.Fprintf(w, "    │ %-16s%5d   %5d   %8d  %s\n", s.Name, s.Files, s.Cached, s.Findings, crit)
	}
}

// SectionFindings renders findings grouped by file inside a section.
// Files are sorted lexicographically; findings within each file by line, col, module, message.
func SectionFindings(sec *Section, findings []lint.Finding, color bool) {
	if len(findings) == 0 {
		return
	}

	byFile := map[string][]lint.Finding{}
	for _, f := range findings {
		byFile[f.File] = append(byFile[f.File], f)
	}

	files := make([]string, 0, len(byFile))
	for file := range byFile {
		files = append(files, file)
	}
	sort.Strings(files)

	sec.Row("")

	for _, file := range files {
		ff := byFile[file]
		sort.Slice(ff, func(i, j int) bool {
			a, b := ff[i], ff[j]
			if a.Line != b.Line {
				return a.Line < b.Line
			}
			if a.Column != b.Column {
				return a.Column < b.Column
			}
			if a.Module != b.Module {
				return a.Module < b.Module
			}
			return a.Message < b.Message
		})

		if color {
			sec.Row("%s", colorBold+file+colorReset)
		} else {
			sec.Row("%s", file)
		}

		for _, f := range ff {
			var loc string
			switch {
			case f.Line == 0:
				loc = "-"
			case f.Column > 0:
				loc = fmt.Sprintf("%d:%d", f.Line, f.Column)
			default:
				loc = fmt.Sprintf("%d", f.Line)
			}
			sev := severityTag(f.Severity, color)
			sec.Row("  %-8s %-4s  %-10s %s", loc, sev, f.Module, f.Message)
		}

		sec.Row("")
	}
}

// RowStatus writes a row with label, detail, and a status icon.
func RowStatus(sec *Section, label, detail, status string, color bool) {
	icon := StatusIcon(status, color)
	if detail != "" {
		sec.Row("%s: %s %s", label, detail, icon)
	} else {
		sec.Row("%s %s", label, icon)
	}
}
