// Package coverage parses test coverage reports and uploads them to Codecov.
package coverage

import (
	"bufio"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrNoCoverage is returned when a report contains no coverage table.
var ErrNoCoverage = errors.New("no coverage data")

// FileCoverage is the line coverage of one source file.
type FileCoverage struct {
	Name       string
	Statements int
	Missed     int
	Percent    float64
}

// Artifact is the coverage produced by one test job.
type Artifact struct {
	Package    string
	Job        string
	Percent    float64
	Statements int
	Missed     int
	Files      []FileCoverage
	ReportPath string // uploadable report (Cobertura XML)
	Flags      []string
}

// Covered returns the number of executed statements.
func (a *Artifact) Covered() int { return a.Statements - a.Missed }

// ParseTerm parses the pytest-cov "term" table:
//
//	Name               Stmts   Miss  Cover
//	--------------------------------------
//	skada/base.py        120     12    90%
//	--------------------------------------
//	TOTAL                130     12    91%
//
// Branch columns (Branch, BrPart) and a trailing Missing column are tolerated.
// File names must not contain spaces.
func ParseTerm(r io.Reader, pkg string) (*Artifact, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		cols    map[string]int
		art     = &Artifact{Package: pkg}
		total   bool
		inTable bool
	)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		fields := strings.Fields(line)
		if len(fields) == 0 {
			if inTable {
				break
			}
			continue
		}
		if fields[0] == "Name" && containsField(fields, "Stmts") {
			cols = make(map[string]int, len(fields))
			for i, f := range fields {
				cols[f] = i
			}
			inTable = true
			continue
		}
		if !inTable || strings.HasPrefix(line, "---") {
			continue
		}

		row, ok := parseRow(fields, cols)
		if !ok {
			continue
		}
		if row.Name == "TOTAL" {
			art.Statements, art.Missed, art.Percent = row.Statements, row.Missed, row.Percent
			total = true
			break
		}
		art.Files = append(art.Files, row)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if cols == nil {
		return nil, ErrNoCoverage
	}

	// A single-file table has no TOTAL row.
	if !total {
		for _, f := range art.Files {
			art.Statements += f.Statements
			art.Missed += f.Missed
		}
		art.Percent = percent(art.Statements, art.Missed)
	}
	return art, nil
}

func containsField(fields []string, want string) bool {
	for _, f := range fields {
		if f == want {
			return true
		}
	}
	return false
}

// parseRow maps a data row onto the header columns. The Missing column may
// hold several space-separated ranges, so only the leading columns are used.
func parseRow(fields []string, cols map[string]int) (FileCoverage, bool) {
	at := func(col string) (string, bool) {
		i, ok := cols[col]
		if !ok || i >= len(fields) {
			return "", false
		}
		return fields[i], true
	}

	stmts, ok1 := at("Stmts")
	miss, ok2 := at("Miss")
	cover, ok3 := at("Cover")
	if !ok1 || !ok2 || !ok3 {
		return FileCoverage{}, false
	}
	s, err1 := strconv.Atoi(stmts)
	m, err2 := strconv.Atoi(miss)
	p, err3 := strconv.ParseFloat(strings.TrimSuffix(cover, "%"), 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return FileCoverage{}, false
	}
	return FileCoverage{Name: fields[0], Statements: s, Missed: m, Percent: p}, true
}

func percent(statements, missed int) float64 {
	if statements == 0 {
		return 100
	}
	return float64(statements-missed) * 100 / float64(statements)
}

type cobertura struct {
	LineRate float64 `xml:"line-rate,attr"`
	Packages []struct {
		Classes []struct {
			Filename string `xml:"filename,attr"`
			Lines    []struct {
				Number int `xml:"number,attr"`
				Hits   int `xml:"hits,attr"`
			} `xml:"lines>line"`
		} `xml:"classes>class"`
	} `xml:"packages>package"`
}

// ParseCobertura reads a Cobertura XML report as written by
// `--cov-report xml:<path>`.
func ParseCobertura(path string, pkg string) (*Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var doc cobertura
	if err := xml.NewDecoder(f).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	art := &Artifact{Package: pkg, ReportPath: path}
	for _, p := range doc.Packages {
		for _, c := range p.Classes {
			fc := FileCoverage{Name: c.Filename, Statements: len(c.Lines)}
			for _, l := range c.Lines {
				if l.Hits == 0 {
					fc.Missed++
				}
			}
			fc.Percent = percent(fc.Statements, fc.Missed)
			art.Files = append(art.Files, fc)
			art.Statements += fc.Statements
			art.Missed += fc.Missed
		}
	}
	if len(art.Files) == 0 && doc.LineRate == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoCoverage)
	}
	art.Percent = percent(art.Statements, art.Missed)
	return art, nil
}
