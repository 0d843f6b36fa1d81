package output

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sofmeright/qualitygate/src/lint"
)

// JUnit XML types for CI test reporting.

type JUnitTestSuites struct {
	XMLName  xml.Name         `xml:"testsuites"`
	Name     string           `xml:"name,attr"`
	Tests    int              `xml:"tests,attr"`
	Failures int              `xml:"failures,attr"`
	Time     string           `xml:"time,attr"`
	Suites   []JUnitTestSuite `xml:"testsuite"`
}

type JUnitTestSuite struct {
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Skipped  int             `xml:"skipped,attr,omitempty"`
	Time     string          `xml:"time,attr"`
	Cases    []JUnitTestCase `xml:"testcase"`
}

type JUnitTestCase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
}

type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

type JUnitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// WriteLintJUnit writes lint findings to <dir>/lint.xml.
// Each lint module becomes a test suite, each scanned file a test case.
// Only critical findings are failures.
func WriteLintJUnit(dir string, rep *lint.Report, modules []string, elapsed time.Duration) error {
	byModule := make(map[string]map[string][]lint.Finding, len(modules))
	for _, m := range modules {
		byModule[m] = make(map[string][]lint.Finding)
	}
	for _, f := range rep.Findings {
		if _, ok := byModule[f.Module]; !ok {
			byModule[f.Module] = make(map[string][]lint.Finding)
		}
		byModule[f.Module][f.File] = append(byModule[f.Module][f.File], f)
	}

	root := JUnitTestSuites{
		Name: "qualitygate-lint",
		Time: seconds(elapsed),
	}
	perModule := time.Duration(0)
	if len(modules) > 0 {
		perModule = elapsed / time.Duration(len(modules))
	}

	for _, mod := range modules {
		suite := JUnitTestSuite{Name: "lint/" + mod, Time: seconds(perModule)}

		for _, path := range rep.Paths {
			tc := JUnitTestCase{Name: path, Classname: "lint." + mod, Time: "0.000"}

			if ff := byModule[mod][path]; len(ff) > 0 {
				worst := lint.SeverityInfo
				lines := make([]string, 0, len(ff))
				for _, f := range ff {
					if f.Severity > worst {
						worst = f.Severity
					}
					lines = append(lines, fmt.Sprintf("  %s [%s] %s", f.Location(), f.Severity, f.Message))
				}
				if worst >= lint.SeverityCritical {
					tc.Failure = &JUnitFailure{
						Message: fmt.Sprintf("%d finding(s) in %s", len(ff), path),
						Type:    worst.String(),
						Body:    strings.Join(lines, "\n"),
					}
					suite.Failures++
				}
			}
			suite.Cases = append(suite.Cases, tc)
			suite.Tests++
		}

		root.Tests += suite.Tests
		root.Failures += suite.Failures
		root.Suites = append(root.Suites, suite)
	}

	return writeJUnit(filepath.Join(dir, "lint.xml"), root)
}

// StepRow is one step of a job for WriteJobsJUnit.
type StepRow struct {
	Name     string
	Status   string // success, failure, warning, skipped
	Message  string
	Duration time.Duration
}

// JobRow summarizes one job for the run summary and WriteJobsJUnit.
type JobRow struct {
	Name     string
	Status   string // success or failure
	Detail   string
	Duration time.Duration
	Steps    []StepRow
}

// WriteJobsJUnit writes <dir>/jobs.xml with one suite per job and one
// case per step. Failed steps are failures, skipped steps are skipped.
func WriteJobsJUnit(dir, runID string, jobs []JobRow, elapsed time.Duration) error {
	root := JUnitTestSuites{Name: "qualitygate-" + runID, Time: seconds(elapsed)}

	for _, j := range jobs {
		suite := JUnitTestSuite{Name: j.Name, Time: seconds(j.Duration)}
		for _, st := range j.Steps {
			tc := JUnitTestCase{Name: st.Name, Classname: "jobs." + j.Name, Time: seconds(st.Duration)}
			switch st.Status {
			case "failure":
				tc.Failure = &JUnitFailure{Message: st.Message, Type: "failure", Body: st.Message}
				suite.Failures++
			case "skipped":
				tc.Skipped = &JUnitSkipped{}
				suite.Skipped++
			}
			suite.Cases = append(suite.Cases, tc)
			suite.Tests++
		}
		root.Tests += suite.Tests
		root.Failures += suite.Failures
		root.Suites = append(root.Suites, suite)
	}

	return writeJUnit(filepath.Join(dir, "jobs.xml"), root)
}

func writeJUnit(path string, root JUnitTestSuites) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	if err := enc.Encode(root); err != nil {
		return fmt.Errorf("encoding junit xml: %w", err)
	}
	_, err = f.WriteString("\n")
	return err
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}
