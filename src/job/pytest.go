package job

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/sofmeright/qualitygate/src/command"
	"github.com/sofmeright/qualitygate/src/coverage"
	"github.com/sofmeright/qualitygate/src/provision"
)

// Pytest runs the test suite verbosely with coverage scoped to Package.
type Pytest struct {
	Package   string
	Target    string // test target relative to the checkout
	ReportDir string // relative to the checkout
	Flags     []string
	Runner    command.Runner
	Out       io.Writer
	Log       *logrus.Entry
}

// Args returns the pytest command line for def, writing the XML report to
// report.
func (p *Pytest) Args(def Definition, report string) []string {
	args := []string{
		"-m", "pytest", "-v", p.Target,
		"--cov=" + p.Package,
		"--cov-report", "term",
		"--cov-report", "xml:" + report,
	}
	return append(args, def.TestArgs...)
}

// Test implements Tester. A non-zero exit fails the step; the artifact is
// still returned when coverage could be read.
func (p *Pytest) Test(ctx context.Context, dir string, env *provision.Env, def Definition) (*coverage.Artifact, error) {
	if env == nil {
		return nil, fmt.Errorf("no provisioned environment")
	}

	reportDir := p.ReportDir
	if !filepath.IsAbs(reportDir) {
		reportDir = filepath.Join(dir, reportDir)
	}
	if err := os.MkdirAll(reportDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating report dir: %w", err)
	}
	report := filepath.Join(reportDir, unsafeDirChars.ReplaceAllString(def.Name, "_")+".xml")

	var term bytes.Buffer
	var stdout io.Writer = &term
	if p.Out != nil {
		stdout = io.MultiWriter(p.Out, &term)
	}

	runErr := p.Runner.Run(ctx, command.Command{
		Name:   env.Python,
		Args:   p.Args(def, report),
		Dir:    dir,
		Stdout: stdout,
		Stderr: p.Out,
	})

	art, parseErr := p.artifact(&term, report)
	if art != nil {
		art.Job = def.Name
		art.Flags = append([]string{def.Name}, p.Flags...)
	}
	if runErr != nil {
		return art, fmt.Errorf("pytest: %w", runErr)
	}
	if parseErr != nil {
		return nil, fmt.Errorf("reading coverage: %w", parseErr)
	}
	return art, nil
}

// artifact reads totals from the term table and falls back to the XML
// report when the table is missing.
func (p *Pytest) artifact(term io.Reader, report string) (*coverage.Artifact, error) {
	_, statErr := os.Stat(report)
	hasReport := statErr == nil

	art, err := coverage.ParseTerm(term, p.Package)
	if errors.Is(err, coverage.ErrNoCoverage) && hasReport {
		art, err = coverage.ParseCobertura(report, p.Package)
	}
	if err != nil {
		return nil, err
	}
	if hasReport {
		art.ReportPath = report
	} else if !errors.Is(statErr, fs.ErrNotExist) && p.Log != nil {
		p.Log.Warnf("coverage report %s: %v", report, statErr)
	}
	return art, nil
}
