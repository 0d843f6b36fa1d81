package job

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sofmeright/qualitygate/src/command"
	"github.com/sofmeright/qualitygate/src/config"
	"github.com/sofmeright/qualitygate/src/lint"
	_ "github.com/sofmeright/qualitygate/src/lint/modules"
	"github.com/sofmeright/qualitygate/src/output"
	"github.com/sofmeright/qualitygate/src/provision"
)

// EngineLinter runs the built-in lint engine over the checkout and, when
// configured, the project's own pre-commit hooks.
type EngineLinter struct {
	Config config.LintConfig
	Runner command.Runner
	Out    io.Writer
	Color  bool
	Log    *logrus.Entry
}

// Lint implements Linter. Critical findings fail the job.
func (l *EngineLinter) Lint(ctx context.Context, dir string, env *provision.Env) error {
	start := time.Now()
	eng, err := lint.NewEngine(l.Config, dir, nil, nil, lint.NewCache(dir, l.Config.CacheDir), l.Log)
	if err != nil {
		return err
	}
	rep, err := eng.Scan(ctx)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	if l.Out != nil {
		sec := output.NewSection(l.Out, "Lint", elapsed, l.Color)
		output.LintTable(l.Out, rep.Stats, l.Color)
		sec.Separator()
		output.SectionFindings(sec, rep.Findings, l.Color)
		sec.Row("%s", output.FindingsSummaryLine(len(rep.Findings),
			rep.Count(lint.SeverityCritical), rep.Count(lint.SeverityWarning), rep.Count(lint.SeverityInfo),
			rep.Files, l.Color))
		sec.Close()
	}

	if l.Config.ReportDir != "" {
		reportDir := l.Config.ReportDir
		if !filepath.IsAbs(reportDir) {
			reportDir = filepath.Join(dir, reportDir)
		}
		if err := output.WriteLintJUnit(reportDir, rep, eng.ModuleNames(), elapsed); err != nil && l.Log != nil {
			l.Log.Warnf("writing lint report: %v", err)
		}
	}

	if n := rep.Count(lint.SeverityCritical); n > 0 {
		return fmt.Errorf("%d critical lint findings", n)
	}

	if l.Config.PreCommit {
		return l.preCommit(ctx, dir, env)
	}
	return nil
}

func (l *EngineLinter) preCommit(ctx context.Context, dir string, env *provision.Env) error {
	if env == nil {
		return fmt.Errorf("pre-commit requires a provisioned environment")
	}
	steps := [][]string{
		{"-m", "pip", "install", "pre-commit"},
		{"-m", "pre_commit", "run", "--all-files", "--show-diff-on-failure"},
	}
	for _, args := range steps {
		err := l.Runner.Run(ctx, command.Command{
			Name:   env.Python,
			Args:   args,
			Dir:    dir,
			Stdout: l.Out,
			Stderr: l.Out,
		})
		if err != nil {
			return fmt.Errorf("pre-commit: %w", err)
		}
	}
	return nil
}
