package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/sofmeright/qualitygate/src/config"
	"github.com/sofmeright/qualitygate/src/lint"
	_ "github.com/sofmeright/qualitygate/src/lint/modules"
	"github.com/sofmeright/qualitygate/src/logging"
	"github.com/sofmeright/qualitygate/src/output"
)

var (
	lintLevel    string
	lintModules  []string
	lintNoModule []string
	lintNoCache  bool
	lintAll      bool
	lintBase     string
)

var lintCmd = &cobra.Command{
	Use:   "lint [dir]",
	Short: "Run the lint checks locally",
	Long: `Run the lint checks outside a pipeline run.

By default only files changed since the merge base with the base branch
are scanned (--level changed, --base to pick the branch). Use --level full or --all to scan everything.
Modules run in parallel and results are cached by content hash.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLint,
}

func init() {
	lintCmd.Flags().StringVar(&lintLevel, "level", "", "scan level: changed or full (default: from config)")
	lintCmd.Flags().StringSliceVar(&lintModules, "module", nil, "run only these modules (comma-separated)")
	lintCmd.Flags().StringSliceVar(&lintNoModule, "no-module", nil, "skip these modules (comma-separated)")
	lintCmd.Flags().BoolVar(&lintNoCache, "no-cache", false, "clear the cache and rescan")
	lintCmd.Flags().BoolVar(&lintAll, "all", false, "scan all files (shorthand for --level full)")
	lintCmd.Flags().StringVar(&lintBase, "base", "", "branch the changed level diffs against (default: detected)")

	rootCmd.AddCommand(lintCmd)
}

func runLint(cmd *cobra.Command, args []string) error {
	log := logging.C("lint")
	lcfg := cfg.Lint

	// flag > config > changed
	switch {
	case lintAll:
		lcfg.Level = config.LevelFull
	case lintLevel != "":
		lcfg.Level = config.Level(lintLevel)
	case lcfg.Level == "":
		lcfg.Level = config.LevelChanged
	}
	if lintBase != "" {
		lcfg.BaseBranch = lintBase
	}
	if lcfg.Level != config.LevelChanged && lcfg.Level != config.LevelFull {
		return fmt.Errorf("unknown level %q (supported: changed, full)", lcfg.Level)
	}

	dir := ""
	if len(args) > 0 {
		dir = args[0]
	}
	rootDir, err := workdir(dir)
	if err != nil {
		return err
	}

	cache := lint.NewCache(rootDir, lcfg.CacheDir)
	if lintNoCache {
		if err := cache.Clear(); err != nil {
			log.Debugf("cache clear: %v", err)
		}
	}
	lint.EnsureGitignore(rootDir, ".qualitygate/")

	engine, err := lint.NewEngine(lcfg, rootDir, lintModules, lintNoModule, cache, log)
	if err != nil {
		return err
	}
	log.Debugf("modules: %v", engine.ModuleNames())

	start := time.Now()
	rep, err := engine.Scan(cmd.Context())
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	w := cmd.OutOrStdout()
	color := output.UseColor()
	critical := rep.Count(lint.SeverityCritical)

	output.GroupStart(w, "qg_lint", "Lint")
	sec := output.NewSection(w, "Lint", elapsed, color)
	output.LintTable(w, rep.Stats, color)
	sec.Separator()
	sec.Row("%d files, %d findings (%d critical)", rep.Files, len(rep.Findings), critical)
	sec.Close()
	output.GroupEnd(w, "qg_lint")

	if len(rep.Findings) > 0 {
		fSec := output.NewSection(w, "Findings", 0, color)
		output.SectionFindings(fSec, rep.Findings, color)
		fSec.Separator()
		fSec.Row("%s", output.FindingsSummaryLine(len(rep.Findings), critical,
			rep.Count(lint.SeverityWarning), rep.Count(lint.SeverityInfo), rep.Files, color))
		fSec.Close()
	}
	log.Debugf("cache: %d hits, %d misses", rep.CacheHits, rep.CacheMisses)

	if output.IsCI() && lcfg.ReportDir != "" {
		reportDir := lcfg.ReportDir
		if !filepath.IsAbs(reportDir) {
			reportDir = filepath.Join(rootDir, reportDir)
		}
		if err := output.WriteLintJUnit(reportDir, rep, engine.ModuleNames(), elapsed); err != nil {
			log.Warnf("writing junit report: %v", err)
		}
	}

	if !rep.Passed() {
		return errFailed
	}
	return nil
}
