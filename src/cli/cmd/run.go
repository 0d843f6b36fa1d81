package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/go-git/go-git/v5"
	"github.com/spf13/cobra"

	"github.com/sofmeright/qualitygate/src/badge"
	"github.com/sofmeright/qualitygate/src/forge"
	"github.com/sofmeright/qualitygate/src/job"
	"github.com/sofmeright/qualitygate/src/logging"
	"github.com/sofmeright/qualitygate/src/output"
	"github.com/sofmeright/qualitygate/src/pipeline"
	"github.com/sofmeright/qualitygate/src/trigger"
)

var (
	runEvent     eventFlags
	runJobs      []string
	runDir       string
	runReportDir string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Evaluate an event and run the triggered jobs",
	Long: `Evaluate the event against the configured triggers and, on a match,
run every job concurrently. A failing job does not cancel the others.
The exit status is non-zero when any job failed.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runEvent.register(runCmd)
	runCmd.Flags().StringSliceVar(&runJobs, "job", nil, "run only these jobs (comma-separated)")
	runCmd.Flags().StringVar(&runDir, "workdir", "", "repository root (default: current directory)")
	runCmd.Flags().StringVar(&runReportDir, "report-dir", ".qualitygate/reports", "directory for jobs.xml (empty disables)")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	dir, err := workdir(runDir)
	if err != nil {
		return err
	}
	ev, err := runEvent.resolve(dir)
	if err != nil {
		return fmt.Errorf("resolving event: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	color := output.UseColor()
	w := cmd.OutOrStdout()

	p, err := pipeline.Build(cfg, pipeline.Options{SourceDir: dir, Out: w, Color: color})
	if err != nil {
		return err
	}
	if len(runJobs) > 0 {
		defs, err := selectJobs(p.Definitions, runJobs)
		if err != nil {
			return err
		}
		p.Definitions = defs
		p.Evaluator = trigger.NewEvaluator(cfg.Triggers, job.Names(defs))
	}
	p.Observers, err = observers(dir)
	if err != nil {
		return err
	}

	output.ContextBlock(w, output.CIContext(os.Getenv))

	run, err := p.Execute(ctx, ev)
	if err != nil {
		return err
	}
	if !run.Triggered() {
		fmt.Fprintf(w, "not triggered: %s\n", run.Decision.Reason)
		return nil
	}

	rows := jobRows(run)
	output.RunSummary(w, rows, run.Duration(), color)
	if runReportDir != "" {
		reportDir := runReportDir
		if !filepath.IsAbs(reportDir) {
			reportDir = filepath.Join(dir, reportDir)
		}
		if err := output.WriteJobsJUnit(reportDir, run.ID.String()[:8], rows, run.Duration()); err != nil {
			logging.C("cli").Warnf("writing jobs report: %v", err)
		}
	}

	if run.Succeeded() {
		return nil
	}
	for _, res := range run.Failed() {
		output.Annotate(cmd.ErrOrStderr(), res.Name, fmt.Sprint(res.Err))
	}
	return errFailed
}

func workdir(flag string) (string, error) {
	if flag == "" {
		return os.Getwd()
	}
	return filepath.Abs(flag)
}

func selectJobs(defs []job.Definition, names []string) ([]job.Definition, error) {
	out := make([]job.Definition, 0, len(names))
	for _, n := range names {
		def, ok := job.Find(defs, strings.TrimSpace(n))
		if !ok {
			return nil, fmt.Errorf("unknown job %q (configured: %s)", n, strings.Join(job.Names(defs), ", "))
		}
		out = append(out, def)
	}
	return out, nil
}

// observers builds the badge writer and status publisher enabled in config.
func observers(dir string) ([]pipeline.Observer, error) {
	var obs []pipeline.Observer

	if cfg.Badges.Enabled {
		badgeDir := cfg.Badges.Dir
		if !filepath.IsAbs(badgeDir) {
			badgeDir = filepath.Join(dir, badgeDir)
		}
		bw, err := badge.NewWriter(badgeDir, cfg.Badges.FontSize, logging.C("badge"))
		if err != nil {
			return nil, fmt.Errorf("badges: %w", err)
		}
		obs = append(obs, bw)
	}

	if cfg.Status.Enabled {
		f, err := statusForge(dir)
		if err != nil {
			return nil, fmt.Errorf("status: %w", err)
		}
		obs = append(obs, &forge.StatusObserver{
			Forge:     f,
			Context:   cfg.Status.Context,
			TargetURL: cfg.Status.TargetURL,
			Log:       logging.C("status"),
		})
	}
	return obs, nil
}

// statusForge picks the forge from config, then the CI environment, then
// the origin remote.
func statusForge(dir string) (forge.Forge, error) {
	remote := originURL(dir)

	provider := forge.Provider(cfg.Status.Provider)
	if provider == "" {
		provider = forge.DetectFromEnv(os.Getenv)
	}
	if provider == forge.Unknown {
		provider = forge.DetectProvider(remote)
	}

	baseURL := cfg.Status.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("GITHUB_SERVER_URL")
	}
	if baseURL == "" && remote != "" {
		baseURL = forge.BaseURL(remote)
	}
	return forge.New(provider, baseURL, os.Getenv)
}

func originURL(dir string) string {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ""
	}
	origin, err := repo.Remote("origin")
	if err != nil || len(origin.Config().URLs) == 0 {
		return ""
	}
	return origin.Config().URLs[0]
}

func jobRows(run *pipeline.Run) []output.JobRow {
	rows := make([]output.JobRow, 0, len(run.Results))
	for _, res := range run.Results {
		rows = append(rows, jobRow(res))
	}
	return rows
}

func jobRow(res *job.Result) output.JobRow {
	row := output.JobRow{Name: res.Name, Status: string(res.Status), Duration: res.Duration}
	switch {
	case res.Status != job.StatusSuccess:
		row.Detail = fmt.Sprintf("%s failed", res.Failure)
	case res.Artifact != nil:
		row.Detail = fmt.Sprintf("coverage %.1f%%", res.Artifact.Percent)
	default:
		row.Detail = "ok"
	}
	if n := len(res.Warnings()); n > 0 {
		row.Detail += fmt.Sprintf(", %d warning(s)", n)
	}
	for _, st := range res.Steps {
		sr := output.StepRow{Name: st.Name, Status: string(st.Status), Duration: st.Duration}
		if st.Err != nil {
			sr.Message = st.Err.Error()
		}
		row.Steps = append(row.Steps, sr)
	}
	return row
}

