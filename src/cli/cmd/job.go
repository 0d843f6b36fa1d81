package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sofmeright/qualitygate/src/job"
	"github.com/sofmeright/qualitygate/src/output"
	"github.com/sofmeright/qualitygate/src/pipeline"
)

var (
	jobEvent eventFlags
	jobDir   string
)

var jobCmd = &cobra.Command{
	Use:   "job <name>",
	Short: "Run a single job, bypassing trigger filters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := workdir(jobDir)
		if err != nil {
			return err
		}
		ev, err := jobEvent.resolve(dir)
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
		defs, err := selectJobs(p.Definitions, args)
		if err != nil {
			return err
		}

		output.GroupStart(w, "job_"+defs[0].Name, defs[0].String())
		res := job.New(defs[0], ev, p.Deps(defs[0])).Run(ctx)
		output.GroupEnd(w, "job_"+defs[0].Name)

		output.RunSummary(w, []output.JobRow{jobRow(res)}, res.Duration, color)
		if res.Status != job.StatusSuccess {
			output.Annotate(cmd.ErrOrStderr(), res.Name, fmt.Sprint(res.Err))
			return errFailed
		}
		return nil
	},
}

func init() {
	jobEvent.register(jobCmd)
	jobCmd.Flags().StringVar(&jobDir, "workdir", "", "repository root (default: current directory)")
	rootCmd.AddCommand(jobCmd)
}
