package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sofmeright/qualitygate/src/job"
	"github.com/sofmeright/qualitygate/src/trigger"
)

var (
	triggerEvent eventFlags
	triggerDir   string
)

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Show whether an event would start a run",
	Long: `Evaluate the event against the configured triggers without running
anything. Prints the decision and the jobs that would be instantiated.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := workdir(triggerDir)
		if err != nil {
			return err
		}
		ev, err := triggerEvent.resolve(dir)
		if err != nil {
			return fmt.Errorf("resolving event: %w", err)
		}

		d := trigger.NewEvaluator(cfg.Triggers, job.Names(job.Standard(cfg))).Evaluate(ev)
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "event:   %s\n", ev)
		if d.Run {
			fmt.Fprintf(w, "run:     yes (%s)\n", d.Reason)
			fmt.Fprintf(w, "jobs:    %s\n", strings.Join(d.Jobs, ", "))
		} else {
			fmt.Fprintf(w, "run:     no (%s)\n", d.Reason)
		}
		return nil
	},
}

func init() {
	triggerEvent.register(triggerCmd)
	triggerCmd.Flags().StringVar(&triggerDir, "workdir", "", "repository root (default: current directory)")
	rootCmd.AddCommand(triggerCmd)
}
