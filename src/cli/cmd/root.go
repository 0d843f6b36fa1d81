package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sofmeright/qualitygate/src/config"
	"github.com/sofmeright/qualitygate/src/logging"
)

var (
	cfgFile   string
	verbose   bool
	logFormat string
	cfg       *config.Config
)

// errFailed is returned by commands whose outcome was already reported;
// it only sets the exit status.
var errFailed = errors.New("failed")

var rootCmd = &cobra.Command{
	Use:   "qualitygate",
	Short: "CI quality gate for Python projects",
	Long: `qualitygate runs the lint and test matrix of a Python project:
trigger filtering, dataset caching, interpreter provisioning, parallel
jobs and coverage upload.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := ""
		if verbose {
			level = "debug"
		}
		log := logging.Init(logging.Options{Level: level, Format: logFormat})

		// Skip config loading for commands that don't need it.
		if cmd.Name() == "version" {
			return nil
		}
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		warnings, err := config.Validate(cfg)
		for _, w := range warnings {
			log.Warn(w)
		}
		return err
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .qualitygate.yml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json (default: $LOG_FORMAT, then text)")
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		return 1
	}
	return 0
}
