package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sofmeright/qualitygate/src/cache"
	"github.com/sofmeright/qualitygate/src/logging"
	"github.com/sofmeright/qualitygate/src/pipeline"
)

var cacheDir string

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the dataset cache",
}

var cacheKeyCmd = &cobra.Command{
	Use:   "key",
	Short: "Print the cache key for this runner",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), cache.NewKey(cfg.Cache.OS, cfg.Cache.Version))
		return nil
	},
}

var cacheRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore the dataset directory from the cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := cacheManager()
		if err != nil {
			return err
		}
		res, err := m.Restore(cmd.Context())
		if err != nil {
			return err
		}
		if res.Hit {
			fmt.Fprintf(cmd.OutOrStdout(), "restored %s into %s\n", res.Key, m.Path)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "cache miss for %s\n", res.Key)
		}
		return nil
	},
}

var cacheSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save the dataset directory unless the key already exists",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := cacheManager()
		if err != nil {
			return err
		}
		saved, err := m.Save(cmd.Context(), cache.Restored{})
		if err != nil {
			return err
		}
		if saved {
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", m.Key)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "not saved: %s already present or nothing to save\n", m.Key)
		}
		return nil
	},
}

func cacheManager() (*cache.Manager, error) {
	dir, err := workdir(cacheDir)
	if err != nil {
		return nil, err
	}
	return pipeline.CacheManager(cfg, dir, nil, logging.C("cache"))
}

func init() {
	cacheCmd.PersistentFlags().StringVar(&cacheDir, "workdir", "", "repository root for relative cache paths (default: current directory)")
	cacheCmd.AddCommand(cacheKeyCmd, cacheRestoreCmd, cacheSaveCmd)
	rootCmd.AddCommand(cacheCmd)
}
