package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/qualtrack/internal/config"
	"github.com/okian/qualtrack/pkg/logger"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "qualtrack-report",
	Short: "Offline cutoff and prediction reports",
	Long: `Computes virtual cutoffs and predictions from a saved segment fixture, and drives
refreshes on a running qualtrack server.

A fixture is a JSON document with the segment, its ranking list and each ranked
swimmer's history, as returned by /rankings and /personal-bests.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		// stdout carries reports
		if err := logger.InitWithWriter(os.Stderr); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		c, err := config.Load(cmd.Context())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		if err := logger.SetLevelString(cfg.LogLevel); err != nil {
			_ = logger.SetLevelString("info")
		}
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		_ = logger.Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
