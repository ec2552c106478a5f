package main

import (
	"fmt"

	"fssim/internal/harness"
	"fssim/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	soakRuns     int
	soakParallel int
)

// soakCmd runs many seeds concurrently
var soakCmd = &cobra.Command{
	Use:   "soak",
	Short: "Run many seeds, each in its own world",
	Long: `Runs seeds seed..seed+runs-1. Every run gets fresh backends, so runs are
independent and may execute in parallel.

Example:
  fssim soak --runs 50 --parallel 4 --ops 500`,
	RunE: runSoak,
}

func init() {
	addRunFlags(soakCmd)
	soakCmd.Flags().IntVar(&soakRuns, "runs", 10, "Number of seeds to run")
	soakCmd.Flags().IntVar(&soakParallel, "parallel", 2, "Maximum concurrent runs")
}

func runSoak(cmd *cobra.Command, args []string) error {
	applyRunFlags(cmd)
	log := logging.Named(logger, cfg.Logging, logging.CategoryCLI)

	h, err := harness.NewHarness(cfg, logger, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	log.Info("Starting soak",
		zap.Int64("first_seed", cfg.Seed),
		zap.Int("runs", soakRuns),
		zap.Int("parallel", soakParallel))

	results, err := h.Soak(ctx, soakRuns, soakParallel)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if !r.Verified {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d runs", errNotVerified, failed, len(results))
	}
	return nil
}
