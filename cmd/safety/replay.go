package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/safety-envelope/internal/logging"
	"github.com/danielpatrickdp/safety-envelope/internal/replay"
)

// #region replay

func newReplayCmd() *cobra.Command {
	var fixture, level string
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a JSON fixture through a safety envelope; exit 1 on drift",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if fixture == "" {
				return fmt.Errorf("--fixture is required")
			}
			logger, err := logging.New(logging.Config{Level: level, Writer: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			return replayFixture(cmd, fixture, logger)
		},
	}
	cmd.Flags().StringVar(&fixture, "fixture", "", "path to fixture JSON")
	cmd.Flags().StringVar(&level, "log-level", "warn", "log level")
	return cmd
}

func replayFixture(cmd *cobra.Command, path string, logger *slog.Logger) error {
	f, err := replay.LoadFixture(path)
	if err != nil {
		return err
	}
	results, err := replay.Replay(f, logger)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s\n", f.Description)
	fmt.Fprintf(w, "%-5s  %-8s  %-8s  %-9s  %8s  %s\n", "Step", "Proposed", "Applied", "Tag", "Reward", "Result")
	for _, r := range results {
		result := "ok"
		if !r.Passed() {
			result = "DRIFT"
		}
		fmt.Fprintf(w, "%-5d  %-8s  %-8s  %-9s  %8.3f  %s\n", r.Index, r.Proposed, r.Applied, r.Tag, r.Reward, result)
	}

	sum := replay.Summarize(results)
	fmt.Fprintf(w, "\nsteps=%d saved=%d violations=%d goals=%d ends=%d reward=%.3f\n",
		sum.TotalSteps, sum.Saved, sum.Violations, sum.Goals, sum.Ends, sum.TotalReward)
	if sum.Failures > 0 {
		fmt.Fprint(cmd.ErrOrStderr(), replay.Report(results))
		return errDrift
	}
	return nil
}

// #endregion replay
