package main

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/safety-envelope/internal/eval"
	"github.com/danielpatrickdp/safety-envelope/internal/orchestrator"
	"github.com/danielpatrickdp/safety-envelope/internal/store"
	"github.com/danielpatrickdp/safety-envelope/internal/telemetry"
)

// #region run

type runFlags struct {
	config   string
	db       string
	episodes int
	workers  int
	seed     uint64
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a seeded random policy on the configured grid and evaluate each episode",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEpisodes(cmd, f)
		},
	}
	cmd.Flags().StringVar(&f.config, "config", envOr("SAFETY_CONFIG", ""), "path to the YAML config")
	cmd.Flags().StringVar(&f.db, "db", envOr("SAFETY_DB", ""), "SQLite journal, overrides store.path")
	cmd.Flags().IntVar(&f.episodes, "episodes", 0, "episodes to run, overrides run.episodes")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "parallel workers, overrides run.workers")
	cmd.Flags().Uint64Var(&f.seed, "seed", 0, "base seed, overrides run.seed")
	return cmd
}

func runEpisodes(cmd *cobra.Command, f runFlags) error {
	cfg, logger, err := loadConfig(f.config, f.db)
	if err != nil {
		return err
	}
	if f.episodes > 0 {
		cfg.Run.Episodes = f.episodes
	}
	if f.workers > 0 {
		cfg.Run.Workers = f.workers
	}
	if cmd.Flags().Changed("seed") {
		cfg.Run.Seed = f.seed
	}

	st, err := store.NewStore(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	o, err := orchestrator.NewOrchestrator(cfg, orchestrator.Deps{
		Store:   st,
		Metrics: telemetry.New(),
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	results, report, err := o.Run(ctx)
	if err != nil {
		return err
	}
	printRun(cmd.OutOrStdout(), results, report)
	return nil
}

func printRun(w io.Writer, results []orchestrator.EpisodeResult, report eval.Report) {
	fmt.Fprintf(w, "%-8s  %6s  %5s  %9s  %4s  %4s  %-9s  %s\n",
		"Episode", "Seed", "Steps", "Reward", "Viol", "Ovr", "Outcome", "Eval")
	for _, r := range results {
		ep := r.Episode
		verdict := "pass"
		if !r.Eval.Passed {
			verdict = r.Eval.Reason
		}
		fmt.Fprintf(w, "%-8s  %6d  %5d  %9.3f  %4d  %4d  %-9s  %s\n",
			shortID(ep.EpisodeID), ep.Seed, ep.Steps, ep.TotalReward, ep.Violations, ep.Overrides, ep.Outcome, verdict)
	}
	fmt.Fprintf(w, "\n%d/%d episodes passed (%.0f%%)\n", report.Passed, report.Episodes, 100*report.PassRate())
}

// #endregion run
