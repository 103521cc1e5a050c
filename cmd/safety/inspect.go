package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/safety-envelope/internal/envelope"
	"github.com/danielpatrickdp/safety-envelope/internal/store"
)

// #region inspect

type inspectFlags struct {
	db      string
	last    int
	episode string
	jsonOut bool
}

func newInspectCmd() *cobra.Command {
	var f inspectFlags
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List journaled episodes, or the steps of one episode",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f.db == "" {
				return fmt.Errorf("--db is required (or set SAFETY_DB)")
			}
			st, err := store.NewStore(f.db)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer st.Close()

			if f.episode != "" {
				return runDetailMode(cmd.OutOrStdout(), st, f.episode, f.jsonOut)
			}
			return runListMode(cmd.OutOrStdout(), st, f.last, f.jsonOut)
		},
	}
	cmd.Flags().StringVar(&f.db, "db", envOr("SAFETY_DB", ""), "path to the SQLite journal")
	cmd.Flags().IntVar(&f.last, "last", 20, "show N most recent episodes")
	cmd.Flags().StringVar(&f.episode, "episode", "", "show the steps of one episode")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "output as JSON instead of table")
	return cmd
}

// #endregion inspect

// #region list-mode

func runListMode(w io.Writer, st *store.Store, last int, jsonOut bool) error {
	eps, err := st.ListEpisodes(last)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(w, eps)
	}
	if len(eps) == 0 {
		fmt.Fprintln(w, "no episodes found")
		return nil
	}

	fmt.Fprintf(w, "%-8s  %6s  %6s  %5s  %9s  %4s  %4s  %4s  %-9s  %s\n",
		"Episode", "Worker", "Seed", "Steps", "Reward", "Viol", "Ovr", "Mism", "Outcome", "Started")
	for _, ep := range eps {
		outcome := ep.Outcome
		if !ep.Finished() {
			outcome = "running"
		}
		fmt.Fprintf(w, "%-8s  %6d  %6d  %5d  %9.3f  %4d  %4d  %4d  %-9s  %s\n",
			shortID(ep.EpisodeID), ep.Worker, ep.Seed, ep.Steps, ep.TotalReward,
			ep.Violations, ep.Overrides, ep.Mismatches, outcome, ep.StartedAt.Format("2006-01-02T15:04:05Z"))
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type detailOutput struct {
	Episode store.EpisodeRecord `json:"episode"`
	Steps   []detailStep        `json:"steps"`
}

type detailStep struct {
	store.StepRecord
	Monitors map[string]envelope.MonitorState `json:"monitors,omitempty"`
}

func runDetailMode(w io.Writer, st *store.Store, id string, jsonOut bool) error {
	ep, err := st.GetEpisode(id)
	if err != nil {
		return err
	}
	steps, err := st.Steps(id)
	if err != nil {
		return err
	}

	out := detailOutput{Episode: ep, Steps: make([]detailStep, len(steps))}
	for i, s := range steps {
		out.Steps[i] = detailStep{StepRecord: s}
		if s.MonitorsJSON != "" {
			if err := json.Unmarshal([]byte(s.MonitorsJSON), &out.Steps[i].Monitors); err != nil {
				return fmt.Errorf("step %d: decode monitors: %w", s.Step, err)
			}
		}
	}
	if jsonOut {
		return printJSON(w, out)
	}

	fmt.Fprintf(w, "Episode:    %s\n", ep.EpisodeID)
	fmt.Fprintf(w, "Worker:     %d\n", ep.Worker)
	fmt.Fprintf(w, "Seed:       %d\n", ep.Seed)
	fmt.Fprintf(w, "Outcome:    %s\n", ep.Outcome)
	fmt.Fprintf(w, "Reward:     %.4f\n", ep.TotalReward)
	fmt.Fprintf(w, "Violations: %d  Overrides: %d  Mismatches: %d\n", ep.Violations, ep.Overrides, ep.Mismatches)

	fmt.Fprintf(w, "\n%-5s  %-8s  %-8s  %-9s  %8s  %s\n", "Step", "Proposed", "Applied", "Tag", "Reward", "Monitors")
	for _, s := range out.Steps {
		fmt.Fprintf(w, "%-5d  %-8s  %-8s  %-9s  %8.3f  %s\n",
			s.Step, s.Proposed, s.Applied, s.Tag, s.Reward, monitorSummary(s.Monitors))
	}
	return nil
}

// #endregion detail-mode

// #region output

func monitorSummary(states map[string]envelope.MonitorState) string {
	names := make([]string, 0, len(states))
	for name := range states {
		names = append(names, name)
	}
	slices.Sort(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + "=" + string(states[name].Label)
	}
	return strings.Join(parts, " ")
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
