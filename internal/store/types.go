package store

import "time"

// #region episode-record
// EpisodeRecord is one row of the episodes table.
type EpisodeRecord struct {
	EpisodeID   string    `json:"episode_id"`
	Worker      int       `json:"worker"`
	Seed        int64     `json:"seed"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at,omitzero"`
	Steps       int       `json:"steps"`
	TotalReward float64   `json:"total_reward"`
	Violations  int       `json:"violations"`
	Overrides   int       `json:"overrides"`
	Mismatches  int       `json:"mismatches"`
	Outcome     string    `json:"outcome,omitempty"` // "goal" | "violation" | "end" | "done" | "" while running
}

// Finished reports whether FinishEpisode has been called.
func (e EpisodeRecord) Finished() bool {
	return !e.EndedAt.IsZero()
}

// #endregion episode-record

// #region episode-summary
// EpisodeSummary carries the totals written when an episode ends.
type EpisodeSummary struct {
	Steps       int
	TotalReward float64
	Violations  int
	Overrides   int
	Mismatches  int
	Outcome     string
}

// #endregion episode-summary

// #region step-record
// StepRecord is one envelope step. MonitorsJSON holds the per-monitor snapshot.
type StepRecord struct {
	EpisodeID    string    `json:"episode_id"`
	Step         int       `json:"step"`
	Proposed     string    `json:"proposed"`
	Applied      string    `json:"applied,omitempty"`
	Reward       float64   `json:"reward"`
	Done         bool      `json:"done"`
	Tag          string    `json:"tag,omitempty"`
	MonitorsJSON string    `json:"monitors_json,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// #endregion step-record
