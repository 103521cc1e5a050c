package eval

// #region eval-config
// EvalConfig holds per-episode thresholds. A negative limit disables its check.
type EvalConfig struct {
	MaxViolations int     `yaml:"max_violations"`
	MaxOverrides  int     `yaml:"max_overrides"`
	MaxMismatches int     `yaml:"max_mismatches"`
	MinReward     float64 `yaml:"min_reward"`
	// RequireGoal fails episodes whose outcome is not "goal".
	RequireGoal bool `yaml:"require_goal"`
}

// DefaultEvalConfig tolerates overrides and mismatches but no violation.
// Monitors report a mismatch whenever the agent's move changes what they
// observe, so a mismatch limit is opt-in.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		MaxViolations: 0,
		MaxOverrides:  -1,
		MaxMismatches: -1,
		MinReward:     -1,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single check result.
type EvalMetric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Limit float64 `json:"limit"`
	Pass  bool    `json:"pass"`
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the verdict on one episode.
type EvalResult struct {
	EpisodeID string       `json:"episode_id"`
	Passed    bool         `json:"passed"`
	Metrics   []EvalMetric `json:"metrics"`
	Reason    string       `json:"reason"`
}

// Report aggregates results over a run.
type Report struct {
	Episodes int          `json:"episodes"`
	Passed   int          `json:"passed"`
	Failed   []EvalResult `json:"failed,omitempty"`
}

// PassRate is Passed over Episodes, or 1 for an empty report.
func (r Report) PassRate() float64 {
	if r.Episodes == 0 {
		return 1
	}
	return float64(r.Passed) / float64(r.Episodes)
}

// #endregion eval-result
