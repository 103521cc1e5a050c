package eval

import (
	"fmt"

	"github.com/danielpatrickdp/safety-envelope/internal/store"
)

// #region eval-harness
// EvalHarness checks finished episodes against fixed thresholds.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run evaluates one episode. Unfinished episodes always fail.
func (h *EvalHarness) Run(ep store.EpisodeRecord) EvalResult {
	var metrics []EvalMetric
	var failReasons []string

	if !ep.Finished() {
		return EvalResult{EpisodeID: ep.EpisodeID, Reason: "eval failed: episode not finished"}
	}

	counts := []struct {
		name  string
		value int
		limit int
	}{
		{"violations", ep.Violations, h.config.MaxViolations},
		{"overrides", ep.Overrides, h.config.MaxOverrides},
		{"mismatches", ep.Mismatches, h.config.MaxMismatches},
	}
	for _, c := range counts {
		if c.limit < 0 {
			continue
		}
		pass := c.value <= c.limit
		metrics = append(metrics, EvalMetric{Name: c.name, Value: float64(c.value), Limit: float64(c.limit), Pass: pass})
		if !pass {
			failReasons = append(failReasons, fmt.Sprintf("%d %s exceeds %d", c.value, c.name, c.limit))
		}
	}

	rewardPass := ep.TotalReward >= h.config.MinReward
	metrics = append(metrics, EvalMetric{Name: "total_reward", Value: ep.TotalReward, Limit: h.config.MinReward, Pass: rewardPass})
	if !rewardPass {
		failReasons = append(failReasons, fmt.Sprintf("reward %.4f below %.4f", ep.TotalReward, h.config.MinReward))
	}

	if h.config.RequireGoal {
		goal := ep.Outcome == "goal"
		v := 0.0
		if goal {
			v = 1
		}
		metrics = append(metrics, EvalMetric{Name: "goal", Value: v, Limit: 1, Pass: goal})
		if !goal {
			failReasons = append(failReasons, fmt.Sprintf("outcome %q is not goal", ep.Outcome))
		}
	}

	reason := "all checks passed"
	if len(failReasons) == 1 {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
	} else if len(failReasons) > 1 {
		reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
	}

	return EvalResult{
		EpisodeID: ep.EpisodeID,
		Passed:    len(failReasons) == 0,
		Metrics:   metrics,
		Reason:    reason,
	}
}

// Summarize runs every episode and collects the failures.
func (h *EvalHarness) Summarize(eps []store.EpisodeRecord) Report {
	rep := Report{Episodes: len(eps)}
	for _, ep := range eps {
		res := h.Run(ep)
		if res.Passed {
			rep.Passed++
			continue
		}
		rep.Failed = append(rep.Failed, res)
	}
	return rep
}

// #endregion eval-harness
