package envelope

import (
	"log/slog"

	"github.com/danielpatrickdp/safety-envelope/internal/automaton"
	"github.com/danielpatrickdp/safety-envelope/internal/core"
	"github.com/danielpatrickdp/safety-envelope/internal/monitor"
)

// #region tags

// Tag summarizes how a step ended.
type Tag string

const (
	TagNone      Tag = ""
	TagViolation Tag = "violation"
	TagSaved     Tag = "saved"
	TagGoal      Tag = "goal"
	TagEnd       Tag = "end"
)

// #endregion tags

// #region step-info

// MonitorState is one row of the per-step side table.
type MonitorState struct {
	Label        monitor.Label     `json:"state_label"`
	State        automaton.StateID `json:"state,omitempty"`
	ShapedReward float64           `json:"shaped_reward"`
	UnsafeAction core.Action       `json:"unsafe_action,omitempty"`
}

// Violating reports whether the monitor flagged an unsafe action this step.
func (s MonitorState) Violating() bool {
	return s.Label == monitor.LabelViolation && s.UnsafeAction != ""
}

// StepInfo is returned with every step.
type StepInfo struct {
	Tag      Tag                     `json:"tag"`
	Step     int                     `json:"step"`
	Proposed core.Action             `json:"proposed"`
	Applied  core.Action             `json:"applied,omitempty"`
	Monitors map[string]MonitorState `json:"monitors"`
}

// #endregion step-info

// #region options

// Rewards are the standard per-episode reward constants.
type Rewards struct {
	Step  float64
	Goal  float64
	Death float64
}

// Options configure a SafetyEnvelope.
type Options struct {
	ResetOnViolation bool
	FallbackAction   core.Action
	Rewards          Rewards
	// MaxSteps ends the episode with the death reward; 0 disables the limit.
	MaxSteps int
	// Exploration adds a count-based bonus on plain steps. Needs an environment
	// implementing Poser.
	Exploration bool
	Plan        *PlanTracker
	Listeners   []monitor.Notifier
	MonitorOpts []monitor.Option
	Logger      *slog.Logger
}

// Poser is implemented by environments that expose the agent pose.
type Poser interface {
	Pose() (x, y, dir int)
}

// #endregion options
