package envelope

import (
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/danielpatrickdp/safety-envelope/internal/core"
	"github.com/danielpatrickdp/safety-envelope/internal/gate"
	"github.com/danielpatrickdp/safety-envelope/internal/monitor"
)

// #region controller

// Controller reports which actions it currently considers safe.
type Controller interface {
	Name() string
	Available(obs core.Observation, actions []core.Action) []core.Action
	// Update advances internal state once the step is applied.
	Update(pre, post core.Observation, applied core.Action)
	Reset()
}

// MonitorController exposes a monitor as a controller: the safe set is every
// action the monitor permits.
type MonitorController struct {
	M monitor.Monitor
}

func (c MonitorController) Name() string { return c.M.Name() }

func (c MonitorController) Available(obs core.Observation, actions []core.Action) []core.Action {
	return monitor.Available(c.M, obs, actions)
}

func (c MonitorController) Update(pre, post core.Observation, applied core.Action) {
	c.M.Check(pre, applied)
	c.M.Verify(post, applied)
}

func (c MonitorController) Reset() { c.M.Reset() }

// #endregion controller

// #region controller-envelope

// ControllerOptions configure a ControllerEnvelope.
type ControllerOptions struct {
	Respected float64
	Violated  float64
	Rewards   Rewards
	MaxSteps  int
	Seed      uint64
	Logger    *slog.Logger
}

// ControllerEnvelope intersects the safe sets of all controllers and, when the
// proposed action is outside the intersection, substitutes a uniformly random
// member of it. Rewards are binary: respected on pass, violated on override.
type ControllerEnvelope struct {
	env         core.Environment
	controllers []Controller
	gate        *gate.Gate
	rng         *rand.Rand
	opts        ControllerOptions
	logger      *slog.Logger
	steps       int
}

// NewControllerEnvelope wraps env. The random source is seeded from opts.Seed.
func NewControllerEnvelope(env core.Environment, controllers []Controller, opts ControllerOptions) *ControllerEnvelope {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &ControllerEnvelope{
		env:         env,
		controllers: controllers,
		gate:        gate.NewGate(gate.DefaultGateConfig()),
		rng:         rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
		opts:        opts,
		logger:      opts.Logger.With("component", "controller_envelope"),
	}
}

// Reset resets the environment and every controller.
func (c *ControllerEnvelope) Reset() (core.Observation, error) {
	obs, err := c.env.Reset()
	if err != nil {
		return nil, fmt.Errorf("reset environment: %w", err)
	}
	for _, ctrl := range c.controllers {
		ctrl.Reset()
	}
	c.steps = 0
	return obs, nil
}

// Step has the same contract as SafetyEnvelope.Step.
func (c *ControllerEnvelope) Step(proposed core.Action) (core.Observation, float64, bool, StepInfo, error) {
	pre := c.env.Observe()
	actions := c.env.Actions()

	sets := make(map[string][]core.Action, len(c.controllers))
	for _, ctrl := range c.controllers {
		sets[ctrl.Name()] = ctrl.Available(pre, actions)
	}
	decision := c.gate.EvaluateAvailable(proposed, sets, c.pick)
	safe := decision.SafeAction

	obs, reward, done, err := c.env.Step(safe)
	if err != nil {
		return nil, 0, false, StepInfo{}, fmt.Errorf("environment step %s: %w", safe, err)
	}
	c.steps++
	for _, ctrl := range c.controllers {
		ctrl.Update(pre, obs, safe)
	}

	states := make(map[string]MonitorState, len(c.controllers))
	for _, ctrl := range c.controllers {
		states[ctrl.Name()] = MonitorState{Label: monitor.LabelMonitoring}
	}

	tag := TagNone
	if decision.Vetoed {
		tag = TagViolation
		reward = c.opts.Violated
		for _, v := range decision.VetoSignals {
			states[v.Monitor] = MonitorState{
				Label:        monitor.LabelViolation,
				ShapedReward: c.opts.Violated,
				UnsafeAction: proposed,
			}
		}
		c.logger.Info("action substituted", "proposed", proposed, "applied", safe, "reason", decision.Reason)
	} else {
		reward += c.opts.Respected
	}

	switch {
	case c.env.AtGoal():
		reward = c.opts.Rewards.Goal
		done = true
		tag = TagGoal
	case c.opts.MaxSteps > 0 && c.steps >= c.opts.MaxSteps && !done:
		reward += c.opts.Rewards.Death
		done = true
		tag = TagEnd
	}

	return obs, reward, done, StepInfo{
		Tag:      tag,
		Step:     c.steps,
		Proposed: proposed,
		Applied:  safe,
		Monitors: states,
	}, nil
}

func (c *ControllerEnvelope) pick(actions []core.Action) core.Action {
	return actions[c.rng.IntN(len(actions))]
}

// #endregion controller-envelope
