package envelope

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/danielpatrickdp/safety-envelope/internal/core"
	"github.com/danielpatrickdp/safety-envelope/internal/gate"
	"github.com/danielpatrickdp/safety-envelope/internal/monitor"
)

// #region envelope

// SafetyEnvelope mediates every environment step through its monitors.
// Steps must not be issued concurrently.
type SafetyEnvelope struct {
	env      core.Environment
	monitors []monitor.Monitor
	inactive []monitor.Monitor
	gate     *gate.Gate
	opts     Options
	logger   *slog.Logger

	states     map[string]*MonitorState
	firstStep  bool
	steps      int
	visits     map[visit]int
	lastAction [2]core.Action
}

type visit struct {
	x, y, dir int
	action    core.Action
}

// New builds one monitor per spec, in spec order. Inactive specs are still
// validated and constructed but never checked.
func New(env core.Environment, specs []monitor.Spec, r monitor.Resolver, opts Options) (*SafetyEnvelope, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	e := &SafetyEnvelope{
		env:       env,
		gate:      gate.NewGate(gate.GateConfig{FallbackAction: opts.FallbackAction}),
		opts:      opts,
		logger:    opts.Logger.With("component", "envelope"),
		states:    make(map[string]*MonitorState, len(specs)),
		firstStep: true,
		visits:    make(map[visit]int),
	}

	notify := monitor.Fanout(append([]monitor.Notifier{e.record}, opts.Listeners...)...)
	mopts := append([]monitor.Option{monitor.WithLogger(opts.Logger)}, opts.MonitorOpts...)
	all, err := monitor.NewAll(specs, r, notify, mopts...)
	if err != nil {
		return nil, fmt.Errorf("envelope: %w", err)
	}
	for i, m := range all {
		if !specs[i].IsActive() {
			e.inactive = append(e.inactive, m)
			continue
		}
		e.monitors = append(e.monitors, m)
		e.states[m.Name()] = &MonitorState{Label: monitor.LabelMonitoring}
	}
	return e, nil
}

// Monitors returns the active monitors in configuration order.
func (e *SafetyEnvelope) Monitors() []monitor.Monitor {
	return append([]monitor.Monitor(nil), e.monitors...)
}

// Inactive names the monitors built but skipped because of their active flag.
func (e *SafetyEnvelope) Inactive() []string {
	names := make([]string, len(e.inactive))
	for i, m := range e.inactive {
		names[i] = m.Name()
	}
	return names
}

// LastActions returns the last proposed and applied actions.
func (e *SafetyEnvelope) LastActions() (proposed, applied core.Action) {
	return e.lastAction[0], e.lastAction[1]
}

// Reset resets the environment and starts a new episode. Monitors re-anchor
// on the next step.
func (e *SafetyEnvelope) Reset() (core.Observation, error) {
	obs, err := e.env.Reset()
	if err != nil {
		return nil, fmt.Errorf("reset environment: %w", err)
	}
	e.startEpisode()
	return obs, nil
}

func (e *SafetyEnvelope) startEpisode() {
	e.firstStep = true
	e.steps = 0
	if e.opts.Plan != nil {
		e.opts.Plan.Reset()
	}
	for _, st := range e.states {
		*st = MonitorState{Label: monitor.LabelMonitoring}
	}
}

// #endregion envelope

// #region step

// Step runs check, gate, environment step, verify and shaping for one
// proposed action.
func (e *SafetyEnvelope) Step(proposed core.Action) (core.Observation, float64, bool, StepInfo, error) {
	if e.firstStep {
		for _, m := range e.monitors {
			m.Reset()
		}
		e.firstStep = false
	}
	e.lastAction = [2]core.Action{proposed, ""}

	pre := e.env.Observe()
	for _, m := range e.monitors {
		m.Check(pre, proposed)
	}

	verdicts := make([]gate.Verdict, 0, len(e.monitors))
	violation := false
	for _, m := range e.monitors {
		st := e.states[m.Name()]
		v := gate.Verdict{Monitor: m.Name(), State: m.StateType()}
		if st.Violating() {
			v.UnsafeAction = st.UnsafeAction
			violation = true
		}
		verdicts = append(verdicts, v)
	}

	if violation && e.opts.ResetOnViolation {
		reward := e.shaped()
		info := e.info(TagViolation, proposed, "")
		e.clear()
		obs, err := e.Reset()
		if err != nil {
			return nil, 0, true, info, err
		}
		e.logger.Info("episode reset on violation", "proposed", proposed, "reward", reward)
		return obs, reward, true, info, nil
	}

	decision := e.gate.Evaluate(proposed, verdicts)
	safe := decision.SafeAction
	if decision.Vetoed {
		e.logger.Info("action overridden", "proposed", proposed, "applied", safe, "reason", decision.Reason)
	}

	obs, reward, done, err := e.env.Step(safe)
	if err != nil {
		return nil, 0, false, StepInfo{}, fmt.Errorf("environment step %s: %w", safe, err)
	}
	e.steps++
	e.lastAction[1] = safe

	for _, m := range e.monitors {
		m.Verify(obs, safe)
	}
	reward += e.shaped()
	if e.opts.Plan != nil {
		reward += e.opts.Plan.Step(safe)
	}

	tag := TagNone
	if decision.Vetoed {
		tag = TagSaved
	}
	switch {
	case e.env.AtGoal():
		reward = e.opts.Rewards.Goal
		done = true
		tag = TagGoal
	case e.opts.MaxSteps > 0 && e.steps >= e.opts.MaxSteps && !done:
		reward += e.opts.Rewards.Death
		done = true
		tag = TagEnd
	}
	if e.opts.Exploration && reward == e.opts.Rewards.Step {
		reward += e.explorationBonus(proposed)
	}

	info := e.info(tag, proposed, safe)
	e.clear()
	if done {
		e.firstStep = true
	}
	e.logger.Debug("step", "step", e.steps, "proposed", proposed, "applied", safe, "reward", reward, "tag", tag)
	return obs, reward, done, info, nil
}

// explorationBonus pays -step/sqrt(n) for the n-th visit of (pose, action).
func (e *SafetyEnvelope) explorationBonus(proposed core.Action) float64 {
	p, ok := e.env.(Poser)
	if !ok {
		return 0
	}
	x, y, dir := p.Pose()
	k := visit{x: x, y: y, dir: dir, action: proposed}
	e.visits[k]++
	return -e.opts.Rewards.Step / math.Sqrt(float64(e.visits[k]))
}

// #endregion step

// #region side-table

// record folds one notification into the side table. Shaped rewards add up
// within a step; the label is the latest one.
func (e *SafetyEnvelope) record(n monitor.Notification) {
	st, ok := e.states[n.Monitor]
	if !ok {
		return
	}
	st.Label = n.Label
	st.State = n.State
	st.ShapedReward += n.ShapedReward
	if n.Label == monitor.LabelViolation {
		st.UnsafeAction = n.UnsafeAction
	}
}

func (e *SafetyEnvelope) shaped() float64 {
	var sum float64
	for _, m := range e.monitors {
		sum += e.states[m.Name()].ShapedReward
	}
	return sum
}

func (e *SafetyEnvelope) clear() {
	for _, st := range e.states {
		st.ShapedReward = 0
		st.UnsafeAction = ""
	}
}

func (e *SafetyEnvelope) info(tag Tag, proposed, applied core.Action) StepInfo {
	snap := make(map[string]MonitorState, len(e.states))
	for name, st := range e.states {
		snap[name] = *st
	}
	return StepInfo{
		Tag:      tag,
		Step:     e.steps,
		Proposed: proposed,
		Applied:  applied,
		Monitors: snap,
	}
}

// #endregion side-table
