package monitor

import (
	"github.com/danielpatrickdp/safety-envelope/internal/automaton"
	"github.com/danielpatrickdp/safety-envelope/internal/core"
	"github.com/danielpatrickdp/safety-envelope/internal/taxonomy"
)

// Avoid states.
const (
	AvoidSafe      automaton.StateID = "safe"
	AvoidNear      automaton.StateID = "near"
	AvoidImmediate automaton.StateID = "immediate"
	AvoidFail      automaton.StateID = "fail"
)

// #region avoid
// avoid keeps the agent from performing a forbidden action while immediately
// next to a hazard. Being near or immediately next to it is shaped, not
// forbidden.
type avoid struct {
	*base
	near      core.Condition
	immediate core.Condition
	action    core.Action

	isNear      bool
	isImmediate bool
	isForbidden bool
}

func newAvoid(spec Spec, r Resolver, notify Notifier, o options) (*avoid, error) {
	near, err := resolveOr(r, spec.Conditions.Near, spec.Name+"-near")
	if err != nil {
		return nil, err
	}
	immediate, err := resolveOr(r, spec.Conditions.Immediate, spec.Name+"-immediate")
	if err != nil {
		return nil, err
	}
	action := core.ActionForward
	if spec.Conditions.Action != "" {
		action, _ = core.ParseAction(spec.Conditions.Action)
	}

	m := &avoid{
		base:      newBase(spec, notify, o),
		near:      near,
		immediate: immediate,
		action:    action,
	}
	m.observe = m.classify

	def := automaton.Definition{
		Initial: AvoidSafe,
		States: []automaton.State{
			{ID: AvoidSafe, Type: taxonomy.InfinitelyControllable, OnEnter: m.onMonitoring},
			{ID: AvoidNear, Type: taxonomy.SystemFinitelyControllable, OnEnter: m.onShaping(m.rewards.Near)},
			{ID: AvoidImmediate, Type: taxonomy.SystemUrgentlyControllable, OnEnter: m.onShaping(m.rewards.Immediate)},
			{ID: AvoidFail, Type: taxonomy.Violated, OnEnter: m.onViolated},
		},
		Transitions: []automaton.Transition{
			{Source: AvoidSafe, Dest: AvoidSafe, Unless: []string{"near", "immediate"}},
			{Source: AvoidSafe, Dest: AvoidNear, Conditions: []string{"near"}, Unless: []string{"immediate"}},
			{Source: AvoidSafe, Dest: AvoidImmediate, Conditions: []string{"immediate"}},
			{Source: AvoidNear, Dest: AvoidNear, Conditions: []string{"near"}, Unless: []string{"immediate"}},
			{Source: AvoidNear, Dest: AvoidSafe, Unless: []string{"near", "immediate"}},
			{Source: AvoidNear, Dest: AvoidImmediate, Conditions: []string{"immediate"}},
			{Source: AvoidImmediate, Dest: AvoidFail, Conditions: []string{"immediate", "forbidden"}},
			{Source: AvoidImmediate, Dest: AvoidImmediate, Conditions: []string{"immediate"}, Unless: []string{"forbidden"}},
			{Source: AvoidImmediate, Dest: AvoidNear, Conditions: []string{"near"}, Unless: []string{"immediate"}},
			{Source: AvoidImmediate, Dest: AvoidSafe, Unless: []string{"near", "immediate"}},
		},
	}
	guards := map[string]automaton.Guard{
		"near":      func() bool { return m.isNear },
		"immediate": func() bool { return m.isImmediate },
		"forbidden": func() bool { return m.isForbidden },
	}
	if err := m.init(def, guards, o); err != nil {
		return nil, err
	}
	return m, nil
}

// classify refreshes the guards; immediate wins over near.
func (m *avoid) classify(obs core.Observation, action core.Action) (automaton.StateID, bool) {
	m.isNear = m.near(obs, action)
	m.isImmediate = m.immediate(obs, action)
	m.isForbidden = action == m.action

	switch {
	case m.isImmediate:
		return AvoidImmediate, true
	case m.isNear:
		return AvoidNear, true
	default:
		return AvoidSafe, true
	}
}

// #endregion avoid
