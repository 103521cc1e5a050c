package monitor

import (
	"github.com/danielpatrickdp/safety-envelope/internal/automaton"
	"github.com/danielpatrickdp/safety-envelope/internal/core"
	"github.com/danielpatrickdp/safety-envelope/internal/taxonomy"
)

// Universality and absence states.
const (
	UniversalityHolding automaton.StateID = "holding"
	UniversalityBroken  automaton.StateID = "broken"
	AbsenceAbsent       automaton.StateID = "absent"
	AbsencePresent      automaton.StateID = "present"
)

// #region universality
// universality requires an invariant to hold on every check inside its scope.
type universality struct {
	*base
	invariant, scope core.Condition

	holds   bool
	inScope bool
}

func newUniversality(spec Spec, r Resolver, notify Notifier, o options) (*universality, error) {
	invariant, err := resolveOr(r, spec.Conditions.First, "")
	if err != nil {
		return nil, err
	}
	scope, err := resolveScope(r, spec.Conditions)
	if err != nil {
		return nil, err
	}

	m := &universality{base: newBase(spec, notify, o), invariant: invariant, scope: scope}
	m.observe = func(obs core.Observation, action core.Action) (automaton.StateID, bool) {
		m.inScope = m.scope(obs, action)
		m.holds = m.invariant(obs, action)
		return "", false
	}

	def := automaton.Definition{
		Initial: UniversalityHolding,
		States: []automaton.State{
			{ID: UniversalityHolding, Type: taxonomy.InfinitelyControllable, OnEnter: m.onMonitoring},
			{ID: UniversalityBroken, Type: taxonomy.Violated, OnEnter: m.onViolated},
		},
		Transitions: []automaton.Transition{
			{Source: UniversalityHolding, Dest: UniversalityHolding, Unless: []string{"scope"}},
			{Source: UniversalityHolding, Dest: UniversalityHolding, Conditions: []string{"holds"}},
			{Source: UniversalityHolding, Dest: UniversalityBroken, Unless: []string{"holds"}},
		},
	}
	guards := map[string]automaton.Guard{
		"holds": func() bool { return m.holds },
		"scope": func() bool { return m.inScope },
	}
	if err := m.init(def, guards, o); err != nil {
		return nil, err
	}
	return m, nil
}

// #endregion universality

// #region absence
// absence forbids a condition from ever holding inside its scope.
type absence struct {
	*base
	forbidden, scope core.Condition

	present bool
	inScope bool
}

func newAbsence(spec Spec, r Resolver, notify Notifier, o options) (*absence, error) {
	forbidden, err := resolveOr(r, spec.Conditions.First, "")
	if err != nil {
		return nil, err
	}
	scope, err := resolveScope(r, spec.Conditions)
	if err != nil {
		return nil, err
	}

	m := &absence{base: newBase(spec, notify, o), forbidden: forbidden, scope: scope}
	m.observe = func(obs core.Observation, action core.Action) (automaton.StateID, bool) {
		m.inScope = m.scope(obs, action)
		m.present = m.forbidden(obs, action)
		return "", false
	}

	def := automaton.Definition{
		Initial: AbsenceAbsent,
		States: []automaton.State{
			{ID: AbsenceAbsent, Type: taxonomy.InfinitelyControllable, OnEnter: m.onMonitoring},
			{ID: AbsencePresent, Type: taxonomy.Violated, OnEnter: m.onViolated},
		},
		Transitions: []automaton.Transition{
			{Source: AbsenceAbsent, Dest: AbsenceAbsent, Unless: []string{"scope"}},
			{Source: AbsenceAbsent, Dest: AbsencePresent, Conditions: []string{"present"}},
			{Source: AbsenceAbsent, Dest: AbsenceAbsent},
		},
	}
	guards := map[string]automaton.Guard{
		"present": func() bool { return m.present },
		"scope":   func() bool { return m.inScope },
	}
	if err := m.init(def, guards, o); err != nil {
		return nil, err
	}
	return m, nil
}

// #endregion absence
