package monitor

import (
	"github.com/danielpatrickdp/safety-envelope/internal/automaton"
	"github.com/danielpatrickdp/safety-envelope/internal/core"
	"github.com/danielpatrickdp/safety-envelope/internal/taxonomy"
)

// Precedence states.
const (
	PrecedenceIdle      automaton.StateID = "idle"
	PrecedenceActive    automaton.StateID = "active"
	PrecedencePost      automaton.StateID = "postcond_active"
	PrecedenceRespected automaton.StateID = "precond_respected"
	PrecedenceViolated  automaton.StateID = "precond_violated"
)

// #region precedence
// precedence requires pre to hold whenever post occurs while the scope is
// active. The outcome is classified once per occurrence of post.
type precedence struct {
	*base
	pre, post, scope core.Condition

	isActive bool
	isPost   bool
	isPre    bool
}

func newPrecedence(spec Spec, r Resolver, notify Notifier, o options) (*precedence, error) {
	pre, err := resolveOr(r, spec.Conditions.Pre, "")
	if err != nil {
		return nil, err
	}
	post, err := resolveOr(r, spec.Conditions.Post, "")
	if err != nil {
		return nil, err
	}
	scope, err := resolveScope(r, spec.Conditions)
	if err != nil {
		return nil, err
	}

	m := &precedence{base: newBase(spec, notify, o), pre: pre, post: post, scope: scope}
	m.observe = m.classify
	m.settle = func(s automaton.StateID) bool {
		return (s == PrecedenceActive && m.isPost) || s == PrecedencePost
	}

	def := automaton.Definition{
		Initial: PrecedenceIdle,
		States: []automaton.State{
			{ID: PrecedenceIdle, Type: taxonomy.InfinitelyControllable, OnEnter: m.onMonitoring},
			{ID: PrecedenceActive, Type: taxonomy.SystemFinitelyControllable, OnEnter: m.onMonitoring},
			{ID: PrecedencePost, Type: taxonomy.SystemFinitelyControllable, OnEnter: m.onMonitoring},
			{ID: PrecedenceRespected, Type: taxonomy.Satisfied, OnEnter: m.onShaping(m.rewards.Respected)},
			{ID: PrecedenceViolated, Type: taxonomy.Violated, OnEnter: m.onViolated},
		},
		Transitions: []automaton.Transition{
			{Source: PrecedenceIdle, Dest: PrecedenceIdle, Unless: []string{"active"}},
			{Source: PrecedenceIdle, Dest: PrecedenceActive, Conditions: []string{"active"}},
			{Source: PrecedenceActive, Dest: PrecedenceIdle, Unless: []string{"active"}},
			{Source: PrecedenceActive, Dest: PrecedenceActive, Conditions: []string{"active"}, Unless: []string{"post"}},
			{Source: PrecedenceActive, Dest: PrecedencePost, Conditions: []string{"post"}},
			{Source: PrecedencePost, Dest: PrecedenceRespected, Conditions: []string{"pre"}},
			{Source: PrecedencePost, Dest: PrecedenceViolated, Unless: []string{"pre"}},
			{Source: PrecedenceRespected, Dest: PrecedenceActive, Conditions: []string{"active"}},
			{Source: PrecedenceRespected, Dest: PrecedenceIdle, Unless: []string{"active"}},
			{Source: PrecedenceViolated, Dest: PrecedenceActive, Conditions: []string{"active"}},
			{Source: PrecedenceViolated, Dest: PrecedenceIdle, Unless: []string{"active"}},
		},
	}
	guards := map[string]automaton.Guard{
		"active": func() bool { return m.isActive },
		"post":   func() bool { return m.isPost },
		"pre":    func() bool { return m.isPre },
	}
	if err := m.init(def, guards, o); err != nil {
		return nil, err
	}
	return m, nil
}

// classify refreshes the guards. pre is only read when post holds, so both
// are evaluated as one atomic observation.
func (m *precedence) classify(obs core.Observation, action core.Action) (automaton.StateID, bool) {
	m.isActive = m.scope(obs, action)
	m.isPost = m.post(obs, action)
	m.isPre = m.isPost && m.pre(obs, action)
	return "", false
}

// #endregion precedence
