package monitor

import (
	"github.com/danielpatrickdp/safety-envelope/internal/automaton"
	"github.com/danielpatrickdp/safety-envelope/internal/core"
	"github.com/danielpatrickdp/safety-envelope/internal/taxonomy"
)

// Response states.
const (
	ResponseIdle      automaton.StateID = "idle"
	ResponsePending   automaton.StateID = "pending"
	ResponseResponded automaton.StateID = "responded"
	ResponseExpired   automaton.StateID = "expired"
)

// #region response
// response obligates second to follow first before the deadline lapses.
// The deadline is a condition, a window of checks, or both.
type response struct {
	*base
	first, second core.Condition
	deadline      core.Condition
	window        int
	elapsed       int

	isFirst    bool
	isSecond   bool
	isDeadline bool
}

func newResponse(spec Spec, r Resolver, notify Notifier, o options) (*response, error) {
	first, err := resolveOr(r, spec.Conditions.First, "")
	if err != nil {
		return nil, err
	}
	second, err := resolveOr(r, spec.Conditions.Second, "")
	if err != nil {
		return nil, err
	}
	var deadline core.Condition
	if spec.Conditions.Deadline != "" {
		if deadline, err = resolveOr(r, spec.Conditions.Deadline, ""); err != nil {
			return nil, err
		}
	}

	m := &response{
		base:     newBase(spec, notify, o),
		first:    first,
		second:   second,
		deadline: deadline,
		window:   spec.Window,
	}
	m.observe = m.classify

	def := automaton.Definition{
		Initial: ResponseIdle,
		States: []automaton.State{
			{ID: ResponseIdle, Type: taxonomy.InfinitelyControllable, OnEnter: m.onMonitoring},
			{ID: ResponsePending, Type: taxonomy.SystemFinitelyControllable, OnEnter: m.onPending},
			{ID: ResponseResponded, Type: taxonomy.Satisfied, OnEnter: m.onShaping(m.rewards.Respected)},
			{ID: ResponseExpired, Type: taxonomy.Violated, OnEnter: m.onExpired},
		},
		Transitions: []automaton.Transition{
			{Source: ResponseIdle, Dest: ResponseResponded, Conditions: []string{"first", "second"}},
			{Source: ResponseIdle, Dest: ResponsePending, Conditions: []string{"first"}},
			{Source: ResponseIdle, Dest: ResponseIdle},
			{Source: ResponsePending, Dest: ResponseResponded, Conditions: []string{"second"}},
			{Source: ResponsePending, Dest: ResponseExpired, Conditions: []string{"deadline"}},
			{Source: ResponsePending, Dest: ResponsePending},
			{Source: ResponseResponded, Dest: ResponseResponded, Conditions: []string{"first", "second"}},
			{Source: ResponseResponded, Dest: ResponsePending, Conditions: []string{"first"}, Unless: []string{"second"}},
			{Source: ResponseResponded, Dest: ResponseIdle},
		},
	}
	guards := map[string]automaton.Guard{
		"first":    func() bool { return m.isFirst },
		"second":   func() bool { return m.isSecond },
		"deadline": func() bool { return m.isDeadline },
	}
	if err := m.init(def, guards, o); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *response) classify(obs core.Observation, action core.Action) (automaton.StateID, bool) {
	m.isFirst = m.first(obs, action)
	m.isSecond = m.second(obs, action)
	m.isDeadline = (m.deadline != nil && m.deadline(obs, action)) ||
		(m.window > 0 && m.elapsed >= m.window)
	return "", false
}

// onPending counts checks spent waiting; re-entry from another state restarts the count.
func (m *response) onPending(e automaton.Entry) {
	if e.From == ResponsePending {
		m.elapsed++
	} else {
		m.elapsed = 0
	}
	m.onShaping(m.rewards.Near)(e)
}

// onExpired re-arms the window; rollback leaves the obligation pending.
func (m *response) onExpired(e automaton.Entry) {
	m.elapsed = 0
	m.onViolated(e)
}

func (m *response) Reset() {
	m.base.Reset()
	m.elapsed = 0
}

// #endregion response
