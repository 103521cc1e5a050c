package automaton

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/danielpatrickdp/safety-envelope/internal/taxonomy"
)

// #region machine-struct
// Machine runs a Definition. Trigger calls are serialized; reads of the
// current state may proceed concurrently with an in-flight trigger.
type Machine struct {
	triggerMu sync.Mutex
	mu        sync.RWMutex
	current   StateID

	states      map[StateID]State
	order       []StateID
	transitions []compiledTransition

	ambiguityCheck bool
	ambiguities    int
	logger         *slog.Logger
}

type compiledTransition struct {
	Transition
	conditions []Guard
	unless     []Guard
}

// Option configures a Machine at construction.
type Option func(*Machine)

// WithLogger sets the logger used for ambiguity reports.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) { m.logger = l }
}

// WithAmbiguityCheck makes Trigger keep scanning after the first eligible
// transition and report any second one. Meant for tests and debug runs.
func WithAmbiguityCheck() Option {
	return func(m *Machine) { m.ambiguityCheck = true }
}

// #endregion machine-struct

// #region constructor
// New validates def against guards and returns a machine in def.Initial.
func New(def Definition, guards map[string]Guard, opts ...Option) (*Machine, error) {
	m := &Machine{
		states: make(map[StateID]State, len(def.States)),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}

	for _, s := range def.States {
		if s.ID == "" || s.ID == AnyState {
			return nil, fmt.Errorf("state id %q: %w", s.ID, ErrUnknownState)
		}
		if _, dup := m.states[s.ID]; dup {
			return nil, fmt.Errorf("state %s: %w", s.ID, ErrDuplicateState)
		}
		m.states[s.ID] = s
		m.order = append(m.order, s.ID)
	}
	if _, ok := m.states[def.Initial]; !ok {
		return nil, fmt.Errorf("initial state %q: %w", def.Initial, ErrUnknownState)
	}
	m.current = def.Initial

	for i, tr := range def.Transitions {
		if tr.Source != AnyState {
			if _, ok := m.states[tr.Source]; !ok {
				return nil, fmt.Errorf("transition %d source %q: %w", i, tr.Source, ErrUnknownState)
			}
		}
		if _, ok := m.states[tr.Dest]; !ok {
			return nil, fmt.Errorf("transition %d dest %q: %w", i, tr.Dest, ErrUnknownState)
		}
		if tr.Trigger == "" {
			tr.Trigger = Wildcard
		}
		ct := compiledTransition{Transition: tr}
		for _, name := range tr.Conditions {
			g, err := resolveGuard(guards, name)
			if err != nil {
				return nil, fmt.Errorf("transition %d (%s -> %s): %w", i, tr.Source, tr.Dest, err)
			}
			ct.conditions = append(ct.conditions, g)
		}
		for _, name := range tr.Unless {
			g, err := resolveGuard(guards, name)
			if err != nil {
				return nil, fmt.Errorf("transition %d (%s -> %s): %w", i, tr.Source, tr.Dest, err)
			}
			ct.unless = append(ct.unless, g)
		}
		m.transitions = append(m.transitions, ct)
	}
	return m, nil
}

func resolveGuard(guards map[string]Guard, name string) (Guard, error) {
	g, ok := guards[name]
	if !ok || g == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGuard, name)
	}
	return g, nil
}

// #endregion constructor

// #region trigger
// Trigger applies the first eligible transition for t from the current state,
// then runs the destination's entry hook. Returns false when nothing was
// eligible, in which case the state is unchanged.
func (m *Machine) Trigger(t Trigger) bool {
	m.triggerMu.Lock()
	defer m.triggerMu.Unlock()

	from := m.State()
	tr, ok := m.eligible(from, t)
	if !ok {
		return false
	}

	m.mu.Lock()
	m.current = tr.Dest
	m.mu.Unlock()

	if hook := m.states[tr.Dest].OnEnter; hook != nil {
		hook(Entry{From: from, To: tr.Dest, Trigger: t})
	}
	return true
}

// Peek reports where Trigger(t) would go without moving or running hooks.
func (m *Machine) Peek(t Trigger) (StateID, bool) {
	return m.PeekFrom(m.State(), t)
}

// PeekFrom is Peek evaluated as if the machine were in from.
func (m *Machine) PeekFrom(from StateID, t Trigger) (StateID, bool) {
	m.triggerMu.Lock()
	defer m.triggerMu.Unlock()

	tr, ok := m.eligible(from, t)
	if !ok {
		return "", false
	}
	return tr.Dest, true
}

func (m *Machine) eligible(from StateID, t Trigger) (compiledTransition, bool) {
	var (
		first compiledTransition
		found bool
	)
	for _, tr := range m.transitions {
		if tr.Source != AnyState && tr.Source != from {
			continue
		}
		if tr.Trigger != Wildcard && t != Wildcard && tr.Trigger != t {
			continue
		}
		if !allTrue(tr.conditions) || anyTrue(tr.unless) {
			continue
		}
		if !found {
			first, found = tr, true
			if !m.ambiguityCheck {
				break
			}
			continue
		}
		m.ambiguities++
		m.logger.Warn("ambiguous transition",
			"state", from, "trigger", t, "chosen", first.Dest, "also_eligible", tr.Dest)
		break
	}
	return first, found
}

func allTrue(gs []Guard) bool {
	for _, g := range gs {
		if !g() {
			return false
		}
	}
	return true
}

func anyTrue(gs []Guard) bool {
	for _, g := range gs {
		if g() {
			return true
		}
	}
	return false
}

// #endregion trigger

// #region accessors
// State returns the current state.
func (m *Machine) State() StateID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// SetState forces the current state without running any hook. Used to seed
// the machine from an observation and to roll back after a violation.
func (m *Machine) SetState(id StateID) error {
	if _, ok := m.states[id]; !ok {
		return fmt.Errorf("set state %q: %w", id, ErrUnknownState)
	}
	m.mu.Lock()
	m.current = id
	m.mu.Unlock()
	return nil
}

// TypeOf returns the taxonomy tag of a state.
func (m *Machine) TypeOf(id StateID) (taxonomy.StateType, bool) {
	s, ok := m.states[id]
	return s.Type, ok
}

// CurrentType returns the taxonomy tag of the current state.
func (m *Machine) CurrentType() taxonomy.StateType {
	t, _ := m.TypeOf(m.State())
	return t
}

// States lists state IDs in declaration order.
func (m *Machine) States() []StateID {
	out := make([]StateID, len(m.order))
	copy(out, m.order)
	return out
}

// Reachable reports whether a declared transition leads from one state to
// another, ignoring guards. A state is always reachable from itself.
func (m *Machine) Reachable(from, to StateID) bool {
	if from == to {
		return true
	}
	for _, tr := range m.transitions {
		if (tr.Source == from || tr.Source == AnyState) && tr.Dest == to {
			return true
		}
	}
	return false
}

// Ambiguities counts triggers where more than one transition was eligible.
// Always zero unless WithAmbiguityCheck was given.
func (m *Machine) Ambiguities() int {
	m.triggerMu.Lock()
	defer m.triggerMu.Unlock()
	return m.ambiguities
}

// #endregion accessors
