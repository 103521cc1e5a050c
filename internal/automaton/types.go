package automaton

import (
	"errors"

	"github.com/danielpatrickdp/safety-envelope/internal/taxonomy"
)

// #region identifiers
// StateID names a node of an automaton.
type StateID string

// Trigger names an event offered to the automaton.
type Trigger string

const (
	// Wildcard matches every trigger, whether declared on a transition or offered to Trigger.
	Wildcard Trigger = "*"
	// AnyState as a transition source matches the current state whatever it is.
	AnyState StateID = "*"
)

// #endregion identifiers

// #region definition
// Guard is a side-effect free predicate consulted when a transition is evaluated.
type Guard func() bool

// Entry describes the transition that just landed in a state.
type Entry struct {
	From    StateID
	To      StateID
	Trigger Trigger
}

// State is one node with its taxonomy tag and optional entry hook.
// Hooks run while the trigger lock is held: they may call SetState but not Trigger.
type State struct {
	ID      StateID
	Type    taxonomy.StateType
	OnEnter func(Entry)
}

// Transition fires when Source matches, Trigger matches, every Conditions guard
// is true and every Unless guard is false. Guards are referenced by name.
type Transition struct {
	Trigger    Trigger
	Source     StateID
	Dest       StateID
	Conditions []string
	Unless     []string
}

// Definition is the static shape of an automaton: states, transitions in
// evaluation order, and the state a fresh machine starts in.
type Definition struct {
	States      []State
	Transitions []Transition
	Initial     StateID
}

// #endregion definition

// #region errors
var (
	// ErrUnknownGuard means a transition names a guard nobody supplied.
	ErrUnknownGuard = errors.New("unknown guard")
	// ErrUnknownState means a state reference does not resolve.
	ErrUnknownState = errors.New("unknown state")
	// ErrDuplicateState means two states share an ID.
	ErrDuplicateState = errors.New("duplicate state")
)

// #endregion errors
