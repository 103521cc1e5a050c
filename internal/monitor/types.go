package monitor

import (
	"errors"

	"github.com/danielpatrickdp/safety-envelope/internal/automaton"
	"github.com/danielpatrickdp/safety-envelope/internal/core"
	"github.com/danielpatrickdp/safety-envelope/internal/taxonomy"
)

// #region kind
// Kind enumerates the specification patterns a monitor can instantiate.
type Kind string

const (
	KindAvoid        Kind = "avoid"
	KindPrecedence   Kind = "precedence"
	KindResponse     Kind = "response"
	KindUniversality Kind = "universality"
	KindAbsence      Kind = "absence"
)

// Kinds returns the closed set of supported patterns.
func Kinds() []Kind {
	return []Kind{KindAvoid, KindPrecedence, KindResponse, KindUniversality, KindAbsence}
}

// Valid reports whether k is one of Kinds.
func (k Kind) Valid() bool {
	for _, known := range Kinds() {
		if k == known {
			return true
		}
	}
	return false
}

// #endregion kind

// #region label
// Label is the category of a notification.
type Label string

const (
	LabelMonitoring Label = "monitoring"
	LabelShaping    Label = "shaping"
	LabelViolation  Label = "violation"
	LabelMismatch   Label = "mismatch"
)

// #endregion label

// #region notification
// Notification is emitted on every state entry and on every mismatch.
// ShapedReward is set for shaping and violation; UnsafeAction only for violation.
type Notification struct {
	Monitor      string            `json:"monitor"`
	Kind         Kind              `json:"kind"`
	Label        Label             `json:"label"`
	State        automaton.StateID `json:"state"`
	ShapedReward float64           `json:"shaped_reward,omitempty"`
	UnsafeAction core.Action       `json:"unsafe_action,omitempty"`
}

// Notifier receives notifications synchronously, inside Check/Verify.
type Notifier func(Notification)

// Fanout returns a Notifier that forwards to every non-nil notifier in order.
func Fanout(notifiers ...Notifier) Notifier {
	var live []Notifier
	for _, n := range notifiers {
		if n != nil {
			live = append(live, n)
		}
	}
	return func(n Notification) {
		for _, fn := range live {
			fn(n)
		}
	}
}

// #endregion notification

// #region rewards
// Rewards are the resolved shaping values of one monitor.
type Rewards struct {
	Respected float64
	Violated  float64
	Near      float64
	Immediate float64
}

// #endregion rewards

// #region monitor-interface
// Monitor is one instantiated specification pattern.
type Monitor interface {
	Name() string
	Kind() Kind
	// Check runs before the proposed action reaches the environment.
	Check(obs core.Observation, proposed core.Action)
	// Verify runs after the action was applied, against the new observation.
	Verify(obs core.Observation, applied core.Action)
	// Permits reports whether Check with this action would end in a violation,
	// without moving the automaton or notifying.
	Permits(obs core.Observation, action core.Action) bool
	// State is the automaton's current state. Never a violated state.
	State() automaton.StateID
	// StateType is the taxonomy tag of State.
	StateType() taxonomy.StateType
	// Initial is the state anchored on the first Check since the last Reset.
	Initial() (automaton.StateID, bool)
	// Reset clears the anchor so the next Check re-seeds the automaton.
	Reset()
}

// Resolver turns condition names from a Spec into predicates.
type Resolver interface {
	Resolve(name string) (core.Condition, error)
}

// #endregion monitor-interface

// #region errors
var (
	ErrUnknownKind      = errors.New("unknown monitor kind")
	ErrMissingReward    = errors.New("missing reward")
	ErrMissingCondition = errors.New("missing condition")
	ErrInvalidSpec      = errors.New("invalid monitor spec")
)

// #endregion errors
