package core

// #region action
// Action is one entry of the environment's finite action vocabulary.
type Action string

const (
	ActionLeft    Action = "left"
	ActionRight   Action = "right"
	ActionForward Action = "forward"
	ActionPickup  Action = "pickup"
	ActionDrop    Action = "drop"
	ActionToggle  Action = "toggle"
	ActionWait    Action = "wait"
	ActionClean   Action = "clean"
)

// AllActions returns the full action vocabulary in declaration order.
func AllActions() []Action {
	return []Action{
		ActionLeft,
		ActionRight,
		ActionForward,
		ActionPickup,
		ActionDrop,
		ActionToggle,
		ActionWait,
		ActionClean,
	}
}

// ParseAction maps a configuration string onto the vocabulary.
func ParseAction(s string) (Action, bool) {
	for _, a := range AllActions() {
		if string(a) == s {
			return a, true
		}
	}
	return "", false
}

// #endregion action

// #region observation
// Observation is whatever the environment hands back from Reset, Step and
// Observe. Monitors never look inside it; only condition predicates do.
type Observation any

// #endregion observation

// #region condition
// Condition is a guard predicate supplied by the integrator and evaluated
// against an observation and the action about to be (or just) applied.
type Condition func(obs Observation, action Action) bool

// #endregion condition
