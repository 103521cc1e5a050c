package taxonomy

import "fmt"

// #region state-type
// StateType classifies an automaton state by who controls the path to failure
// and how close that failure is. Tags drive rendering and severity only.
type StateType int

const (
	// Satisfied: the property holds and no future path can invalidate it.
	Satisfied StateType = iota
	// InfinitelyControllable: the property holds and failure is possible but not close.
	InfinitelyControllable
	// SystemFinitelyControllable: the system may stay here only finitely many steps.
	SystemFinitelyControllable
	// SystemUrgentlyControllable: the system's next step may cause failure.
	SystemUrgentlyControllable
	// EnvironmentFinitelyControllable: the environment may stay here only finitely many steps.
	EnvironmentFinitelyControllable
	// EnvironmentUrgentlyControllable: the environment's next step may cause failure.
	EnvironmentUrgentlyControllable
	// Violated: the property is definitely violated.
	Violated
)

var names = [...]string{
	Satisfied:                       "satisfied",
	InfinitelyControllable:          "inf_ctrl",
	SystemFinitelyControllable:      "sys_fin_ctrl",
	SystemUrgentlyControllable:      "sys_urg_ctrl",
	EnvironmentFinitelyControllable: "env_fin_ctrl",
	EnvironmentUrgentlyControllable: "env_urg_ctrl",
	Violated:                        "violated",
}

// #endregion state-type

// #region accessors
// String returns the short tag used in logs and snapshots.
func (t StateType) String() string {
	if t < Satisfied || t > Violated {
		return "unknown"
	}
	return names[t]
}

// Parse maps a short tag back to its StateType.
func Parse(s string) (StateType, error) {
	for i, n := range names {
		if n == s {
			return StateType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown state type %q", s)
}

// All returns every tag in declaration order.
func All() []StateType {
	return []StateType{
		Satisfied,
		InfinitelyControllable,
		SystemFinitelyControllable,
		SystemUrgentlyControllable,
		EnvironmentFinitelyControllable,
		EnvironmentUrgentlyControllable,
		Violated,
	}
}

// Severity orders tags by proximity to failure: 0 for Satisfied up to 4 for Violated.
// Finitely and urgently controllable tags rank the same regardless of controller.
func (t StateType) Severity() int {
	switch t {
	case Satisfied:
		return 0
	case InfinitelyControllable:
		return 1
	case SystemFinitelyControllable, EnvironmentFinitelyControllable:
		return 2
	case SystemUrgentlyControllable, EnvironmentUrgentlyControllable:
		return 3
	case Violated:
		return 4
	default:
		return -1
	}
}

// IsControllable reports whether the tag is one of the four finite/urgent tags.
func (t StateType) IsControllable() bool {
	switch t {
	case SystemFinitelyControllable, SystemUrgentlyControllable,
		EnvironmentFinitelyControllable, EnvironmentUrgentlyControllable:
		return true
	}
	return false
}

// IsSystemControlled reports whether the agent, not the environment, controls the path.
func (t StateType) IsSystemControlled() bool {
	return t == SystemFinitelyControllable || t == SystemUrgentlyControllable
}

// #endregion accessors
