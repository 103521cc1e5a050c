package core

// Environment is the stepwise-simulated world the envelope mediates.
type Environment interface {
	// Reset restores initial conditions and returns the first observation
	Reset() (Observation, error)
	// Step applies one action and returns observation, base reward and done
	Step(action Action) (Observation, float64, bool, error)
	// Observe returns the current observation without advancing the world
	Observe() Observation
	// Actions lists the action vocabulary the environment accepts
	Actions() []Action
	// AtGoal reports whether the agent currently occupies a goal cell
	AtGoal() bool
}
