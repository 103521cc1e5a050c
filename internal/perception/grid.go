package perception

import (
	"github.com/danielpatrickdp/safety-envelope/internal/core"
	"github.com/danielpatrickdp/safety-envelope/internal/gridworld"
)

// #region grid-conditions

// Default returns the condition vocabulary over gridworld views.
// Predicates read false for any other observation type.
func Default() *Registry {
	r := NewRegistry()
	must := func(name string, c core.Condition) {
		if err := r.Register(name, c); err != nil {
			panic(err)
		}
	}

	for _, h := range []gridworld.Cell{gridworld.Water, gridworld.Lava} {
		must(h.String()+"-immediate", onView(func(v gridworld.View, _ core.Action) bool {
			return v.Front == h
		}))
		must(h.String()+"-near", onView(func(v gridworld.View, _ core.Action) bool {
			return v.Front != h && (v.Front2 == h || v.Left == h || v.Right == h)
		}))
	}

	must("door-closed-ahead", onView(func(v gridworld.View, _ core.Action) bool {
		return v.Front == gridworld.DoorClosed
	}))
	must("door-open-ahead", onView(func(v gridworld.View, _ core.Action) bool {
		return v.Front == gridworld.DoorOpen
	}))
	must("entering-door", onView(func(v gridworld.View, a core.Action) bool {
		return a == core.ActionForward && v.Front == gridworld.DoorOpen
	}))
	must("light-on", onView(func(v gridworld.View, _ core.Action) bool {
		return v.LightOn
	}))
	must("key-carried", onView(func(v gridworld.View, _ core.Action) bool {
		return v.Carrying == gridworld.Key
	}))
	must("dirt-ahead", onView(func(v gridworld.View, _ core.Action) bool {
		return v.Front == gridworld.Dirt
	}))
	must("goal-ahead", onView(func(v gridworld.View, _ core.Action) bool {
		return v.Front == gridworld.Goal
	}))

	for _, a := range []core.Action{core.ActionForward, core.ActionToggle, core.ActionClean} {
		must("action-"+string(a), func(_ core.Observation, proposed core.Action) bool {
			return proposed == a
		})
	}
	must("always", func(core.Observation, core.Action) bool { return true })
	return r
}

func onView(fn func(gridworld.View, core.Action) bool) core.Condition {
	return func(obs core.Observation, a core.Action) bool {
		switch v := obs.(type) {
		case gridworld.View:
			return fn(v, a)
		case *gridworld.View:
			return v != nil && fn(*v, a)
		}
		return false
	}
}

// #endregion grid-conditions
