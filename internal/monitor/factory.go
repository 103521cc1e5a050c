package monitor

import (
	"fmt"

	"github.com/danielpatrickdp/safety-envelope/internal/core"
)

// #region factory
// New validates spec and builds the pattern it names. Unknown kinds, missing
// rewards and unresolvable conditions fail here, before any step runs.
func New(spec Spec, r Resolver, notify Notifier, opts ...Option) (Monitor, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)

	var (
		m   Monitor
		err error
	)
	switch spec.Type {
	case KindAvoid:
		m, err = newAvoid(spec, r, notify, o)
	case KindPrecedence:
		m, err = newPrecedence(spec, r, notify, o)
	case KindResponse:
		m, err = newResponse(spec, r, notify, o)
	case KindUniversality:
		m, err = newUniversality(spec, r, notify, o)
	case KindAbsence:
		m, err = newAbsence(spec, r, notify, o)
	default:
		return nil, fmt.Errorf("monitor %q: %w: %q", spec.Name, ErrUnknownKind, spec.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("monitor %s: %w", spec.Name, err)
	}
	return m, nil
}

// NewAll builds monitors in spec order, stopping at the first failure.
func NewAll(specs []Spec, r Resolver, notify Notifier, opts ...Option) ([]Monitor, error) {
	out := make([]Monitor, 0, len(specs))
	seen := make(map[string]bool, len(specs))
	for _, s := range specs {
		if seen[s.Name] {
			return nil, fmt.Errorf("monitor %s: %w: duplicate name", s.Name, ErrInvalidSpec)
		}
		seen[s.Name] = true
		m, err := New(s, r, notify, opts...)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func resolveOr(r Resolver, name, fallback string) (core.Condition, error) {
	if name == "" {
		name = fallback
	}
	if name == "" {
		return nil, ErrMissingCondition
	}
	c, err := r.Resolve(name)
	if err != nil {
		return nil, fmt.Errorf("condition %q: %w", name, err)
	}
	return c, nil
}

// resolveScope reads Scope, then Second; an absent scope always holds.
func resolveScope(r Resolver, c Conditions) (core.Condition, error) {
	name := c.Scope
	if name == "" {
		name = c.Second
	}
	if name == "" {
		return func(core.Observation, core.Action) bool { return true }, nil
	}
	return resolveOr(r, name, "")
}

// #endregion factory

// #region controller
// Available filters actions down to those m permits from obs, in input order.
// This is the controller view of a monitor used by the controller envelope.
func Available(m Monitor, obs core.Observation, actions []core.Action) []core.Action {
	out := make([]core.Action, 0, len(actions))
	for _, a := range actions {
		if m.Permits(obs, a) {
			out = append(out, a)
		}
	}
	return out
}

// #endregion controller
