package monitor

import (
	"fmt"

	"github.com/danielpatrickdp/safety-envelope/internal/core"
)

// #region spec
// Spec is the construction input for one monitor, as read from configuration.
type Spec struct {
	Type       Kind       `yaml:"type" json:"type"`
	Name       string     `yaml:"name" json:"name"`
	Active     *bool      `yaml:"active,omitempty" json:"active,omitempty"`
	Conditions Conditions `yaml:"conditions" json:"conditions"`
	Rewards    RewardSpec `yaml:"rewards" json:"rewards"`
	// Window bounds how many checks a response obligation may stay open.
	Window int `yaml:"window,omitempty" json:"window,omitempty"`
}

// Conditions are opaque predicate names resolved by the integrator.
// Which fields apply depends on the pattern.
type Conditions struct {
	Pre       string `yaml:"pre,omitempty" json:"pre,omitempty"`
	Post      string `yaml:"post,omitempty" json:"post,omitempty"`
	First     string `yaml:"first,omitempty" json:"first,omitempty"`
	Second    string `yaml:"second,omitempty" json:"second,omitempty"`
	Near      string `yaml:"near,omitempty" json:"near,omitempty"`
	Immediate string `yaml:"immediate,omitempty" json:"immediate,omitempty"`
	Deadline  string `yaml:"deadline,omitempty" json:"deadline,omitempty"`
	Scope     string `yaml:"scope,omitempty" json:"scope,omitempty"`
	// Action is the forbidden action of an avoid monitor.
	Action string `yaml:"action,omitempty" json:"action,omitempty"`
}

// RewardSpec keeps pointers so a missing field is told apart from zero.
type RewardSpec struct {
	Respected *float64 `yaml:"respected,omitempty" json:"respected,omitempty"`
	Violated  *float64 `yaml:"violated,omitempty" json:"violated,omitempty"`
	Near      *float64 `yaml:"near,omitempty" json:"near,omitempty"`
	Immediate *float64 `yaml:"immediate,omitempty" json:"immediate,omitempty"`
}

// IsActive reports whether envelopes should drive this monitor. Defaults to true.
func (s Spec) IsActive() bool {
	return s.Active == nil || *s.Active
}

// #endregion spec

// #region validate
// Validate checks the kind, the name and the per-pattern required fields.
func (s Spec) Validate() error {
	if !s.Type.Valid() {
		return fmt.Errorf("monitor %q: %w: %q", s.Name, ErrUnknownKind, s.Type)
	}
	if s.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidSpec)
	}
	if s.Rewards.Violated == nil {
		return fmt.Errorf("monitor %s: %w: violated", s.Name, ErrMissingReward)
	}
	if s.Window < 0 {
		return fmt.Errorf("monitor %s: %w: negative window", s.Name, ErrInvalidSpec)
	}

	c := s.Conditions
	switch s.Type {
	case KindAvoid:
		if c.Action != "" {
			if _, ok := core.ParseAction(c.Action); !ok {
				return fmt.Errorf("monitor %s: %w: unknown action %q", s.Name, ErrInvalidSpec, c.Action)
			}
		}
	case KindPrecedence:
		if c.Pre == "" || c.Post == "" {
			return fmt.Errorf("monitor %s: %w: pre and post", s.Name, ErrMissingCondition)
		}
		if s.Rewards.Respected == nil {
			return fmt.Errorf("monitor %s: %w: respected", s.Name, ErrMissingReward)
		}
	case KindResponse:
		if c.First == "" || c.Second == "" {
			return fmt.Errorf("monitor %s: %w: first and second", s.Name, ErrMissingCondition)
		}
		if c.Deadline == "" && s.Window == 0 {
			return fmt.Errorf("monitor %s: %w: deadline or window", s.Name, ErrMissingCondition)
		}
		if s.Rewards.Respected == nil {
			return fmt.Errorf("monitor %s: %w: respected", s.Name, ErrMissingReward)
		}
	case KindUniversality, KindAbsence:
		if c.First == "" {
			return fmt.Errorf("monitor %s: %w: first", s.Name, ErrMissingCondition)
		}
	}
	return nil
}

// resolvedRewards flattens the spec, missing optional values become zero.
func (s Spec) resolvedRewards() Rewards {
	return Rewards{
		Respected: deref(s.Rewards.Respected),
		Violated:  deref(s.Rewards.Violated),
		Near:      deref(s.Rewards.Near),
		Immediate: deref(s.Rewards.Immediate),
	}
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

// #endregion validate
