package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/safety-envelope/internal/core"
	"github.com/danielpatrickdp/safety-envelope/internal/envelope"
	"github.com/danielpatrickdp/safety-envelope/internal/monitor"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture. With a
// Layout the steps run on a grid world with the default vocabulary;
// without one each step scripts its own facts.
type Fixture struct {
	Description string         `json:"description"`
	Layout      []string       `json:"layout,omitempty"`
	Config      FixtureConfig  `json:"config"`
	Monitors    []monitor.Spec `json:"monitors"`
	Steps       []FixtureStep  `json:"steps"`
}

// FixtureConfig mirrors envelope.Options with JSON tags.
type FixtureConfig struct {
	ResetOnViolation bool           `json:"reset_on_violation"`
	FallbackAction   string         `json:"fallback_action,omitempty"`
	Rewards          FixtureRewards `json:"rewards"`
	MaxSteps         int            `json:"max_steps,omitempty"`
}

// FixtureRewards mirrors envelope.Rewards with JSON tags.
type FixtureRewards struct {
	Step  float64 `json:"step"`
	Goal  float64 `json:"goal"`
	Death float64 `json:"death"`
}

// FixtureStep is one proposed action. Facts is the observation the action is
// checked against; Goal marks the step after which the agent is on a goal.
type FixtureStep struct {
	Facts  map[string]bool `json:"facts,omitempty"`
	Action string          `json:"action"`
	Goal   bool            `json:"goal,omitempty"`
	Expect *FixtureExpect  `json:"expect,omitempty"`
}

// FixtureExpect lists what to compare. Empty fields are not compared.
type FixtureExpect struct {
	Tag     *string           `json:"tag,omitempty"`
	Applied string            `json:"applied,omitempty"`
	Reward  *float64          `json:"reward,omitempty"`
	Done    *bool             `json:"done,omitempty"`
	Labels  map[string]string `json:"labels,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	return &f, nil
}

func (f *Fixture) validate() error {
	if len(f.Steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrBadFixture)
	}
	for i, s := range f.Steps {
		if _, ok := core.ParseAction(s.Action); !ok {
			return fmt.Errorf("%w: step %d: unknown action %q", ErrBadFixture, i, s.Action)
		}
		if s.Expect != nil && s.Expect.Applied != "" {
			if _, ok := core.ParseAction(s.Expect.Applied); !ok {
				return fmt.Errorf("%w: step %d: unknown applied action %q", ErrBadFixture, i, s.Expect.Applied)
			}
		}
	}
	if f.Config.FallbackAction != "" {
		if _, ok := core.ParseAction(f.Config.FallbackAction); !ok {
			return fmt.Errorf("%w: unknown fallback action %q", ErrBadFixture, f.Config.FallbackAction)
		}
	}
	return nil
}

// ToOptions converts a FixtureConfig to envelope options.
func (fc *FixtureConfig) ToOptions() envelope.Options {
	return envelope.Options{
		ResetOnViolation: fc.ResetOnViolation,
		FallbackAction:   core.Action(fc.FallbackAction),
		Rewards: envelope.Rewards{
			Step:  fc.Rewards.Step,
			Goal:  fc.Rewards.Goal,
			Death: fc.Rewards.Death,
		},
		MaxSteps: fc.MaxSteps,
	}
}

// #endregion fixture-loader
