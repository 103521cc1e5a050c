package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/safety-envelope/internal/core"
	"github.com/danielpatrickdp/safety-envelope/internal/envelope"
	"github.com/danielpatrickdp/safety-envelope/internal/eval"
	"github.com/danielpatrickdp/safety-envelope/internal/gridworld"
	"github.com/danielpatrickdp/safety-envelope/internal/logging"
)

// ErrInvalid wraps every load and validation failure.
var ErrInvalid = errors.New("invalid config")

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	_ = validate.RegisterValidation("action", func(fl validator.FieldLevel) bool {
		_, ok := core.ParseAction(fl.Field().String())
		return ok
	})
}

// #region defaults
// Default is the base every file is overlaid on. It has no monitors, so it
// does not validate on its own.
func Default() Config {
	return Config{
		Envelope: EnvelopeConfig{
			Mode:           ModeSafety,
			FallbackAction: string(core.ActionWait),
			MaxSteps:       100,
		},
		Rewards: RewardsConfig{
			Standard:   StandardRewards{Step: -0.01, Goal: 1, Death: -1},
			Controller: ControllerRewards{Respected: 0, Violated: -1},
		},
		Grid: GridConfig{Layout: []string{
			"#######",
			"#>..W.#",
			"#.....#",
			"#..L.G#",
			"#######",
		}},
		Store:   StoreConfig{Path: "safety.db"},
		Logging: logging.Config{Level: "info", Format: "text"},
		Run:     RunConfig{Episodes: 10, Workers: 1, Seed: 1},
		Eval:    eval.DefaultEvalConfig(),
	}
}

// #endregion defaults

// #region load
// Load overlays the YAML file at path on Default and validates the result.
// Unknown keys are rejected.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: read %s: %w", ErrInvalid, path, err)
	}
	return Parse(data)
}

// Parse is Load without the file.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: parse: %w", ErrInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate runs the struct tags, then the per-monitor checks.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	seen := make(map[string]bool, len(c.Monitors))
	for _, spec := range c.Monitors {
		if err := spec.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalid, err)
		}
		if seen[spec.Name] {
			return fmt.Errorf("%w: duplicate monitor %q", ErrInvalid, spec.Name)
		}
		seen[spec.Name] = true
	}
	return nil
}

// #endregion load

// #region conversions
// World returns the grid config with the standard step reward.
func (c Config) World() gridworld.Config {
	return gridworld.Config{Layout: c.Grid.Layout, StepReward: c.Rewards.Standard.Step}
}

// EnvelopeOptions maps the envelope and reward sections. A plan tracker is
// attached only when action_planning rewards are configured.
func (c Config) EnvelopeOptions() envelope.Options {
	opts := envelope.Options{
		ResetOnViolation: c.Envelope.ResetOnViolation,
		FallbackAction:   core.Action(c.Envelope.FallbackAction),
		Rewards:          c.standard(),
		MaxSteps:         c.Envelope.MaxSteps,
		Exploration:      c.Envelope.Exploration,
	}
	if p := c.Rewards.ActionPlanning; p != nil {
		opts.Plan = envelope.NewPlanTracker(p.OnPlan, p.OffPlan)
	}
	return opts
}

// ControllerOptions maps the controller rewards with the given seed.
func (c Config) ControllerOptions(seed uint64) envelope.ControllerOptions {
	return envelope.ControllerOptions{
		Respected: c.Rewards.Controller.Respected,
		Violated:  c.Rewards.Controller.Violated,
		Rewards:   c.standard(),
		MaxSteps:  c.Envelope.MaxSteps,
		Seed:      seed,
	}
}

// Plan returns the configured plan as actions.
func (c Config) Plan() []core.Action {
	out := make([]core.Action, len(c.Envelope.Plan))
	for i, a := range c.Envelope.Plan {
		out[i] = core.Action(a)
	}
	return out
}

func (c Config) standard() envelope.Rewards {
	s := c.Rewards.Standard
	return envelope.Rewards{Step: s.Step, Goal: s.Goal, Death: s.Death}
}

// #endregion conversions
