package replay

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/danielpatrickdp/safety-envelope/internal/core"
	"github.com/danielpatrickdp/safety-envelope/internal/envelope"
	"github.com/danielpatrickdp/safety-envelope/internal/gridworld"
	"github.com/danielpatrickdp/safety-envelope/internal/monitor"
	"github.com/danielpatrickdp/safety-envelope/internal/perception"
)

// ErrBadFixture marks fixtures that cannot be replayed.
var ErrBadFixture = errors.New("bad fixture")

// #region types

// Facts is the observation of a scripted step.
type Facts map[string]bool

// StepResult captures one replayed step.
type StepResult struct {
	Index    int
	Proposed core.Action
	Applied  core.Action
	Tag      envelope.Tag
	Reward   float64
	Done     bool
	Labels   map[string]monitor.Label
	// Diffs lists every expectation the step missed.
	Diffs []string
}

// Passed reports whether the step met its expectations.
func (r StepResult) Passed() bool {
	return len(r.Diffs) == 0
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalSteps  int
	Saved       int
	Violations  int
	Goals       int
	Ends        int
	Failures    int
	TotalReward float64
}

// #endregion types

// #region replay

// Replay runs every fixture step through a fresh SafetyEnvelope and compares
// the outcome against the step's expectations.
func Replay(f *Fixture, logger *slog.Logger) ([]StepResult, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	env, resolver, err := f.environment()
	if err != nil {
		return nil, err
	}
	opts := f.Config.ToOptions()
	opts.Logger = logger
	se, err := envelope.New(env, f.Monitors, resolver, opts)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	if _, err := se.Reset(); err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}

	sc, _ := env.(*script)
	results := make([]StepResult, 0, len(f.Steps))
	for i, s := range f.Steps {
		if sc != nil {
			sc.seek(i)
		}
		_, reward, done, info, err := se.Step(core.Action(s.Action))
		if err != nil {
			return results, fmt.Errorf("replay step %d: %w", i, err)
		}
		r := StepResult{
			Index:    i,
			Proposed: info.Proposed,
			Applied:  info.Applied,
			Tag:      info.Tag,
			Reward:   reward,
			Done:     done,
			Labels:   make(map[string]monitor.Label, len(info.Monitors)),
		}
		for name, st := range info.Monitors {
			r.Labels[name] = st.Label
		}
		r.Diffs = compare(s.Expect, r)
		results = append(results, r)

		if done && info.Tag != envelope.TagViolation && i < len(f.Steps)-1 {
			if _, err := se.Reset(); err != nil {
				return results, fmt.Errorf("replay reset after step %d: %w", i, err)
			}
		}
	}
	return results, nil
}

func (f *Fixture) environment() (core.Environment, monitor.Resolver, error) {
	if len(f.Layout) == 0 {
		return newScript(f.Steps, f.Config.Rewards.Step), factResolver{}, nil
	}
	w, err := gridworld.New(gridworld.Config{Layout: f.Layout, StepReward: f.Config.Rewards.Step})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrBadFixture, err)
	}
	return w, perception.Default(), nil
}

func compare(want *FixtureExpect, got StepResult) []string {
	if want == nil {
		return nil
	}
	var diffs []string
	if want.Tag != nil && envelope.Tag(*want.Tag) != got.Tag {
		diffs = append(diffs, fmt.Sprintf("tag: want %q, got %q", *want.Tag, got.Tag))
	}
	if want.Applied != "" && core.Action(want.Applied) != got.Applied {
		diffs = append(diffs, fmt.Sprintf("applied: want %s, got %s", want.Applied, got.Applied))
	}
	if want.Reward != nil && math.Abs(*want.Reward-got.Reward) > 1e-9 {
		diffs = append(diffs, fmt.Sprintf("reward: want %.4f, got %.4f", *want.Reward, got.Reward))
	}
	if want.Done != nil && *want.Done != got.Done {
		diffs = append(diffs, fmt.Sprintf("done: want %t, got %t", *want.Done, got.Done))
	}
	for name, label := range want.Labels {
		if got.Labels[name] != monitor.Label(label) {
			diffs = append(diffs, fmt.Sprintf("label %s: want %s, got %s", name, label, got.Labels[name]))
		}
	}
	return diffs
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []StepResult) ReplaySummary {
	s := ReplaySummary{TotalSteps: len(results)}
	for _, r := range results {
		s.TotalReward += r.Reward
		if !r.Passed() {
			s.Failures++
		}
		switch r.Tag {
		case envelope.TagSaved:
			s.Saved++
		case envelope.TagViolation:
			s.Violations++
		case envelope.TagGoal:
			s.Goals++
		case envelope.TagEnd:
			s.Ends++
		}
	}
	return s
}

// Report renders the failed steps, one per line.
func Report(results []StepResult) string {
	var b strings.Builder
	for _, r := range results {
		for _, d := range r.Diffs {
			fmt.Fprintf(&b, "step %d (%s): %s\n", r.Index, r.Proposed, d)
		}
	}
	return b.String()
}

// #endregion replay

// #region script

// script serves the facts of step i before action i and those of step i+1
// after it. Reset does not rewind: fixtures are indexed by time, not by
// episode.
type script struct {
	steps  []FixtureStep
	pos    int
	reward float64
}

func newScript(steps []FixtureStep, reward float64) *script {
	return &script{steps: steps, reward: reward}
}

func (s *script) Reset() (core.Observation, error) { return s.Observe(), nil }

func (s *script) seek(i int) { s.pos = i }

func (s *script) Step(core.Action) (core.Observation, float64, bool, error) {
	if s.pos < len(s.steps) {
		s.pos++
	}
	return s.Observe(), s.reward, false, nil
}

func (s *script) Observe() core.Observation {
	i := min(s.pos, len(s.steps)-1)
	return Facts(s.steps[i].Facts)
}

func (s *script) Actions() []core.Action { return core.AllActions() }

func (s *script) AtGoal() bool {
	return s.pos > 0 && s.steps[s.pos-1].Goal
}

type factResolver struct{}

func (factResolver) Resolve(name string) (core.Condition, error) {
	negate := strings.HasPrefix(name, perception.NegationPrefix)
	name = strings.TrimPrefix(name, perception.NegationPrefix)
	return func(obs core.Observation, _ core.Action) bool {
		f, _ := obs.(Facts)
		return f[name] != negate
	}, nil
}

// #endregion script
