package orchestrator

// #region imports
import (
	"log/slog"
	"math/rand/v2"

	"github.com/danielpatrickdp/safety-envelope/internal/core"
	"github.com/danielpatrickdp/safety-envelope/internal/envelope"
	"github.com/danielpatrickdp/safety-envelope/internal/eval"
	"github.com/danielpatrickdp/safety-envelope/internal/health"
	"github.com/danielpatrickdp/safety-envelope/internal/store"
	"github.com/danielpatrickdp/safety-envelope/internal/telemetry"
)

// #endregion

// #region outcome

// Outcome is how an episode ended.
type Outcome string

const (
	OutcomeGoal      Outcome = "goal"
	OutcomeViolation Outcome = "violation"
	OutcomeEnd       Outcome = "end"
	OutcomeDone      Outcome = "done"
	OutcomeCancelled Outcome = "cancelled"
)

// outcomeOf maps the final step's tag; hazards end episodes without a tag.
func outcomeOf(tag envelope.Tag) Outcome {
	switch tag {
	case envelope.TagGoal:
		return OutcomeGoal
	case envelope.TagViolation:
		return OutcomeViolation
	case envelope.TagEnd:
		return OutcomeEnd
	}
	return OutcomeDone
}

// #endregion

// #region stepper

// Stepper is the surface shared by SafetyEnvelope and ControllerEnvelope.
type Stepper interface {
	Reset() (core.Observation, error)
	Step(proposed core.Action) (core.Observation, float64, bool, envelope.StepInfo, error)
}

// #endregion

// #region policy

// Policy proposes the next action. The envelope decides whether it runs.
type Policy interface {
	Propose(obs core.Observation, actions []core.Action) core.Action
}

// RandomPolicy proposes uniformly at random from a seeded source.
type RandomPolicy struct {
	rng *rand.Rand
}

// NewRandomPolicy seeds a PCG source; equal seeds give equal proposals.
func NewRandomPolicy(seed uint64) *RandomPolicy {
	return &RandomPolicy{rng: rand.New(rand.NewPCG(seed, seed+1))}
}

// Propose ignores the observation.
func (p *RandomPolicy) Propose(_ core.Observation, actions []core.Action) core.Action {
	if len(actions) == 0 {
		return core.ActionWait
	}
	return actions[p.rng.IntN(len(actions))]
}

// #endregion

// #region deps

// Deps are the sinks an orchestrator feeds. Metrics and Health may be nil.
type Deps struct {
	Store   *store.Store
	Metrics *telemetry.Metrics
	Health  *health.Reporter
	Logger  *slog.Logger
	// NewPolicy builds the policy of one episode; nil means RandomPolicy.
	NewPolicy func(seed uint64) Policy
}

// EpisodeResult pairs a journaled episode with its evaluation.
type EpisodeResult struct {
	Episode store.EpisodeRecord
	Eval    eval.EvalResult
}

// #endregion
