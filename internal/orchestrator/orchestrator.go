package orchestrator

// #region imports
import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/safety-envelope/internal/config"
	"github.com/danielpatrickdp/safety-envelope/internal/core"
	"github.com/danielpatrickdp/safety-envelope/internal/envelope"
	"github.com/danielpatrickdp/safety-envelope/internal/eval"
	"github.com/danielpatrickdp/safety-envelope/internal/gridworld"
	"github.com/danielpatrickdp/safety-envelope/internal/logging"
	"github.com/danielpatrickdp/safety-envelope/internal/monitor"
	"github.com/danielpatrickdp/safety-envelope/internal/perception"
	"github.com/danielpatrickdp/safety-envelope/internal/store"
)

// #endregion

// maxEpisodeSteps bounds episodes when max_steps is zero.
const maxEpisodeSteps = 10_000

// #region orchestrator-struct

// Orchestrator runs episodes of a policy on the configured grid behind the
// configured envelope. Each episode owns its world, envelope and monitors,
// so episodes on different workers share nothing but the sinks.
type Orchestrator struct {
	cfg     config.Config
	deps    Deps
	harness *eval.EvalHarness
	logger  *slog.Logger
}

// #endregion

// #region constructor

// NewOrchestrator validates cfg once so that per-episode construction can
// only fail on environment errors.
func NewOrchestrator(cfg config.Config, deps Deps) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("orchestrator: nil store")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.NewPolicy == nil {
		deps.NewPolicy = func(seed uint64) Policy { return NewRandomPolicy(seed) }
	}
	return &Orchestrator{
		cfg:     cfg,
		deps:    deps,
		harness: eval.NewEvalHarness(cfg.Eval),
		logger:  deps.Logger.With("component", "orchestrator"),
	}, nil
}

// MonitorNames lists the active monitors, for health registration.
func MonitorNames(cfg config.Config) []string {
	var names []string
	for _, s := range cfg.Monitors {
		if s.IsActive() {
			names = append(names, s.Name)
		}
	}
	return names
}

// #endregion

// #region run

// Run plays cfg.Run.Episodes episodes on cfg.Run.Workers workers. Episode i
// uses seed cfg.Run.Seed+i, so results do not depend on scheduling.
func (o *Orchestrator) Run(ctx context.Context) ([]EpisodeResult, eval.Report, error) {
	n, workers := o.cfg.Run.Episodes, o.cfg.Run.Workers
	results := make([]EpisodeResult, n)

	g, ctx := errgroup.WithContext(ctx)
	for w := range workers {
		g.Go(func() error {
			for i := w; i < n; i += workers {
				res, err := o.RunEpisode(ctx, w, o.cfg.Run.Seed+uint64(i))
				if err != nil {
					return fmt.Errorf("worker %d episode %d: %w", w, i, err)
				}
				results[i] = res
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eval.Report{}, err
	}

	eps := make([]store.EpisodeRecord, n)
	for i, r := range results {
		eps[i] = r.Episode
	}
	return results, o.harness.Summarize(eps), nil
}

// Loop plays episodes on every worker until ctx is done.
func (o *Orchestrator) Loop(ctx context.Context) error {
	var mu sync.Mutex
	next := o.cfg.Run.Seed

	g, ctx := errgroup.WithContext(ctx)
	for w := range o.cfg.Run.Workers {
		g.Go(func() error {
			for ctx.Err() == nil {
				mu.Lock()
				seed := next
				next++
				mu.Unlock()
				if _, err := o.RunEpisode(ctx, w, seed); err != nil {
					return fmt.Errorf("worker %d: %w", w, err)
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// #endregion

// #region run-episode

// episode accumulates one episode's totals.
type episode struct {
	rec        store.EpisodeRecord
	steps      int
	reward     float64
	violations int
	overrides  int
	mismatches int
}

// RunEpisode plays one episode, journals every step, and evaluates the
// finished record. A cancelled context ends the episode early with outcome
// "cancelled" and no error.
func (o *Orchestrator) RunEpisode(ctx context.Context, worker int, seed uint64) (EpisodeResult, error) {
	world, err := gridworld.New(o.cfg.World())
	if err != nil {
		return EpisodeResult{}, fmt.Errorf("build world: %w", err)
	}
	rec, err := o.deps.Store.BeginEpisode(worker, int64(seed))
	if err != nil {
		return EpisodeResult{}, err
	}
	ep := &episode{rec: rec}
	logger := o.logger.With("episode", rec.EpisodeID, "worker", worker)

	sink := logging.NewSink(o.deps.Store.DB(), logger)
	sink.SetEpisode(rec.EpisodeID)
	listeners := []monitor.Notifier{sink.Notify, func(n monitor.Notification) {
		if n.Label == monitor.LabelMismatch {
			ep.mismatches++
		}
	}}
	if o.deps.Metrics != nil {
		listeners = append(listeners, o.deps.Metrics.Notify)
	}
	if o.deps.Health != nil {
		listeners = append(listeners, o.deps.Health.Worker(worker))
	}

	stepper, plan, err := o.build(world, seed, listeners, logger)
	if err != nil {
		return EpisodeResult{}, err
	}
	obs, err := stepper.Reset()
	if err != nil {
		return EpisodeResult{}, err
	}
	if plan != nil {
		plan.SetPlan(o.cfg.Plan())
	}

	policy := o.deps.NewPolicy(seed)
	limit := o.cfg.Envelope.MaxSteps
	if limit == 0 {
		limit = maxEpisodeSteps
	}

	outcome := OutcomeCancelled
	for ep.steps < limit && ctx.Err() == nil {
		proposed := policy.Propose(obs, world.Actions())
		sink.SetStep(ep.steps + 1)

		start := time.Now()
		var reward float64
		var done bool
		var info envelope.StepInfo
		obs, reward, done, info, err = stepper.Step(proposed)
		if err != nil {
			return EpisodeResult{}, fmt.Errorf("step %d: %w", ep.steps+1, err)
		}
		ep.steps++
		ep.reward += reward
		if o.deps.Metrics != nil {
			o.deps.Metrics.ObserveStep(string(info.Tag), time.Since(start))
		}
		if err := o.journal(ep, info, reward, done); err != nil {
			return EpisodeResult{}, err
		}
		if done {
			outcome = outcomeOf(info.Tag)
			break
		}
	}
	if ep.steps >= limit && outcome == OutcomeCancelled {
		outcome = OutcomeEnd
	}
	return o.finish(ep, outcome, logger)
}

// build wires the configured envelope mode around world.
func (o *Orchestrator) build(world *gridworld.World, seed uint64, listeners []monitor.Notifier, logger *slog.Logger) (Stepper, *envelope.PlanTracker, error) {
	resolver := perception.Default()

	if o.cfg.Envelope.Mode == config.ModeController {
		var active []monitor.Spec
		for _, s := range o.cfg.Monitors {
			if s.IsActive() {
				active = append(active, s)
			}
		}
		monitors, err := monitor.NewAll(active, resolver, monitor.Fanout(listeners...), monitor.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		ctrls := make([]envelope.Controller, len(monitors))
		for i, m := range monitors {
			ctrls[i] = envelope.MonitorController{M: m}
		}
		opts := o.cfg.ControllerOptions(seed)
		opts.Logger = logger
		return envelope.NewControllerEnvelope(world, ctrls, opts), nil, nil
	}

	opts := o.cfg.EnvelopeOptions()
	opts.Listeners = listeners
	opts.Logger = logger
	e, err := envelope.New(world, o.cfg.Monitors, resolver, opts)
	if err != nil {
		return nil, nil, err
	}
	return e, opts.Plan, nil
}

// journal writes one step row and folds it into the totals.
func (o *Orchestrator) journal(ep *episode, info envelope.StepInfo, reward float64, done bool) error {
	for _, st := range info.Monitors {
		if st.Label == monitor.LabelViolation {
			ep.violations++
		}
	}
	if info.Tag == envelope.TagSaved || (info.Applied != "" && info.Applied != info.Proposed) {
		ep.overrides++
	}

	snapshot, err := json.Marshal(info.Monitors)
	if err != nil {
		return fmt.Errorf("marshal monitor states: %w", err)
	}
	return o.deps.Store.RecordStep(store.StepRecord{
		EpisodeID:    ep.rec.EpisodeID,
		Step:         ep.steps,
		Proposed:     string(info.Proposed),
		Applied:      string(info.Applied),
		Reward:       reward,
		Done:         done,
		Tag:          string(info.Tag),
		MonitorsJSON: string(snapshot),
	})
}

func (o *Orchestrator) finish(ep *episode, outcome Outcome, logger *slog.Logger) (EpisodeResult, error) {
	err := o.deps.Store.FinishEpisode(ep.rec.EpisodeID, store.EpisodeSummary{
		Steps:       ep.steps,
		TotalReward: ep.reward,
		Violations:  ep.violations,
		Overrides:   ep.overrides,
		Mismatches:  ep.mismatches,
		Outcome:     string(outcome),
	})
	if err != nil {
		return EpisodeResult{}, err
	}
	rec, err := o.deps.Store.GetEpisode(ep.rec.EpisodeID)
	if err != nil {
		return EpisodeResult{}, err
	}
	if o.deps.Metrics != nil {
		o.deps.Metrics.ObserveEpisode(string(outcome), ep.reward, ep.steps)
	}

	res := o.harness.Run(rec)
	logger.Info("episode finished",
		"outcome", outcome, "steps", ep.steps, "reward", ep.reward,
		"violations", ep.violations, "overrides", ep.overrides, "passed", res.Passed)
	return EpisodeResult{Episode: rec, Eval: res}, nil
}

// #endregion

var _ Stepper = (*envelope.SafetyEnvelope)(nil)
var _ Stepper = (*envelope.ControllerEnvelope)(nil)
var _ core.Environment = (*gridworld.World)(nil)
