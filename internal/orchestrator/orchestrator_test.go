package orchestrator

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/danielpatrickdp/safety-envelope/internal/config"
	"github.com/danielpatrickdp/safety-envelope/internal/core"
	"github.com/danielpatrickdp/safety-envelope/internal/health"
	"github.com/danielpatrickdp/safety-envelope/internal/store"
	"github.com/danielpatrickdp/safety-envelope/internal/telemetry"
)

// #region helpers

const monitors = `
monitors:
  - type: avoid
    name: water
    rewards: {violated: -1, near: -0.1, immediate: -0.5}
`

func tempStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func loadConfig(t *testing.T, extra string) config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(monitors + extra))
	require.NoError(t, err)
	return cfg
}

// scripted replays a fixed action list, then waits.
type scripted struct {
	actions []core.Action
}

func (s *scripted) Propose(core.Observation, []core.Action) core.Action {
	if len(s.actions) == 0 {
		return core.ActionWait
	}
	a := s.actions[0]
	s.actions = s.actions[1:]
	return a
}

func script(actions ...core.Action) func(uint64) Policy {
	return func(uint64) Policy { return &scripted{actions: actions} }
}

// #endregion

func TestRunEpisodeReachesGoal(t *testing.T) {
	cfg := loadConfig(t, `
grid:
  layout: ["#####", "#>.G#", "#####"]
`)
	st := tempStore(t)
	o, err := NewOrchestrator(cfg, Deps{Store: st, NewPolicy: script(core.ActionForward, core.ActionForward)})
	require.NoError(t, err)

	res, err := o.RunEpisode(context.Background(), 0, 1)
	require.NoError(t, err)

	assert.Equal(t, string(OutcomeGoal), res.Episode.Outcome)
	assert.Equal(t, 2, res.Episode.Steps)
	assert.InDelta(t, 0.99, res.Episode.TotalReward, 1e-9)
	assert.True(t, res.Eval.Passed, res.Eval.Reason)

	steps, err := st.Steps(res.Episode.EpisodeID)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "goal", steps[1].Tag)
	assert.Contains(t, steps[0].MonitorsJSON, `"water"`)
}

func TestRunEpisodeJournalsOverrides(t *testing.T) {
	cfg := loadConfig(t, `
envelope: {max_steps: 3}
grid:
  layout: ["#####", "#>W.#", "#..G#", "#####"]
`)
	st := tempStore(t)
	m := telemetry.New()
	o, err := NewOrchestrator(cfg, Deps{Store: st, Metrics: m, NewPolicy: script(core.ActionForward, core.ActionForward, core.ActionForward)})
	require.NoError(t, err)

	res, err := o.RunEpisode(context.Background(), 0, 1)
	require.NoError(t, err)

	assert.Equal(t, string(OutcomeEnd), res.Episode.Outcome)
	assert.Equal(t, 3, res.Episode.Violations)
	assert.Equal(t, 3, res.Episode.Overrides)
	assert.False(t, res.Eval.Passed, "violations fail the default evaluation")

	var rows int
	require.NoError(t, st.DB().QueryRow(
		`SELECT COUNT(*) FROM notification_log WHERE episode_id = ? AND label = 'violation'`,
		res.Episode.EpisodeID).Scan(&rows))
	assert.Equal(t, 3, rows)

	steps, err := st.Steps(res.Episode.EpisodeID)
	require.NoError(t, err)
	for _, s := range steps {
		assert.Equal(t, "wait", s.Applied)
	}
}

func TestRunEpisodeCountsMismatches(t *testing.T) {
	cfg := loadConfig(t, `
envelope: {max_steps: 3}
grid:
  layout: ["#####", "#>.W#", "#..G#", "#####"]
eval: {max_violations: -1, max_mismatches: 0, min_reward: -10}
`)
	st := tempStore(t)
	o, err := NewOrchestrator(cfg, Deps{Store: st, NewPolicy: script(core.ActionForward, core.ActionForward)})
	require.NoError(t, err)

	res, err := o.RunEpisode(context.Background(), 0, 1)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Episode.Mismatches, "stepping next to the water changes the observed state")
	assert.Equal(t, 1, res.Episode.Violations, "the first forward into the water is caught")
	assert.False(t, res.Eval.Passed)
	assert.Contains(t, res.Eval.Reason, "mismatches")

	steps, err := st.Steps(res.Episode.EpisodeID)
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, "forward", steps[0].Applied)
	assert.Equal(t, "wait", steps[1].Applied)
	assert.Equal(t, "saved", steps[1].Tag)
}

func TestRunEpisodeControllerMode(t *testing.T) {
	cfg := loadConfig(t, `
envelope: {mode: controller, max_steps: 2}
grid:
  layout: ["#####", "#>W.#", "#..G#", "#####"]
`)
	st := tempStore(t)
	o, err := NewOrchestrator(cfg, Deps{Store: st, NewPolicy: script(core.ActionForward, core.ActionForward)})
	require.NoError(t, err)

	res, err := o.RunEpisode(context.Background(), 0, 3)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Episode.Steps)
	assert.GreaterOrEqual(t, res.Episode.Violations, 1)
	assert.GreaterOrEqual(t, res.Episode.Overrides, 1)

	steps, err := st.Steps(res.Episode.EpisodeID)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.NotEqual(t, "forward", steps[0].Applied, "forward into water must be substituted")
}

func TestRunFeedsHealth(t *testing.T) {
	cfg := loadConfig(t, `
envelope: {max_steps: 1}
grid:
  layout: ["#####", "#>W.#", "#..G#", "#####"]
`)
	rep := health.NewReporter(MonitorNames(cfg), nil)
	o, err := NewOrchestrator(cfg, Deps{Store: tempStore(t), Health: rep, NewPolicy: script(core.ActionForward)})
	require.NoError(t, err)

	_, err = o.RunEpisode(context.Background(), 0, 1)
	require.NoError(t, err)

	st, err := rep.Server().Check(context.Background(), &healthpb.HealthCheckRequest{Service: "water"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, st.GetStatus())
}

func TestRunIsDeterministicPerSeed(t *testing.T) {
	cfg := loadConfig(t, `
envelope: {max_steps: 20}
run: {episodes: 3, workers: 2, seed: 11}
grid:
  layout: ["######", "#>.W.#", "#.L..#", "#...G#", "######"]
`)
	run := func() []EpisodeResult {
		o, err := NewOrchestrator(cfg, Deps{Store: tempStore(t)})
		require.NoError(t, err)
		results, rep, err := o.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 3, rep.Episodes)
		return results
	}
	a, b := run(), run()

	require.Len(t, a, 3)
	for i := range a {
		assert.Equal(t, int64(11+i), a[i].Episode.Seed)
		assert.Equal(t, a[i].Episode.Steps, b[i].Episode.Steps)
		assert.Equal(t, a[i].Episode.TotalReward, b[i].Episode.TotalReward)
		assert.Equal(t, a[i].Episode.Outcome, b[i].Episode.Outcome)
	}
}

func TestLoopStopsOnCancel(t *testing.T) {
	cfg := loadConfig(t, `
envelope: {max_steps: 5}
run: {workers: 2}
`)
	st := tempStore(t)
	o, err := NewOrchestrator(cfg, Deps{Store: st})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, o.Loop(ctx))
}

func TestCancelledEpisode(t *testing.T) {
	cfg := loadConfig(t, "")
	o, err := NewOrchestrator(cfg, Deps{Store: tempStore(t)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := o.RunEpisode(ctx, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, string(OutcomeCancelled), res.Episode.Outcome)
	assert.Zero(t, res.Episode.Steps)
}

func TestNewOrchestratorRejects(t *testing.T) {
	_, err := NewOrchestrator(config.Default(), Deps{Store: tempStore(t)})
	assert.ErrorIs(t, err, config.ErrInvalid)

	_, err = NewOrchestrator(loadConfig(t, ""), Deps{})
	assert.Error(t, err)
}

func TestRandomPolicy(t *testing.T) {
	a, b := NewRandomPolicy(5), NewRandomPolicy(5)
	actions := core.AllActions()
	for range 20 {
		assert.Equal(t, a.Propose(nil, actions), b.Propose(nil, actions))
	}
	assert.Equal(t, core.ActionWait, a.Propose(nil, nil))
}

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, OutcomeGoal, outcomeOf("goal"))
	assert.Equal(t, OutcomeViolation, outcomeOf("violation"))
	assert.Equal(t, OutcomeEnd, outcomeOf("end"))
	assert.Equal(t, OutcomeDone, outcomeOf(""))
}
