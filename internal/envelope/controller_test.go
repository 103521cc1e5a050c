package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/safety-envelope/internal/core"
	"github.com/danielpatrickdp/safety-envelope/internal/monitor"
)

type staticController struct {
	name    string
	safe    []core.Action
	updates int
	resets  int
}

func (s *staticController) Name() string { return s.name }
func (s *staticController) Available(core.Observation, []core.Action) []core.Action {
	return s.safe
}
func (s *staticController) Update(core.Observation, core.Observation, core.Action) { s.updates++ }
func (s *staticController) Reset()                                                 { s.resets++ }

func controllerOptions() ControllerOptions {
	return ControllerOptions{
		Respected: 0.1,
		Violated:  -1,
		Rewards:   Rewards{Step: -0.01, Goal: 1, Death: -5},
		Seed:      7,
	}
}

func TestControllerEnvelopeSubstitutes(t *testing.T) {
	env := newFakeEnv(facts{})
	a := &staticController{name: "a", safe: []core.Action{core.ActionForward, core.ActionLeft}}
	b := &staticController{name: "b", safe: []core.Action{core.ActionLeft}}
	c := NewControllerEnvelope(env, []Controller{a, b}, controllerOptions())

	_, reward, done, info, err := c.Step(core.ActionForward)
	require.NoError(t, err)

	assert.Equal(t, []core.Action{core.ActionLeft}, env.applied)
	assert.Equal(t, TagViolation, info.Tag)
	assert.InDelta(t, -1, reward, 1e-9)
	assert.False(t, done)
	assert.Equal(t, monitor.LabelViolation, info.Monitors["b"].Label)
	assert.Equal(t, monitor.LabelMonitoring, info.Monitors["a"].Label)
	assert.Equal(t, 1, a.updates)
}

func TestControllerEnvelopeRespected(t *testing.T) {
	env := newFakeEnv(facts{})
	a := &staticController{name: "a", safe: []core.Action{core.ActionForward, core.ActionLeft}}
	c := NewControllerEnvelope(env, []Controller{a}, controllerOptions())

	_, reward, _, info, err := c.Step(core.ActionForward)
	require.NoError(t, err)

	assert.Equal(t, TagNone, info.Tag)
	assert.InDelta(t, -0.01+0.1, reward, 1e-9)
}

func TestControllerEnvelopeEmptyIntersectionIsUnmediated(t *testing.T) {
	env := newFakeEnv(facts{})
	a := &staticController{name: "a", safe: []core.Action{core.ActionForward}}
	b := &staticController{name: "b", safe: []core.Action{core.ActionLeft}}
	c := NewControllerEnvelope(env, []Controller{a, b}, controllerOptions())

	_, _, _, info, err := c.Step(core.ActionRight)
	require.NoError(t, err)

	assert.Equal(t, []core.Action{core.ActionRight}, env.applied)
	assert.Equal(t, TagNone, info.Tag)
}

func TestControllerEnvelopeSameSeedSameChoices(t *testing.T) {
	run := func() []core.Action {
		env := newFakeEnv(facts{})
		a := &staticController{name: "a", safe: []core.Action{core.ActionLeft, core.ActionRight, core.ActionWait}}
		c := NewControllerEnvelope(env, []Controller{a}, controllerOptions())
		for range 10 {
			_, _, _, _, err := c.Step(core.ActionForward)
			require.NoError(t, err)
		}
		return env.applied
	}
	assert.Equal(t, run(), run())
}

func TestMonitorControllerFiltersUnsafe(t *testing.T) {
	m, err := monitor.New(avoid("water"), factResolver{}, nil)
	require.NoError(t, err)
	env := newFakeEnv(facts{"water-immediate": true})
	c := NewControllerEnvelope(env, []Controller{MonitorController{M: m}}, controllerOptions())

	_, reward, _, info, err := c.Step(core.ActionForward)
	require.NoError(t, err)

	assert.NotEqual(t, core.ActionForward, env.applied[0])
	assert.Equal(t, TagViolation, info.Tag)
	assert.InDelta(t, -1, reward, 1e-9)
	assert.Equal(t, monitor.AvoidImmediate, m.State())

	_, err = c.Reset()
	require.NoError(t, err)
	_, anchored := m.Initial()
	assert.False(t, anchored)
}
