package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/safety-envelope/internal/core"
	"github.com/danielpatrickdp/safety-envelope/internal/monitor"
)

const minimal = `
monitors:
  - type: avoid
    name: water
    rewards: {violated: -1}
`

func TestLoadValidFile(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "valid.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ModeSafety, cfg.Envelope.Mode)
	assert.Equal(t, 50, cfg.Envelope.MaxSteps)
	require.Len(t, cfg.Monitors, 3)
	assert.Equal(t, monitor.KindPrecedence, cfg.Monitors[2].Type)
	assert.False(t, cfg.Monitors[2].IsActive())
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, uint64(7), cfg.Run.Seed)
	assert.Equal(t, -2.0, cfg.Eval.MinReward)
	assert.Equal(t, []core.Action{core.ActionForward, core.ActionForward, core.ActionRight}, cfg.Plan())

	opts := cfg.EnvelopeOptions()
	assert.Equal(t, core.ActionWait, opts.FallbackAction)
	assert.True(t, opts.Exploration)
	require.NotNil(t, opts.Plan)
	assert.Equal(t, -1.0, opts.Rewards.Death)

	copts := cfg.ControllerOptions(9)
	assert.Equal(t, 0.1, copts.Respected)
	assert.Equal(t, uint64(9), copts.Seed)

	world := cfg.World()
	assert.Equal(t, -0.01, world.StepReward)
	assert.Len(t, world.Layout, 4)
}

func TestParseOverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimal))
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.Grid.Layout, cfg.Grid.Layout)
	assert.Equal(t, def.Run, cfg.Run)
	assert.Nil(t, cfg.EnvelopeOptions().Plan, "no plan tracker without action_planning rewards")
}

func TestDefaultNeedsMonitors(t *testing.T) {
	err := Default().Validate()
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestInvalidConfigs(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"unknown key", minimal + "colour: blue\n"},
		{"bad mode", minimal + "envelope: {mode: hybrid}\n"},
		{"bad fallback", minimal + "envelope: {fallback_action: jump}\n"},
		{"bad plan action", minimal + "envelope: {plan: [forward, fly]}\n"},
		{"negative max steps", minimal + "envelope: {max_steps: -1}\n"},
		{"zero workers", minimal + "run: {workers: 0}\n"},
		{"bad metrics addr", minimal + "metrics: {addr: nowhere}\n"},
		{"bad log level", minimal + "logging: {level: chatty}\n"},
		{"empty store path", minimal + "store: {path: \"\"}\n"},
		{"empty layout", minimal + "grid: {layout: []}\n"},
		{"unknown kind", "monitors: [{type: sometimes, name: x, rewards: {violated: -1}}]\n"},
		{"missing violated", "monitors: [{type: avoid, name: x}]\n"},
		{"duplicate names", minimal + "  - type: avoid\n    name: water\n    rewards: {violated: -1}\n"},
		{"not yaml", "monitors: [\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid), "expected ErrInvalid, got %v", err)
		})
	}
}

func TestMonitorErrorsKeepTheirSentinel(t *testing.T) {
	_, err := Parse([]byte("monitors: [{type: sometimes, name: x, rewards: {violated: -1}}]\n"))
	assert.ErrorIs(t, err, monitor.ErrUnknownKind)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, ErrInvalid)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
