package telemetry

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/safety-envelope/internal/monitor"
)

func TestNotifyCountsAndFlagsViolations(t *testing.T) {
	m := New()

	m.Notify(monitor.Notification{Monitor: "water", Label: monitor.LabelShaping})
	m.Notify(monitor.Notification{Monitor: "water", Label: monitor.LabelViolation})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("water", "shaping")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("water", "violation")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.violating.WithLabelValues("water")))

	m.Notify(monitor.Notification{Monitor: "water", Label: monitor.LabelMonitoring})
	assert.Equal(t, 0.0, testutil.ToFloat64(m.violating.WithLabelValues("water")))
}

func TestObserveStepAndEpisode(t *testing.T) {
	m := New()

	m.ObserveStep("", time.Millisecond)
	m.ObserveStep("saved", time.Millisecond)
	m.ObserveStep("saved", time.Millisecond)
	m.ObserveEpisode("goal", 0.5, 12)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.steps.WithLabelValues("none")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.steps.WithLabelValues("saved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.episodes.WithLabelValues("goal")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.episodeReward))
}

func TestHandlerServesMetrics(t *testing.T) {
	m := New()
	m.Notify(monitor.Notification{Monitor: "lava", Label: monitor.LabelViolation})

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(body), `safety_monitor_notifications_total{label="violation",monitor="lava"} 1`))
}

func TestRegistriesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.ObserveStep("goal", 0)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.steps.WithLabelValues("goal")))
	assert.NotSame(t, a.Registry(), b.Registry())
}
