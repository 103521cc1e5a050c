package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danielpatrickdp/safety-envelope/internal/monitor"
)

const namespace = "safety"

// #region metrics

// Metrics holds the Prometheus collectors fed by envelopes and monitors.
// All methods are safe for concurrent use.
type Metrics struct {
	registry *prometheus.Registry

	notifications *prometheus.CounterVec
	violating     *prometheus.GaugeVec
	steps         *prometheus.CounterVec
	stepDuration  prometheus.Histogram
	episodes      *prometheus.CounterVec
	episodeReward prometheus.Histogram
	episodeSteps  prometheus.Histogram
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "notifications_total",
			Help:      "Monitor notifications by monitor and label.",
		}, []string{"monitor", "label"}),
		violating: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "violating",
			Help:      "1 while the monitor's latest notification is a violation.",
		}, []string{"monitor"}),
		steps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "envelope",
			Name:      "steps_total",
			Help:      "Envelope steps by tag.",
		}, []string{"tag"}),
		stepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "envelope",
			Name:      "step_duration_seconds",
			Help:      "Wall time of one envelope step.",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),
		episodes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "episode",
			Name:      "total",
			Help:      "Finished episodes by outcome.",
		}, []string{"outcome"}),
		episodeReward: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "episode",
			Name:      "reward",
			Help:      "Total reward per episode.",
			Buckets:   prometheus.LinearBuckets(-10, 1, 21),
		}),
		episodeSteps: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "episode",
			Name:      "steps",
			Help:      "Steps per episode.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
}

// Notify implements monitor.Notifier.
func (m *Metrics) Notify(n monitor.Notification) {
	m.notifications.WithLabelValues(n.Monitor, string(n.Label)).Inc()
	v := 0.0
	if n.Label == monitor.LabelViolation {
		v = 1
	}
	m.violating.WithLabelValues(n.Monitor).Set(v)
}

// ObserveStep counts one step under its tag; an empty tag counts as "none".
func (m *Metrics) ObserveStep(tag string, d time.Duration) {
	if tag == "" {
		tag = "none"
	}
	m.steps.WithLabelValues(tag).Inc()
	m.stepDuration.Observe(d.Seconds())
}

// ObserveEpisode records a finished episode.
func (m *Metrics) ObserveEpisode(outcome string, reward float64, steps int) {
	m.episodes.WithLabelValues(outcome).Inc()
	m.episodeReward.Observe(reward)
	m.episodeSteps.Observe(float64(steps))
}

// Registry exposes the registry for tests and custom exporters.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// #endregion metrics
