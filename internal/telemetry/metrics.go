// Package telemetry exposes prometheus metrics for the registry.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	loadDuration        *prometheus.HistogramVec
	sourceErrors        *prometheus.CounterVec
	tools               *prometheus.GaugeVec
	approvalTransitions *prometheus.CounterVec
	refreshes           *prometheus.CounterVec
}

func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &Metrics{
		loadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toolreg_source_load_duration_seconds",
				Help:    "Duration of per-source tool loads in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"source", "status"},
		),
		sourceErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolreg_source_errors_total",
				Help: "Total number of source load failures",
			},
			[]string{"source"},
		),
		tools: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "toolreg_tools",
				Help: "Current number of registered tools per source",
			},
			[]string{"source"},
		),
		approvalTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolreg_approval_transitions_total",
				Help: "Total number of approval state transitions",
			},
			[]string{"from", "to"},
		),
		refreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolreg_refreshes_total",
				Help: "Total number of refresh operations",
			},
			[]string{"scope"},
		),
	}
}

// ObserveLoad records one source load attempt.
func (m *Metrics) ObserveLoad(source string, duration time.Duration, failed bool) {
	if m == nil {
		return
	}
	status := "ok"
	if failed {
		status = "error"
		m.sourceErrors.WithLabelValues(source).Inc()
	}
	m.loadDuration.WithLabelValues(source, status).Observe(duration.Seconds())
}

// SetToolCount tracks the current per-source tool count.
func (m *Metrics) SetToolCount(source string, count int) {
	if m == nil {
		return
	}
	m.tools.WithLabelValues(source).Set(float64(count))
}

// ObserveTransition records one approval state transition.
func (m *Metrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.approvalTransitions.WithLabelValues(from, to).Inc()
}

// ObserveRefresh counts refresh operations; scope is "full" or a source name.
func (m *Metrics) ObserveRefresh(scope string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(scope).Inc()
}
