package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RunMetrics holds the Prometheus collectors maintained by RunService
type RunMetrics struct {
	triggered *prometheus.CounterVec
	finished  *prometheus.CounterVec
	rejected  prometheus.Counter
	active    prometheus.Gauge
	duration  prometheus.Histogram
}

// NewRunMetrics creates the run collectors and registers them on reg.
// A nil reg leaves them unregistered.
func NewRunMetrics(reg prometheus.Registerer) *RunMetrics {
	factory := promauto.With(reg)

	return &RunMetrics{
		triggered: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bankcap_runs_triggered_total",
				Help: "Runs admitted, by trigger",
			},
			[]string{"trigger"},
		),
		finished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bankcap_runs_finished_total",
				Help: "Runs that reached a terminal status, by status",
			},
			[]string{"status"},
		),
		rejected: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bankcap_runs_rejected_total",
				Help: "Trigger requests refused because every run slot was taken",
			},
		),
		active: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bankcap_runs_active",
				Help: "Runs currently executing",
			},
		),
		duration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bankcap_run_duration_seconds",
				Help:    "Wall time of finished runs",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 14), // 100ms to ~27min
			},
		),
	}
}
