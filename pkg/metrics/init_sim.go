package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initSimMetrics() {
	r.StepsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "hydronet_sim_steps_total",
			Help: "Completed simulation steps",
		},
	)

	r.StepDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hydronet_sim_step_duration_seconds",
			Help:    "Wall-clock time per simulation step",
			Buckets: prometheus.ExponentialBuckets(1e-5, 4, 10),
		},
	)

	r.ControlResolves = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "hydronet_control_resolves_total",
			Help: "Extra hydraulic solves forced by control actions",
		},
	)

	r.ControlActionsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "hydronet_control_actions_total",
			Help: "Link status or setting changes made by controls and rules",
		},
	)

	r.WarningsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydronet_warnings_total",
			Help: "Simulation warnings by code",
		},
		[]string{"code"},
	)
}
