package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initSolverMetrics() {
	r.SolverIterations = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hydronet_solver_iterations",
			Help:    "Gradient iterations per hydraulic solve",
			Buckets: prometheus.LinearBuckets(1, 2, 20),
		},
	)

	r.SolverRelativeError = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hydronet_solver_relative_error",
			Help:    "Final relative flow correction per hydraulic solve",
			Buckets: prometheus.ExponentialBuckets(1e-6, 10, 7),
		},
	)

	r.SolverUnbalanced = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "hydronet_solver_unbalanced_total",
			Help: "Hydraulic solves that exhausted their trials",
		},
	)

	r.SolverStatusChanges = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "hydronet_solver_status_changes_total",
			Help: "Link status transitions made during hydraulic solves",
		},
	)
}
