package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for the simulation engine. A nil *Registry is
// valid and records nothing, so instrumented code never guards its calls.
type Registry struct {
	// Hydraulic solver metrics
	SolverIterations    prometheus.Histogram
	SolverRelativeError prometheus.Histogram
	SolverUnbalanced    prometheus.Counter
	SolverStatusChanges prometheus.Counter

	// Simulation step metrics
	StepsTotal          prometheus.Counter
	StepDuration        prometheus.Histogram
	ControlResolves     prometheus.Counter
	ControlActionsTotal prometheus.Counter
	WarningsTotal       *prometheus.CounterVec

	// Water quality metrics
	QualitySegments prometheus.Gauge
	QualitySteps    prometheus.Counter

	registry *prometheus.Registry
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the process-wide metrics registry.
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
	}
	r.initSolverMetrics()
	r.initSimMetrics()
	r.initQualityMetrics()
	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry.
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}
