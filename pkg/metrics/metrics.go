package metrics

import (
	"time"
)

// RecordSolve records the outcome of one hydraulic solve.
func (r *Registry) RecordSolve(iterations int, relErr float64, converged bool, statusChanges int) {
	if r == nil {
		return
	}
	r.SolverIterations.Observe(float64(iterations))
	r.SolverRelativeError.Observe(relErr)
	r.SolverStatusChanges.Add(float64(statusChanges))
	if !converged {
		r.SolverUnbalanced.Inc()
	}
}

// RecordStep records one completed simulation step.
func (r *Registry) RecordStep(wall time.Duration, resolves, actions int) {
	if r == nil {
		return
	}
	r.StepsTotal.Inc()
	r.StepDuration.Observe(wall.Seconds())
	r.ControlResolves.Add(float64(resolves))
	r.ControlActionsTotal.Add(float64(actions))
}

// RecordWarning counts one simulation warning by its code name.
func (r *Registry) RecordWarning(code string) {
	if r == nil {
		return
	}
	r.WarningsTotal.WithLabelValues(code).Inc()
}

// RecordQuality updates the water-quality gauges after a transport pass.
func (r *Registry) RecordQuality(segments, steps int) {
	if r == nil {
		return
	}
	r.QualitySegments.Set(float64(segments))
	r.QualitySteps.Add(float64(steps))
}
