package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initQualityMetrics() {
	r.QualitySegments = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "hydronet_quality_segments",
			Help: "Water parcels currently tracked across all links",
		},
	)

	r.QualitySteps = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "hydronet_quality_steps_total",
			Help: "Completed water-quality transport steps",
		},
	)
}
