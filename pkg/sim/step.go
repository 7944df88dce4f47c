package sim

import (
	"time"

	"github.com/google/uuid"

	"github.com/dd0wney/cluso-hydronet/pkg/network"
)

// Step is one reported simulation snapshot. Slices are freshly allocated per
// report; callbacks may retain them.
type Step struct {
	Time time.Duration

	// Per node, in compiled order.
	Head     []float64
	Pressure []float64
	Demand   []float64
	Quality  []float64

	// Per link, in compiled order.
	Flow    []float64
	Status  []network.Status
	Setting []float64

	// Per tank ordinal.
	TankLevel []float64

	// Warnings raised since the previous report.
	Warnings []network.Warning
}

// StepFunc receives each reported step. A non-nil error aborts the run.
type StepFunc func(Step) error

// Result summarizes a completed run.
type Result struct {
	RunID uuid.UUID
	// Duration is the simulated time covered.
	Duration time.Duration
	// Steps counts hydraulic solves; Reports counts callback invocations.
	Steps    int
	Reports  int
	Warnings int
}

// snapshot captures the current state as a report record.
func (e *Engine) snapshot(now time.Duration, warnings []network.Warning) Step {
	net, st := e.net, e.st
	rec := Step{
		Time:      now,
		Head:      append([]float64(nil), st.Head...),
		Demand:    append([]float64(nil), st.Demand...),
		Quality:   append([]float64(nil), st.Quality...),
		Flow:      append([]float64(nil), st.Flow...),
		Status:    append([]network.Status(nil), st.Status...),
		Setting:   append([]float64(nil), st.Setting...),
		Pressure:  make([]float64, len(net.Nodes)),
		TankLevel: make([]float64, len(net.Tanks)),
		Warnings:  append([]network.Warning(nil), warnings...),
	}
	for i := range net.Nodes {
		rec.Pressure[i] = st.Pressure(net, i)
	}
	for t := range net.Tanks {
		rec.TankLevel[t] = st.TankLevel(net, t)
	}
	return rec
}
