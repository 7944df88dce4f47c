// Package quality transports a water-quality variable through the network
// with a Lagrangian segment scheme: each link carries an ordered train of
// constant-concentration water parcels that advect with the flow. Nodes mix
// their inflows flow-weighted, tanks mix according to their declared mixing
// model, and segments react between transport steps.
//
// A step runs in three phases against a frozen flow field: a parallel
// per-link phase drains the discharge end of every link, a serial node phase
// mixes inflows and applies sources, and a second parallel per-link phase
// refills the intake end at the upstream node's new concentration. The
// barrier between phases keeps the per-link work free of shared writes.
package quality

import (
	"time"

	"github.com/dd0wney/cluso-hydronet/pkg/logging"
	"github.com/dd0wney/cluso-hydronet/pkg/model"
	"github.com/dd0wney/cluso-hydronet/pkg/network"
	"github.com/dd0wney/cluso-hydronet/pkg/parallel"
)

const (
	// qZero: flows below this are stagnant for transport purposes, m³/s.
	qZero = 1e-6
	// traceFull is the concentration assigned to the traced node, percent.
	traceFull = 100.0
)

// Engine advances the water-quality state between hydraulic solutions.
type Engine struct {
	net  *network.Net
	log  logging.Logger
	pool *parallel.WorkerPool

	mode  model.QualityMode
	trace int // trace node index, or -1
	tol   float64

	links []linkState
	tanks []tankMixer

	// Per-step scratch, sized once.
	volOut     []float64 // per link: volume drained from the discharge end
	massOut    []float64 // per link: mass drained with it
	volIn      []float64 // per node: inflow volume received
	massIn     []float64 // per node: inflow mass received
	drawn      []float64 // per node: volume drawn by departing links
	overflowed []bool    // per link: segment cap hit this step

	warnings []network.Warning
}

// Option configures an Engine.
type Option func(*Engine)

// WithPool runs the per-link phases on the given worker pool.
func WithPool(wp *parallel.WorkerPool) Option {
	return func(e *Engine) { e.pool = wp }
}

// WithLogger attaches a logger.
func WithLogger(log logging.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// New builds a quality engine for a compiled network.
func New(net *network.Net, opts ...Option) *Engine {
	e := &Engine{
		net:   net,
		log:   logging.NopLogger{},
		mode:  net.Quality.Mode,
		trace: -1,
		tol:   net.Quality.Tolerance,
	}
	for _, o := range opts {
		o(e)
	}
	if e.mode == model.QualityTrace {
		e.trace = net.NodeIndex[net.Quality.TraceNode]
	}
	e.links = make([]linkState, len(net.Links))
	e.volOut = make([]float64, len(net.Links))
	e.massOut = make([]float64, len(net.Links))
	e.overflowed = make([]bool, len(net.Links))
	e.volIn = make([]float64, len(net.Nodes))
	e.massIn = make([]float64, len(net.Nodes))
	e.drawn = make([]float64, len(net.Nodes))
	return e
}

// Active reports whether the engine has anything to transport.
func (e *Engine) Active() bool {
	return e.mode != model.QualityNone
}

// Init seeds link segments and tank mixers from the initial quality values
// and rewrites the node quality for the age and trace modes, whose initial
// condition is fixed rather than declared.
func (e *Engine) Init(st *network.State) {
	if !e.Active() {
		return
	}
	net := e.net
	for li := range net.Links {
		l := &net.Links[li]
		ls := &e.links[li]
		ls.capacity = linkVolume(l)
		ls.segs = ls.segs[:0]
		if ls.capacity > 0 {
			c := e.initConc(st, l.N1, l.N2)
			ls.segs = append(ls.segs, segment{vol: ls.capacity, conc: c})
		}
	}
	switch e.mode {
	case model.QualityAge, model.QualityTrace:
		for i := range st.Quality {
			st.Quality[i] = 0
		}
		if e.trace >= 0 {
			st.Quality[e.trace] = traceFull
		}
	}
	e.tanks = e.tanks[:0]
	for t := range net.Tanks {
		tank := &net.Tanks[t]
		e.tanks = append(e.tanks, newMixer(tank, st.TankVolume[t], st.Quality[tank.Node], e.tol))
	}
}

// initConc is the starting concentration of a link's water column.
func (e *Engine) initConc(st *network.State, n1, n2 int) float64 {
	switch e.mode {
	case model.QualityAge, model.QualityTrace:
		return 0
	default:
		return (st.Quality[n1] + st.Quality[n2]) / 2
	}
}

// Step advances the quality state by dt against the current flow field. The
// driver calls it once per quality timestep inside a hydraulic interval.
func (e *Engine) Step(st *network.State, dt time.Duration) {
	if !e.Active() {
		return
	}
	dts := dt.Seconds()
	if dts <= 0 {
		return
	}

	e.react(st, dts)

	// Phase 1: drain the discharge end of every link. Each chunk touches
	// only its own links and scratch slots.
	n := len(e.net.Links)
	parallel.ForChunks(e.pool, n, func(lo, hi int) {
		for li := lo; li < hi; li++ {
			e.volOut[li], e.massOut[li] = e.drainLink(st, li, dts)
		}
	})

	// Phase 2: route the drained parcels to their receiving nodes, mix,
	// and apply sources. Serial; node counts are small next to link work.
	e.mixNodes(st, dts)

	// Phase 3: refill the intake end at the upstream node concentration.
	parallel.ForChunks(e.pool, n, func(lo, hi int) {
		for li := lo; li < hi; li++ {
			e.refillLink(st, li)
		}
	})
	for li, over := range e.overflowed {
		if over {
			e.overflowed[li] = false
			e.warnings = append(e.warnings, network.Warning{
				Code:    network.WarnSegmentOverflow,
				Entity:  e.net.Links[li].ID,
				Message: "segment limit reached; smallest parcels coalesced",
			})
		}
	}
}

// Segments returns the total parcel count across all links.
func (e *Engine) Segments() int {
	n := 0
	for i := range e.links {
		n += len(e.links[i].segs)
	}
	return n
}

// TakeWarnings returns and clears the warnings accumulated since the last
// call.
func (e *Engine) TakeWarnings() []network.Warning {
	w := e.warnings
	e.warnings = nil
	return w
}

// mixNodes computes the new outflow concentration of every node from the
// parcels drained in phase 1.
func (e *Engine) mixNodes(st *network.State, dts float64) {
	net := e.net
	for i := range net.Nodes {
		e.volIn[i], e.massIn[i], e.drawn[i] = 0, 0, 0
	}
	for li := range net.Links {
		v := e.volOut[li]
		if v <= 0 {
			continue
		}
		up, down := linkEnds(&net.Links[li], st.Flow[li])
		e.volIn[down] += v
		e.massIn[down] += e.massOut[li]
		e.drawn[up] += v
	}

	for i := range net.Nodes {
		node := &net.Nodes[i]
		switch node.Kind {
		case network.NodeJunction:
			c := st.Quality[i]
			if e.volIn[i] > 0 {
				c = e.massIn[i] / e.volIn[i]
			}
			st.Quality[i] = e.applySource(st, i, c, dts)
		case network.NodeReservoir:
			st.Quality[i] = e.reservoirConc(st, i, dts)
		case network.NodeTank:
			st.Quality[i] = e.tankConc(st, i, node.Tank, dts)
		}
		if i == e.trace {
			st.Quality[i] = traceFull
		}
	}
}

// reservoirConc is the outflow concentration of an infinite source node.
func (e *Engine) reservoirConc(st *network.State, i int, dts float64) float64 {
	switch e.mode {
	case model.QualityAge, model.QualityTrace:
		return 0
	}
	c := e.net.Nodes[i].InitQuality
	return e.applySource(st, i, c, dts)
}

// tankConc feeds a tank's mixer with this step's inflow and returns the
// concentration of the volume it released downstream.
func (e *Engine) tankConc(st *network.State, i, t int, dts float64) float64 {
	mx := e.tanks[t]
	if vin := e.volIn[i]; vin > 0 {
		mx.fill(vin, e.massIn[i]/vin)
	}
	c := mx.conc()
	if vout := e.drawn[i]; vout > 0 {
		mass := mx.draw(vout)
		c = mass / vout
	}
	return e.applySource(st, i, c, dts)
}

// applySource folds an external source into a node's outflow concentration.
// Sources only exist in chemical mode.
func (e *Engine) applySource(st *network.State, i int, c float64, dts float64) float64 {
	if e.mode != model.QualityChemical {
		return c
	}
	src := e.net.Nodes[i].Source
	if src == nil {
		return c
	}
	s := src.Strength * e.sourceMultiplier(src.Pattern, st.Time)

	switch src.Type {
	case model.SourceSetpoint:
		if c < s {
			c = s
		}
	case model.SourceFlowPaced:
		c += s
	case model.SourceConcentration:
		// Fixes the concentration of external inflow: a negative demand
		// at a junction, or the whole outflow of a fixed-head node.
		node := &e.net.Nodes[i]
		if node.Kind != network.NodeJunction {
			if c < s {
				c = s
			}
			break
		}
		if qext := -st.Demand[i]; qext > qZero {
			vext := qext * dts
			c = (c*e.volIn[i] + s*vext) / (e.volIn[i] + vext)
		}
	case model.SourceMass:
		// Strength is a mass rate per minute.
		if e.volIn[i] > 0 {
			c += s / 60 * dts / e.volIn[i]
		}
	}
	return c
}

func (e *Engine) sourceMultiplier(pat string, elapsed time.Duration) float64 {
	mult, err := e.net.Patterns.Multiplier(pat, elapsed)
	if err != nil {
		return 1
	}
	return mult
}

// linkEnds returns the upstream and downstream node of a link under the
// given signed flow.
func linkEnds(l *network.Link, q float64) (up, down int) {
	if q >= 0 {
		return l.N1, l.N2
	}
	return l.N2, l.N1
}
