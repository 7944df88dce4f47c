// Package sim drives extended-period simulation: it sequences pattern
// updates, control evaluation, hydraulic solves, tank storage integration,
// and water-quality transport over the simulation horizon.
//
// Steps are event-driven rather than fixed: each hydraulic interval is the
// nominal timestep shortened to land exactly on the next pattern or report
// boundary, tank level limit, or control trigger, so tanks never overshoot
// their limits between solves.
package sim

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dd0wney/cluso-hydronet/pkg/control"
	"github.com/dd0wney/cluso-hydronet/pkg/hydraulic"
	"github.com/dd0wney/cluso-hydronet/pkg/logging"
	"github.com/dd0wney/cluso-hydronet/pkg/metrics"
	"github.com/dd0wney/cluso-hydronet/pkg/model"
	"github.com/dd0wney/cluso-hydronet/pkg/network"
	"github.com/dd0wney/cluso-hydronet/pkg/parallel"
	"github.com/dd0wney/cluso-hydronet/pkg/quality"
)

// maxResolves bounds the solve/apply cycles within one time instant before
// oscillating controls are cut off.
const maxResolves = 10

// Engine owns the compiled network and full state of one simulation run.
// It is not safe for concurrent use.
type Engine struct {
	net      *network.Net
	st       *network.State
	solver   *hydraulic.Solver
	controls *control.Engine
	qual     *quality.Engine

	log     logging.Logger
	reg     *metrics.Registry
	pool    *parallel.WorkerPool
	ownPool bool

	runID uuid.UUID
}

type config struct {
	log     logging.Logger
	reg     *metrics.Registry
	workers int
}

// Option configures an Engine at load time.
type Option func(*config)

// WithLogger attaches a structured logger.
func WithLogger(log logging.Logger) Option {
	return func(c *config) { c.log = log }
}

// WithMetrics attaches a metrics registry.
func WithMetrics(reg *metrics.Registry) Option {
	return func(c *config) { c.reg = reg }
}

// WithWorkers runs per-link solver and quality phases on a worker pool of
// the given size; zero selects GOMAXPROCS. The default is single-threaded.
func WithWorkers(n int) Option {
	return func(c *config) { c.workers = n }
}

// Load validates and compiles a model network and prepares a run.
func Load(m *model.Network, opts ...Option) (*Engine, error) {
	cfg := config{log: logging.NopLogger{}, workers: 1}
	for _, o := range opts {
		o(&cfg)
	}

	m.ApplyDefaults()
	if err := m.Validate(); err != nil {
		return nil, err
	}
	net, err := network.Compile(m)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		net:   net,
		st:    network.NewState(net),
		log:   cfg.log,
		reg:   cfg.reg,
		runID: uuid.New(),
	}
	if cfg.workers != 1 {
		pool, err := parallel.NewWorkerPool(cfg.workers)
		if err != nil {
			return nil, err
		}
		e.pool = pool
		e.ownPool = true
	}

	e.solver = hydraulic.New(net, hydraulic.WithPool(e.pool), hydraulic.WithLogger(cfg.log))
	e.controls = control.New(net, m, cfg.log)
	e.qual = quality.New(net, quality.WithPool(e.pool), quality.WithLogger(cfg.log))
	return e, nil
}

// Net exposes the compiled network, mainly for result presentation.
func (e *Engine) Net() *network.Net { return e.net }

// RunID identifies this engine's run, fixed at load time so result sinks can
// reference it before Run returns.
func (e *Engine) RunID() uuid.UUID { return e.runID }

// State exposes the live simulation state.
func (e *Engine) State() *network.State { return e.st }

// Close releases the engine's worker pool, if it owns one.
func (e *Engine) Close() {
	if e.ownPool && e.pool != nil {
		e.pool.Close()
		e.pool = nil
	}
}

// Run executes the simulation from time zero through the configured duration
// and streams report snapshots to report (which may be nil). A zero duration
// runs a single steady-state solve.
func (e *Engine) Run(ctx context.Context, report StepFunc) (Result, error) {
	res := Result{RunID: e.runID}
	st := e.st
	dur := e.net.Times.Duration.D()

	e.solver.InitFlows(st)
	e.qual.Init(st)

	e.log.Info("simulation started",
		logging.Component("sim"),
		logging.String("run_id", res.RunID.String()),
		logging.Int("nodes", len(e.net.Nodes)),
		logging.Int("links", len(e.net.Links)))

	var warnings []network.Warning
	var prev, now time.Duration

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		wall := time.Now()
		st.Time = now

		if err := e.updateBoundary(now); err != nil {
			return res, err
		}
		resolves, actions, w, err := e.solveWithControls(prev, now)
		warnings = append(warnings, w...)
		if err != nil {
			return res, err
		}

		if e.reportDue(now, dur) {
			rec := e.snapshot(now, warnings)
			warnings = warnings[:0]
			res.Warnings += len(rec.Warnings)
			res.Reports++
			if report != nil {
				if err := report(rec); err != nil {
					return res, err
				}
			}
		}

		e.reg.RecordStep(time.Since(wall), resolves, actions)
		res.Steps++
		res.Duration = now

		if now >= dur {
			break
		}

		dt := e.nextStep(st, now, dur)
		e.advanceQuality(st, now, dt)
		warnings = e.noteWarnings(now, e.qual.TakeWarnings(), warnings)
		warnings = e.noteWarnings(now, e.integrateTanks(st, dt), warnings)
		prev, now = now, now+dt
	}

	e.log.Info("simulation finished",
		logging.Component("sim"),
		logging.String("run_id", res.RunID.String()),
		logging.Int("steps", res.Steps),
		logging.Int("warnings", res.Warnings),
		logging.SimTime(res.Duration))
	return res, nil
}

// reportDue says whether the current instant is a report boundary.
func (e *Engine) reportDue(now, dur time.Duration) bool {
	t := &e.net.Times
	start := t.ReportStart.D()
	if now < start {
		return false
	}
	rs := t.ReportStep.D()
	if rs <= 0 {
		return true
	}
	return (now-start)%rs == 0 || now == dur
}

// updateBoundary refreshes the pattern-driven boundary conditions: junction
// demands, reservoir heads, and tank heads from their stored volumes.
func (e *Engine) updateBoundary(now time.Duration) error {
	net, st := e.net, e.st
	for i := range net.Nodes {
		node := &net.Nodes[i]
		switch node.Kind {
		case network.NodeJunction:
			d, err := net.Demand(i, now)
			if err != nil {
				return err
			}
			st.Demand[i] = d
		case network.NodeReservoir:
			h, err := net.ReservoirHead(i, now)
			if err != nil {
				return err
			}
			st.Head[i] = h
		case network.NodeTank:
			st.Head[i] = node.Elev + net.Tanks[node.Tank].Level(st.TankVolume[node.Tank])
		}
	}
	return nil
}

// solveWithControls solves the hydraulics at one time instant, re-applying
// controls against each solution until they stop acting or the re-solve
// bound is hit.
func (e *Engine) solveWithControls(prev, now time.Duration) (resolves, actions int, warnings []network.Warning, err error) {
	st := e.st

	if !e.controls.Empty() {
		if n := e.controls.Apply(st, prev, now); n > 0 {
			actions += n
			e.solver.ReopenPumps(st)
		}
	}

	var snap *network.State
	for {
		sres, serr := e.solver.Solve(st)
		e.reg.RecordSolve(sres.Iterations, sres.RelativeError, sres.Converged, sres.StatusChanges)
		if serr != nil {
			return resolves, actions, warnings, fmt.Errorf("hydraulic solve at %s: %w", now, serr)
		}
		if !sres.Converged {
			warnings = append(warnings, network.Warning{
				Code:    network.WarnConvergence,
				Message: fmt.Sprintf("unbalanced after %d trials, relative error %.2e", sres.Iterations, sres.RelativeError),
			})
		}

		if e.controls.Empty() {
			break
		}
		if snap == nil {
			snap = st.Clone()
		} else {
			snap.CopyFrom(st)
		}
		n := e.controls.Apply(st, now, now)
		if n == 0 {
			break
		}
		if resolves >= maxResolves {
			// Oscillating; drop the unsolved actions so the reported
			// state stays consistent with the last solution.
			st.CopyFrom(snap)
			warnings = append(warnings, network.Warning{
				Code:    network.WarnControlOscillation,
				Message: fmt.Sprintf("controls still acting after %d re-solves; keeping last solved state", resolves),
			})
			break
		}
		actions += n
		resolves++
		e.solver.ReopenPumps(st)
	}

	for _, w := range warnings {
		e.reg.RecordWarning(w.Code.String())
		e.log.Warn(w.Message,
			logging.Component("sim"),
			logging.String("code", w.Code.String()),
			logging.SimTime(now))
	}
	return resolves, actions, warnings, nil
}

// noteWarnings counts and logs warnings raised between solves and folds them
// into the pending report batch.
func (e *Engine) noteWarnings(now time.Duration, raised, batch []network.Warning) []network.Warning {
	for _, w := range raised {
		e.reg.RecordWarning(w.Code.String())
		e.log.Warn(w.Message,
			logging.Component("sim"),
			logging.String("code", w.Code.String()),
			logging.SimTime(now))
	}
	return append(batch, raised...)
}

// nextStep computes the length of the next hydraulic interval: the nominal
// step shortened to land exactly on the nearest event.
func (e *Engine) nextStep(st *network.State, now, dur time.Duration) time.Duration {
	t := &e.net.Times
	dt := dur - now
	consider := func(d time.Duration) {
		if d > 0 && d < dt {
			dt = d
		}
	}

	consider(untilBoundary(now, t.HydraulicStep.D()))
	consider(untilBoundary(now+t.PatternStart.D(), t.PatternStep.D()))
	if rs := t.ReportStep.D(); rs > 0 {
		if start := t.ReportStart.D(); now < start {
			consider(start - now)
		} else {
			consider(untilBoundary(now-start, rs))
		}
	}
	e.tankCrossings(st, consider)
	consider(e.controls.NextTrigger(st, now, dt))
	return dt
}

// untilBoundary returns the time until the next multiple of step.
func untilBoundary(offset, step time.Duration) time.Duration {
	if step <= 0 {
		return 0
	}
	return step - offset%step
}

// tankCrossings feeds the time at which each tank reaches a level limit at
// its current net inflow into consider, so steps land on the limit exactly.
func (e *Engine) tankCrossings(st *network.State, consider func(time.Duration)) {
	for t := range e.net.Tanks {
		tank := &e.net.Tanks[t]
		q := st.NetTankInflow(e.net, t)
		if q == 0 {
			continue
		}
		target := tank.MaxVol
		if q < 0 {
			target = tank.MinVol
		}
		if dv := target - st.TankVolume[t]; (dv > 0) == (q > 0) && dv != 0 {
			consider(time.Duration(dv / q * float64(time.Second)))
		}
	}
}

// advanceQuality transports quality across the interval in quality-step
// substeps against the frozen flow field.
func (e *Engine) advanceQuality(st *network.State, now, dt time.Duration) {
	if !e.qual.Active() {
		return
	}
	qstep := e.net.Times.QualityStep.D()
	if qstep <= 0 || qstep > dt {
		qstep = dt
	}
	steps := 0
	for off := time.Duration(0); off < dt; {
		sub := qstep
		if off+sub > dt {
			sub = dt - off
		}
		st.Time = now + off
		e.qual.Step(st, sub)
		off += sub
		steps++
	}
	e.reg.RecordQuality(e.qual.Segments(), steps)
}

// integrateTanks advances tank storage over the interval. Volumes clip at
// the tank limits; clipping at the top of a tank without an overflow pipe
// raises a warning, since that water is lost from the balance.
func (e *Engine) integrateTanks(st *network.State, dt time.Duration) []network.Warning {
	net := e.net
	var warnings []network.Warning
	for t := range net.Tanks {
		tank := &net.Tanks[t]
		v := st.TankVolume[t] + st.NetTankInflow(net, t)*dt.Seconds()
		if v > tank.MaxVol {
			if !tank.Overflow {
				warnings = append(warnings, network.Warning{
					Code:    network.WarnTankOverflow,
					Entity:  net.Nodes[tank.Node].ID,
					Message: "tank full; inflow clipped at maximum level",
				})
			}
			v = tank.MaxVol
		}
		if v < tank.MinVol {
			v = tank.MinVol
		}
		st.TankVolume[t] = v
	}
	return warnings
}
