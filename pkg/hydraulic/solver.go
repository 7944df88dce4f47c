// Package hydraulic solves the coupled flow-continuity and energy equations
// of a pressurized pipe network with the Gradient Algorithm: every link
// relation is linearized around the current flow estimate, the resulting
// symmetric positive-definite system over junction heads is factorized, and
// flows are corrected from the new heads until the total relative flow
// correction drops below the configured accuracy.
package hydraulic

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/dd0wney/cluso-hydronet/pkg/logging"
	"github.com/dd0wney/cluso-hydronet/pkg/model"
	"github.com/dd0wney/cluso-hydronet/pkg/network"
	"github.com/dd0wney/cluso-hydronet/pkg/parallel"
)

// Result summarizes one hydraulic solve.
type Result struct {
	Iterations    int
	Converged     bool
	RelativeError float64
	// StatusChanges counts link status transitions made by the solver's
	// own check-valve, pump, and control-valve reclassification.
	StatusChanges int
}

// Solver holds the reusable workspace for repeated solves over one network.
// It is not safe for concurrent use.
type Solver struct {
	net  *network.Net
	pool *parallel.WorkerPool
	log  logging.Logger

	p []float64 // per-link inverse headloss gradient
	y []float64 // per-link flow correction
	x []float64 // per-node net inflow imbalance

	a    *mat.SymDense
	f    *mat.VecDense
	h    *mat.VecDense
	chol mat.Cholesky
}

// Option configures a Solver.
type Option func(*Solver)

// WithPool lets the solver fan per-link linearization out over a worker pool.
func WithPool(p *parallel.WorkerPool) Option {
	return func(s *Solver) { s.pool = p }
}

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Solver) { s.log = l }
}

// New creates a solver for the compiled network.
func New(net *network.Net, opts ...Option) *Solver {
	s := &Solver{
		net: net,
		log: logging.NopLogger{},
		p:   make([]float64, len(net.Links)),
		y:   make([]float64, len(net.Links)),
		x:   make([]float64, len(net.Nodes)),
	}
	if nj := net.Junctions; nj > 0 {
		s.a = mat.NewSymDense(nj, nil)
		s.f = mat.NewVecDense(nj, nil)
		s.h = mat.NewVecDense(nj, nil)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InitFlows seeds link flows that are still zero with a nominal 0.3 m/s
// velocity (pumps start at half their fitted cutoff flow). Called once
// before the first solve of a run.
func (s *Solver) InitFlows(st *network.State) {
	for li := range s.net.Links {
		if st.Flow[li] != 0 || st.Status[li] == network.Closed {
			continue
		}
		l := &s.net.Links[li]
		switch l.Kind {
		case network.LinkPump:
			q := qZero
			if l.Pump.Qmax > 0 {
				q = l.Pump.Qmax / 2
			}
			st.Flow[li] = q
		default:
			area := math.Pi * l.Diameter * l.Diameter / 4
			st.Flow[li] = area * 0.3
			if st.Flow[li] == 0 {
				st.Flow[li] = qZero
			}
		}
	}
}

// Solve runs the gradient iteration for the current demands, statuses, and
// fixed heads in st, writing junction heads, link flows, and emitter flows
// back into st. A non-converged result under the "continue" unbalanced
// policy is returned without error; under "stop" it returns ErrUnbalanced.
func (s *Solver) Solve(st *network.State) (Result, error) {
	var res Result
	maxTrials := s.net.Trials
	frozen := false // statuses frozen during the extra "continue" trials

	for {
		res.Iterations++

		relErr, err := s.iterate(st)
		if err != nil {
			return res, err
		}
		res.RelativeError = relErr

		if !frozen {
			changes := s.checkLinkStatus(st)
			res.StatusChanges += changes

			if relErr <= s.net.Accuracy && changes == 0 {
				// Flows are balanced; now let the control valves
				// reclassify against the converged heads.
				vc := s.checkValveStatus(st)
				res.StatusChanges += vc
				if vc == 0 {
					res.Converged = true
					return res, nil
				}
			}
		} else if relErr <= s.net.Accuracy {
			return res, nil
		}

		if res.Iterations >= maxTrials {
			if frozen {
				return res, nil
			}
			if s.net.Unbalanced == model.UnbalancedStop {
				return res, ErrUnbalanced
			}
			s.log.Warn("hydraulics unbalanced, continuing with best estimate",
				logging.Component("hydraulic"),
				logging.Trials(res.Iterations),
				logging.Float64("relative_error", relErr))
			frozen = true
			maxTrials += s.net.UnbalancedTrials
			if s.net.UnbalancedTrials == 0 {
				return res, nil
			}
		}
	}
}

// iterate performs one linearize-assemble-solve-update pass and returns the
// total relative flow change.
func (s *Solver) iterate(st *network.State) (float64, error) {
	net := s.net
	nj := net.Junctions

	// Linearize all links in parallel; the barrier inside ForChunks
	// guarantees assembly starts only once every chunk has finished.
	parallel.ForChunks(s.pool, len(net.Links), func(lo, hi int) {
		for li := lo; li < hi; li++ {
			if s.isControlValveRow(li, st) {
				s.p[li], s.y[li] = 0, 0
				continue
			}
			s.p[li], s.y[li] = s.linkCoeffs(li, st)
		}
	})

	if nj > 0 {
		s.assemble(st)
		if err := s.factorSolve(); err != nil {
			return 0, err
		}
		for i := 0; i < nj; i++ {
			st.Head[i] = s.h.AtVec(i)
		}
	}

	return s.updateFlows(st), nil
}

// isControlValveRow reports whether link li is an active PRV/PSV/FCV whose
// constraint replaces the ordinary conductance stamp, and whether its
// controlled node is actually a junction row.
func (s *Solver) isControlValveRow(li int, st *network.State) bool {
	l := &s.net.Links[li]
	if l.Kind != network.LinkValve || st.Status[li] != network.Active || st.Setting[li] < 0 {
		return false
	}
	switch l.Valve {
	case model.ValvePRV:
		return l.N2 < s.net.Junctions
	case model.ValvePSV:
		return l.N1 < s.net.Junctions
	case model.ValveFCV:
		return true
	default:
		return false
	}
}

// assemble builds the junction-head system A·H = F from the link
// linearizations, emitters, demands, and active control-valve rows.
func (s *Solver) assemble(st *network.State) {
	net := s.net
	nj := net.Junctions

	s.a.Zero()
	s.f.Zero()
	for i := range s.x {
		s.x[i] = 0
	}

	for li := range net.Links {
		if s.isControlValveRow(li, st) {
			continue
		}
		l := &net.Links[li]
		p, y, q := s.p[li], s.y[li], st.Flow[li]
		n1, n2 := l.N1, l.N2

		s.x[n1] -= q
		s.x[n2] += q

		j1, j2 := n1 < nj, n2 < nj
		switch {
		case j1 && j2:
			s.a.SetSym(n1, n1, s.a.At(n1, n1)+p)
			s.a.SetSym(n2, n2, s.a.At(n2, n2)+p)
			s.a.SetSym(n1, n2, s.a.At(n1, n2)-p)
			s.f.SetVec(n1, s.f.AtVec(n1)+y)
			s.f.SetVec(n2, s.f.AtVec(n2)-y)
		case j1:
			s.a.SetSym(n1, n1, s.a.At(n1, n1)+p)
			s.f.SetVec(n1, s.f.AtVec(n1)+y+p*st.Head[n2])
		case j2:
			s.a.SetSym(n2, n2, s.a.At(n2, n2)+p)
			s.f.SetVec(n2, s.f.AtVec(n2)-y+p*st.Head[n1])
		}
	}

	s.emitterCoeffs(st)

	for i := 0; i < nj; i++ {
		s.x[i] -= st.Demand[i]
	}

	s.valveRows(st)

	for i := 0; i < nj; i++ {
		s.f.SetVec(i, s.f.AtVec(i)+s.x[i])
	}
}

// emitterCoeffs adds the pressure-dependent emitter outflow of each junction
// as an extra nonlinear term, linearized exactly like a link to a pseudo
// reservoir at the node's elevation.
func (s *Solver) emitterCoeffs(st *network.State) {
	net := s.net
	gamma := net.EmitterExponent
	for i := 0; i < net.Junctions; i++ {
		ke := net.Nodes[i].EmitterCoeff
		if ke <= 0 {
			continue
		}
		q := st.Emitter[i]
		aq := math.Max(math.Abs(q), qZero)

		re := math.Pow(1/ke, 1/gamma)
		hloss := re * math.Pow(aq, 1/gamma-1) * q
		hgrad := (1 / gamma) * re * math.Pow(aq, 1/gamma-1)
		if hgrad < minGrad {
			hgrad = minGrad
		}
		pe := 1 / hgrad
		ye := pe * hloss

		s.a.SetSym(i, i, s.a.At(i, i)+pe)
		s.f.SetVec(i, s.f.AtVec(i)+ye+pe*net.Nodes[i].Elev)
		s.x[i] -= q
	}
}

// valveRows installs the head- or flow-fixing constraints of active PRV,
// PSV, and FCV valves. The controlled junction's row is dominated by a large
// conductance towards the setting head; the valve's own flow is recovered
// from the nodal imbalance.
func (s *Solver) valveRows(st *network.State) {
	net := s.net
	nj := net.Junctions
	for li := range net.Links {
		if !s.isControlValveRow(li, st) {
			continue
		}
		l := &net.Links[li]
		n1, n2 := l.N1, l.N2
		switch l.Valve {
		case model.ValvePRV:
			hset := net.Nodes[n2].Elev + st.Setting[li]
			s.y[li] = st.Flow[li] + s.x[n2]
			s.a.SetSym(n2, n2, s.a.At(n2, n2)+cBig)
			s.f.SetVec(n2, s.f.AtVec(n2)+hset*cBig)
			if s.x[n2] < 0 && n1 < nj {
				s.f.SetVec(n1, s.f.AtVec(n1)+s.x[n2])
			}
		case model.ValvePSV:
			hset := net.Nodes[n1].Elev + st.Setting[li]
			s.y[li] = st.Flow[li] - s.x[n1]
			s.a.SetSym(n1, n1, s.a.At(n1, n1)+cBig)
			s.f.SetVec(n1, s.f.AtVec(n1)+hset*cBig)
			if s.x[n1] > 0 && n2 < nj {
				s.f.SetVec(n2, s.f.AtVec(n2)+s.x[n1])
			}
		case model.ValveFCV:
			// Break the network at the valve: its setting becomes a
			// demand upstream and a supply downstream.
			q := st.Setting[li]
			s.x[n1] -= q
			s.x[n2] += q
			s.y[li] = st.Flow[li] - q
		}
	}
}

// factorSolve factorizes the assembled system and solves for junction heads.
// A failed factorization gets one retry with a jittered diagonal before the
// system is declared ill-conditioned.
func (s *Solver) factorSolve() error {
	if s.chol.Factorize(s.a) {
		return s.chol.SolveVecTo(s.h, s.f)
	}

	var maxDiag float64
	n := s.a.SymmetricDim()
	for i := 0; i < n; i++ {
		if d := s.a.At(i, i); d > maxDiag {
			maxDiag = d
		}
	}
	jitter := 1e-10 * math.Max(maxDiag, 1)
	for i := 0; i < n; i++ {
		s.a.SetSym(i, i, s.a.At(i, i)+jitter)
	}
	if !s.chol.Factorize(s.a) {
		return ErrIllConditioned
	}
	return s.chol.SolveVecTo(s.h, s.f)
}

// updateFlows corrects link and emitter flows from the new heads and returns
// the total relative flow change.
func (s *Solver) updateFlows(st *network.State) float64 {
	net := s.net
	var qSum, dqSum float64

	for li := range net.Links {
		l := &net.Links[li]
		var dq float64
		if s.isControlValveRow(li, st) {
			dq = s.y[li]
		} else {
			dq = s.y[li] - s.p[li]*(st.Head[l.N1]-st.Head[l.N2])
		}
		q := st.Flow[li] - dq
		if l.Kind == network.LinkPump && st.Status[li] != network.Closed && q < qZero {
			q = qZero
		}
		st.Flow[li] = q
		qSum += math.Abs(q)
		dqSum += math.Abs(dq)
	}

	gamma := net.EmitterExponent
	for i := 0; i < net.Junctions; i++ {
		ke := net.Nodes[i].EmitterCoeff
		if ke <= 0 {
			continue
		}
		q := st.Emitter[i]
		aq := math.Max(math.Abs(q), qZero)
		re := math.Pow(1/ke, 1/gamma)
		hloss := re * math.Pow(aq, 1/gamma-1) * q
		hgrad := (1 / gamma) * re * math.Pow(aq, 1/gamma-1)
		if hgrad < minGrad {
			hgrad = minGrad
		}
		pe := 1 / hgrad
		dq := pe*hloss - pe*(st.Head[i]-net.Nodes[i].Elev)
		st.Emitter[i] = q - dq
		qSum += math.Abs(st.Emitter[i])
		dqSum += math.Abs(dq)
	}

	if qSum < qZero {
		return 0
	}
	return dqSum / qSum
}
