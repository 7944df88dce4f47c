package hydraulic

import (
	"math"

	"github.com/dd0wney/cluso-hydronet/pkg/model"
	"github.com/dd0wney/cluso-hydronet/pkg/network"
)

// Numerical guards shared by the coefficient routines.
const (
	// cBig stands in for an infinite conductance, cSmall for a closed one.
	cBig   = 1e8
	cSmall = 1e-8

	// minGrad floors the headloss gradient so conductances stay finite
	// near zero flow.
	minGrad = 1e-8

	// qZero seeds link flows and floors pump flows.
	qZero = 1e-6

	gravity = 9.80665
	rho     = 998.2
	// kinematic viscosity of water at 20 °C, m²/s
	viscosity = 1.1e-6
)

// hazenWilliamsExp is the flow exponent of the Hazen-Williams relation.
const hazenWilliamsExp = 1.852

// resistance returns the friction resistance r and flow exponent n of
// h = r·Qⁿ for a pipe, given the configured headloss formula. For
// Darcy-Weisbach r depends on the current flow through the friction factor.
func resistance(formula model.HeadlossFormula, l *network.Link, q float64) (r, n float64) {
	d := l.Diameter
	switch formula {
	case model.DarcyWeisbach:
		f := frictionFactor(q, d, l.Roughness)
		return f * 8 * l.Length / (gravity * math.Pi * math.Pi * math.Pow(d, 5)), 2
	case model.ChezyManning:
		return 10.294 * l.Roughness * l.Roughness * l.Length / math.Pow(d, 16.0/3.0), 2
	default: // Hazen-Williams
		return 10.667 * l.Length / (math.Pow(l.Roughness, hazenWilliamsExp) * math.Pow(d, 4.871)), hazenWilliamsExp
	}
}

// reynolds returns the Reynolds number for flow q in a pipe of diameter d.
func reynolds(q, d float64) float64 {
	if d == 0 {
		return 0
	}
	return 4 * math.Abs(q) / (math.Pi * d * viscosity)
}

// frictionFactor computes the Darcy friction factor: Hagen-Poiseuille in the
// laminar range, Swamee-Jain approximation in the turbulent range, and a
// linear blend across the transitional band.
func frictionFactor(q, d, rough float64) float64 {
	re := reynolds(q, d)
	if re < 1 {
		re = 1
	}
	const laminarLimit, turbulentLimit = 2000.0, 4000.0
	turbulent := func(re float64) float64 {
		denom := math.Log10(rough/(3.7*d) + 5.74/math.Pow(re, 0.9))
		return 0.25 / (denom * denom)
	}
	switch {
	case re <= laminarLimit:
		return 64 / re
	case re >= turbulentLimit:
		return turbulent(re)
	default:
		fLam := 64 / laminarLimit
		fTurb := turbulent(turbulentLimit)
		frac := (re - laminarLimit) / (turbulentLimit - laminarLimit)
		return fLam + frac*(fTurb-fLam)
	}
}

// linkCoeffs computes the linearized conductance P = 1/(dh/dQ) and flow
// correction Y = P·h(Q) for link li at its current flow. Active PRV, PSV,
// and FCV valves are handled separately by the solver's valve rows.
func (s *Solver) linkCoeffs(li int, st *network.State) (p, y float64) {
	l := &s.net.Links[li]
	q := st.Flow[li]

	// A closed link keeps a vanishing conductance so the matrix stays
	// non-singular; Y = Q drives the flow itself to zero.
	if st.Status[li] == network.Closed {
		return cSmall, q
	}

	switch l.Kind {
	case network.LinkPipe:
		return s.pipeCoeffs(l, q)
	case network.LinkPump:
		return s.pumpCoeffs(l, q, st.Setting[li])
	default:
		return s.valveCoeffs(l, li, q, st)
	}
}

func (s *Solver) pipeCoeffs(l *network.Link, q float64) (p, y float64) {
	r, n := resistance(s.net.Headloss, l, q)
	aq := math.Abs(q)
	hloss := (r*math.Pow(aq, n-1) + l.Kminor*aq) * q
	hgrad := n*r*math.Pow(aq, n-1) + 2*l.Kminor*aq
	if hgrad < minGrad {
		hgrad = minGrad
	}
	p = 1 / hgrad
	return p, p * hloss
}

// pumpCoeffs linearizes the inverse pump characteristic. Head gain counts as
// negative headloss, so a working pump produces a negative Y.
func (s *Solver) pumpCoeffs(l *network.Link, q, speed float64) (p, y float64) {
	if speed <= 0 {
		return cSmall, q
	}
	pu := l.Pump
	q = math.Max(math.Abs(q), qZero)

	switch {
	case pu.Power > 0:
		// Constant power: gain = P/(ρ·g·Q).
		hp := pu.Power / (rho * gravity)
		hgain := hp / q
		hgrad := hp / (q * q)
		if hgrad < minGrad {
			hgrad = minGrad
		}
		p = 1 / hgrad
		return p, -p * hgain
	case pu.Curve != nil:
		// Piecewise characteristic at relative speed.
		h0, slope := curveSegment(pu.Curve, q/speed)
		hgain := speed*speed*h0 + speed*slope*q
		hgrad := -slope * speed
		if hgrad < minGrad {
			hgrad = minGrad
		}
		p = 1 / hgrad
		return p, -p * hgain
	default:
		// h = ω²·H0 − R·ω^(2−N)·Qᴺ
		w := speed
		hgain := w*w*pu.H0 - pu.R*math.Pow(w, 2-pu.N)*math.Pow(q, pu.N)
		hgrad := pu.N * pu.R * math.Pow(w, 2-pu.N) * math.Pow(q, pu.N-1)
		if hgrad < minGrad {
			hgrad = minGrad
		}
		p = 1 / hgrad
		return p, -p * hgain
	}
}

// curveSegment returns the intercept and slope of the curve segment
// bracketing flow q, so that head ≈ h0 + slope·q on the segment.
func curveSegment(c *model.Curve, q float64) (h0, slope float64) {
	pts := c.Points
	n := len(pts)
	i := 0
	for i < n-1 && pts[i+1].X < q {
		i++
	}
	j := i + 1
	if j >= n {
		i, j = n-2, n-1
	}
	dx := pts[j].X - pts[i].X
	if dx == 0 {
		return pts[i].Y, -minGrad
	}
	slope = (pts[j].Y - pts[i].Y) / dx
	h0 = pts[i].Y - slope*pts[i].X
	return h0, slope
}

// valveCoeffs handles TCV, GPV, PBV, and any valve behaving as a plain open
// link. Active PRV/PSV/FCV rows never reach here.
func (s *Solver) valveCoeffs(l *network.Link, li int, q float64, st *network.State) (p, y float64) {
	aq := math.Abs(q)
	switch {
	case l.Valve == model.ValveTCV && st.Status[li] == network.Active:
		m := l.Kminor + tcvLossCoeff(st.Setting[li], l.Diameter)
		return quadraticCoeffs(m, q, aq)
	case l.Valve == model.ValveGPV && st.Status[li] != network.Closed:
		h0, slope := curveSegment(l.GPVCurve, aq)
		if slope < minGrad {
			slope = minGrad
		}
		p = 1 / slope
		return p, p * math.Copysign(h0+slope*aq, q)
	case l.Valve == model.ValvePBV && st.Status[li] == network.Active:
		// Force |Δh| = setting.
		return cBig, cBig * st.Setting[li]
	default:
		// Fully open valve: only its fitting loss remains.
		m := l.Kminor
		if m == 0 {
			m = cSmall
		}
		return quadraticCoeffs(m, q, aq)
	}
}

func quadraticCoeffs(m, q, aq float64) (p, y float64) {
	hgrad := 2 * m * aq
	if hgrad < minGrad {
		hgrad = minGrad
	}
	p = 1 / hgrad
	return p, p * m * aq * q
}

// tcvLossCoeff converts a throttle-valve setting (a dimensionless loss
// coefficient) to the m of h = m·Q|Q|.
func tcvLossCoeff(setting, d float64) float64 {
	return 8 * setting / (gravity * math.Pi * math.Pi * math.Pow(d, 4))
}
