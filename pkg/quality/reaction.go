package quality

import (
	"math"

	"github.com/dd0wney/cluso-hydronet/pkg/model"
	"github.com/dd0wney/cluso-hydronet/pkg/network"
	"github.com/dd0wney/cluso-hydronet/pkg/parallel"
)

// Water properties at 20 °C for the wall mass-transfer correlation.
const (
	// kinematic viscosity, m²/s
	viscosity = 1.1e-6
	// molecular diffusivity of chlorine, m²/s; scaled by the model's
	// relative diffusivity option.
	chlorineDiffusivity = 1.3e-9
)

// react advances the reaction kinetics of every parcel by dts seconds. Age
// mode grows linearly at one hour per hour; trace is conservative.
func (e *Engine) react(st *network.State, dts float64) {
	switch e.mode {
	case model.QualityTrace:
		return
	case model.QualityAge:
		// Age is carried in hours.
		grow := func(c float64) float64 { return c + dts/3600 }
		parallel.ForChunks(e.pool, len(e.links), func(lo, hi int) {
			for li := lo; li < hi; li++ {
				reactSegs(e.links[li].segs, grow)
			}
		})
		for _, mx := range e.tanks {
			mx.react(grow)
		}
		return
	}

	rx := &e.net.Reactions
	parallel.ForChunks(e.pool, len(e.links), func(lo, hi int) {
		for li := lo; li < hi; li++ {
			l := &e.net.Links[li]
			ls := &e.links[li]
			if len(ls.segs) == 0 {
				continue
			}
			kw := e.wallRate(l, st.Flow[li])
			for i := range ls.segs {
				c := bulkReact(ls.segs[i].conc, l.BulkCoeff, rx.BulkOrder, rx.LimitingConcentration, dts)
				ls.segs[i].conc = wallReact(c, kw, rx.WallOrder, dts)
			}
		}
	})

	for t, mx := range e.tanks {
		kb := e.net.Tanks[t].BulkCoeff
		if kb == 0 {
			continue
		}
		mx.react(func(c float64) float64 {
			return bulkReact(c, kb, rx.BulkOrder, rx.LimitingConcentration, dts)
		})
	}
}

// bulkReact integrates dc/dt = kb·cⁿ over dts, with an optional limiting
// concentration that saturates growth or floors decay. kb is per second.
func bulkReact(c, kb, order, climit, dts float64) float64 {
	if kb == 0 || c < 0 {
		return c
	}
	var next float64
	switch {
	case climit > 0:
		// Rate scales with the distance to the limit.
		dist := climit - c
		if kb < 0 {
			dist = c - climit
		}
		next = c + kb*dist*math.Pow(c, order-1)*dts
	case order == 1:
		next = c * math.Exp(kb*dts)
	case order == 0:
		next = c + kb*dts
	default:
		next = c + kb*math.Pow(c, order)*dts
	}
	if next < 0 {
		next = 0
	}
	return next
}

// wallReact applies the pipe-wall reaction. kw is the effective first-order
// rate (1/s, negative for decay) or the zero-order rate (mass/m³/s).
func wallReact(c, kw, order, dts float64) float64 {
	if kw == 0 {
		return c
	}
	var next float64
	if order == 0 {
		next = c + kw*dts
	} else {
		next = c * math.Exp(kw*dts)
	}
	if next < 0 {
		next = 0
	}
	return next
}

// wallRate folds the declared wall coefficient and the flow-dependent mass
// transfer to the wall into one volumetric rate for the link.
func (e *Engine) wallRate(l *network.Link, q float64) float64 {
	kw := l.WallCoeff
	if kw == 0 || l.Kind != network.LinkPipe || l.Diameter <= 0 {
		return 0
	}
	if e.net.Reactions.WallOrder == 0 {
		// Zero order: mass flux per wall area times area per volume.
		return kw * 4 / l.Diameter
	}
	kf := e.massTransfer(l, q)
	kwAbs := math.Abs(kw)
	if kwAbs+kf == 0 {
		return 0
	}
	// First order: the wall rate and the transport rate act in series.
	return 4 * kw * kf / (l.Diameter * (kwAbs + kf))
}

// massTransfer is the flow-dependent coefficient moving substance from the
// bulk flow to the pipe wall, from the Sherwood-number correlations.
func (e *Engine) massTransfer(l *network.Link, q float64) float64 {
	diff := chlorineDiffusivity * e.net.Quality.Diffusivity
	if diff == 0 {
		return 0
	}
	re := 4 * math.Abs(q) / (math.Pi * l.Diameter * viscosity)
	var sh float64
	if re < 2300 {
		sh = 3.65
	} else {
		sc := viscosity / diff
		sh = 0.0149 * math.Pow(re, 0.88) * math.Cbrt(sc)
	}
	return sh * diff / l.Diameter
}
