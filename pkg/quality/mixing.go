package quality

import (
	"github.com/dd0wney/cluso-hydronet/pkg/model"
	"github.com/dd0wney/cluso-hydronet/pkg/network"
)

// tankMixer tracks the stored quality of one tank under its declared mixing
// model. fill and draw are called once per quality step with the step's
// aggregate inflow and outflow; draw returns the mass released.
type tankMixer interface {
	fill(vol, conc float64)
	draw(vol float64) (mass float64)
	// conc is the concentration the tank would release right now.
	conc() float64
	stored() float64
	// react applies a reaction update to every internal parcel.
	react(fn func(conc float64) float64)
}

// newMixer builds the mixer matching the tank's declared model.
func newMixer(t *network.Tank, vol, conc, tol float64) tankMixer {
	switch t.Mixing {
	case model.MixFIFO:
		return &fifoMixer{segs: []segment{{vol: vol, conc: conc}}, tol: tol}
	case model.MixLIFO:
		return &lifoMixer{segs: []segment{{vol: vol, conc: conc}}, tol: tol}
	case model.MixTwoCompartment:
		m := &twoCompMixer{v1max: t.MixFraction * t.MaxVol}
		// Seed the inlet zone first; spill the rest to the main zone.
		v1 := vol
		if v1 > m.v1max {
			v1 = m.v1max
		}
		m.zone1 = completeMixer{vol: v1, c: conc}
		m.zone2 = completeMixer{vol: vol - v1, c: conc}
		return m
	default:
		return &completeMixer{vol: vol, c: conc}
	}
}

// completeMixer treats the whole stored volume as instantly well mixed.
type completeMixer struct {
	vol float64
	c   float64
}

func (m *completeMixer) fill(v, c float64) {
	if v <= 0 {
		return
	}
	m.c = (m.c*m.vol + c*v) / (m.vol + v)
	m.vol += v
}

func (m *completeMixer) draw(v float64) float64 {
	if v > m.vol {
		v = m.vol
	}
	m.vol -= v
	return m.c * v
}

func (m *completeMixer) conc() float64   { return m.c }
func (m *completeMixer) stored() float64 { return m.vol }

func (m *completeMixer) react(fn func(float64) float64) {
	m.c = fn(m.c)
}

// fifoMixer pushes inflow onto the back of a parcel queue and releases from
// the front, so water leaves in arrival order.
type fifoMixer struct {
	segs []segment
	tol  float64
}

func (m *fifoMixer) fill(v, c float64) {
	if v <= 0 {
		return
	}
	if n := len(m.segs); n > 0 && abs(m.segs[n-1].conc-c) <= m.tol {
		s := &m.segs[n-1]
		s.conc = (s.conc*s.vol + c*v) / (s.vol + v)
		s.vol += v
		return
	}
	m.segs = append(m.segs, segment{vol: v, conc: c})
}

func (m *fifoMixer) draw(v float64) (mass float64) {
	for v > 0 && len(m.segs) > 0 {
		s := &m.segs[0]
		take := v
		if take >= s.vol {
			take = s.vol
		}
		mass += take * s.conc
		v -= take
		s.vol -= take
		if s.vol <= 0 {
			m.segs = m.segs[1:]
		}
	}
	return mass
}

func (m *fifoMixer) conc() float64 {
	if len(m.segs) == 0 {
		return 0
	}
	return m.segs[0].conc
}

func (m *fifoMixer) stored() float64 { return segVolume(m.segs) }

func (m *fifoMixer) react(fn func(float64) float64) { reactSegs(m.segs, fn) }

// lifoMixer stacks inflow on top and draws it back top-first, so the newest
// water short-circuits straight out.
type lifoMixer struct {
	segs []segment
	tol  float64
}

func (m *lifoMixer) fill(v, c float64) {
	if v <= 0 {
		return
	}
	if n := len(m.segs); n > 0 && abs(m.segs[n-1].conc-c) <= m.tol {
		s := &m.segs[n-1]
		s.conc = (s.conc*s.vol + c*v) / (s.vol + v)
		s.vol += v
		return
	}
	m.segs = append(m.segs, segment{vol: v, conc: c})
}

func (m *lifoMixer) draw(v float64) (mass float64) {
	for v > 0 && len(m.segs) > 0 {
		s := &m.segs[len(m.segs)-1]
		take := v
		if take >= s.vol {
			take = s.vol
		}
		mass += take * s.conc
		v -= take
		s.vol -= take
		if s.vol <= 0 {
			m.segs = m.segs[:len(m.segs)-1]
		}
	}
	return mass
}

func (m *lifoMixer) conc() float64 {
	if len(m.segs) == 0 {
		return 0
	}
	return m.segs[len(m.segs)-1].conc
}

func (m *lifoMixer) stored() float64 { return segVolume(m.segs) }

func (m *lifoMixer) react(fn func(float64) float64) { reactSegs(m.segs, fn) }

// twoCompMixer is a well-mixed inlet zone of bounded volume that spills into
// and refills from a second well-mixed main zone. Inflow and outflow both
// pass through the inlet zone.
type twoCompMixer struct {
	zone1 completeMixer
	zone2 completeMixer
	v1max float64
}

func (m *twoCompMixer) fill(v, c float64) {
	m.zone1.fill(v, c)
	if excess := m.zone1.vol - m.v1max; excess > 0 {
		mass := m.zone1.draw(excess)
		m.zone2.fill(excess, mass/excess)
	}
}

func (m *twoCompMixer) draw(v float64) (mass float64) {
	take := v
	if take > m.zone1.vol {
		take = m.zone1.vol
	}
	mass = m.zone1.draw(take)
	if rest := v - take; rest > 0 && m.zone2.vol > 0 {
		if rest > m.zone2.vol {
			rest = m.zone2.vol
		}
		mass += m.zone2.draw(rest)
	}
	// The main zone replenishes the inlet zone as the tank drains.
	if deficit := m.v1max - m.zone1.vol; deficit > 0 && m.zone2.vol > 0 {
		mv := deficit
		if mv > m.zone2.vol {
			mv = m.zone2.vol
		}
		m2 := m.zone2.draw(mv)
		m.zone1.fill(mv, m2/mv)
	}
	return mass
}

func (m *twoCompMixer) conc() float64   { return m.zone1.c }
func (m *twoCompMixer) stored() float64 { return m.zone1.vol + m.zone2.vol }

func (m *twoCompMixer) react(fn func(float64) float64) {
	m.zone1.react(fn)
	m.zone2.react(fn)
}

func segVolume(segs []segment) float64 {
	var v float64
	for i := range segs {
		v += segs[i].vol
	}
	return v
}

func reactSegs(segs []segment, fn func(float64) float64) {
	for i := range segs {
		segs[i].conc = fn(segs[i].conc)
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
