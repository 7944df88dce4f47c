package quality

import (
	"math"

	"github.com/dd0wney/cluso-hydronet/pkg/network"
)

// maxSegments bounds the parcel train of one link. Past the bound the
// smallest adjacent pair coalesces, trading resolution for memory.
const maxSegments = 128

// segment is one well-mixed water parcel.
type segment struct {
	vol  float64
	conc float64
}

// linkState is the parcel train of one link, ordered from the N1 end
// (index 0) to the N2 end. Pumps and valves have zero capacity and carry no
// parcels; their throughput transfers within a single step.
type linkState struct {
	segs     []segment
	capacity float64
}

// linkVolume is the water volume a link holds.
func linkVolume(l *network.Link) float64 {
	if l.Kind != network.LinkPipe {
		return 0
	}
	return math.Pi / 4 * l.Diameter * l.Diameter * l.Length
}

// drainLink removes the volume advected out of link li during dts seconds
// and returns the volume and mass actually drained. The drained volume is
// capped at the link's content so mass is conserved exactly; the matching
// refill in phase 3 reinjects the same volume upstream.
func (e *Engine) drainLink(st *network.State, li int, dts float64) (vol, mass float64) {
	q := st.Flow[li]
	if math.Abs(q) < qZero || st.Status[li] == network.Closed {
		return 0, 0
	}
	v := math.Abs(q) * dts

	ls := &e.links[li]
	if ls.capacity == 0 {
		// Zero-volume link: pass the upstream node's concentration
		// straight through.
		up, _ := linkEnds(&e.net.Links[li], q)
		return v, v * st.Quality[up]
	}

	fromN2 := q >= 0
	return ls.pop(fromN2, v)
}

// pop removes up to v volume from the given end of the train.
func (ls *linkState) pop(fromN2 bool, v float64) (vol, mass float64) {
	for v > 0 && len(ls.segs) > 0 {
		var s *segment
		if fromN2 {
			s = &ls.segs[len(ls.segs)-1]
		} else {
			s = &ls.segs[0]
		}
		take := v
		if take >= s.vol {
			take = s.vol
		}
		vol += take
		mass += take * s.conc
		v -= take
		s.vol -= take
		if s.vol <= 0 {
			if fromN2 {
				ls.segs = ls.segs[:len(ls.segs)-1]
			} else {
				ls.segs = ls.segs[1:]
			}
		}
	}
	return vol, mass
}

// refillLink injects the volume drained this step back at the intake end,
// carrying the upstream node's freshly mixed concentration.
func (e *Engine) refillLink(st *network.State, li int) {
	v := e.volOut[li]
	ls := &e.links[li]
	if v <= 0 || ls.capacity == 0 {
		return
	}
	l := &e.net.Links[li]
	q := st.Flow[li]
	up, _ := linkEnds(l, q)
	ls.push(q >= 0, v, st.Quality[up], e.tol)
	if len(ls.segs) > maxSegments {
		ls.squeeze()
		e.overflowed[li] = true
	}
}

// push adds a parcel at the intake end, merging with its neighbor when the
// concentrations are within tol.
func (ls *linkState) push(atN1 bool, v, c, tol float64) {
	if n := len(ls.segs); n > 0 {
		var s *segment
		if atN1 {
			s = &ls.segs[0]
		} else {
			s = &ls.segs[n-1]
		}
		if math.Abs(s.conc-c) <= tol {
			s.conc = (s.conc*s.vol + c*v) / (s.vol + v)
			s.vol += v
			return
		}
	}
	if atN1 {
		ls.segs = append(ls.segs, segment{})
		copy(ls.segs[1:], ls.segs)
		ls.segs[0] = segment{vol: v, conc: c}
		return
	}
	ls.segs = append(ls.segs, segment{vol: v, conc: c})
}

// squeeze merges adjacent parcels until the train fits the bound again,
// always picking the pair with the smallest combined volume.
func (ls *linkState) squeeze() {
	for len(ls.segs) > maxSegments {
		best := 0
		bestVol := math.Inf(1)
		for i := 0; i+1 < len(ls.segs); i++ {
			if v := ls.segs[i].vol + ls.segs[i+1].vol; v < bestVol {
				bestVol = v
				best = i
			}
		}
		a, b := &ls.segs[best], &ls.segs[best+1]
		a.conc = (a.conc*a.vol + b.conc*b.vol) / (a.vol + b.vol)
		a.vol += b.vol
		ls.segs = append(ls.segs[:best+1], ls.segs[best+2:]...)
	}
}
