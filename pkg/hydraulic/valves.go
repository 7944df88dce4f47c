package hydraulic

import (
	"github.com/dd0wney/cluso-hydronet/pkg/logging"
	"github.com/dd0wney/cluso-hydronet/pkg/model"
	"github.com/dd0wney/cluso-hydronet/pkg/network"
)

// Tolerances for status reclassification.
const (
	hTol = 1e-4 // head difference, m
	qTol = 1e-6 // flow, m³/s
)

// checkLinkStatus reclassifies check valves and pumps against the current
// heads and flows. It runs every iteration and returns the number of
// changes.
func (s *Solver) checkLinkStatus(st *network.State) int {
	net := s.net
	changes := 0
	for li := range net.Links {
		l := &net.Links[li]
		old := st.Status[li]

		var next network.Status
		switch {
		case l.Kind == network.LinkPipe && l.CheckValve:
			next = cvStatus(st.Head[l.N1]-st.Head[l.N2], st.Flow[li], old)
		case l.Kind == network.LinkPump && old != network.Closed:
			next = s.pumpStatus(l, li, st)
		default:
			continue
		}

		if next != old {
			st.Status[li] = next
			changes++
			s.log.Debug("link status change",
				logging.Component("hydraulic"),
				logging.Link(l.ID),
				logging.String("from", old.String()),
				logging.String("to", next.String()))
		}
	}
	return changes
}

// cvStatus implements the check-valve rule: close against a reverse gradient
// or reverse flow, otherwise open.
func cvStatus(dh, q float64, old network.Status) network.Status {
	if dh < -hTol {
		return network.Closed
	}
	if q < -qTol {
		return network.Closed
	}
	if old == network.Closed && dh <= hTol {
		// No forward gradient yet; stay closed.
		return network.Closed
	}
	return network.Open
}

// pumpStatus closes a curve-driven pump asked to lift more than its shutoff
// head. Constant-power pumps have no shutoff and stay open. Pumps closed by
// a control (speed 0) never reach here.
func (s *Solver) pumpStatus(l *network.Link, li int, st *network.State) network.Status {
	w := st.Setting[li]
	if w <= 0 {
		return network.Closed
	}
	if l.Pump.Power > 0 {
		return network.Open
	}
	hmax := w * w * l.Pump.Hmax
	lift := st.Head[l.N2] - st.Head[l.N1]
	if lift > hmax+hTol {
		return network.Closed
	}
	return network.Open
}

// ReopenPumps is called by the driver after controls change pump settings so
// a previously head-limited pump gets another chance.
func (s *Solver) ReopenPumps(st *network.State) {
	for li := range s.net.Links {
		l := &s.net.Links[li]
		if l.Kind == network.LinkPump && st.Status[li] == network.Closed && st.Setting[li] > 0 {
			st.Status[li] = network.Open
		}
	}
}

// checkValveStatus reclassifies PRV, PSV, and FCV valves against the
// converged heads. The previous classification is captured before any
// change, so every valve decides from the same snapshot. Returns the number
// of changes.
func (s *Solver) checkValveStatus(st *network.State) int {
	net := s.net
	prev := make([]network.Status, 0, 8)
	idx := make([]int, 0, 8)
	for li := range net.Links {
		l := &net.Links[li]
		if l.Kind == network.LinkValve {
			switch l.Valve {
			case model.ValvePRV, model.ValvePSV, model.ValveFCV:
				idx = append(idx, li)
				prev = append(prev, st.Status[li])
			}
		}
	}

	changes := 0
	for k, li := range idx {
		l := &net.Links[li]
		old := prev[k]
		// A negative setting marks a manual open/closed override from a
		// control or rule; the solver leaves such valves alone.
		if st.Setting[li] < 0 {
			continue
		}

		var next network.Status
		h1, h2 := st.Head[l.N1], st.Head[l.N2]
		q := st.Flow[li]
		switch l.Valve {
		case model.ValvePRV:
			next = prvStatus(old, h1, h2, net.Nodes[l.N2].Elev+st.Setting[li], q)
		case model.ValvePSV:
			next = psvStatus(old, h1, h2, net.Nodes[l.N1].Elev+st.Setting[li], q)
		case model.ValveFCV:
			next = fcvStatus(old, h1, h2, st.Setting[li], q)
		}

		if next != old {
			st.Status[li] = next
			changes++
			s.log.Debug("valve status change",
				logging.Component("hydraulic"),
				logging.Link(l.ID),
				logging.String("from", old.String()),
				logging.String("to", next.String()))
		}
	}
	return changes
}

// prvStatus maintains downstream head at hset. Once active, downstream head
// equals upstream head minus the valve loss; if upstream head falls below
// the setting the valve opens fully, and reverse flow closes it.
func prvStatus(old network.Status, h1, h2, hset, q float64) network.Status {
	switch old {
	case network.Active:
		if q < -qTol {
			return network.Closed
		}
		if h1 < hset-hTol {
			return network.Open
		}
		return network.Active
	case network.Open:
		if q < -qTol {
			return network.Closed
		}
		if h2 >= hset+hTol {
			return network.Active
		}
		return network.Open
	default: // Closed
		if h1 >= hset+hTol && h2 < hset-hTol {
			return network.Active
		}
		if h1 < hset-hTol && h1 > h2+hTol {
			return network.Open
		}
		return network.Closed
	}
}

// psvStatus is the mirror image: maintain upstream head at hset.
func psvStatus(old network.Status, h1, h2, hset, q float64) network.Status {
	switch old {
	case network.Active:
		if q < -qTol {
			return network.Closed
		}
		if h2 > hset+hTol {
			return network.Open
		}
		return network.Active
	case network.Open:
		if q < -qTol {
			return network.Closed
		}
		if h1 <= hset-hTol {
			return network.Active
		}
		return network.Open
	default: // Closed
		if h2 <= hset-hTol && h1 > hset+hTol {
			return network.Active
		}
		if h2 > hset+hTol && h1 > h2+hTol {
			return network.Open
		}
		return network.Closed
	}
}

// fcvStatus limits flow to the setting. With the gradient reversed or too
// weak to reach the setting the valve passes flow unthrottled.
func fcvStatus(old network.Status, h1, h2, setting, q float64) network.Status {
	if h1-h2 < -hTol {
		return network.Open
	}
	if q < -qTol {
		return network.Open
	}
	if old == network.Open && q >= setting {
		return network.Active
	}
	if old == network.Active && q < setting-qTol {
		// Could not push the setting through; stop throttling.
		return network.Open
	}
	return old
}
