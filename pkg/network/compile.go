package network

import (
	"fmt"
	"math"

	"github.com/dd0wney/cluso-hydronet/pkg/model"
	"github.com/dd0wney/cluso-hydronet/pkg/pattern"
)

const (
	gravity = 9.80665
	// minorLossK converts a fitting coefficient K and diameter d to the
	// m of h = m·Q|Q|: m = 8K/(g·π²·d⁴).
	minorLossK = 8.0 / (gravity * math.Pi * math.Pi)

	secondsPerDay = 86400.0
)

// Compile turns a validated model network into its indexed runtime form.
// The model must already have passed Validate; Compile only fails on
// conditions validation cannot see (for example a pump curve that does not
// describe a falling head).
func Compile(m *model.Network) (*Net, error) {
	n := &Net{
		Junctions:        len(m.Junctions),
		NodeIndex:        make(map[string]int, m.NodeCount()),
		LinkIndex:        make(map[string]int, m.LinkCount()),
		Headloss:         m.Options.Headloss,
		Trials:           m.Options.Trials,
		Accuracy:         m.Options.Accuracy,
		Unbalanced:       m.Options.Unbalanced,
		UnbalancedTrials: m.Options.UnbalancedTrials,
		DemandMultiplier: m.Options.DemandMultiplier,
		EmitterExponent:  m.Options.EmitterExponent,
		Quality:          m.Options.Quality,
		Reactions:        m.Reactions,
		Times:            m.Times,
	}
	n.Patterns = pattern.NewSet(m.Patterns, m.Times.PatternStep.D(), m.Times.PatternStart.D())

	defaultPattern := m.Options.DefaultPattern

	for _, j := range m.Junctions {
		pat := j.Pattern
		if pat == "" {
			pat = defaultPattern
		}
		n.addNode(Node{
			ID:            j.ID,
			Kind:          NodeJunction,
			Elev:          j.Elevation,
			BaseDemand:    j.BaseDemand,
			DemandPattern: pat,
			EmitterCoeff:  j.Emitter,
			Tank:          -1,
			InitQuality:   j.InitQuality,
		})
	}
	for _, r := range m.Reservoirs {
		n.addNode(Node{
			ID:          r.ID,
			Kind:        NodeReservoir,
			Elev:        r.Head,
			BaseHead:    r.Head,
			HeadPattern: r.Pattern,
			Tank:        -1,
			InitQuality: r.InitQuality,
		})
	}
	for _, t := range m.Tanks {
		node := Node{
			ID:          t.ID,
			Kind:        NodeTank,
			Elev:        t.Elevation,
			Tank:        len(n.Tanks),
			InitQuality: t.InitQuality,
		}
		tank := Tank{
			Node:        len(n.Nodes),
			InitLevel:   t.InitLevel,
			MinLevel:    t.MinLevel,
			MaxLevel:    t.MaxLevel,
			Overflow:    t.Overflow,
			Mixing:      t.Mixing,
			MixFraction: t.MixFraction,
			BulkCoeff:   m.Reactions.BulkCoeff / secondsPerDay,
		}
		if t.BulkCoeff != nil {
			tank.BulkCoeff = *t.BulkCoeff / secondsPerDay
		}
		if t.VolumeCurve != "" {
			tank.VolCurve = m.Curve(t.VolumeCurve)
		} else {
			tank.Area = math.Pi * t.Diameter * t.Diameter / 4
		}
		tank.MinVol = tank.Volume(t.MinLevel)
		if t.MinVolume > tank.MinVol {
			tank.MinVol = t.MinVolume
		}
		tank.MaxVol = tank.Volume(t.MaxLevel)
		tank.InitVol = tank.Volume(t.InitLevel)
		n.Nodes = append(n.Nodes, node)
		n.NodeIndex[node.ID] = len(n.Nodes) - 1
		n.Tanks = append(n.Tanks, tank)
	}

	for _, s := range m.Sources {
		i := n.NodeIndex[s.Node]
		n.Nodes[i].Source = &Source{Type: s.Type, Strength: s.Strength, Pattern: s.Pattern}
	}

	globalKb := m.Reactions.BulkCoeff / secondsPerDay
	globalKw := m.Reactions.WallCoeff / secondsPerDay

	for _, p := range m.Pipes {
		link := Link{
			ID:         p.ID,
			Kind:       LinkPipe,
			N1:         n.NodeIndex[p.Node1],
			N2:         n.NodeIndex[p.Node2],
			Length:     p.Length,
			Diameter:   p.Diameter,
			Roughness:  p.Roughness,
			Kminor:     minorLossK * p.MinorLoss / math.Pow(p.Diameter, 4),
			CheckValve: p.Status == model.StatusCV,
			InitStatus: Open,
			BulkCoeff:  globalKb,
			WallCoeff:  globalKw,
		}
		if p.Status == model.StatusClosed {
			link.InitStatus = Closed
		}
		if p.BulkCoeff != nil {
			link.BulkCoeff = *p.BulkCoeff / secondsPerDay
		}
		if p.WallCoeff != nil {
			link.WallCoeff = *p.WallCoeff / secondsPerDay
		}
		n.addLink(link)
	}
	for _, p := range m.Pumps {
		pump, err := compilePump(p, m)
		if err != nil {
			return nil, err
		}
		link := Link{
			ID:          p.ID,
			Kind:        LinkPump,
			N1:          n.NodeIndex[p.Node1],
			N2:          n.NodeIndex[p.Node2],
			Pump:        pump,
			InitStatus:  Open,
			InitSetting: p.Speed,
		}
		if p.Status == model.StatusClosed || p.Speed == 0 {
			link.InitStatus = Closed
		}
		n.addLink(link)
	}
	for _, v := range m.Valves {
		link := Link{
			ID:          v.ID,
			Kind:        LinkValve,
			N1:          n.NodeIndex[v.Node1],
			N2:          n.NodeIndex[v.Node2],
			Diameter:    v.Diameter,
			Valve:       v.Type,
			Kminor:      minorLossK * v.MinorLoss / math.Pow(v.Diameter, 4),
			InitSetting: v.Setting,
		}
		switch v.Status {
		case model.StatusClosed:
			link.InitStatus = Closed
		case model.StatusOpen:
			link.InitStatus = Open
		default:
			link.InitStatus = Active
		}
		if v.Type == model.ValveGPV {
			link.GPVCurve = m.Curve(v.Curve)
		}
		n.addLink(link)
	}

	n.Incident = make([][]int, len(n.Nodes))
	for li := range n.Links {
		l := &n.Links[li]
		n.Incident[l.N1] = append(n.Incident[l.N1], li)
		n.Incident[l.N2] = append(n.Incident[l.N2], li)
	}
	return n, nil
}

func (n *Net) addNode(node Node) {
	n.NodeIndex[node.ID] = len(n.Nodes)
	n.Nodes = append(n.Nodes, node)
}

func (n *Net) addLink(link Link) {
	n.LinkIndex[link.ID] = len(n.Links)
	n.Links = append(n.Links, link)
}

// compilePump fits the power-function characteristic h = H0 − R·Qᴺ.
//
// A single design point (q1, h1) is extended the conventional way: shutoff
// head 4/3·h1 and maximum flow 2·q1. Three points are fit exactly when the
// first sits at zero flow. Anything else is kept as a piecewise-linear
// characteristic.
func compilePump(p *model.Pump, m *model.Network) (*Pump, error) {
	if p.Curve == "" {
		// Constant power rating, kW to W.
		return &Pump{Power: p.Power * 1000}, nil
	}
	c := m.Curve(p.Curve)
	pts := c.Points
	switch {
	case len(pts) == 1:
		q1, h1 := pts[0].X, pts[0].Y
		if q1 <= 0 || h1 <= 0 {
			return nil, fmt.Errorf("pump %q: design point must be positive", p.ID)
		}
		h0 := 4.0 * h1 / 3.0
		return fitPump(p.ID, h0, q1, h1, 2*q1, 0)
	case len(pts) == 3 && pts[0].X == 0:
		h0 := pts[0].Y
		return fitPump(p.ID, h0, pts[1].X, pts[1].Y, pts[2].X, pts[2].Y)
	default:
		if !descendingY(pts) {
			return nil, fmt.Errorf("pump %q: head curve must decrease with flow", p.ID)
		}
		return &Pump{
			Curve: c,
			Hmax:  pts[0].Y,
			Qmax:  pts[len(pts)-1].X,
		}, nil
	}
}

func fitPump(id string, h0, q1, h1, q2, h2 float64) (*Pump, error) {
	if h0 <= h1 || h1 <= h2 || q1 <= 0 || q2 <= q1 {
		return nil, fmt.Errorf("pump %q: head curve must decrease with flow", id)
	}
	n := math.Log((h0-h2)/(h0-h1)) / math.Log(q2/q1)
	if n <= 0 || n > 20 {
		return nil, fmt.Errorf("pump %q: unusable curve exponent %.3f", id, n)
	}
	r := (h0 - h1) / math.Pow(q1, n)
	qmax := math.Pow(h0/r, 1/n)
	return &Pump{H0: h0, R: r, N: n, Qmax: qmax, Hmax: h0}, nil
}

func descendingY(pts []model.CurvePoint) bool {
	for i := 1; i < len(pts); i++ {
		if pts[i].Y >= pts[i-1].Y {
			return false
		}
	}
	return true
}
