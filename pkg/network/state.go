package network

import "time"

// State is the complete mutable simulation state: everything the hydraulic,
// control, and quality engines read and write between steps. The EPS driver
// owns one State and snapshots it around control re-solves with Clone and
// CopyFrom.
type State struct {
	Time time.Duration

	// Per node.
	Head    []float64
	Demand  []float64 // current pattern-adjusted demand
	Emitter []float64 // emitter outflow, solved with the hydraulics
	Quality []float64

	// Per link.
	Flow    []float64
	Status  []Status
	Setting []float64

	// Per tank ordinal.
	TankVolume []float64
}

// NewState allocates the initial state for a compiled network: tank volumes
// from their initial levels, reservoir and tank heads fixed, links at their
// declared status and setting, initial quality everywhere.
func NewState(n *Net) *State {
	s := &State{
		Head:       make([]float64, len(n.Nodes)),
		Demand:     make([]float64, len(n.Nodes)),
		Emitter:    make([]float64, len(n.Nodes)),
		Quality:    make([]float64, len(n.Nodes)),
		Flow:       make([]float64, len(n.Links)),
		Status:     make([]Status, len(n.Links)),
		Setting:    make([]float64, len(n.Links)),
		TankVolume: make([]float64, len(n.Tanks)),
	}
	for i := range n.Nodes {
		node := &n.Nodes[i]
		s.Quality[i] = node.InitQuality
		switch node.Kind {
		case NodeJunction:
			s.Head[i] = node.Elev
		case NodeReservoir:
			s.Head[i] = node.BaseHead
		case NodeTank:
			t := &n.Tanks[node.Tank]
			s.TankVolume[node.Tank] = t.InitVol
			s.Head[i] = node.Elev + t.InitLevel
		}
	}
	for i := range n.Links {
		s.Status[i] = n.Links[i].InitStatus
		s.Setting[i] = n.Links[i].InitSetting
	}
	return s
}

// Clone deep-copies the state.
func (s *State) Clone() *State {
	c := &State{Time: s.Time}
	c.Head = append([]float64(nil), s.Head...)
	c.Demand = append([]float64(nil), s.Demand...)
	c.Emitter = append([]float64(nil), s.Emitter...)
	c.Quality = append([]float64(nil), s.Quality...)
	c.Flow = append([]float64(nil), s.Flow...)
	c.Status = append([]Status(nil), s.Status...)
	c.Setting = append([]float64(nil), s.Setting...)
	c.TankVolume = append([]float64(nil), s.TankVolume...)
	return c
}

// CopyFrom restores the receiver from a snapshot taken with Clone.
func (s *State) CopyFrom(from *State) {
	s.Time = from.Time
	copy(s.Head, from.Head)
	copy(s.Demand, from.Demand)
	copy(s.Emitter, from.Emitter)
	copy(s.Quality, from.Quality)
	copy(s.Flow, from.Flow)
	copy(s.Status, from.Status)
	copy(s.Setting, from.Setting)
	copy(s.TankVolume, from.TankVolume)
}

// TankLevel returns tank t's current level above its bottom.
func (s *State) TankLevel(n *Net, t int) float64 {
	return n.Tanks[t].Level(s.TankVolume[t])
}

// Pressure returns the pressure head at node i (head minus elevation).
func (s *State) Pressure(n *Net, i int) float64 {
	return s.Head[i] - n.Nodes[i].Elev
}

// NetTankInflow sums the signed link flows into tank t.
func (s *State) NetTankInflow(n *Net, t int) float64 {
	node := n.Tanks[t].Node
	var q float64
	for _, li := range n.Incident[node] {
		l := &n.Links[li]
		if l.N2 == node {
			q += s.Flow[li]
		} else {
			q -= s.Flow[li]
		}
	}
	return q
}
