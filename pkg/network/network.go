// Package network holds the compiled, index-addressed form of a model
// network plus the mutable simulation state. The model package is the
// declarative input; this package is what the solvers actually walk.
//
// Node ordering is fixed at compile time: junctions first (the unknown-head
// rows of the hydraulic system), then reservoirs, then tanks. Links keep
// their model order: pipes, pumps, valves.
package network

import (
	"time"

	"github.com/dd0wney/cluso-hydronet/pkg/model"
	"github.com/dd0wney/cluso-hydronet/pkg/pattern"
)

// NodeKind discriminates the closed node variant set.
type NodeKind int

const (
	NodeJunction NodeKind = iota
	NodeReservoir
	NodeTank
)

// LinkKind discriminates the closed link variant set.
type LinkKind int

const (
	LinkPipe LinkKind = iota
	LinkPump
	LinkValve
)

// Status is the runtime status of a link. Unlike the declared model status,
// valves can additionally be Active (holding their setting).
type Status int

const (
	Closed Status = iota
	Open
	Active
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case Active:
		return "active"
	default:
		return "unknown"
	}
}

// Node is a compiled network node.
type Node struct {
	ID   string
	Kind NodeKind
	Elev float64

	// Junction fields.
	BaseDemand    float64
	DemandPattern string
	EmitterCoeff  float64

	// Reservoir fields.
	BaseHead    float64
	HeadPattern string

	// Tank ordinal into Net.Tanks, or -1.
	Tank int

	InitQuality float64
	Source      *Source
}

// Source is a compiled external quality source.
type Source struct {
	Type     model.SourceType
	Strength float64
	Pattern  string
}

// Tank is the compiled tank geometry attached to a tank node.
type Tank struct {
	Node      int // node index
	InitLevel float64
	MinLevel  float64
	MaxLevel  float64

	// Area is the cylindrical cross-section; zero when VolCurve is set.
	Area     float64
	VolCurve *model.Curve

	MinVol  float64
	MaxVol  float64
	InitVol float64

	Overflow    bool
	Mixing      model.MixingModel
	MixFraction float64
	BulkCoeff   float64
}

// Volume converts a water level (above tank bottom) to a stored volume.
func (t *Tank) Volume(level float64) float64 {
	if t.VolCurve != nil {
		return t.VolCurve.Interpolate(level)
	}
	return t.Area * level
}

// Level converts a stored volume back to a water level.
func (t *Tank) Level(vol float64) float64 {
	if t.VolCurve != nil {
		return t.VolCurve.InverseInterpolate(vol)
	}
	if t.Area == 0 {
		return 0
	}
	return vol / t.Area
}

// Pump holds the compiled pump characteristic h = H0 − R·(Q/ω)^N at relative
// speed ω, or a constant power rating when Power > 0 and no curve was given.
type Pump struct {
	H0    float64
	R     float64
	N     float64
	Qmax  float64
	Hmax  float64
	Power float64 // watts; 0 when curve-driven

	// Curve is kept for multipoint characteristics that do not fit the
	// power-function form; the solver then linearizes along the samples.
	Curve *model.Curve
}

// Link is a compiled network link.
type Link struct {
	ID   string
	Kind LinkKind
	N1   int
	N2   int

	// Pipe geometry.
	Length    float64
	Diameter  float64
	Roughness float64
	// Kminor is the precomputed minor-loss coefficient m of h = m·Q|Q|.
	Kminor float64
	// CheckValve marks a pipe permitting forward flow only.
	CheckValve bool

	Valve    model.ValveType
	GPVCurve *model.Curve

	Pump *Pump

	InitStatus  Status
	InitSetting float64

	// Reaction coefficients resolved against the global values, in 1/s
	// (bulk) and m/s or mass/m²/s (wall).
	BulkCoeff float64
	WallCoeff float64
}

// Net is the compiled network consumed by the hydraulic, quality, and
// control engines. It is immutable during a run.
type Net struct {
	Nodes []Node
	Links []Link
	Tanks []Tank

	// Junctions is the count of leading junction nodes.
	Junctions int

	NodeIndex map[string]int
	LinkIndex map[string]int

	// Incident[i] lists the link indices touching node i.
	Incident [][]int

	Patterns *pattern.Set

	Headloss         model.HeadlossFormula
	Trials           int
	Accuracy         float64
	Unbalanced       model.UnbalancedAction
	UnbalancedTrials int
	DemandMultiplier float64
	EmitterExponent  float64

	Quality   model.QualityOptions
	Reactions model.Reactions

	Times model.Times
}

// FixedHead reports whether node i has an externally fixed head this step
// (reservoirs always; tanks between their limits).
func (n *Net) FixedHead(i int) bool {
	return i >= n.Junctions
}

// Demand returns the pattern-adjusted demand of node i at the given elapsed
// time.
func (n *Net) Demand(i int, elapsed time.Duration) (float64, error) {
	node := &n.Nodes[i]
	if node.Kind != NodeJunction {
		return 0, nil
	}
	mult, err := n.Patterns.Multiplier(node.DemandPattern, elapsed)
	if err != nil {
		return 0, err
	}
	return node.BaseDemand * mult * n.DemandMultiplier, nil
}

// ReservoirHead returns the pattern-adjusted head of a reservoir node.
func (n *Net) ReservoirHead(i int, elapsed time.Duration) (float64, error) {
	node := &n.Nodes[i]
	mult, err := n.Patterns.Multiplier(node.HeadPattern, elapsed)
	if err != nil {
		return 0, err
	}
	return node.BaseHead * mult, nil
}
