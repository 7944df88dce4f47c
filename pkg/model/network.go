package model

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Network is the declarative model of a pressurized pipe network. It is built
// once by a loader, validated, and then consumed read-only by the simulation
// engine.
type Network struct {
	Title string `yaml:"title,omitempty"`

	Junctions  []*Junction  `yaml:"junctions,omitempty"`
	Reservoirs []*Reservoir `yaml:"reservoirs,omitempty"`
	Tanks      []*Tank      `yaml:"tanks,omitempty"`

	Pipes  []*Pipe  `yaml:"pipes,omitempty"`
	Pumps  []*Pump  `yaml:"pumps,omitempty"`
	Valves []*Valve `yaml:"valves,omitempty"`

	Patterns []*Pattern `yaml:"patterns,omitempty"`
	Curves   []*Curve   `yaml:"curves,omitempty"`

	Controls []*Control `yaml:"controls,omitempty"`
	Rules    []*Rule    `yaml:"rules,omitempty"`
	Sources  []*Source  `yaml:"sources,omitempty"`

	Times     Times     `yaml:"times"`
	Options   Options   `yaml:"options"`
	Reactions Reactions `yaml:"reactions"`
}

// NodeCount returns the total number of nodes of all kinds.
func (n *Network) NodeCount() int {
	return len(n.Junctions) + len(n.Reservoirs) + len(n.Tanks)
}

// LinkCount returns the total number of links of all kinds.
func (n *Network) LinkCount() int {
	return len(n.Pipes) + len(n.Pumps) + len(n.Valves)
}

// Curve returns the named curve, or nil.
func (n *Network) Curve(id string) *Curve {
	for _, c := range n.Curves {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// Pattern returns the named pattern, or nil.
func (n *Network) Pattern(id string) *Pattern {
	for _, p := range n.Patterns {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// ApplyDefaults fills unset times, options, and per-entity fields with the
// engine defaults. Parse calls it before validation; programmatically built
// networks should call it themselves.
func (n *Network) ApplyDefaults() {
	if n.Times.HydraulicStep == 0 {
		n.Times.HydraulicStep = Duration(time.Hour)
	}
	if n.Times.QualityStep == 0 {
		q := n.Times.HydraulicStep.D() / 10
		if q > 5*time.Minute {
			q = 5 * time.Minute
		}
		n.Times.QualityStep = Duration(q)
	}
	if n.Times.PatternStep == 0 {
		n.Times.PatternStep = Duration(time.Hour)
	}
	if n.Times.ReportStep == 0 {
		n.Times.ReportStep = n.Times.HydraulicStep
	}

	if n.Options.Units == "" {
		n.Options.Units = UnitsCMS
	}
	if n.Options.Headloss == "" {
		n.Options.Headloss = HazenWilliams
	}
	if n.Options.Trials == 0 {
		n.Options.Trials = 40
	}
	if n.Options.Accuracy == 0 {
		n.Options.Accuracy = 0.001
	}
	if n.Options.Unbalanced == "" {
		n.Options.Unbalanced = UnbalancedContinue
	}
	if n.Options.Unbalanced == UnbalancedContinue && n.Options.UnbalancedTrials == 0 {
		n.Options.UnbalancedTrials = 10
	}
	if n.Options.DemandMultiplier == 0 {
		n.Options.DemandMultiplier = 1.0
	}
	if n.Options.EmitterExponent == 0 {
		n.Options.EmitterExponent = 0.5
	}
	if n.Options.Quality.Mode == "" {
		n.Options.Quality.Mode = QualityNone
	}
	if n.Options.Quality.Diffusivity == 0 {
		n.Options.Quality.Diffusivity = 1.0
	}

	for _, t := range n.Tanks {
		if t.Mixing == "" {
			t.Mixing = MixCompleteMix
		}
		if t.Mixing == MixTwoCompartment && t.MixFraction == 0 {
			t.MixFraction = 1.0
		}
	}
	for _, p := range n.Pumps {
		if p.Speed == 0 && p.Status != StatusClosed {
			p.Speed = 1.0
		}
		if p.Status == "" {
			p.Status = StatusOpen
		}
	}
	for _, p := range n.Pipes {
		if p.Status == "" {
			p.Status = StatusOpen
		}
	}
	// Valves keep an empty status: unless forced open or closed they start
	// in their active, setting-holding state.
}

// Parse decodes a YAML network document, applies defaults, and validates it.
func Parse(data []byte) (*Network, error) {
	var n Network
	if err := yaml.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("decode network: %w", err)
	}
	n.ApplyDefaults()
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return &n, nil
}
