package model

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML documents can write either a duration
// string ("1h30m") or a bare number of seconds.
type Duration time.Duration

// D returns the wrapped time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

// UnmarshalYAML implements yaml.Unmarshaler. Bare numbers carry the !!int or
// !!float tag; everything else is parsed as a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	switch value.Tag {
	case "!!int", "!!float":
		var secs float64
		if err := value.Decode(&secs); err != nil {
			return fmt.Errorf("invalid duration value on line %d", value.Line)
		}
		*d = Duration(time.Duration(secs * float64(time.Second)))
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("invalid duration value on line %d", value.Line)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Times holds the simulation clock parameters.
type Times struct {
	Duration Duration `yaml:"duration"`
	// HydraulicStep is the nominal hydraulic timestep; events shorten it.
	HydraulicStep Duration `yaml:"hydraulic_step"`
	QualityStep   Duration `yaml:"quality_step"`
	PatternStep   Duration `yaml:"pattern_step"`
	PatternStart  Duration `yaml:"pattern_start"`
	ReportStep    Duration `yaml:"report_step"`
	ReportStart   Duration `yaml:"report_start"`
	// StartClock is the time of day at which the simulation begins.
	StartClock Duration `yaml:"start_clock"`
}

// HeadlossFormula selects the friction headloss relation for pipes.
type HeadlossFormula string

const (
	HazenWilliams HeadlossFormula = "hazen-williams"
	DarcyWeisbach HeadlossFormula = "darcy-weisbach"
	ChezyManning  HeadlossFormula = "chezy-manning"
)

// FlowUnits is the unit system of the model document. The engine computes in
// SI (m, m³/s); FlowUnits is carried for presentation.
type FlowUnits string

const (
	UnitsCMS FlowUnits = "cms" // cubic meters per second
	UnitsLPS FlowUnits = "lps" // liters per second
	UnitsCFS FlowUnits = "cfs" // cubic feet per second
	UnitsGPM FlowUnits = "gpm" // US gallons per minute
)

// UnbalancedAction says what to do when the solver exhausts its trials.
type UnbalancedAction string

const (
	// UnbalancedContinue keeps the best estimate, runs extra trials, and
	// flags the step with a warning.
	UnbalancedContinue UnbalancedAction = "continue"
	// UnbalancedStop aborts the run with a fatal convergence error.
	UnbalancedStop UnbalancedAction = "stop"
)

// QualityMode selects what the water-quality engine transports.
type QualityMode string

const (
	QualityNone QualityMode = "none"
	// QualityChemical transports a reacting substance concentration.
	QualityChemical QualityMode = "chemical"
	// QualityAge transports water age, in hours.
	QualityAge QualityMode = "age"
	// QualityTrace transports percent of flow originating at TraceNode.
	QualityTrace QualityMode = "trace"
)

// QualityOptions configures the water-quality engine.
type QualityOptions struct {
	Mode      QualityMode `yaml:"mode,omitempty" validate:"omitempty,oneof=none chemical age trace"`
	TraceNode string      `yaml:"trace_node,omitempty"`
	// Tolerance is the concentration difference below which adjacent
	// segments coalesce.
	Tolerance float64 `yaml:"tolerance,omitempty" validate:"gte=0"`
	// Diffusivity is the substance molecular diffusivity relative to
	// chlorine at 20 °C. It scales the wall mass-transfer coefficient.
	Diffusivity float64 `yaml:"diffusivity,omitempty" validate:"gte=0"`
}

// Options holds the hydraulic and quality solver options.
type Options struct {
	Units    FlowUnits       `yaml:"units,omitempty" validate:"omitempty,oneof=cms lps cfs gpm"`
	Headloss HeadlossFormula `yaml:"headloss,omitempty" validate:"omitempty,oneof=hazen-williams darcy-weisbach chezy-manning"`
	Trials   int             `yaml:"trials,omitempty" validate:"gte=0"`
	Accuracy float64         `yaml:"accuracy,omitempty" validate:"gte=0"`

	Unbalanced UnbalancedAction `yaml:"unbalanced,omitempty" validate:"omitempty,oneof=continue stop"`
	// UnbalancedTrials is the N of the "Continue N" policy.
	UnbalancedTrials int `yaml:"unbalanced_trials,omitempty" validate:"gte=0"`

	DefaultPattern   string  `yaml:"default_pattern,omitempty"`
	DemandMultiplier float64 `yaml:"demand_multiplier,omitempty" validate:"gte=0"`
	EmitterExponent  float64 `yaml:"emitter_exponent,omitempty" validate:"gte=0"`

	Quality QualityOptions `yaml:"quality,omitempty"`
}

// Reactions holds the global reaction kinetics, overridable per pipe/tank.
type Reactions struct {
	// BulkOrder and WallOrder are the reaction orders. Wall order must be
	// 0 or 1.
	BulkOrder float64 `yaml:"bulk_order,omitempty"`
	WallOrder float64 `yaml:"wall_order,omitempty" validate:"oneof=0 1"`
	// BulkCoeff is per day; negative decays, positive grows.
	BulkCoeff float64 `yaml:"bulk_coeff,omitempty"`
	// WallCoeff is m/day for order 1, mass/m²/day for order 0.
	WallCoeff float64 `yaml:"wall_coeff,omitempty"`
	// LimitingConcentration bounds growth (or decay) reactions. Zero
	// disables the limit.
	LimitingConcentration float64 `yaml:"limiting_concentration,omitempty" validate:"gte=0"`
}

// SourceType says how an external quality source enters a node.
type SourceType string

const (
	// SourceConcentration fixes the concentration of external inflow.
	SourceConcentration SourceType = "concentration"
	// SourceSetpoint fixes the node's outflow concentration to at least
	// the source strength.
	SourceSetpoint SourceType = "setpoint"
	// SourceFlowPaced adds the strength to the mixed inflow concentration.
	SourceFlowPaced SourceType = "flowpaced"
	// SourceMass injects mass at a fixed rate (mass/min).
	SourceMass SourceType = "mass"
)

// Source is an external quality source at a node.
type Source struct {
	Node     string     `yaml:"node" validate:"required"`
	Type     SourceType `yaml:"type" validate:"required,oneof=concentration setpoint flowpaced mass"`
	Strength float64    `yaml:"strength" validate:"gte=0"`
	Pattern  string     `yaml:"pattern,omitempty"`
}
