package model

// Junction is a demand-bearing node whose head is solved each step.
type Junction struct {
	ID         string  `yaml:"id" validate:"required"`
	Elevation  float64 `yaml:"elevation"`
	BaseDemand float64 `yaml:"base_demand"`
	Pattern    string  `yaml:"pattern,omitempty"`
	// Emitter is the emitter discharge coefficient. Zero means no emitter.
	Emitter float64 `yaml:"emitter,omitempty" validate:"gte=0"`
	// InitQuality is the initial substance concentration at the node.
	InitQuality float64 `yaml:"init_quality,omitempty" validate:"gte=0"`
}

// Reservoir is an infinite-capacity node with an externally fixed head,
// optionally modulated by a pattern.
type Reservoir struct {
	ID          string  `yaml:"id" validate:"required"`
	Head        float64 `yaml:"head"`
	Pattern     string  `yaml:"pattern,omitempty"`
	InitQuality float64 `yaml:"init_quality,omitempty" validate:"gte=0"`
}

// MixingModel selects how a tank's stored volume mixes.
type MixingModel string

const (
	// MixCompleteMix treats the whole tank as one well-mixed volume.
	MixCompleteMix MixingModel = "mixed"
	// MixFIFO moves water through the tank strictly first-in-first-out.
	MixFIFO MixingModel = "fifo"
	// MixLIFO stacks inflow on top and draws it back last-in-first-out.
	MixLIFO MixingModel = "lifo"
	// MixTwoCompartment splits the tank into a well-mixed inlet zone that
	// feeds a second well-mixed zone.
	MixTwoCompartment MixingModel = "2comp"
)

// Tank is a finite-capacity node whose head is a function of stored volume.
type Tank struct {
	ID        string  `yaml:"id" validate:"required"`
	Elevation float64 `yaml:"elevation"`
	InitLevel float64 `yaml:"init_level" validate:"gte=0"`
	MinLevel  float64 `yaml:"min_level" validate:"gte=0"`
	MaxLevel  float64 `yaml:"max_level" validate:"gtefield=MinLevel"`
	// Diameter gives cylindrical geometry. VolumeCurve, when set, takes
	// precedence and maps level to volume.
	Diameter    float64     `yaml:"diameter,omitempty" validate:"gte=0"`
	VolumeCurve string      `yaml:"volume_curve,omitempty"`
	MinVolume   float64     `yaml:"min_volume,omitempty" validate:"gte=0"`
	Overflow    bool        `yaml:"overflow,omitempty"`
	Mixing      MixingModel `yaml:"mixing,omitempty"`
	// MixFraction is the inlet-zone fraction for the two-compartment model.
	MixFraction float64 `yaml:"mix_fraction,omitempty" validate:"gte=0,lte=1"`
	InitQuality float64 `yaml:"init_quality,omitempty" validate:"gte=0"`
	// BulkCoeff overrides the global bulk reaction coefficient inside the tank.
	BulkCoeff *float64 `yaml:"bulk_coeff,omitempty"`
}
