package model

// LinkStatus is the declared initial status of a link.
type LinkStatus string

const (
	StatusOpen   LinkStatus = "open"
	StatusClosed LinkStatus = "closed"
	// StatusCV marks a pipe as containing a check valve permitting forward
	// flow only.
	StatusCV LinkStatus = "cv"
)

// Pipe is a link that dissipates head through friction and minor losses.
type Pipe struct {
	ID        string  `yaml:"id" validate:"required"`
	Node1     string  `yaml:"node1" validate:"required"`
	Node2     string  `yaml:"node2" validate:"required"`
	Length    float64 `yaml:"length" validate:"gt=0"`
	Diameter  float64 `yaml:"diameter" validate:"gt=0"`
	Roughness float64 `yaml:"roughness" validate:"gt=0"`
	// MinorLoss is the dimensionless fitting loss coefficient.
	MinorLoss float64    `yaml:"minor_loss,omitempty" validate:"gte=0"`
	Status    LinkStatus `yaml:"status,omitempty"`
	// BulkCoeff and WallCoeff override the global reaction coefficients.
	BulkCoeff *float64 `yaml:"bulk_coeff,omitempty"`
	WallCoeff *float64 `yaml:"wall_coeff,omitempty"`
}

// Pump is a link that adds head. It is described either by a head-flow curve
// or by a constant power rating.
type Pump struct {
	ID    string `yaml:"id" validate:"required"`
	Node1 string `yaml:"node1" validate:"required"`
	Node2 string `yaml:"node2" validate:"required"`
	// Curve names a head-flow curve. Power (kW) is used when no curve is given.
	Curve string  `yaml:"curve,omitempty"`
	Power float64 `yaml:"power,omitempty" validate:"gte=0"`
	// Speed is the initial relative speed setting (1 = nominal, 0 = off).
	Speed   float64    `yaml:"speed,omitempty" validate:"gte=0"`
	Pattern string     `yaml:"pattern,omitempty"`
	Status  LinkStatus `yaml:"status,omitempty"`
}

// ValveType enumerates the supported valve behaviors.
type ValveType string

const (
	// ValvePRV reduces downstream pressure to its setting.
	ValvePRV ValveType = "prv"
	// ValvePSV sustains upstream pressure at its setting.
	ValvePSV ValveType = "psv"
	// ValveFCV limits flow to its setting.
	ValveFCV ValveType = "fcv"
	// ValveTCV throttles with a headloss coefficient given by its setting.
	ValveTCV ValveType = "tcv"
	// ValveGPV imposes a user-supplied headloss curve.
	ValveGPV ValveType = "gpv"
	// ValvePBV forces a fixed head drop equal to its setting.
	ValvePBV ValveType = "pbv"
)

// Valve is a link that actively constrains a head or flow value.
type Valve struct {
	ID       string    `yaml:"id" validate:"required"`
	Node1    string    `yaml:"node1" validate:"required"`
	Node2    string    `yaml:"node2" validate:"required"`
	Diameter float64   `yaml:"diameter" validate:"gt=0"`
	Type     ValveType `yaml:"type" validate:"required,oneof=prv psv fcv tcv gpv pbv"`
	// Setting is pressure for PRV/PSV/PBV, flow for FCV, a loss coefficient
	// for TCV, and a curve id for GPV (see Curve).
	Setting   float64    `yaml:"setting,omitempty"`
	Curve     string     `yaml:"curve,omitempty"`
	MinorLoss float64    `yaml:"minor_loss,omitempty" validate:"gte=0"`
	Status    LinkStatus `yaml:"status,omitempty"`
}
