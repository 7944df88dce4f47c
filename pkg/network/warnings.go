package network

import "fmt"

// WarningCode classifies recoverable simulation conditions. Warnings are
// accumulated per step and surfaced through the report callback; none of
// them interrupt a run.
type WarningCode int

const (
	// WarnConvergence: the hydraulic solver exhausted its trials and the
	// step keeps the best available estimate.
	WarnConvergence WarningCode = iota
	// WarnControlOscillation: controls kept flipping state and the
	// re-solve bound was hit; the last computed state is kept.
	WarnControlOscillation
	// WarnSegmentOverflow: a link exceeded the quality segment bound and
	// its smallest segments were forcibly coalesced.
	WarnSegmentOverflow
	// WarnTankOverflow: a tank reached a level limit and its boundary
	// flows were clipped.
	WarnTankOverflow
)

// String returns the warning code name.
func (c WarningCode) String() string {
	switch c {
	case WarnConvergence:
		return "convergence"
	case WarnControlOscillation:
		return "control-oscillation"
	case WarnSegmentOverflow:
		return "segment-overflow"
	case WarnTankOverflow:
		return "tank-overflow"
	default:
		return "unknown"
	}
}

// Warning is one recoverable condition tied to a simulation step.
type Warning struct {
	Code WarningCode
	// Entity is the id of the link, node, or tank involved, if any.
	Entity  string
	Message string
}

func (w Warning) String() string {
	if w.Entity != "" {
		return fmt.Sprintf("%s (%s): %s", w.Code, w.Entity, w.Message)
	}
	return fmt.Sprintf("%s: %s", w.Code, w.Message)
}
