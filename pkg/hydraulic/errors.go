package hydraulic

import "errors"

var (
	// ErrUnbalanced is returned when the solver exhausts its trials under
	// the "stop" unbalanced policy.
	ErrUnbalanced = errors.New("hydraulic solution did not converge")

	// ErrIllConditioned is returned when the junction-head system cannot
	// be factorized, typically because a portion of the network has been
	// isolated from every fixed-head node.
	ErrIllConditioned = errors.New("hydraulic system is ill-conditioned")
)
