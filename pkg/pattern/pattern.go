// Package pattern implements time-indexed multiplier lookup with cyclic
// wraparound. A Set is immutable after construction and safe for concurrent
// lookups.
package pattern

import (
	"errors"
	"fmt"
	"time"

	"github.com/dd0wney/cluso-hydronet/pkg/model"
)

// ErrUnknownPattern is returned when a non-empty pattern id does not resolve.
var ErrUnknownPattern = errors.New("unknown pattern")

// Set holds the compiled patterns of a network.
type Set struct {
	step     time.Duration
	start    time.Duration
	patterns map[string][]float64
}

// NewSet compiles the given patterns. step is the pattern timestep and start
// the pattern start offset added to every lookup.
func NewSet(patterns []*model.Pattern, step, start time.Duration) *Set {
	s := &Set{
		step:     step,
		start:    start,
		patterns: make(map[string][]float64, len(patterns)),
	}
	if s.step <= 0 {
		s.step = time.Hour
	}
	for _, p := range patterns {
		mult := make([]float64, len(p.Multipliers))
		copy(mult, p.Multipliers)
		s.patterns[p.ID] = mult
	}
	return s
}

// Multiplier returns the pattern multiplier at the given elapsed simulation
// time. An empty id yields 1.0. An unknown id yields ErrUnknownPattern.
func (s *Set) Multiplier(id string, elapsed time.Duration) (float64, error) {
	if id == "" {
		return 1.0, nil
	}
	mult, ok := s.patterns[id]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownPattern, id)
	}
	if len(mult) == 0 {
		return 1.0, nil
	}
	idx := int((s.start+elapsed)/s.step) % len(mult)
	if idx < 0 {
		idx += len(mult)
	}
	return mult[idx], nil
}

// Period returns the cycle length of the named pattern, or zero if unknown.
func (s *Set) Period(id string) time.Duration {
	return time.Duration(len(s.patterns[id])) * s.step
}

// Has reports whether the set contains the named pattern.
func (s *Set) Has(id string) bool {
	_, ok := s.patterns[id]
	return ok
}
