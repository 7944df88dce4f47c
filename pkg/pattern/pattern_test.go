package pattern

import (
	"errors"
	"testing"
	"time"

	"github.com/dd0wney/cluso-hydronet/pkg/model"
)

func TestMultiplier_WorkedExample(t *testing.T) {
	// A 12-entry diurnal demand pattern on a 1h timestep: a node with base
	// demand 55 peaks at 165 in hour 2 and returns to 55 in hour 12.
	p := &model.Pattern{
		ID:          "diurnal",
		Multipliers: []float64{1.0, 2.0, 3.0, 2.5, 2.0, 1.5, 1.2, 1.1, 1.0, 0.9, 0.8, 1.0},
	}
	s := NewSet([]*model.Pattern{p}, time.Hour, 0)

	base := 55.0
	m, err := s.Multiplier("diurnal", 2*time.Hour)
	if err != nil {
		t.Fatalf("Multiplier failed: %v", err)
	}
	if got := base * m; got != 165 {
		t.Errorf("Expected demand 165 at hour 2, got %v", got)
	}

	m, err = s.Multiplier("diurnal", 12*time.Hour)
	if err != nil {
		t.Fatalf("Multiplier failed: %v", err)
	}
	if got := base * m; got != 55 {
		t.Errorf("Expected demand 55 at hour 12 (wrapped), got %v", got)
	}
}

func TestMultiplier_Periodicity(t *testing.T) {
	p := &model.Pattern{ID: "p", Multipliers: []float64{0.5, 1.5, 1.0}}
	s := NewSet([]*model.Pattern{p}, time.Hour, 0)

	for _, elapsed := range []time.Duration{0, time.Hour, 90 * time.Minute, 5 * time.Hour} {
		m1, err := s.Multiplier("p", elapsed)
		if err != nil {
			t.Fatalf("Multiplier(%v) failed: %v", elapsed, err)
		}
		m2, err := s.Multiplier("p", elapsed+s.Period("p"))
		if err != nil {
			t.Fatalf("Multiplier(%v) failed: %v", elapsed+s.Period("p"), err)
		}
		if m1 != m2 {
			t.Errorf("Pattern not periodic at %v: %v vs %v", elapsed, m1, m2)
		}
	}
}

func TestMultiplier_StartOffset(t *testing.T) {
	p := &model.Pattern{ID: "p", Multipliers: []float64{1.0, 2.0}}
	s := NewSet([]*model.Pattern{p}, time.Hour, time.Hour)

	// With a 1h start offset, elapsed time zero reads the second entry.
	m, err := s.Multiplier("p", 0)
	if err != nil {
		t.Fatalf("Multiplier failed: %v", err)
	}
	if m != 2.0 {
		t.Errorf("Expected 2.0 with start offset, got %v", m)
	}
}

func TestMultiplier_EmptyAndUnknown(t *testing.T) {
	s := NewSet(nil, time.Hour, 0)

	m, err := s.Multiplier("", 3*time.Hour)
	if err != nil || m != 1.0 {
		t.Errorf("Empty id should yield 1.0, got %v, %v", m, err)
	}

	_, err = s.Multiplier("missing", 0)
	if !errors.Is(err, ErrUnknownPattern) {
		t.Errorf("Expected ErrUnknownPattern, got %v", err)
	}
}

func TestMultiplier_SubStepResolution(t *testing.T) {
	// Lookups inside a pattern interval hold the interval's value.
	p := &model.Pattern{ID: "p", Multipliers: []float64{1.0, 3.0}}
	s := NewSet([]*model.Pattern{p}, time.Hour, 0)

	m, err := s.Multiplier("p", 59*time.Minute)
	if err != nil {
		t.Fatalf("Multiplier failed: %v", err)
	}
	if m != 1.0 {
		t.Errorf("Expected first interval value 1.0 at 59m, got %v", m)
	}
}
