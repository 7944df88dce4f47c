package model

import (
	"errors"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

const baseDoc = `
title: two loop test
junctions:
  - {id: J1, elevation: 10, base_demand: 0.02, pattern: diurnal}
  - {id: J2, elevation: 12, base_demand: 0.01}
reservoirs:
  - {id: R1, head: 60}
tanks:
  - {id: T1, elevation: 40, init_level: 3, min_level: 1, max_level: 6, diameter: 12}
pipes:
  - {id: P1, node1: R1, node2: J1, length: 500, diameter: 0.3, roughness: 120}
  - {id: P2, node1: J1, node2: J2, length: 300, diameter: 0.25, roughness: 120}
  - {id: P3, node1: J2, node2: T1, length: 400, diameter: 0.25, roughness: 120}
patterns:
  - {id: diurnal, multipliers: [0.8, 1.2, 1.5, 1.0]}
times:
  duration: 24h
  hydraulic_step: 1h
`

func TestParse_Valid(t *testing.T) {
	n, err := Parse([]byte(baseDoc))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if n.NodeCount() != 4 || n.LinkCount() != 3 {
		t.Errorf("Expected 4 nodes and 3 links, got %d and %d", n.NodeCount(), n.LinkCount())
	}
	if n.Times.Duration.D() != 24*time.Hour {
		t.Errorf("Expected 24h duration, got %v", n.Times.Duration.D())
	}

	// Defaults fill in.
	if n.Options.Headloss != HazenWilliams {
		t.Errorf("Expected hazen-williams default, got %q", n.Options.Headloss)
	}
	if n.Options.Trials != 40 || n.Options.Accuracy != 0.001 {
		t.Errorf("Unexpected solver defaults: trials=%d accuracy=%v", n.Options.Trials, n.Options.Accuracy)
	}
	if n.Tanks[0].Mixing != MixCompleteMix {
		t.Errorf("Expected complete-mix default, got %q", n.Tanks[0].Mixing)
	}
}

func TestParse_DuplicateID(t *testing.T) {
	doc := baseDoc + `
valves:
  - {id: P1, node1: J1, node2: J2, diameter: 0.2, type: prv, setting: 20}
`
	_, err := Parse([]byte(doc))
	if !errors.Is(err, ErrDuplicateID) {
		t.Errorf("Expected ErrDuplicateID, got %v", err)
	}
}

func TestParse_UnknownNode(t *testing.T) {
	doc := baseDoc + `
pumps:
  - {id: PU1, node1: R1, node2: NOPE, power: 5}
`
	_, err := Parse([]byte(doc))
	if !errors.Is(err, ErrUnknownNode) {
		t.Errorf("Expected ErrUnknownNode, got %v", err)
	}
}

func TestParse_NoFixedHead(t *testing.T) {
	doc := `
junctions:
  - {id: J1, elevation: 10, base_demand: 0.01}
  - {id: J2, elevation: 10}
pipes:
  - {id: P1, node1: J1, node2: J2, length: 100, diameter: 0.2, roughness: 100}
`
	_, err := Parse([]byte(doc))
	if !errors.Is(err, ErrNoFixedHead) {
		t.Errorf("Expected ErrNoFixedHead, got %v", err)
	}
}

func TestParse_TankLevelOrdering(t *testing.T) {
	doc := `
reservoirs:
  - {id: R1, head: 50}
tanks:
  - {id: T1, elevation: 40, init_level: 9, min_level: 1, max_level: 6, diameter: 10}
pipes:
  - {id: P1, node1: R1, node2: T1, length: 100, diameter: 0.2, roughness: 100}
`
	_, err := Parse([]byte(doc))
	if !errors.Is(err, ErrTankLevelOrdering) {
		t.Errorf("Expected ErrTankLevelOrdering, got %v", err)
	}
}

func TestParse_RuleConditionShape(t *testing.T) {
	doc := baseDoc + `
rules:
  - id: bad
    if: {}
    then:
      - {link: P1, status: closed}
`
	_, err := Parse([]byte(doc))
	if err == nil {
		t.Fatal("Expected error for rule with empty condition")
	}
}

func TestDuration_UnmarshalForms(t *testing.T) {
	var d struct {
		A Duration `yaml:"a"`
		B Duration `yaml:"b"`
		C Duration `yaml:"c"`
	}
	if err := yaml.Unmarshal([]byte("a: 90m\nb: 3600\nc: 1.5"), &d); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if d.A.D() != 90*time.Minute {
		t.Errorf("Expected 90m, got %v", d.A.D())
	}
	if d.B.D() != time.Hour {
		t.Errorf("Expected bare seconds to parse as 1h, got %v", d.B.D())
	}
	if d.C.D() != 1500*time.Millisecond {
		t.Errorf("Expected fractional seconds to parse as 1.5s, got %v", d.C.D())
	}

	// Quoting turns a bare number into a duration string, which must carry
	// a unit.
	var bad struct {
		X Duration `yaml:"x"`
	}
	if err := yaml.Unmarshal([]byte(`x: "600"`), &bad); err == nil {
		t.Error("Quoted bare number should be rejected")
	}
}

func TestCurve_Interpolate(t *testing.T) {
	c := &Curve{ID: "c", Points: []CurvePoint{{X: 0, Y: 40}, {X: 0.1, Y: 30}, {X: 0.2, Y: 0}}}

	if !c.Sorted() {
		t.Fatal("Curve should report sorted")
	}
	if got := c.Interpolate(0.05); got != 35 {
		t.Errorf("Expected 35 at midpoint, got %v", got)
	}
	// Clamped outside the sampled range.
	if got := c.Interpolate(-1); got != 40 {
		t.Errorf("Expected clamp to first Y, got %v", got)
	}
	if got := c.Interpolate(5); got != 0 {
		t.Errorf("Expected clamp to last Y, got %v", got)
	}
}

func TestCurve_InverseInterpolate(t *testing.T) {
	// Level-to-volume curve for a flared tank.
	c := &Curve{ID: "v", Points: []CurvePoint{{X: 0, Y: 0}, {X: 2, Y: 100}, {X: 4, Y: 300}}}

	if got := c.InverseInterpolate(200); got != 3 {
		t.Errorf("Expected level 3 for volume 200, got %v", got)
	}
	if got := c.InverseInterpolate(1000); got != 4 {
		t.Errorf("Expected clamp to max level, got %v", got)
	}
}
