package control

import (
	"testing"
	"time"

	"github.com/dd0wney/cluso-hydronet/pkg/logging"
	"github.com/dd0wney/cluso-hydronet/pkg/model"
	"github.com/dd0wney/cluso-hydronet/pkg/network"
)

const controlDoc = `
reservoirs:
  - {id: R1, head: 50}
junctions:
  - {id: J1, elevation: 0, base_demand: 0.02}
tanks:
  - {id: T1, elevation: 30, init_level: 3, min_level: 1, max_level: 6, diameter: 10}
pipes:
  - {id: P1, node1: R1, node2: J1, length: 200, diameter: 0.3, roughness: 120}
  - {id: P2, node1: J1, node2: T1, length: 200, diameter: 0.3, roughness: 120}
pumps:
  - {id: PU1, node1: R1, node2: J1, power: 5}
`

func buildEngine(t *testing.T, doc string) (*Engine, *network.Net, *network.State) {
	t.Helper()
	m, err := model.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	net, err := network.Compile(m)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return New(net, m, logging.NopLogger{}), net, network.NewState(net)
}

func TestApply_ElapsedTriggerFiresOnCrossing(t *testing.T) {
	e, net, st := buildEngine(t, controlDoc+`
controls:
  - {link: P1, trigger: time, time: 2h, status: closed}
`)
	li := net.LinkIndex["P1"]

	// Before the trigger time nothing happens.
	if n := e.Apply(st, 0, time.Hour); n != 0 {
		t.Errorf("Control fired early: %d changes", n)
	}
	if st.Status[li] != network.Open {
		t.Fatalf("Pipe should still be open")
	}

	// The step crossing 2h fires exactly once.
	if n := e.Apply(st, time.Hour, 3*time.Hour); n != 1 {
		t.Errorf("Expected 1 change on crossing, got %d", n)
	}
	if st.Status[li] != network.Closed {
		t.Errorf("Pipe should be closed after the trigger")
	}
}

func TestApply_ClockTriggerWrapsMidnight(t *testing.T) {
	e, net, st := buildEngine(t, controlDoc+`
controls:
  - {link: P1, trigger: clocktime, time: 1h, status: closed}
times:
  start_clock: 23h
`)
	li := net.LinkIndex["P1"]

	// 23:00 to 23:30 does not pass 01:00.
	if n := e.Apply(st, 0, 30*time.Minute); n != 0 {
		t.Errorf("Clock control fired early: %d changes", n)
	}
	// 23:30 to 02:00 wraps midnight and passes 01:00.
	if n := e.Apply(st, 30*time.Minute, 3*time.Hour); n != 1 {
		t.Errorf("Expected clock control to fire across midnight, got %d", n)
	}
	if st.Status[li] != network.Closed {
		t.Errorf("Pipe should be closed")
	}
}

func TestApply_LevelTriggerObservesTank(t *testing.T) {
	e, net, st := buildEngine(t, controlDoc+`
controls:
  - {link: PU1, trigger: level_above, node: T1, value: 5, status: closed}
  - {link: PU1, trigger: level_below, node: T1, value: 2, status: open}
`)
	li := net.LinkIndex["PU1"]
	tank := &net.Tanks[0]

	// At init level 3, neither trigger holds.
	if n := e.Apply(st, 0, 0); n != 0 {
		t.Errorf("No trigger should hold at level 3, got %d changes", n)
	}

	st.TankVolume[0] = tank.Volume(5.5)
	if e.Apply(st, 0, 0) != 1 || st.Status[li] != network.Closed {
		t.Errorf("Pump should close above level 5")
	}

	st.TankVolume[0] = tank.Volume(1.5)
	if e.Apply(st, 0, 0) != 1 || st.Status[li] != network.Open {
		t.Errorf("Pump should reopen below level 2")
	}
	if st.Setting[li] != 1 {
		t.Errorf("Reopened pump should run at speed 1, got %v", st.Setting[li])
	}
}

func TestApply_RulesOverrideControls(t *testing.T) {
	e, net, st := buildEngine(t, controlDoc+`
controls:
  - {link: P1, trigger: time, time: 1h, status: closed}
rules:
  - id: keep-open
    if: {when: {object: system, attr: time, rel: ">=", time: 0}}
    then:
      - {link: P1, status: open}
`)
	li := net.LinkIndex["P1"]

	e.Apply(st, 30*time.Minute, 90*time.Minute)
	if st.Status[li] != network.Open {
		t.Errorf("Rule should override the simple control")
	}
}

func TestApply_PriorityAndDeclarationTieBreak(t *testing.T) {
	e, net, st := buildEngine(t, controlDoc+`
rules:
  - id: low
    priority: 1
    if: {when: {object: system, attr: time, rel: ">=", time: 0}}
    then:
      - {link: PU1, setting: 0.25}
  - id: high
    priority: 2
    if: {when: {object: system, attr: time, rel: ">=", time: 0}}
    then:
      - {link: PU1, setting: 0.75}
  - id: high-late
    priority: 2
    if: {when: {object: system, attr: time, rel: ">=", time: 0}}
    then:
      - {link: PU1, setting: 0.5}
`)
	li := net.LinkIndex["PU1"]

	e.Apply(st, 0, 0)
	// Highest priority wins; among the two priority-2 rules the earlier
	// declaration wins.
	if st.Setting[li] != 0.75 {
		t.Errorf("Expected setting 0.75 from the earliest priority-2 rule, got %v", st.Setting[li])
	}
}

func TestApply_PumpSpeedZeroCloses(t *testing.T) {
	e, net, st := buildEngine(t, controlDoc+`
controls:
  - {link: PU1, trigger: time, time: 1h, setting: 0}
`)
	li := net.LinkIndex["PU1"]

	e.Apply(st, 0, time.Hour)
	if st.Status[li] != network.Closed {
		t.Errorf("Pump at speed 0 should be closed, got %v", st.Status[li])
	}
}

func TestApply_RuleElseBranch(t *testing.T) {
	e, net, st := buildEngine(t, controlDoc+`
rules:
  - id: night-pump
    if: {when: {object: node, id: T1, attr: level, rel: "<", value: 2}}
    then:
      - {link: PU1, status: open}
    else:
      - {link: PU1, status: closed}
`)
	li := net.LinkIndex["PU1"]

	// Level 3: the condition is false, so the else branch closes the pump.
	e.Apply(st, 0, 0)
	if st.Status[li] != network.Closed {
		t.Errorf("Else branch should close the pump, got %v", st.Status[li])
	}
}

func TestNextTrigger_ElapsedControl(t *testing.T) {
	e, _, st := buildEngine(t, controlDoc+`
controls:
  - {link: P1, trigger: time, time: 5h, status: closed}
`)

	max := 24 * time.Hour
	if got := e.NextTrigger(st, 2*time.Hour, max); got != 3*time.Hour {
		t.Errorf("Expected 3h to the elapsed trigger, got %v", got)
	}
	// A trigger already in the past never shortens the step.
	if got := e.NextTrigger(st, 6*time.Hour, max); got != max {
		t.Errorf("Past trigger should be ignored, got %v", got)
	}
}

func TestNextTrigger_TankLevelCrossing(t *testing.T) {
	e, net, st := buildEngine(t, controlDoc+`
controls:
  - {link: PU1, trigger: level_above, node: T1, value: 5, status: closed}
`)
	tank := &net.Tanks[0]

	// Fill at a known rate: the crossing time is volume gap over inflow.
	st.Flow[net.LinkIndex["P2"]] = 0.05 // J1 -> T1
	gap := tank.Volume(5) - st.TankVolume[0]
	want := time.Duration(gap / 0.05 * float64(time.Second))

	got := e.NextTrigger(st, 0, 24*time.Hour)
	if diff := got - want; diff < -time.Second || diff > time.Second {
		t.Errorf("Expected crossing in ~%v, got %v", want, got)
	}
}
