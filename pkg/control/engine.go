// Package control evaluates simple controls and IF/THEN/ELSE rules against
// the simulation state and mutates link statuses and settings before each
// hydraulic solve.
//
// One Apply pass reads a frozen snapshot of the state: every condition is
// evaluated before any action lands, so no control observes another's result
// within the same pass. Conflicts resolve deterministically: rules override
// simple controls, higher rule priority wins, and among equal priorities the
// earlier declaration wins.
package control

import (
	"time"

	"github.com/dd0wney/cluso-hydronet/pkg/logging"
	"github.com/dd0wney/cluso-hydronet/pkg/model"
	"github.com/dd0wney/cluso-hydronet/pkg/network"
)

const day = 24 * time.Hour

// Engine holds the compiled controls and rules of one network.
type Engine struct {
	net *network.Net
	log logging.Logger

	controls []compiledControl
	rules    []compiledRule

	clockStart time.Duration
}

type compiledControl struct {
	src  *model.Control
	link int
	node int // observed node index, or -1
	tank int // tank ordinal for level triggers, or -1
}

type compiledRule struct {
	src   *model.Rule
	order int
}

// action is a pending status/setting change keyed by link.
type action struct {
	status  *network.Status
	setting *float64
	// manual marks an explicit open/close on a control valve, which
	// suspends its setting until a numeric setting returns.
	manual bool
}

// New compiles the model's controls and rules against the network indexes.
func New(net *network.Net, m *model.Network, log logging.Logger) *Engine {
	if log == nil {
		log = logging.NopLogger{}
	}
	e := &Engine{
		net:        net,
		log:        log,
		clockStart: m.Times.StartClock.D(),
	}
	for _, c := range m.Controls {
		cc := compiledControl{src: c, link: net.LinkIndex[c.Link], node: -1, tank: -1}
		switch c.Trigger {
		case model.TriggerLevelAbove, model.TriggerLevelBelow:
			cc.node = net.NodeIndex[c.Node]
			cc.tank = net.Nodes[cc.node].Tank
		case model.TriggerPressureAbove, model.TriggerPressureBelow:
			cc.node = net.NodeIndex[c.Node]
		}
		e.controls = append(e.controls, cc)
	}
	for i, r := range m.Rules {
		e.rules = append(e.rules, compiledRule{src: r, order: i})
	}
	return e
}

// Empty reports whether there is nothing to evaluate.
func (e *Engine) Empty() bool {
	return len(e.controls) == 0 && len(e.rules) == 0
}

// clock returns the time of day for an elapsed simulation time.
func (e *Engine) clock(elapsed time.Duration) time.Duration {
	return (e.clockStart + elapsed) % day
}

// Apply evaluates every control and rule against the state at the instant
// now, with prev the instant of the previous pass (time triggers fire on
// crossing). All resulting changes are applied atomically; the return value
// is the number of links whose status or setting actually changed.
func (e *Engine) Apply(st *network.State, prev, now time.Duration) int {
	pending := make(map[int]action)

	// Simple controls in declaration order; a later control overrides an
	// earlier one aimed at the same link.
	for i := range e.controls {
		c := &e.controls[i]
		if !e.triggered(c, st, prev, now) {
			continue
		}
		pending[c.link] = mergeAction(pending[c.link], c.src.Status, c.src.Setting, e.net.Links[c.link].Kind)
	}

	// Rules override controls. Highest priority first, declaration order
	// within a priority; the first writer to a link wins, so earlier
	// declarations win among equals.
	ruleActs := make(map[int]action)
	for _, cr := range e.sortedRules() {
		acts := cr.src.Then
		if !e.eval(&cr.src.If, st, now) {
			acts = cr.src.Else
		}
		for i := range acts {
			a := &acts[i]
			li := e.net.LinkIndex[a.Link]
			if _, taken := ruleActs[li]; taken {
				continue
			}
			ruleActs[li] = mergeAction(action{}, a.Status, a.Setting, e.net.Links[li].Kind)
		}
	}
	for li, a := range ruleActs {
		pending[li] = a
	}

	changed := 0
	for li, a := range pending {
		if e.applyAction(st, li, a) {
			changed++
			e.log.Debug("control action applied",
				logging.Component("control"),
				logging.Link(e.net.Links[li].ID),
				logging.SimTime(now))
		}
	}
	return changed
}

// mergeAction folds a model status/setting pair into a pending action.
func mergeAction(base action, status *model.LinkStatus, setting *float64, kind network.LinkKind) action {
	if status != nil {
		var s network.Status
		switch *status {
		case model.StatusClosed:
			s = network.Closed
		default:
			s = network.Open
		}
		base.status = &s
		base.manual = kind == network.LinkValve
	}
	if setting != nil {
		v := *setting
		base.setting = &v
		base.manual = false
	}
	return base
}

// applyAction commits one pending action and reports whether state changed.
func (e *Engine) applyAction(st *network.State, li int, a action) bool {
	l := &e.net.Links[li]
	changed := false

	if a.setting != nil && *a.setting != st.Setting[li] {
		st.Setting[li] = *a.setting
		changed = true
		switch l.Kind {
		case network.LinkPump:
			if *a.setting <= 0 {
				st.Status[li] = network.Closed
			} else if st.Status[li] == network.Closed {
				st.Status[li] = network.Open
			}
		case network.LinkValve:
			switch l.Valve {
			case model.ValvePRV, model.ValvePSV, model.ValveFCV, model.ValveTCV:
				st.Status[li] = network.Active
			}
		}
	}

	if a.status != nil && *a.status != st.Status[li] {
		st.Status[li] = *a.status
		changed = true
		if l.Kind == network.LinkPump && *a.status == network.Open && st.Setting[li] <= 0 {
			st.Setting[li] = 1
		}
		if a.manual {
			st.Setting[li] = -1
		}
	}
	return changed
}

// triggered evaluates a simple control's trigger.
func (e *Engine) triggered(c *compiledControl, st *network.State, prev, now time.Duration) bool {
	switch c.src.Trigger {
	case model.TriggerLevelAbove:
		return st.TankLevel(e.net, c.tank) > c.src.Value
	case model.TriggerLevelBelow:
		return st.TankLevel(e.net, c.tank) < c.src.Value
	case model.TriggerPressureAbove:
		return st.Pressure(e.net, c.node) > c.src.Value
	case model.TriggerPressureBelow:
		return st.Pressure(e.net, c.node) < c.src.Value
	case model.TriggerElapsed:
		t := c.src.Time.D()
		return prev < t && t <= now
	case model.TriggerClock:
		return crossesClock(e.clock(prev), e.clock(now), c.src.Time.D()%day, prev != now)
	default:
		return false
	}
}

// crossesClock reports whether the wall clock passed the target time of day
// while moving from c0 to c1 (both within one day of each other).
func crossesClock(c0, c1, target time.Duration, moved bool) bool {
	if !moved {
		return c1 == target
	}
	if c0 < c1 {
		return c0 < target && target <= c1
	}
	// Wrapped past midnight.
	return target > c0 || target <= c1
}

// sortedRules returns rules ordered by descending priority, then declaration
// order. The slice is rebuilt per pass; rule counts are small.
func (e *Engine) sortedRules() []compiledRule {
	out := make([]compiledRule, len(e.rules))
	copy(out, e.rules)
	// Insertion sort keeps the declaration order stable.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].src.Priority > out[j-1].src.Priority; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// eval walks a condition tree.
func (e *Engine) eval(c *model.Condition, st *network.State, now time.Duration) bool {
	switch {
	case len(c.All) > 0:
		for i := range c.All {
			if !e.eval(&c.All[i], st, now) {
				return false
			}
		}
		return true
	case len(c.Any) > 0:
		for i := range c.Any {
			if e.eval(&c.Any[i], st, now) {
				return true
			}
		}
		return false
	case c.When != nil:
		return e.evalPremise(c.When, st, now)
	default:
		return false
	}
}

func (e *Engine) evalPremise(p *model.Premise, st *network.State, now time.Duration) bool {
	switch p.Object {
	case model.ObjectSystem:
		var v time.Duration
		switch p.Attr {
		case model.AttrClock:
			v = e.clock(now)
		default:
			v = now
		}
		return compareFloat(float64(v), float64(p.Time.D()), p.Rel)
	case model.ObjectNode:
		i := e.net.NodeIndex[p.ID]
		var v float64
		switch p.Attr {
		case model.AttrHead:
			v = st.Head[i]
		case model.AttrPressure:
			v = st.Pressure(e.net, i)
		case model.AttrLevel:
			if t := e.net.Nodes[i].Tank; t >= 0 {
				v = st.TankLevel(e.net, t)
			}
		case model.AttrDemand:
			v = st.Demand[i]
		}
		return compareFloat(v, p.Value, p.Rel)
	default: // link
		li := e.net.LinkIndex[p.ID]
		switch p.Attr {
		case model.AttrStatus:
			open := st.Status[li] != network.Closed
			want := p.Status != model.StatusClosed
			if p.Rel == model.RelNot {
				return open != want
			}
			return open == want
		case model.AttrSetting:
			return compareFloat(st.Setting[li], p.Value, p.Rel)
		default:
			return compareFloat(st.Flow[li], p.Value, p.Rel)
		}
	}
}

func compareFloat(v, target float64, rel model.Relation) bool {
	switch rel {
	case model.RelBelow:
		return v < target
	case model.RelAtMost:
		return v <= target
	case model.RelAbove:
		return v > target
	case model.RelAtLeast:
		return v >= target
	case model.RelEqual:
		return v == target
	case model.RelNot:
		return v != target
	default:
		return false
	}
}
