package model

import (
	"github.com/go-playground/validator/v10"
)

// validate is a singleton validator instance
var validate = validator.New()

// Validate checks the network for structural consistency. Struct-tag checks
// run first, then the reference and topology checks. The first failure is
// returned as a *ModelError.
func (n *Network) Validate() error {
	if err := n.validateStructs(); err != nil {
		return err
	}
	if err := n.validateIdentifiers(); err != nil {
		return err
	}
	if err := n.validateReferences(); err != nil {
		return err
	}
	if err := n.validateCurves(); err != nil {
		return err
	}
	if err := n.validateControls(); err != nil {
		return err
	}
	if err := n.validateRules(); err != nil {
		return err
	}
	return n.validateTopology()
}

func (n *Network) validateStructs() error {
	check := func(entity, id string, v any) error {
		if err := validate.Struct(v); err != nil {
			if ferr, ok := err.(validator.ValidationErrors); ok && len(ferr) > 0 {
				return &ModelError{Entity: entity, ID: id, Field: ferr[0].Field(), Cause: ErrInvalidField}
			}
			return modelErr(entity, id, err)
		}
		return nil
	}

	for _, j := range n.Junctions {
		if err := check("junction", j.ID, j); err != nil {
			return err
		}
	}
	for _, r := range n.Reservoirs {
		if err := check("reservoir", r.ID, r); err != nil {
			return err
		}
	}
	for _, t := range n.Tanks {
		if err := check("tank", t.ID, t); err != nil {
			return err
		}
		if t.InitLevel < t.MinLevel || t.InitLevel > t.MaxLevel {
			return fieldErr("tank", t.ID, "init_level", ErrTankLevelOrdering)
		}
		if t.Diameter <= 0 && t.VolumeCurve == "" {
			return fieldErr("tank", t.ID, "diameter", ErrNonPositive)
		}
	}
	for _, p := range n.Pipes {
		if err := check("pipe", p.ID, p); err != nil {
			return err
		}
	}
	for _, p := range n.Pumps {
		if err := check("pump", p.ID, p); err != nil {
			return err
		}
		if p.Curve == "" && p.Power <= 0 {
			return fieldErr("pump", p.ID, "curve", ErrInvalidField)
		}
	}
	for _, v := range n.Valves {
		if err := check("valve", v.ID, v); err != nil {
			return err
		}
		if v.Type == ValveGPV && v.Curve == "" {
			return fieldErr("valve", v.ID, "curve", ErrUnknownCurve)
		}
	}
	for _, p := range n.Patterns {
		if err := check("pattern", p.ID, p); err != nil {
			return err
		}
	}
	for _, c := range n.Curves {
		if err := check("curve", c.ID, c); err != nil {
			return err
		}
	}
	for _, s := range n.Sources {
		if err := check("source", s.Node, s); err != nil {
			return err
		}
	}
	if err := validate.Struct(&n.Options); err != nil {
		return modelErr("options", "", err)
	}
	if n.Options.Quality.Mode == QualityTrace && n.Options.Quality.TraceNode == "" {
		return fieldErr("options", "", "trace_node", ErrMissingTraceNode)
	}
	return nil
}

func (n *Network) validateIdentifiers() error {
	nodes := make(map[string]string, n.NodeCount())
	addNode := func(entity, id string) error {
		if _, ok := nodes[id]; ok {
			return modelErr(entity, id, ErrDuplicateID)
		}
		nodes[id] = entity
		return nil
	}
	for _, j := range n.Junctions {
		if err := addNode("junction", j.ID); err != nil {
			return err
		}
	}
	for _, r := range n.Reservoirs {
		if err := addNode("reservoir", r.ID); err != nil {
			return err
		}
	}
	for _, t := range n.Tanks {
		if err := addNode("tank", t.ID); err != nil {
			return err
		}
	}

	// Links share a namespace of their own.
	links := make(map[string]string, n.LinkCount())
	addLink := func(entity, id string) error {
		if _, ok := links[id]; ok {
			return modelErr(entity, id, ErrDuplicateID)
		}
		links[id] = entity
		return nil
	}
	for _, p := range n.Pipes {
		if err := addLink("pipe", p.ID); err != nil {
			return err
		}
	}
	for _, p := range n.Pumps {
		if err := addLink("pump", p.ID); err != nil {
			return err
		}
	}
	for _, v := range n.Valves {
		if err := addLink("valve", v.ID); err != nil {
			return err
		}
	}

	for _, set := range []struct {
		entity string
		ids    []string
	}{
		{"pattern", patternIDs(n.Patterns)},
		{"curve", curveIDs(n.Curves)},
	} {
		seen := make(map[string]bool, len(set.ids))
		for _, id := range set.ids {
			if seen[id] {
				return modelErr(set.entity, id, ErrDuplicateID)
			}
			seen[id] = true
		}
	}
	return nil
}

func patternIDs(ps []*Pattern) []string {
	ids := make([]string, len(ps))
	for i, p := range ps {
		ids[i] = p.ID
	}
	return ids
}

func curveIDs(cs []*Curve) []string {
	ids := make([]string, len(cs))
	for i, c := range cs {
		ids[i] = c.ID
	}
	return ids
}

func (n *Network) validateReferences() error {
	nodeSet := n.nodeSet()

	patterns := make(map[string]bool, len(n.Patterns))
	for _, p := range n.Patterns {
		patterns[p.ID] = true
	}
	curves := make(map[string]bool, len(n.Curves))
	for _, c := range n.Curves {
		curves[c.ID] = true
	}

	checkPattern := func(entity, id, ref string) error {
		if ref != "" && !patterns[ref] {
			return fieldErr(entity, id, "pattern", ErrUnknownPattern)
		}
		return nil
	}
	checkCurve := func(entity, id, ref string) error {
		if ref != "" && !curves[ref] {
			return fieldErr(entity, id, "curve", ErrUnknownCurve)
		}
		return nil
	}
	checkEndpoints := func(entity, id, n1, n2 string) error {
		if !nodeSet[n1] {
			return fieldErr(entity, id, "node1", ErrUnknownNode)
		}
		if !nodeSet[n2] {
			return fieldErr(entity, id, "node2", ErrUnknownNode)
		}
		if n1 == n2 {
			return modelErr(entity, id, ErrSameEndpoints)
		}
		return nil
	}

	if n.Options.DefaultPattern != "" && !patterns[n.Options.DefaultPattern] {
		return fieldErr("options", "", "default_pattern", ErrUnknownPattern)
	}
	if n.Options.Quality.Mode == QualityTrace && !nodeSet[n.Options.Quality.TraceNode] {
		return fieldErr("options", "", "trace_node", ErrUnknownNode)
	}

	for _, j := range n.Junctions {
		if err := checkPattern("junction", j.ID, j.Pattern); err != nil {
			return err
		}
	}
	for _, r := range n.Reservoirs {
		if err := checkPattern("reservoir", r.ID, r.Pattern); err != nil {
			return err
		}
	}
	for _, t := range n.Tanks {
		if err := checkCurve("tank", t.ID, t.VolumeCurve); err != nil {
			return err
		}
	}
	for _, p := range n.Pipes {
		if err := checkEndpoints("pipe", p.ID, p.Node1, p.Node2); err != nil {
			return err
		}
	}
	for _, p := range n.Pumps {
		if err := checkEndpoints("pump", p.ID, p.Node1, p.Node2); err != nil {
			return err
		}
		if err := checkCurve("pump", p.ID, p.Curve); err != nil {
			return err
		}
		if err := checkPattern("pump", p.ID, p.Pattern); err != nil {
			return err
		}
	}
	for _, v := range n.Valves {
		if err := checkEndpoints("valve", v.ID, v.Node1, v.Node2); err != nil {
			return err
		}
		if err := checkCurve("valve", v.ID, v.Curve); err != nil {
			return err
		}
	}
	for _, s := range n.Sources {
		if !nodeSet[s.Node] {
			return fieldErr("source", s.Node, "node", ErrUnknownNode)
		}
		if err := checkPattern("source", s.Node, s.Pattern); err != nil {
			return err
		}
	}
	return nil
}

func (n *Network) validateCurves() error {
	for _, c := range n.Curves {
		if !c.Sorted() {
			return modelErr("curve", c.ID, ErrUnsortedCurve)
		}
	}
	return nil
}

func (n *Network) validateControls() error {
	linkSet := n.linkSet()
	nodeSet := n.nodeSet()
	tankSet := make(map[string]bool, len(n.Tanks))
	for _, t := range n.Tanks {
		tankSet[t.ID] = true
	}

	for _, c := range n.Controls {
		if !linkSet[c.Link] {
			return fieldErr("control", c.Link, "link", ErrUnknownLink)
		}
		switch c.Trigger {
		case TriggerLevelAbove, TriggerLevelBelow:
			if !tankSet[c.Node] {
				return fieldErr("control", c.Link, "node", ErrUnknownNode)
			}
		case TriggerPressureAbove, TriggerPressureBelow:
			if !nodeSet[c.Node] {
				return fieldErr("control", c.Link, "node", ErrUnknownNode)
			}
		}
		if c.Status == nil && c.Setting == nil {
			return fieldErr("control", c.Link, "status", ErrInvalidField)
		}
	}
	return nil
}

func (n *Network) validateRules() error {
	linkSet := n.linkSet()
	nodeSet := n.nodeSet()

	var checkCond func(ruleID string, c *Condition) error
	checkCond = func(ruleID string, c *Condition) error {
		set := 0
		if len(c.All) > 0 {
			set++
		}
		if len(c.Any) > 0 {
			set++
		}
		if c.When != nil {
			set++
		}
		if set != 1 {
			return fieldErr("rule", ruleID, "if", ErrInvalidField)
		}
		for i := range c.All {
			if err := checkCond(ruleID, &c.All[i]); err != nil {
				return err
			}
		}
		for i := range c.Any {
			if err := checkCond(ruleID, &c.Any[i]); err != nil {
				return err
			}
		}
		if p := c.When; p != nil {
			switch p.Object {
			case ObjectNode:
				if !nodeSet[p.ID] {
					return fieldErr("rule", ruleID, "when", ErrUnknownNode)
				}
			case ObjectLink:
				if !linkSet[p.ID] {
					return fieldErr("rule", ruleID, "when", ErrUnknownLink)
				}
			}
		}
		return nil
	}

	for _, r := range n.Rules {
		if err := checkCond(r.ID, &r.If); err != nil {
			return err
		}
		for _, a := range append(append([]Action{}, r.Then...), r.Else...) {
			if !linkSet[a.Link] {
				return fieldErr("rule", r.ID, "then", ErrUnknownLink)
			}
			if a.Status == nil && a.Setting == nil {
				return fieldErr("rule", r.ID, "then", ErrInvalidField)
			}
		}
	}
	return nil
}

// validateTopology checks that every connected component containing a
// junction also contains a head-fixing node (reservoir or tank). Without one
// the hydraulic system for that component is singular.
func (n *Network) validateTopology() error {
	idx := make(map[string]int, n.NodeCount())
	fixed := make([]bool, 0, n.NodeCount())
	junction := make([]bool, 0, n.NodeCount())
	ids := make([]string, 0, n.NodeCount())

	add := func(id string, isFixed, isJunction bool) {
		idx[id] = len(ids)
		ids = append(ids, id)
		fixed = append(fixed, isFixed)
		junction = append(junction, isJunction)
	}
	for _, j := range n.Junctions {
		add(j.ID, false, true)
	}
	for _, r := range n.Reservoirs {
		add(r.ID, true, false)
	}
	for _, t := range n.Tanks {
		add(t.ID, true, false)
	}

	// Union-find over link endpoints.
	parent := make([]int, len(ids))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}
	for _, p := range n.Pipes {
		union(idx[p.Node1], idx[p.Node2])
	}
	for _, p := range n.Pumps {
		union(idx[p.Node1], idx[p.Node2])
	}
	for _, v := range n.Valves {
		union(idx[v.Node1], idx[v.Node2])
	}

	hasFixed := make(map[int]bool)
	for i, f := range fixed {
		if f {
			hasFixed[find(i)] = true
		}
	}
	for i, j := range junction {
		if j && !hasFixed[find(i)] {
			return modelErr("junction", ids[i], ErrNoFixedHead)
		}
	}
	return nil
}

func (n *Network) nodeSet() map[string]bool {
	set := make(map[string]bool, n.NodeCount())
	for _, j := range n.Junctions {
		set[j.ID] = true
	}
	for _, r := range n.Reservoirs {
		set[r.ID] = true
	}
	for _, t := range n.Tanks {
		set[t.ID] = true
	}
	return set
}

func (n *Network) linkSet() map[string]bool {
	set := make(map[string]bool, n.LinkCount())
	for _, p := range n.Pipes {
		set[p.ID] = true
	}
	for _, p := range n.Pumps {
		set[p.ID] = true
	}
	for _, v := range n.Valves {
		set[v.ID] = true
	}
	return set
}
