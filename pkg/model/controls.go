package model

// ControlTrigger enumerates the trigger conditions of a simple control.
type ControlTrigger string

const (
	// TriggerLevelAbove fires when a tank level rises above the value.
	TriggerLevelAbove ControlTrigger = "level_above"
	// TriggerLevelBelow fires when a tank level drops below the value.
	TriggerLevelBelow ControlTrigger = "level_below"
	// TriggerPressureAbove fires when a node pressure rises above the value.
	TriggerPressureAbove ControlTrigger = "pressure_above"
	// TriggerPressureBelow fires when a node pressure drops below the value.
	TriggerPressureBelow ControlTrigger = "pressure_below"
	// TriggerElapsed fires once the elapsed simulation time reaches Time.
	TriggerElapsed ControlTrigger = "time"
	// TriggerClock fires at a time of day, every day.
	TriggerClock ControlTrigger = "clocktime"
)

// Control is a simple one-condition control: when the trigger holds, set a
// link's status and/or setting.
type Control struct {
	Link    string         `yaml:"link" validate:"required"`
	Trigger ControlTrigger `yaml:"trigger" validate:"required,oneof=level_above level_below pressure_above pressure_below time clocktime"`
	// Node names the tank or junction observed by level/pressure triggers.
	Node  string   `yaml:"node,omitempty"`
	Value float64  `yaml:"value,omitempty"`
	Time  Duration `yaml:"time,omitempty"`

	Status  *LinkStatus `yaml:"status,omitempty"`
	Setting *float64    `yaml:"setting,omitempty"`
}

// RuleObject identifies what a rule premise observes.
type RuleObject string

const (
	ObjectNode   RuleObject = "node"
	ObjectLink   RuleObject = "link"
	ObjectSystem RuleObject = "system"
)

// RuleAttribute identifies the observed quantity.
type RuleAttribute string

const (
	AttrHead     RuleAttribute = "head"
	AttrPressure RuleAttribute = "pressure"
	AttrLevel    RuleAttribute = "level"
	AttrDemand   RuleAttribute = "demand"
	AttrFlow     RuleAttribute = "flow"
	AttrStatus   RuleAttribute = "status"
	AttrSetting  RuleAttribute = "setting"
	// AttrTime is elapsed simulation time; AttrClock is time of day.
	AttrTime  RuleAttribute = "time"
	AttrClock RuleAttribute = "clocktime"
)

// Relation is a comparison operator in a rule premise.
type Relation string

const (
	RelBelow   Relation = "<"
	RelAtMost  Relation = "<="
	RelAbove   Relation = ">"
	RelAtLeast Relation = ">="
	RelEqual   Relation = "="
	RelNot     Relation = "<>"
)

// Premise is a single comparison over node/link/system state.
type Premise struct {
	Object RuleObject    `yaml:"object" validate:"required,oneof=node link system"`
	ID     string        `yaml:"id,omitempty"`
	Attr   RuleAttribute `yaml:"attr" validate:"required"`
	Rel    Relation      `yaml:"rel" validate:"required,oneof=< <= > >= = <>"`
	// Value compares numeric attributes; Status compares link status;
	// Time compares the time attributes.
	Value  float64    `yaml:"value,omitempty"`
	Status LinkStatus `yaml:"status,omitempty"`
	Time   Duration   `yaml:"time,omitempty"`
}

// Condition is a premise tree. Exactly one of All, Any, or When is set:
// All is a conjunction, Any a disjunction, When a leaf premise.
type Condition struct {
	All  []Condition `yaml:"all,omitempty"`
	Any  []Condition `yaml:"any,omitempty"`
	When *Premise    `yaml:"when,omitempty"`
}

// Action sets a link's status and/or setting when a rule fires.
type Action struct {
	Link    string      `yaml:"link" validate:"required"`
	Status  *LinkStatus `yaml:"status,omitempty"`
	Setting *float64    `yaml:"setting,omitempty"`
}

// Rule is an IF/THEN/ELSE rule evaluated every step. When several rules act
// on the same link, the highest priority wins; among equal priorities the
// earliest declaration wins.
type Rule struct {
	ID       string    `yaml:"id" validate:"required"`
	Priority float64   `yaml:"priority,omitempty"`
	If       Condition `yaml:"if" validate:"required"`
	Then     []Action  `yaml:"then" validate:"required,min=1"`
	Else     []Action  `yaml:"else,omitempty"`
}
