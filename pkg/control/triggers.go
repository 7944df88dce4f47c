package control

import (
	"time"

	"github.com/dd0wney/cluso-hydronet/pkg/model"
	"github.com/dd0wney/cluso-hydronet/pkg/network"
)

// NextTrigger returns the time from now until the earliest pending trigger:
// an elapsed- or clock-time control or rule premise, or a tank level about to
// cross a level trigger at its current fill rate. It returns max when no
// trigger is closer.
func (e *Engine) NextTrigger(st *network.State, now, max time.Duration) time.Duration {
	best := max

	consider := func(dt time.Duration) {
		if dt > 0 && dt < best {
			best = dt
		}
	}

	for i := range e.controls {
		c := &e.controls[i]
		switch c.src.Trigger {
		case model.TriggerElapsed:
			consider(c.src.Time.D() - now)
		case model.TriggerClock:
			consider(untilClock(e.clock(now), c.src.Time.D()%day))
		case model.TriggerLevelAbove, model.TriggerLevelBelow:
			consider(e.levelCrossing(st, c))
		}
	}

	for _, cr := range e.rules {
		e.scanTimes(&cr.src.If, now, consider)
	}
	return best
}

// untilClock returns the time until the wall clock next reads target.
func untilClock(clock, target time.Duration) time.Duration {
	dt := target - clock
	if dt <= 0 {
		dt += day
	}
	return dt
}

// levelCrossing estimates when the observed tank reaches the control's
// trigger level at its current net inflow, or 0 when it never will.
func (e *Engine) levelCrossing(st *network.State, c *compiledControl) time.Duration {
	t := c.tank
	tank := &e.net.Tanks[t]
	q := st.NetTankInflow(e.net, t)
	if q == 0 {
		return 0
	}

	target := c.src.Value
	if target < tank.MinLevel {
		target = tank.MinLevel
	}
	if target > tank.MaxLevel {
		target = tank.MaxLevel
	}
	dv := tank.Volume(target) - st.TankVolume[t]
	if dv == 0 || (dv > 0) != (q > 0) {
		return 0
	}
	return time.Duration(dv / q * float64(time.Second))
}

// scanTimes walks a condition tree for system-time premises and feeds their
// next crossing into consider.
func (e *Engine) scanTimes(c *model.Condition, now time.Duration, consider func(time.Duration)) {
	for i := range c.All {
		e.scanTimes(&c.All[i], now, consider)
	}
	for i := range c.Any {
		e.scanTimes(&c.Any[i], now, consider)
	}
	if p := c.When; p != nil && p.Object == model.ObjectSystem {
		switch p.Attr {
		case model.AttrClock:
			consider(untilClock(e.clock(now), p.Time.D()%day))
		case model.AttrTime:
			consider(p.Time.D() - now)
		}
	}
}
