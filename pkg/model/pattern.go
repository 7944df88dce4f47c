package model

import "sort"

// Pattern is a cyclic time series of multipliers applied to a base demand,
// a reservoir head, or a source strength.
type Pattern struct {
	ID string `yaml:"id" validate:"required"`
	// Multipliers repeat with period len(Multipliers) × pattern timestep.
	Multipliers []float64 `yaml:"multipliers" validate:"required,min=1,dive,gte=0"`
}

// CurvePoint is one sample of a piecewise-linear curve.
type CurvePoint struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Curve is a piecewise-linear relation: pump head vs flow, tank volume vs
// level, or valve headloss vs flow.
type Curve struct {
	ID     string       `yaml:"id" validate:"required"`
	Points []CurvePoint `yaml:"points" validate:"required,min=1"`
}

// Sorted reports whether the curve's X values are strictly increasing.
func (c *Curve) Sorted() bool {
	return sort.SliceIsSorted(c.Points, func(i, j int) bool {
		return c.Points[i].X < c.Points[j].X
	}) && !c.hasDuplicateX()
}

func (c *Curve) hasDuplicateX() bool {
	for i := 1; i < len(c.Points); i++ {
		if c.Points[i].X == c.Points[i-1].X {
			return true
		}
	}
	return false
}

// Interpolate evaluates the curve at x with linear interpolation, clamping to
// the first or last sample outside the covered range.
func (c *Curve) Interpolate(x float64) float64 {
	pts := c.Points
	n := len(pts)
	if n == 0 {
		return 0
	}
	ix := sort.Search(n, func(i int) bool { return pts[i].X >= x })
	switch {
	case ix == 0:
		return pts[0].Y
	case ix >= n:
		return pts[n-1].Y
	default:
		dx0 := x - pts[ix-1].X
		dx1 := pts[ix].X - x
		frac := dx0 / (dx0 + dx1)
		return (1-frac)*pts[ix-1].Y + frac*pts[ix].Y
	}
}

// InverseInterpolate evaluates x for a given y, assuming Y is monotonic in X.
// Used to recover a tank level from a stored volume.
func (c *Curve) InverseInterpolate(y float64) float64 {
	pts := c.Points
	n := len(pts)
	if n == 0 {
		return 0
	}
	ascending := pts[n-1].Y >= pts[0].Y
	ix := sort.Search(n, func(i int) bool {
		if ascending {
			return pts[i].Y >= y
		}
		return pts[i].Y <= y
	})
	switch {
	case ix == 0:
		return pts[0].X
	case ix >= n:
		return pts[n-1].X
	default:
		dy := pts[ix].Y - pts[ix-1].Y
		if dy == 0 {
			return pts[ix].X
		}
		frac := (y - pts[ix-1].Y) / dy
		return pts[ix-1].X + frac*(pts[ix].X-pts[ix-1].X)
	}
}
