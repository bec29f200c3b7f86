package shape

import (
	"math"

	"gonum.org/v1/gonum/integrate/quad"
)

// #region integrator
// Integrator is a 2-D Gauss-Legendre product rule that doubles its order
// until two successive estimates agree within the tolerance.
type Integrator struct {
	Abs       float64
	Rel       float64
	MinPoints int
	MaxPoints int
}

// DefaultIntegrator returns the standard tolerance of 1e-7.
func DefaultIntegrator() Integrator {
	return Integrator{Abs: 1e-7, Rel: 1e-7, MinPoints: 64, MaxPoints: 1024}
}

// WithTolerance returns a copy using tol for both absolute and relative
// tolerance.
func (in Integrator) WithTolerance(tol float64) Integrator {
	in.Abs, in.Rel = tol, tol
	return in
}

// Integrate integrates f over the rectangle xr × yr.
func (in Integrator) Integrate(f func(x, y float64) float64, xr, yr [2]float64) float64 {
	n := in.MinPoints
	if n < 2 {
		n = 2
	}
	maxN := in.MaxPoints
	if maxN < n {
		maxN = n
	}
	prev := FixedRule(f, xr, yr, n)
	for n*2 <= maxN {
		n *= 2
		cur := FixedRule(f, xr, yr, n)
		if math.Abs(cur-prev) <= math.Max(in.Abs, in.Rel*math.Abs(cur)) {
			return cur
		}
		prev = cur
	}
	return prev
}

// FixedRule applies an n×n Gauss-Legendre product rule.
func FixedRule(f func(x, y float64) float64, xr, yr [2]float64, n int) float64 {
	xs, wx := make([]float64, n), make([]float64, n)
	ys, wy := make([]float64, n), make([]float64, n)
	quad.Legendre{}.FixedLocations(xs, wx, xr[0], xr[1])
	quad.Legendre{}.FixedLocations(ys, wy, yr[0], yr[1])
	var sum float64
	for i, x := range xs {
		var row float64
		for j, y := range ys {
			row += wy[j] * f(x, y)
		}
		sum += wx[i] * row
	}
	return sum
}

// #endregion integrator
