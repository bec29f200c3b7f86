package minimizer

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"
)

// #region bound
// Bound is a closed parameter interval. Bounded parameters are minimized in
// an internal coordinate u with x = Lo + (Hi-Lo)(sin u + 1)/2, which keeps x
// inside the interval for any u.
type Bound struct {
	Lo, Hi float64
}

// Unbounded is the bound of a free parameter.
var Unbounded = Bound{Lo: math.Inf(-1), Hi: math.Inf(1)}

// Limited reports whether the transform applies.
func (b Bound) Limited() bool {
	return b.Hi > b.Lo && !math.IsInf(b.Lo, 0) && !math.IsInf(b.Hi, 0)
}

// ToInternal maps an external value to u, clamping it into the interval.
func (b Bound) ToInternal(x float64) float64 {
	if !b.Limited() {
		return x
	}
	s := 2*(x-b.Lo)/(b.Hi-b.Lo) - 1
	return math.Asin(math.Max(-1, math.Min(1, s)))
}

// ToExternal maps u back into the interval.
func (b Bound) ToExternal(u float64) float64 {
	if !b.Limited() {
		return u
	}
	return b.Lo + 0.5*(b.Hi-b.Lo)*(math.Sin(u)+1)
}

// Slope returns dx/du at u.
func (b Bound) Slope(u float64) float64 {
	if !b.Limited() {
		return 1
	}
	return 0.5 * (b.Hi - b.Lo) * math.Cos(u)
}

// AtLimit reports whether x lies within tol·(Hi-Lo) of either end.
func (b Bound) AtLimit(x, tol float64) bool {
	if !b.Limited() {
		return false
	}
	d := tol * (b.Hi - b.Lo)
	return x-b.Lo <= d || b.Hi-x <= d
}

// #endregion bound

// #region boxed
// MinimizeBoxed minimizes f over fixed per-parameter bounds. The returned
// point, errors and covariance are in external coordinates.
func MinimizeBoxed(ctx context.Context, m Minimizer, f Objective, x0 []float64, bounds []Bound) (Result, error) {
	toExt := func(dst, u []float64) {
		for i, b := range bounds {
			dst[i] = b.ToExternal(u[i])
		}
	}
	ext := make([]float64, len(x0))
	inner := func(u []float64) float64 {
		toExt(ext, u)
		return f(ext)
	}
	u0 := make([]float64, len(x0))
	for i, b := range bounds {
		u0[i] = b.ToInternal(x0[i])
	}

	res, err := m.Minimize(ctx, inner, u0)
	if err != nil {
		return Result{}, err
	}
	u := res.X
	res.X = make([]float64, len(u))
	toExt(res.X, u)
	if res.Cov != nil {
		jac := mat.NewDiagDense(len(u), nil)
		for i, b := range bounds {
			jac.SetDiag(i, b.Slope(u[i]))
		}
		res.Cov = Propagate(res.Cov, jac)
		for i := range res.Errors {
			res.Errors[i] = math.Sqrt(res.Cov.At(i, i))
		}
	}
	return res, nil
}

// #endregion boxed
