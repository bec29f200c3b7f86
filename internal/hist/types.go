package hist

import "errors"

// #region errors
var (
	// ErrShape is returned when two histograms with different binning are combined.
	ErrShape = errors.New("histogram binning mismatch")
	// ErrCorrupt is returned when a serialised histogram cannot be decoded.
	ErrCorrupt = errors.New("corrupt histogram encoding")
)

// #endregion errors

// #region axis
// Axis is a uniform binning of [Lo, Hi) into N bins.
type Axis struct {
	N  int
	Lo float64
	Hi float64
}

// Width returns the bin width.
func (a Axis) Width() float64 { return (a.Hi - a.Lo) / float64(a.N) }

// Center returns the centre of bin i.
func (a Axis) Center(i int) float64 { return a.Lo + (float64(i)+0.5)*a.Width() }

// Edges returns the lower and upper edge of bin i.
func (a Axis) Edges(i int) (float64, float64) {
	w := a.Width()
	return a.Lo + float64(i)*w, a.Lo + float64(i+1)*w
}

// Find returns the bin holding x, or -1 when x is outside the axis.
func (a Axis) Find(x float64) int {
	if !(x >= a.Lo) || !(x < a.Hi) {
		return -1
	}
	i := int((x - a.Lo) / a.Width())
	if i >= a.N {
		i = a.N - 1
	}
	return i
}

// #endregion axis

// #region interval
// OneSigma is the probability content of a ±1σ Gaussian interval.
const OneSigma = 0.682689492137

// #endregion interval
