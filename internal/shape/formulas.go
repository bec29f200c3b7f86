package shape

import "math"

// #region propagation-helpers
// PositionNames lists the per-scan beam offsets, fixed to the vertex
// centroids before a fit.
func PositionNames() []string {
	return []string{"x011", "x012", "x021", "x022", "y011", "y012", "y021", "y022"}
}

// root is sqrt with negative radicands treated as zero, so a bound formula
// evaluated a hair outside its domain stays finite and the ±0.99 clamps apply.
func root(x float64) float64 { return math.Sqrt(math.Max(x, 0)) }

func sumExpr(in []float64) float64 { return in[0] + in[1] }

func sumErr(_, e []float64) float64 { return math.Hypot(e[0], e[1]) }

func productExpr(in []float64) float64 { return in[0] * in[1] }

func productErr(v, e []float64) float64 {
	return math.Hypot(v[0]*e[1], v[1]*e[0])
}

func ratioExpr(in []float64) float64 { return in[0] / in[1] }

func complementExpr(in []float64) float64 { return 1 - in[0] }

func passErr(_, e []float64) float64 { return e[0] }

// untracked is the propagation of auxiliary bounds whose uncertainty is not
// carried.
func untracked(_, _ []float64) float64 { return 0 }

// #endregion propagation-helpers

// #region correlation-bounds
// clampCorrelation keeps a correlation bound on [-0.99, 0.99]. Both ends are
// clamped so a lower bound can never pass its upper bound.
func clampCorrelation(x float64) float64 { return math.Max(-0.99, math.Min(0.99, x)) }

// superRhoMin bounds the narrow correlation given the wide correlation and
// the narrow/wide width ratios.
func superRhoMin(rhoM, rx, ry float64) float64 {
	return clampCorrelation(rhoM/rx/ry - root(1/(rx*rx)-1)*root(1/(ry*ry)-1))
}

func superRhoMax(rhoM, rx, ry float64) float64 {
	return clampCorrelation(rhoM/rx/ry + root(1/(rx*rx)-1)*root(1/(ry*ry)-1))
}

// superDoubleRhoWMin bounds the wide correlation of a three-component model
// given the medium correlation, the narrow/medium ratios and the wide/medium
// ratios.
func superDoubleRhoWMin(rhoM, nx, ny, wx, wy float64) float64 {
	return clampCorrelation((rhoM-root(1-nx)*root(1-ny))/wx/wy -
		root(1-(nx/wx)*(nx/wx))*root(1-(ny/wy)*(ny/wy)))
}

func superDoubleRhoWMax(rhoM, nx, ny, wx, wy float64) float64 {
	return clampCorrelation((rhoM+root(1-nx)*root(1-ny))/wx/wy +
		root(1-(nx/wx)*(nx/wx))*root(1-(ny/wy)*(ny/wy)))
}

// superDoubleRhoNMin bounds the narrow correlation by both the medium and the
// wide component.
func superDoubleRhoNMin(rhoM, nx, ny, wx, wy, rhoW float64) float64 {
	byM := rhoM/nx/ny - root(1/(nx*nx)-1)*root(1/(ny*ny)-1)
	byW := rhoW*wx*wy/nx/ny - root((wx/nx)*(wx/nx)-1)*root((wy/ny)*(wy/ny)-1)
	return clampCorrelation(math.Max(byM, byW))
}

func superDoubleRhoNMax(rhoM, nx, ny, wx, wy, rhoW float64) float64 {
	byM := rhoM/nx/ny + root(1/(nx*nx)-1)*root(1/(ny*ny)-1)
	byW := rhoW*wx*wy/nx/ny + root((wx/nx)*(wx/nx)-1)*root((wy/ny)*(wy/ny)-1)
	return clampCorrelation(math.Min(byM, byW))
}

// #endregion correlation-bounds

// #region weight-bounds
// superOmegaMax is the largest narrow weight parameter keeping the combined
// density non-negative.
func superOmegaMax(rx, ry, rhoN, rhoM float64) float64 {
	return rx * ry * root((1-rhoN*rhoN)/(1-rhoM*rhoM))
}

func superDoubleOmegaMax(nx, ny, rhoN, frac, rhoM, rhoW, wx, wy float64) float64 {
	return nx * ny * root(1-rhoN*rhoN) *
		(frac/root(1-rhoM*rhoM) + (1-frac)/root(1-rhoW*rhoW)/wx/wy)
}

// #endregion weight-bounds

// #region weight-transforms
func narrowWeight(in []float64) float64 { return -in[0] / (1 - in[0]) }

func wideWeight(in []float64) float64 { return 1 / (1 - in[0]) }

// #endregion weight-transforms
