package fit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/hist"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/shape"
)

// #region model-hists
// ModelHist evaluates a scan density on the binning of like. The fast path
// multiplies the density at the bin centre by the bin area, the slow path
// integrates each bin with an n×n Gauss-Legendre rule.
func ModelHist(d *shape.ScanDensity, like *hist.Hist2D, fast bool, n int) *hist.Hist2D {
	k := d.Snapshot()
	h := hist.New("hmodel_"+d.Name(), like.X, like.Y)
	area := h.BinArea()
	for i := 0; i < h.X.N; i++ {
		xlo, xhi := h.X.Edges(i)
		for j := 0; j < h.Y.N; j++ {
			if fast {
				h.Set(i, j, k.At(h.X.Center(i), h.Y.Center(j))*area)
				continue
			}
			ylo, yhi := h.Y.Edges(j)
			h.Set(i, j, shape.FixedRule(k.At, [2]float64{xlo, xhi}, [2]float64{ylo, yhi}, n))
		}
	}
	return h
}

// ModelHists builds the model histogram of every pair.
func ModelHists(pairs [4]Pair, fast bool, n int) [4]*hist.Hist2D {
	var out [4]*hist.Hist2D
	for i, p := range pairs {
		out[i] = ModelHist(p.Density, p.Data, fast, n)
	}
	return out
}

// #endregion model-hists

// #region chisq
// ComputeChiSq scales each model histogram to its data total and sums
// ((data-model)/error)² over bins with nonzero data. The error is the lower
// Poisson error when the model lies below the data, the upper one
// otherwise. The degrees of freedom count the bins used. Model histograms
// are rescaled in place.
func ComputeChiSq(model, data [4]*hist.Hist2D) ([4]ScanChiSq, error) {
	var out [4]ScanChiSq
	for i := range out {
		m, d := model[i], data[i]
		if !m.SameBinning(d) {
			return out, fmt.Errorf("chisq scan %d: %w", i, hist.ErrShape)
		}
		scaleTo(m, d.Sum())
		out[i].Scan = shape.Scans[i].Name()
		var terms []float64
		d.Each(func(x, y int, _, _, n float64) {
			if n == 0 {
				return
			}
			r, _ := residual(n, m.At(x, y))
			terms = append(terms, r*r)
		})
		out[i].Dof = len(terms)
		out[i].Chisq = floats.SumCompensated(terms)
	}
	return out, nil
}

// TotalChiSq returns Σchisq/Σdof.
func TotalChiSq(scans [4]ScanChiSq) float64 {
	var c float64
	var d int
	for _, s := range scans {
		c += s.Chisq
		d += s.Dof
	}
	if d == 0 {
		return math.Inf(1)
	}
	return c / float64(d)
}

func scaleTo(h *hist.Hist2D, total float64) {
	s := h.Sum()
	if s == 0 {
		return
	}
	f := total / s
	for i := 0; i < h.X.N; i++ {
		for j := 0; j < h.Y.N; j++ {
			h.Set(i, j, h.At(i, j)*f)
		}
	}
}

// residual returns (n-m)/e with the asymmetric Poisson error of n.
func residual(n, m float64) (float64, float64) {
	lo, hi := hist.PoissonInterval(n)
	e := hi
	if m < n {
		e = lo
	}
	return (n - m) / e, e
}

// #endregion chisq

// #region residuals
// ResidualSet holds the data, model and residual histograms of one scan in
// scaled coordinates.
type ResidualSet struct {
	Data     *hist.Hist2D
	Model    *hist.Hist2D
	Residual *hist.Hist2D
}

// Residuals rebuilds data and model on coordinates multiplied by scaling
// and fills (data-model)/error for every bin with positive data.
func Residuals(data, model [4]*hist.Hist2D, scaling float64) ([4]ResidualSet, error) {
	var out [4]ResidualSet
	for i := range out {
		d, m := data[i], model[i]
		if !m.SameBinning(d) {
			return out, fmt.Errorf("residuals scan %d: %w", i, hist.ErrShape)
		}
		ax := scaleAxis(d.X, scaling)
		ay := scaleAxis(d.Y, scaling)
		suffix := fmt.Sprintf("%s%d", shape.Scans[i].Axis, shape.Scans[i].Beam)
		set := ResidualSet{
			Data:     hist.New("dataHist"+suffix, ax, ay),
			Model:    hist.New("modelHist"+suffix, ax, ay),
			Residual: hist.New("residualHist"+suffix, ax, ay),
		}
		d.Each(func(x, y int, _, _, n float64) {
			mv := m.At(x, y)
			set.Model.Set(x, y, mv)
			if n <= 0 {
				return
			}
			set.Data.Set(x, y, n)
			r, _ := residual(n, mv)
			set.Residual.Set(x, y, r)
		})
		out[i] = set
	}
	return out, nil
}

func scaleAxis(a hist.Axis, s float64) hist.Axis {
	return hist.Axis{N: a.N, Lo: a.Lo * s, Hi: a.Hi * s}
}

// #endregion residuals
