package correction

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/hist"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/minimizer"
)

// #region peak-model
// peakModel is c·G(mu1,sigma1) + (1-c)·G(mu2,sigma2) on scan-step
// coordinates [-0.5, n-0.5]. Each Gaussian is normalised over that range
// before mixing. Parameter order: mu1, mu2, sigma1, sigma2 or sigmaDiff,
// const.
type peakModel struct {
	n    int
	caps Capability
}

func (p peakModel) lo() float64 { return -0.5 }
func (p peakModel) hi() float64 { return float64(p.n) - 0.5 }

func (p peakModel) unpack(par []float64) (mu1, mu2, s1, s2, c float64) {
	mu1, mu2, s1, c = par[0], par[1], par[2], par[4]
	s2 = par[3]
	if p.caps&CapSigmaDiff != 0 {
		s2 = s1 + par[3]
	}
	return
}

// cdf is the normalised cumulative of one component at x.
func (p peakModel) cdf(x, mu, s float64) float64 {
	z := distuv.UnitNormal.CDF((p.lo() - mu) / s)
	norm := distuv.UnitNormal.CDF((p.hi()-mu)/s) - z
	return (distuv.UnitNormal.CDF((x-mu)/s) - z) / norm
}

// density is the normalised mixture density at x.
func (p peakModel) density(x float64, par []float64) float64 {
	mu1, mu2, s1, s2, c := p.unpack(par)
	comp := func(mu, s float64) float64 {
		norm := distuv.UnitNormal.CDF((p.hi()-mu)/s) - distuv.UnitNormal.CDF((p.lo()-mu)/s)
		return distuv.UnitNormal.Prob((x-mu)/s) / (s * norm)
	}
	return c*comp(mu1, s1) + (1-c)*comp(mu2, s2)
}

// binProbs fills dst with the probability of each unit-width step bin.
func (p peakModel) binProbs(dst, par []float64) {
	mu1, mu2, s1, s2, c := p.unpack(par)
	prev1, prev2 := 0.0, 0.0
	for k := range dst {
		e := float64(k) + 0.5
		c1, c2 := p.cdf(e, mu1, s1), p.cdf(e, mu2, s2)
		dst[k] = c*(c1-prev1) + (1-c)*(c2-prev2)
		prev1, prev2 = c1, c2
	}
}

// #endregion peak-model

// #region peak-fit
// fitPeak fits the peak model to counts by binned maximum likelihood and
// derives the peak height and area of the fitted curve.
func fitPeak(ctx context.Context, mz minimizer.Minimizer, counts []float64, w Window, caps Capability) (ScanFit, error) {
	p := peakModel{n: len(counts), caps: caps}
	total := floats.Sum(counts)
	out := ScanFit{NEvents: total, Caps: caps}

	probs := make([]float64, len(counts))
	nll := func(par []float64) float64 {
		p.binProbs(probs, par)
		var s float64
		for k, n := range counts {
			if n == 0 {
				continue
			}
			if !(probs[k] > 0) {
				return 1e12
			}
			s -= n * math.Log(probs[k])
		}
		return s
	}

	bounds := []minimizer.Bound{w.Mu1, w.Mu2, w.Sigma1, w.Sigma2, w.Const}
	if caps&CapSigmaDiff != 0 {
		bounds[3] = w.SigmaDiff
	}
	x0 := p.start(counts, bounds)
	res, err := minimizer.MinimizeBoxed(ctx, mz, nll, x0, bounds)
	if err != nil {
		return out, err
	}

	out.Mu1, out.Mu2, out.Sigma1, out.Sigma2, out.Const = p.unpack(res.X)
	if caps&CapSigmaDiff != 0 {
		out.SigmaDiff = res.X[3]
	}
	out.Converged = res.Converged

	// curve = total · density, sampled every 0.001 steps
	const dx = 0.001
	m := 1000 * p.n
	xs, ys := make([]float64, m), make([]float64, m)
	for i := range xs {
		xs[i] = p.lo() + dx*float64(i)
		ys[i] = total * p.density(xs[i], res.X)
	}
	out.Peak = floats.Max(ys)
	out.Area = integrate.Trapezoidal(xs, ys)

	p.binProbs(probs, res.X)
	var chi float64
	var used int
	for k, n := range counts {
		if n == 0 {
			continue
		}
		pred := total * probs[k]
		lo, hi := hist.PoissonInterval(n)
		e := lo
		if pred > n {
			e = hi
		}
		chi += (pred - n) * (pred - n) / (e * e)
		used++
	}
	if used > 0 {
		out.ChiSq = chi / float64(used)
	}
	return out, nil
}

// start seeds both components at the profile's mean. The narrow width
// starts below and the wide width above the profile's standard deviation.
func (p peakModel) start(counts []float64, bounds []minimizer.Bound) []float64 {
	steps := make([]float64, len(counts))
	for i := range steps {
		steps[i] = float64(i)
	}
	mu, sd := stat.MeanStdDev(steps, counts)
	if math.IsNaN(mu) || math.IsNaN(sd) {
		mu, sd = 0.5*float64(len(counts)-1), 1
	}
	x0 := []float64{mu, mu, 0.8 * sd, 1.2 * sd, 0.5}
	if p.caps&CapSigmaDiff != 0 {
		x0[3] = 0.4 * sd
	}
	// keep clear of the ends, where the bound transform has zero slope
	for i, b := range bounds {
		pad := 0.01 * (b.Hi - b.Lo)
		x0[i] = math.Max(b.Lo+pad, math.Min(b.Hi-pad, x0[i]))
	}
	return x0
}

// #endregion peak-fit
