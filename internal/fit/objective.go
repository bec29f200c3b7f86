package fit

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/hist"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/shape"
)

// invalidChi2 is returned for parameter points where a density cannot be
// normalised.
const invalidChi2 = 1e12

// #region scan-term
type dataBin struct {
	k      int // index into the centre list
	n      float64
	lo, hi float64 // Poisson errors
}

// scanTerm caches the bin geometry and errors of one data histogram.
type scanTerm struct {
	density *shape.ScanDensity
	xs, ys  []float64 // every bin centre
	bins    []dataBin // bins with nonzero content
	terms   []float64 // per-bin squared residuals, reused across calls
	total   float64
}

func newScanTerm(d *shape.ScanDensity, h *hist.Hist2D) scanTerm {
	t := scanTerm{density: d, total: h.Sum()}
	h.Each(func(i, j int, x, y, v float64) {
		k := len(t.xs)
		t.xs = append(t.xs, x)
		t.ys = append(t.ys, y)
		if v == 0 {
			return
		}
		lo, hi := hist.PoissonInterval(v)
		t.bins = append(t.bins, dataBin{k: k, n: v, lo: lo, hi: hi})
	})
	t.terms = make([]float64, len(t.bins))
	return t
}

// chi2 evaluates the scan's contribution at the model's current values.
// The expected count of a bin is the data total times the density at the
// bin centre over the sum of the density at all centres.
func (t *scanTerm) chi2(buf []float64) float64 {
	k := t.density.Snapshot()
	if !k.Valid() {
		return invalidChi2
	}
	var norm float64
	for i := range t.xs {
		buf[i] = k.At(t.xs[i], t.ys[i])
		norm += buf[i]
	}
	if !(norm > 0) || math.IsInf(norm, 0) {
		return invalidChi2
	}
	scale := t.total / norm
	for i, b := range t.bins {
		pred := buf[b.k] * scale
		e := b.lo
		if pred > b.n {
			e = b.hi
		}
		r := (pred - b.n) / e
		t.terms[i] = r * r
	}
	return floats.SumCompensated(t.terms)
}

// #endregion scan-term

// #region joint
// joint is the simultaneous chi-square of the four scans.
type joint struct {
	terms [4]scanTerm
	buf   []float64
}

func newJoint(pairs [4]Pair) *joint {
	j := &joint{}
	n := 0
	for i, p := range pairs {
		j.terms[i] = newScanTerm(p.Density, p.Data)
		n = max(n, len(j.terms[i].xs))
	}
	j.buf = make([]float64, n)
	return j
}

func (j *joint) value() float64 {
	var total float64
	for i := range j.terms {
		total += j.terms[i].chi2(j.buf)
	}
	return total
}

// #endregion joint
