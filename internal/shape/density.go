package shape

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/vars"
)

// #region scan-density
// ScanDensity is the vertex density recorded in one scan: the resting
// beam's shape times the moving beam's profile along the axis that is not
// scanned, smeared by the vertex resolution. It reads the model's live
// parameters on every Snapshot.
type ScanDensity struct {
	scan   Scan
	x0, y0 vars.Param
	rest   []component
	moving []profile
	xRes   vars.Param
	yRes   vars.Param
	wRest  weights
	wMove  weights
}

type component struct {
	sx, sy, rho vars.Param
}

type profile struct {
	width vars.Param
}

// weights resolves component weights the same way Overlap does: the last
// component takes the remainder.
type weights struct {
	n, m vars.Param // m is nil for two-component models
	k    int
}

func (w weights) values() []float64 {
	switch w.k {
	case 1:
		return []float64{w.n.Val()}
	case 2:
		n := w.n.Val()
		return []float64{n, 1 - n}
	default:
		n, m := w.n.Val(), w.m.Val()
		return []float64{n, m, 1 - n - m}
	}
}

// Scan returns the scan this density describes.
func (d *ScanDensity) Scan() Scan { return d.scan }

// Name returns the density-function name.
func (d *ScanDensity) Name() string { return d.scan.Name() }

// At evaluates the density at one point. Prefer Snapshot for repeated use.
func (d *ScanDensity) At(x, y float64) float64 { return d.Snapshot().At(x, y) }

// #endregion scan-density

// #region model-functions
// ModelFunctions builds the four per-scan densities in Scans order.
func (m *Model) ModelFunctions() ([4]*ScanDensity, error) {
	var out [4]*ScanDensity
	for i, s := range Scans {
		d, err := m.scanDensity(s)
		if err != nil {
			return out, fmt.Errorf("model functions %s: %w", s.Name(), err)
		}
		out[i] = d
	}
	return out, nil
}

func (m *Model) scanDensity(s Scan) (*ScanDensity, error) {
	r := &resolver{m: m}
	fixedAxis := "y"
	if s.Axis == AxisY {
		fixedAxis = "x"
	}
	d := &ScanDensity{
		scan: s,
		x0:   r.get(position("x", s.Beam, s.Axis)),
		y0:   r.get(position("y", s.Beam, s.Axis)),
		xRes: r.get("xVtxRes"),
		yRes: r.get("yVtxRes"),
	}
	k := int(m.family)
	d.wRest = weights{n: r.get(weight(s.Beam, "N")), k: k}
	d.wMove = weights{n: r.get(weight(s.Other(), "N")), k: k}
	if k == 3 {
		d.wRest.m = r.get(weight(s.Beam, "M"))
		d.wMove.m = r.get(weight(s.Other(), "M"))
	}
	for _, c := range m.family.Components() {
		d.rest = append(d.rest, component{
			sx:  r.get(width("x", c, s.Beam)),
			sy:  r.get(width("y", c, s.Beam)),
			rho: r.get(rho(c, s.Beam)),
		})
		d.moving = append(d.moving, profile{width: r.get(width(fixedAxis, c, s.Other()))})
	}
	if r.err != nil {
		return nil, r.err
	}
	return d, nil
}

// resolver keeps the first lookup failure.
type resolver struct {
	m   *Model
	err error
}

func (r *resolver) get(name string) vars.Param {
	p, err := r.m.Parameter(name)
	if err != nil && r.err == nil {
		r.err = err
	}
	return p
}

// #endregion model-functions

// #region kernel
// Kernel is a frozen evaluation of a ScanDensity: a normalised mixture of
// bivariate normals sharing one centre.
type Kernel struct {
	x0, y0 float64
	terms  []term
	valid  bool
}

type term struct {
	coef       float64
	ia, ib, ic float64 // inverse covariance entries
	norm       float64
}

// Valid reports whether every component had a positive-definite covariance
// and the mixture normalisation is positive.
func (k Kernel) Valid() bool { return k.valid }

// At evaluates the frozen density.
func (k Kernel) At(x, y float64) float64 {
	if !k.valid {
		return 0
	}
	dx, dy := x-k.x0, y-k.y0
	var sum float64
	for _, t := range k.terms {
		sum += t.coef * t.norm * math.Exp(-0.5*(t.ia*dx*dx+2*t.ib*dx*dy+t.ic*dy*dy))
	}
	return sum
}

// Snapshot reads the current parameter values and builds the kernel.
func (d *ScanDensity) Snapshot() Kernel {
	k := Kernel{x0: d.x0.Val(), y0: d.y0.Val(), valid: true}
	rx, ry := d.xRes.Val(), d.yRes.Val()
	wr, wm := d.wRest.values(), d.wMove.values()
	var total float64
	for i, c := range d.rest {
		sx, sy, r := c.sx.Val(), c.sy.Val(), c.rho.Val()
		det := sx * sx * sy * sy * (1 - r*r)
		if !(det > 0) {
			k.valid = false
			return k
		}
		// precision of the resting component
		pa, pb, pc := sy*sy/det, -r*sx*sy/det, sx*sx/det
		fixed := sy
		if d.scan.Axis == AxisY {
			fixed = sx
		}
		for j, p := range d.moving {
			w := p.width.Val()
			if w == 0 {
				k.valid = false
				return k
			}
			qa, qc := pa, pc
			if d.scan.Axis == AxisX {
				qc += 1 / (w * w)
			} else {
				qa += 1 / (w * w)
			}
			qdet := qa*qc - pb*pb
			if !(qdet > 0) {
				k.valid = false
				return k
			}
			// covariance of the product plus resolution smearing
			ca, cb, cc := qc/qdet+rx*rx, -pb/qdet, qa/qdet+ry*ry
			cdet := ca*cc - cb*cb
			if !(cdet > 0) {
				k.valid = false
				return k
			}
			coef := wr[i] * wm[j] / math.Sqrt(2*math.Pi*(fixed*fixed+w*w))
			total += coef
			k.terms = append(k.terms, term{
				coef: coef,
				ia:   cc / cdet,
				ib:   -cb / cdet,
				ic:   ca / cdet,
				norm: 1 / (2 * math.Pi * math.Sqrt(cdet)),
			})
		}
	}
	if !(total > 0) || math.IsInf(total, 0) {
		k.valid = false
		return k
	}
	for i := range k.terms {
		k.terms[i].coef /= total
	}
	return k
}

// #endregion kernel
