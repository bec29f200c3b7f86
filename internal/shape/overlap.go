package shape

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"
)

// #region gauss
// Gauss is a correlated bivariate normal density scaled by factor.
func Gauss(x, y, x0, y0, sx, sy, rho, factor float64) float64 {
	xx := (x - x0) / sx
	yy := (y - y0) / sy
	r := 1 - rho*rho
	return 0.5 * factor / (math.Pi * math.Sqrt(r) * math.Abs(sx*sy)) *
		math.Exp(-0.5/r*(xx*xx+yy*yy-2*rho*xx*yy))
}

// #endregion gauss

// #region overlap
// Overlap evaluates the product of both beam densities at (x, y). par is the
// positional vector of the family (see OverlapNames). Any evaluation that is
// not a finite number yields the sentinel -1.
func Overlap(f Family, x, y float64, par []float64, factor float64) float64 {
	if len(par) < f.Dof() {
		return -1
	}
	x01, y01, x02, y02 := par[0], par[1], par[2], par[3]
	beam := func(x0, y0, sx, sy, r float64) float64 {
		return Gauss(x, y, x0, y0, sx, sy, r, factor)
	}
	n1 := beam(x01, y01, par[4], par[5], par[8])
	n2 := beam(x02, y02, par[6], par[7], par[9])
	var v float64
	switch f {
	case FamilySingle:
		v = n1 * n2
	case FamilyDouble:
		w1, w2 := par[10], par[11]
		m1 := beam(x01, y01, par[12], par[13], par[16])
		m2 := beam(x02, y02, par[14], par[15], par[17])
		v = (w1*n1 + (1-w1)*m1) * (w2*n2 + (1-w2)*m2)
	case FamilyTriple:
		w1N, w2N, w1M, w2M := par[10], par[11], par[18], par[19]
		m1 := beam(x01, y01, par[12], par[13], par[16])
		m2 := beam(x02, y02, par[14], par[15], par[17])
		w1 := beam(x01, y01, par[20], par[21], par[24])
		w2 := beam(x02, y02, par[22], par[23], par[25])
		v = (w1N*n1 + w1M*m1 + (1-w1N-w1M)*w1) * (w2N*n2 + w2M*m2 + (1-w2N-w2M)*w2)
	default:
		return -1
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return -1
	}
	return v
}

// OverlapNames returns the parameter names stored at positions 4 and up of
// the overlap vector. Positions 0..3 hold x01, y01, x02, y02.
func OverlapNames(f Family) []string {
	names := []string{"xWidthN1", "yWidthN1", "xWidthN2", "yWidthN2", "rhoN1", "rhoN2"}
	if f >= FamilyDouble {
		names = append(names, "w1N", "w2N", "xWidthM1", "yWidthM1", "xWidthM2", "yWidthM2", "rhoM1", "rhoM2")
	}
	if f >= FamilyTriple {
		names = append(names, "w1M", "w2M", "xWidthW1", "yWidthW1", "xWidthW2", "yWidthW2", "rhoW1", "rhoW2")
	}
	return names
}

// #endregion overlap

// #region field
// OverlapDomain is the square over which overlap fields are defined.
var OverlapDomain = [2]float64{-30, 30}

// Field is a two-beam overlap density with its own copy of the parameter
// vector. Fields are cheap to clone and safe to hand to separate goroutines.
type Field struct {
	family Family
	factor float64
	par    []float64
}

// NewField builds a field of family f with all parameters zero.
func NewField(f Family, factor float64) *Field {
	return &Field{family: f, factor: factor, par: make([]float64, f.Dof())}
}

// At evaluates the overlap density.
func (f *Field) At(x, y float64) float64 { return Overlap(f.family, x, y, f.par, f.factor) }

// Family returns the field's family.
func (f *Field) Family() Family { return f.family }

// Factor returns the scale factor applied to each beam density.
func (f *Field) Factor() float64 { return f.factor }

// NPar returns the length of the parameter vector.
func (f *Field) NPar() int { return len(f.par) }

// Parameter returns entry i of the parameter vector.
func (f *Field) Parameter(i int) float64 { return f.par[i] }

// SetParameter assigns entry i of the parameter vector.
func (f *Field) SetParameter(i int, v float64) { f.par[i] = v }

// Parameters returns a copy of the parameter vector.
func (f *Field) Parameters() []float64 { return append([]float64(nil), f.par...) }

// Clone returns an independent copy.
func (f *Field) Clone() *Field {
	return &Field{family: f.family, factor: f.factor, par: f.Parameters()}
}

// Integral integrates the field over the overlap domain.
func (f *Field) Integral(in Integrator) float64 {
	return in.Integrate(f.At, OverlapDomain, OverlapDomain)
}

// #endregion field

// #region assign
// OverlapFunc returns a field built from the model's current values.
func (m *Model) OverlapFunc() (*Field, error) {
	f := NewField(m.family, m.factor)
	if err := m.AssignOverlap(f, nil); err != nil {
		return nil, err
	}
	return f, nil
}

// AssignOverlap copies the model's current physics values into f. Offsets
// are zeroed. With a non-nil rng every value is drawn from a normal
// distribution around the current value with the propagated uncertainty as
// width, and correlations are clamped to |rho| <= 0.999.
func (m *Model) AssignOverlap(f *Field, rng *rand.Rand) error {
	if f.family != m.family {
		return fmt.Errorf("assign overlap: field family %d, model %s family %d", f.family, m.name, m.family)
	}
	for i := 0; i < 4; i++ {
		f.par[i] = 0
	}
	for i, name := range OverlapNames(m.family) {
		p, err := m.Parameter(name)
		if err != nil {
			return fmt.Errorf("assign overlap: %w", err)
		}
		v := p.Val()
		if rng != nil {
			e, err := p.Err(m)
			if err != nil {
				return fmt.Errorf("assign overlap: %w", err)
			}
			if e > 0 {
				v = distuv.Normal{Mu: v, Sigma: e, Src: rng}.Rand()
			}
			if strings.HasPrefix(name, "rho") && math.Abs(v) > 0.999 {
				v = math.Copysign(0.999, v)
			}
		}
		f.par[4+i] = v
	}
	return nil
}

// #endregion assign
