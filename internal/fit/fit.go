package fit

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"

	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/hist"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/minimizer"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/shape"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/vars"
)

// #region fitter
// Fitter fits shape models to the four scan histograms.
type Fitter struct {
	cfg Config
	mz  minimizer.Minimizer
	log *slog.Logger
}

// NewFitter returns a fitter using mz. A nil logger means slog.Default().
func NewFitter(cfg Config, mz minimizer.Minimizer, log *slog.Logger) *Fitter {
	if log == nil {
		log = slog.Default()
	}
	return &Fitter{cfg: cfg, mz: mz, log: log}
}

// Pairs binds the model's four scan densities to data in shape.Scans order.
func Pairs(m *shape.Model, data [4]*hist.Hist2D) ([4]Pair, error) {
	var pairs [4]Pair
	fns, err := m.ModelFunctions()
	if err != nil {
		return pairs, fmt.Errorf("build model functions: %w", err)
	}
	for i := range pairs {
		if data[i] == nil {
			return pairs, fmt.Errorf("missing data for %s", fns[i].Name())
		}
		pairs[i] = Pair{Density: fns[i], Data: data[i]}
	}
	return pairs, nil
}

// Fit minimises the joint chi-square of m against data. On return the
// model holds the best-fit values and errors.
func (f *Fitter) Fit(ctx context.Context, m *shape.Model, data [4]*hist.Hist2D) (*Result, [4]Pair, error) {
	pairs, err := Pairs(m, data)
	if err != nil {
		return nil, pairs, err
	}
	var free []*vars.Variable
	for _, v := range m.FreeParameters() {
		if lo, hi := v.Range(); hi > lo {
			free = append(free, v)
		}
	}
	if len(free) == 0 {
		return nil, pairs, fmt.Errorf("fit %s: %w", m.Name(), ErrNoFreeParameters)
	}

	obj := newJoint(pairs)
	p := newParamSpace(free)
	res, err := f.mz.Minimize(ctx, func(u []float64) float64 {
		p.apply(u)
		return obj.value()
	}, p.internal())
	if err != nil {
		return nil, pairs, fmt.Errorf("fit %s: %w", m.Name(), err)
	}
	p.apply(res.X)

	out := &Result{
		Model:     m.Name(),
		Chi2:      res.F,
		Converged: res.Converged,
		Status:    res.Status,
		Evals:     res.Evals,
	}
	if res.Cov != nil {
		out.Cov = minimizer.Propagate(res.Cov, p.jacobian(res.X))
		p.apply(res.X)
	} else {
		f.log.Warn("no covariance at minimum", "model", m.Name(), "err", res.CovErr)
	}
	for i, v := range free {
		e := 0.0
		if out.Cov != nil {
			e = math.Sqrt(out.Cov.At(i, i))
		}
		v.SetError(e)
		lo, hi := v.Range()
		b := minimizer.Bound{Lo: lo, Hi: hi}
		out.Parameters = append(out.Parameters, Parameter{
			Name:    v.Name(),
			Value:   v.Val(),
			Error:   e,
			Lo:      lo,
			Hi:      hi,
			AtLimit: b.AtLimit(v.Val(), f.cfg.LimitTol),
		})
	}
	f.log.Info("fit completed",
		"model", m.Name(),
		"chi2", out.Chi2,
		"converged", out.Converged,
		"status", out.Status,
		"evals", out.Evals,
	)
	return out, pairs, nil
}

// #endregion fitter

// #region param-space
// paramSpace maps the minimizer's internal vector onto the model. Bounds
// are resolved at apply time in FreeParameters order, so a floating bound
// sees the values already assigned earlier in the same call.
type paramSpace struct {
	free []*vars.Variable
}

func newParamSpace(free []*vars.Variable) *paramSpace { return &paramSpace{free: free} }

func (p *paramSpace) bound(v *vars.Variable) minimizer.Bound {
	lo, hi := v.Range()
	return minimizer.Bound{Lo: lo, Hi: hi}
}

func (p *paramSpace) internal() []float64 {
	u := make([]float64, len(p.free))
	for i, v := range p.free {
		u[i] = p.bound(v).ToInternal(v.Val())
	}
	return u
}

func (p *paramSpace) apply(u []float64) {
	for i, v := range p.free {
		v.SetVal(p.bound(v).ToExternal(u[i]))
	}
}

func (p *paramSpace) external() []float64 {
	x := make([]float64, len(p.free))
	for i, v := range p.free {
		x[i] = v.Val()
	}
	return x
}

// jacobian returns d(external)/d(internal) at u. Floating bounds make it
// lower-triangular rather than diagonal.
func (p *paramSpace) jacobian(u []float64) *mat.Dense {
	n := len(u)
	jac := mat.NewDense(n, n, nil)
	fd.Jacobian(jac, func(y, x []float64) {
		p.apply(x)
		copy(y, p.external())
	}, u, &fd.JacobianSettings{Formula: fd.Central, Step: 1e-6})
	return jac
}

// #endregion param-space
