package minimizer

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// #region gonum
// Gonum minimizes with a gonum/optimize method and estimates the covariance
// from a central-difference Hessian at the minimum.
type Gonum struct {
	cfg Config
}

// New validates cfg and returns a minimizer.
func New(cfg Config) (*Gonum, error) {
	if _, err := method(cfg.Method); err != nil {
		return nil, err
	}
	if cfg.ErrorDef <= 0 {
		cfg.ErrorDef = 1
	}
	return &Gonum{cfg: cfg}, nil
}

// Config returns the effective configuration.
func (g *Gonum) Config() Config { return g.cfg }

func method(m Method) (optimize.Method, error) {
	switch m {
	case MethodNelderMead:
		return &optimize.NelderMead{}, nil
	case MethodBFGS, "":
		return &optimize.BFGS{}, nil
	case MethodLBFGS:
		return &optimize.LBFGS{}, nil
	case MethodGradient:
		return &optimize.GradientDescent{}, nil
	default:
		return nil, fmt.Errorf("%q: %w", m, ErrUnknownMethod)
	}
}

// Minimize runs the configured method from x0. A run that stops on a
// limit or a failed line search still returns its best point with
// Converged false; only cancellation and invalid input are errors.
func (g *Gonum) Minimize(ctx context.Context, f Objective, x0 []float64) (Result, error) {
	if len(x0) == 0 {
		return Result{}, fmt.Errorf("minimize: empty parameter vector")
	}
	m, err := method(g.cfg.Method)
	if err != nil {
		return Result{}, err
	}

	res, err := g.run(ctx, f, x0, m)
	if err != nil {
		return Result{}, err
	}
	if g.cfg.Polish && g.cfg.Method != MethodNelderMead {
		polished, err := g.run(ctx, f, res.X, &optimize.NelderMead{})
		if err != nil {
			return Result{}, err
		}
		polished.Evals += res.Evals
		if polished.F <= res.F {
			polished.Converged = polished.Converged || res.Converged
			res = polished
		} else {
			res.Evals = polished.Evals
		}
	}

	res.Cov, res.CovErr = Covariance(f, res.X, g.cfg.HessianStep, g.cfg.ErrorDef)
	res.Errors = make([]float64, len(res.X))
	if res.Cov != nil {
		for i := range res.Errors {
			res.Errors[i] = math.Sqrt(res.Cov.At(i, i))
		}
	}
	return res, nil
}

func (g *Gonum) run(ctx context.Context, f Objective, x0 []float64, m optimize.Method) (Result, error) {
	p := optimize.Problem{Func: f}
	if needsGradient(m) {
		step := g.cfg.GradientStep
		p.Grad = func(grad, x []float64) {
			fd.Gradient(grad, f, x, &fd.Settings{Formula: fd.Central, Step: step})
		}
	}
	settings := &optimize.Settings{
		FuncEvaluations: g.cfg.MaxEvals,
		Converger: &optimize.FunctionConverge{
			Absolute:   g.cfg.Tolerance,
			Iterations: g.cfg.Stall,
		},
		Recorder: ctxRecorder{ctx},
	}
	r, err := optimize.Minimize(p, append([]float64(nil), x0...), settings, m)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, fmt.Errorf("minimize: %w", ctxErr)
	}
	if r == nil {
		return Result{}, fmt.Errorf("minimize: %w", err)
	}
	return Result{
		X:         r.X,
		F:         r.F,
		Converged: err == nil && converged(r.Status),
		Status:    r.Status.String(),
		Evals:     r.Stats.FuncEvaluations,
	}, nil
}

func needsGradient(m optimize.Method) bool {
	switch m.(type) {
	case *optimize.BFGS, *optimize.LBFGS, *optimize.GradientDescent:
		return true
	}
	return false
}

func converged(s optimize.Status) bool {
	switch s {
	case optimize.Success, optimize.FunctionThreshold, optimize.FunctionConvergence,
		optimize.GradientThreshold, optimize.StepConvergence, optimize.MethodConverge:
		return true
	}
	return false
}

// ctxRecorder stops the optimization once ctx is done.
type ctxRecorder struct{ ctx context.Context }

func (r ctxRecorder) Init() error { return r.ctx.Err() }

func (r ctxRecorder) Record(*optimize.Location, optimize.Operation, *optimize.Stats) error {
	return r.ctx.Err()
}

// #endregion gonum

// #region covariance
// Covariance returns 2·errorDef·H⁻¹ where H is the central-difference
// Hessian of f at x.
func Covariance(f Objective, x []float64, step, errorDef float64) (*mat.SymDense, error) {
	n := len(x)
	h := mat.NewSymDense(n, nil)
	fd.Hessian(h, f, x, &fd.Settings{Formula: fd.Central, Step: step})
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			if v := h.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("hessian entry (%d,%d) = %g: %w", i, j, v, ErrNotPositiveDefinite)
			}
		}
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(h); !ok {
		return nil, ErrNotPositiveDefinite
	}
	cov := mat.NewSymDense(n, nil)
	if err := chol.InverseTo(cov); err != nil {
		return nil, fmt.Errorf("invert hessian: %w", err)
	}
	cov.ScaleSym(2*errorDef, cov)
	return cov, nil
}

// Propagate returns J·C·Jᵀ.
func Propagate(cov *mat.SymDense, jac mat.Matrix) *mat.SymDense {
	var tmp, full mat.Dense
	tmp.Mul(jac, cov)
	full.Mul(&tmp, jac.T())
	n, _ := full.Dims()
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			out.SetSym(i, j, 0.5*(full.At(i, j)+full.At(j, i)))
		}
	}
	return out
}

// #endregion covariance
