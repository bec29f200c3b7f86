package minimizer

import (
	"context"
	"errors"

	"gonum.org/v1/gonum/mat"
)

// #region errors
var (
	// ErrUnknownMethod is returned for a method name that has no optimizer.
	ErrUnknownMethod = errors.New("unknown minimization method")
	// ErrNotPositiveDefinite is reported when the Hessian at the minimum
	// cannot be inverted into a covariance matrix.
	ErrNotPositiveDefinite = errors.New("hessian not positive definite")
)

// #endregion errors

// #region config
// Method names an optimizer.
type Method string

const (
	MethodNelderMead Method = "nelder-mead"
	MethodBFGS       Method = "bfgs"
	MethodLBFGS      Method = "lbfgs"
	MethodGradient   Method = "gradient"
)

// Config controls a minimization.
type Config struct {
	Method       Method  `yaml:"method"`
	MaxEvals     int     `yaml:"max_evals"`     // function evaluation budget, 0 = unlimited
	Tolerance    float64 `yaml:"tolerance"`     // absolute change in f that counts as converged
	Stall        int     `yaml:"stall"`         // iterations without improvement before stopping
	GradientStep float64 `yaml:"gradient_step"` // central-difference step for gradients
	HessianStep  float64 `yaml:"hessian_step"`  // central-difference step for the covariance
	ErrorDef     float64 `yaml:"error_def"`     // 1 for chi-squared, 0.5 for negative log-likelihood
	Polish       bool    `yaml:"polish"`        // rerun Nelder-Mead from the gradient result
}

// DefaultConfig returns BFGS settings suited to chi-squared objectives.
func DefaultConfig() Config {
	return Config{
		Method:       MethodBFGS,
		MaxEvals:     200000,
		Tolerance:    1e-7,
		Stall:        50,
		GradientStep: 1e-6,
		HessianStep:  1e-4,
		ErrorDef:     1,
		Polish:       true,
	}
}

// #endregion config

// #region result
// Objective is a scalar function of the parameter vector.
type Objective func(x []float64) float64

// Result is the outcome of one minimization.
type Result struct {
	X         []float64
	F         float64
	Errors    []float64     // sqrt of the covariance diagonal, zero when Cov is nil
	Cov       *mat.SymDense // nil when the Hessian could not be inverted
	Converged bool
	Status    string
	Evals     int
	CovErr    error // why Cov is nil
}

// Minimizer finds the minimum of an objective from a starting point.
type Minimizer interface {
	Minimize(ctx context.Context, f Objective, x0 []float64) (Result, error)
}

// #endregion result
