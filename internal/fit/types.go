package fit

import (
	"errors"

	"gonum.org/v1/gonum/mat"

	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/hist"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/minimizer"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/shape"
)

// #region errors
var (
	// ErrNoFreeParameters is returned when a model has nothing to fit.
	ErrNoFreeParameters = errors.New("model has no free parameters")
	// ErrNoAttempts is returned by SelectBest for an empty candidate list.
	ErrNoAttempts = errors.New("no fit attempts to select from")
)

// #endregion errors

// #region fit-config
// Config holds the settings of one fit.
type Config struct {
	Minimizer  minimizer.Config `yaml:"minimizer"`
	Fast       bool             `yaml:"fast"`       // model histograms from bin centres instead of bin integrals
	BinPoints  int              `yaml:"bin_points"` // Gauss-Legendre order per axis for bin integrals
	Variations int              `yaml:"variations"` // jittered overlap integrals after the fit
	Scaling    float64          `yaml:"scaling"`    // coordinate scale of residual histograms
	LimitTol   float64          `yaml:"limit_tol"`  // fraction of the range that counts as "at limit"
	Integrator shape.Integrator `yaml:"-"`
}

// DefaultConfig returns the standard fit settings.
func DefaultConfig() Config {
	return Config{
		Minimizer:  minimizer.DefaultConfig(),
		Fast:       true,
		BinPoints:  4,
		Variations: 100,
		Scaling:    1,
		LimitTol:   1e-3,
		Integrator: shape.DefaultIntegrator(),
	}
}

// #endregion fit-config

// #region fit-result
// Pair is one scan's model density together with the histogram it was
// fitted to.
type Pair struct {
	Density *shape.ScanDensity
	Data    *hist.Hist2D
}

// Parameter is the fitted state of one minimizer parameter.
type Parameter struct {
	Name    string
	Value   float64
	Error   float64
	Lo, Hi  float64
	AtLimit bool
}

// Result is the outcome of a joint fit. Non-converged fits are returned
// like converged ones; callers judge acceptability.
type Result struct {
	Model      string
	Parameters []Parameter
	Chi2       float64 // objective at the minimum
	Converged  bool
	Status     string
	Evals      int
	Cov        *mat.SymDense // external-coordinate covariance, nil if unavailable
}

// ScanChiSq is the goodness of fit of one scan.
type ScanChiSq struct {
	Scan  string
	Chisq float64
	Dof   int
}

// #endregion fit-result
