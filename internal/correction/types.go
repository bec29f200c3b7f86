package correction

import (
	"errors"

	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/minimizer"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/shape"
)

// #region errors
var (
	// ErrZeroOverlap is returned when the true overlap integral is zero.
	ErrZeroOverlap = errors.New("overlapTrue == 0")
	// ErrAllToysDegenerate is returned when no toy produced a usable fit.
	ErrAllToysDegenerate = errors.New("all toys degenerate")
)

// #endregion errors

// #region window
// Window holds the parameter bounds of the peak model for one scan axis.
type Window struct {
	Mu1       minimizer.Bound `yaml:"mu1"`
	Mu2       minimizer.Bound `yaml:"mu2"`
	Sigma1    minimizer.Bound `yaml:"sigma1"`
	Sigma2    minimizer.Bound `yaml:"sigma2"`
	SigmaDiff minimizer.Bound `yaml:"sigma_diff"`
	Const     minimizer.Bound `yaml:"const"`
}

// DefaultWindow returns the generic peak-model bounds.
func DefaultWindow() Window {
	return Window{
		Mu1:       minimizer.Bound{Lo: 8, Hi: 16},
		Mu2:       minimizer.Bound{Lo: 8, Hi: 16},
		Sigma1:    minimizer.Bound{Lo: 1, Hi: 4},
		Sigma2:    minimizer.Bound{Lo: 2, Hi: 5},
		SigmaDiff: minimizer.Bound{Lo: 0.001, Hi: 4},
		Const:     minimizer.Bound{Lo: 0, Hi: 1},
	}
}

// DefaultXWindow returns the bounds used for the X scan.
func DefaultXWindow() Window {
	w := DefaultWindow()
	w.Mu1 = minimizer.Bound{Lo: 8.5, Hi: 14.6}
	w.Mu2 = minimizer.Bound{Lo: 8.2, Hi: 15.1}
	w.Sigma1 = minimizer.Bound{Lo: 1.0, Hi: 2.9}
	w.Sigma2 = minimizer.Bound{Lo: 2.1, Hi: 4.0}
	return w
}

// DefaultYWindow returns the bounds used for the Y scan.
func DefaultYWindow() Window {
	w := DefaultWindow()
	w.Mu1 = minimizer.Bound{Lo: 8.1, Hi: 15.8}
	w.Mu2 = minimizer.Bound{Lo: 8.4, Hi: 15.6}
	w.Sigma1 = minimizer.Bound{Lo: 1.0, Hi: 2.5}
	w.Sigma2 = minimizer.Bound{Lo: 2.11, Hi: 4.0}
	return w
}

// #endregion window

// #region config
// Config controls a correction run.
type Config struct {
	Steps        int              `yaml:"steps"`       // scan points per axis
	Toys         int              `yaml:"toys"`        // simulated scan pairs
	Factor       float64          `yaml:"factor"`      // scale applied to each beam density
	CountScale   float64          `yaml:"count_scale"` // expected events per unit of scaled overlap
	Seed         uint64           `yaml:"seed"`
	Workers      int              `yaml:"workers"`
	Parametrized bool             `yaml:"parametrized"` // fit sigma2 as sigma1 + sigmaDiff
	Extended     bool             `yaml:"extended"`     // keep per-axis fit details in every toy row
	X            Window           `yaml:"x_window"`
	Y            Window           `yaml:"y_window"`
	Minimizer    minimizer.Config `yaml:"minimizer"`
	Integrator   shape.Integrator `yaml:"-"`
}

// DefaultConfig returns the standard correction settings.
func DefaultConfig() Config {
	mz := minimizer.DefaultConfig()
	mz.ErrorDef = 0.5
	mz.Polish = false
	return Config{
		Steps:      25,
		Toys:       100,
		Factor:     100,
		CountScale: 800,
		Workers:    4,
		Extended:   true,
		X:          DefaultXWindow(),
		Y:          DefaultYWindow(),
		Minimizer:  mz,
		Integrator: shape.DefaultIntegrator(),
	}
}

// #endregion config

// #region results
// Capability flags of a peak model.
type Capability uint8

// CapSigmaDiff marks a peak model whose second width is sigma1 + sigmaDiff.
const CapSigmaDiff Capability = 1 << iota

// ScanFit is the peak-model fit of one simulated scan.
type ScanFit struct {
	Mu1       float64
	Mu2       float64
	Sigma1    float64
	Sigma2    float64 // sigma1 + sigmaDiff when the model has CapSigmaDiff
	SigmaDiff float64
	Const     float64
	Peak      float64
	Area      float64
	ChiSq     float64 // chi-square per used bin of the fitted curve
	NEvents   float64
	Converged bool
	Caps      Capability
}

// ToyResult is one Monte-Carlo iteration. Degenerate toys carry -1 for
// OverlapFit and OverlapDiff and are excluded from the aggregate.
type ToyResult struct {
	Index       int
	X, Y        ScanFit // zero unless Config.Extended
	OverlapTrue float64
	OverlapFit  float64
	OverlapDiff float64
	Degenerate  bool
}

// Result is a finished correction run. Correction is the mean of
// OverlapDiff over usable toys and Uncertainty its population RMS.
type Result struct {
	OverlapTrue float64
	Toys        []ToyResult
	Used        int
	Correction  float64
	Uncertainty float64
}

// #endregion results
