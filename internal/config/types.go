package config

import (
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/closure"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/correction"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/eval"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/fit"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/shape"
)

// #region env
// Env holds runtime settings read from the environment.
type Env struct {
	DBPath        string  `env:"BEAMSHAPE_DB" envDefault:"beamshape.db"`
	Seed          uint64  `env:"BEAMSHAPE_SEED" envDefault:"0"`
	Workers       int     `env:"BEAMSHAPE_WORKERS" envDefault:"4"`
	LogLevel      string  `env:"BEAMSHAPE_LOG_LEVEL" envDefault:"info"`
	IntegratorTol float64 `env:"BEAMSHAPE_INTEGRATOR_TOL" envDefault:"1e-7"`
}

// #endregion env

// #region job
// Job describes one fit, correction or closure run.
type Job struct {
	Name       string              `yaml:"name"`
	Model      string              `yaml:"model"`
	NBins      int                 `yaml:"nbins"`
	VtxResX    float64             `yaml:"vtxres_x"`
	VtxResY    float64             `yaml:"vtxres_y"` // defaults to VtxResX
	Scaling    float64             `yaml:"scaling"`
	HeavyIon   bool                `yaml:"heavyion"` // widens the coordinate range to ±20
	Factor     float64             `yaml:"factor"`   // overlap scale for the correction
	Attempts   int                 `yaml:"attempts"` // repeated randomised fits, best kept
	Parameters shape.ParameterSpec `yaml:"parameters"`
	Data       DataSource          `yaml:"data"`

	Fit        fit.Config              `yaml:"fit"`
	Eval       eval.EvalConfig         `yaml:"eval"`
	Correction correction.Config       `yaml:"correction"`
	Generator  closure.GeneratorConfig `yaml:"generator"`
	Closure    ClosureJob              `yaml:"closure"`
}

// DataSource names the stored run and histograms a fit reads, in scan order.
type DataSource struct {
	RunID string    `yaml:"run_id"`
	Hists [4]string `yaml:"hists"`
}

// ClosureJob holds the closure-specific part of a job.
type ClosureJob struct {
	Iterations      int                 `yaml:"iterations"`
	TruthModel      string              `yaml:"truth_model"`
	TruthParameters shape.ParameterSpec `yaml:"truth_parameters"`
	ReloadEachToy   bool                `yaml:"reload_each_toy"`
}

// DefaultJob returns a single-Gaussian job with standard stage settings.
func DefaultJob() Job {
	var hists [4]string
	for i, s := range closure.ToyScans {
		hists[i] = s.Name
	}
	gen := closure.DefaultGeneratorConfig()
	return Job{
		Name:       "beamshape",
		Model:      "SG",
		NBins:      gen.NBins,
		Scaling:    1,
		Factor:     100,
		Attempts:   1,
		Data:       DataSource{Hists: hists},
		Fit:        fit.DefaultConfig(),
		Eval:       eval.DefaultEvalConfig(),
		Correction: correction.DefaultConfig(),
		Generator:  gen,
		Closure:    ClosureJob{Iterations: 1, TruthModel: "SG"},
	}
}

// #endregion job
