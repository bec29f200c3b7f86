package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/closure"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/shape"
)

// #region env-loader
// LoadEnv reads Env from the process environment.
func LoadEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}

// #endregion env-loader

// #region job-loader
// LoadJob reads a YAML or JSON job file. Fields the file leaves out keep
// their DefaultJob values.
func LoadJob(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job %s: %w", path, err)
	}
	j, err := ParseJob(data)
	if err != nil {
		return nil, fmt.Errorf("parse job %s: %w", path, err)
	}
	return j, nil
}

// ParseJob decodes a job onto DefaultJob and validates it.
func ParseJob(data []byte) (*Job, error) {
	j := DefaultJob()
	if err := yaml.Unmarshal(data, &j); err != nil {
		return nil, err
	}
	if err := j.Validate(); err != nil {
		return nil, err
	}
	return &j, nil
}

// Validate rejects jobs that cannot run.
func (j *Job) Validate() error {
	if _, err := shape.New(j.Model, shape.DefaultConfig()); err != nil {
		return fmt.Errorf("model: %w", err)
	}
	if j.NBins < 1 {
		return fmt.Errorf("nbins must be positive, got %d", j.NBins)
	}
	if !(j.Scaling > 0) {
		return fmt.Errorf("scaling must be positive, got %g", j.Scaling)
	}
	if j.Attempts < 1 {
		return fmt.Errorf("attempts must be positive, got %d", j.Attempts)
	}
	if j.Correction.Steps < 2 || j.Correction.Toys < 1 {
		return fmt.Errorf("correction needs steps >= 2 and toys >= 1, got %d and %d", j.Correction.Steps, j.Correction.Toys)
	}
	return nil
}

// #endregion job-loader

// #region apply
// Apply overrides job settings with the environment. Seeds and workers from
// the environment replace the job's only when the job left them unset.
func (j *Job) Apply(e Env) {
	in := j.Fit.Integrator.WithTolerance(e.IntegratorTol)
	j.Fit.Integrator = in
	j.Correction.Integrator = in
	if j.Correction.Seed == 0 {
		j.Correction.Seed = e.Seed
	}
	if e.Workers > 0 {
		j.Correction.Workers = e.Workers
	}
	j.Correction.Factor = j.Factor
}

// VtxRes returns the vertex resolutions, y falling back to x.
func (j *Job) VtxRes() (float64, float64) {
	if j.VtxResY == 0 {
		return j.VtxResX, j.VtxResX
	}
	return j.VtxResX, j.VtxResY
}

// ShapeConfig returns the model construction options.
func (j *Job) ShapeConfig() shape.Config {
	cfg := shape.DefaultConfig()
	if j.HeavyIon {
		cfg.CoordRange = [2]float64{-20, 20}
	}
	return cfg
}

// GeneratorConfig returns the toy generator settings with the job's binning
// and vertex resolution.
func (j *Job) GeneratorConfig() closure.GeneratorConfig {
	g := j.Generator
	g.NBins = j.NBins
	g.Range = j.ShapeConfig().CoordRange
	g.VtxResX, g.VtxResY = j.VtxRes()
	return g
}

// #endregion apply
