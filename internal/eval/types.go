package eval

// #region eval-config
// EvalConfig holds the acceptance thresholds of a finished fit.
type EvalConfig struct {
	MaxChi2Dof       float64 `yaml:"max_chi2_dof"`      // reject if Σchisq/Σdof exceeds this
	RequireConverged bool    `yaml:"require_converged"` // reject fits the minimizer did not report converged
	MaxAtLimit       int     `yaml:"max_at_limit"`      // reject if more parameters than this sit at a range end
}

// DefaultEvalConfig returns the standard acceptance thresholds.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		MaxChi2Dof:       2.0,
		RequireConverged: true,
		MaxAtLimit:       0,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single validation check result.
type EvalMetric struct {
	Name  string
	Value float64
	Pass  bool
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the outcome of fit validation.
type EvalResult struct {
	Passed  bool
	Metrics []EvalMetric
	Reason  string
}

// #endregion eval-result
