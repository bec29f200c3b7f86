package eval

import (
	"fmt"
	"strings"

	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/fit"
)

// #region eval-harness
// EvalHarness validates fit results against fixed thresholds.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run checks one fit and its per-scan chi-square. Returns pass/fail with
// metrics.
func (h *EvalHarness) Run(res *fit.Result, scans [4]fit.ScanChiSq) EvalResult {
	var metrics []EvalMetric
	passed := true
	var failReasons []string

	// 1. Goodness of fit over all four scans
	chi2dof := fit.TotalChiSq(scans)
	chiPass := chi2dof <= h.config.MaxChi2Dof
	metrics = append(metrics, EvalMetric{
		Name:  "chi2_dof",
		Value: chi2dof,
		Pass:  chiPass,
	})
	if !chiPass {
		passed = false
		failReasons = append(failReasons, fmt.Sprintf("chi2/dof %.4f exceeds %.4f", chi2dof, h.config.MaxChi2Dof))
	}

	// 2. Per-scan chi-square, informational
	for _, s := range scans {
		v := 0.0
		if s.Dof > 0 {
			v = s.Chisq / float64(s.Dof)
		}
		metrics = append(metrics, EvalMetric{
			Name:  "chi2_dof_" + s.Scan,
			Value: v,
			Pass:  v <= h.config.MaxChi2Dof,
		})
	}

	// 3. Convergence
	conv := 0.0
	if res.Converged {
		conv = 1
	}
	convPass := res.Converged || !h.config.RequireConverged
	metrics = append(metrics, EvalMetric{
		Name:  "converged",
		Value: conv,
		Pass:  convPass,
	})
	if !convPass {
		passed = false
		failReasons = append(failReasons, fmt.Sprintf("minimizer status %s", res.Status))
	}

	// 4. Parameters pinned at a range end
	var pinned []string
	for _, p := range res.Parameters {
		if p.AtLimit {
			pinned = append(pinned, p.Name)
		}
	}
	limitPass := len(pinned) <= h.config.MaxAtLimit
	metrics = append(metrics, EvalMetric{
		Name:  "params_at_limit",
		Value: float64(len(pinned)),
		Pass:  limitPass,
	})
	if !limitPass {
		passed = false
		failReasons = append(failReasons, fmt.Sprintf("%d parameters at limit: %s", len(pinned), strings.Join(pinned, ",")))
	}

	// 5. Covariance: informational only, a missing one does not fail
	covVal := 0.0
	if res.Cov != nil {
		covVal = 1
	}
	metrics = append(metrics, EvalMetric{
		Name:  "covariance",
		Value: covVal,
		Pass:  res.Cov != nil,
	})

	reason := "all checks passed"
	if !passed {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
		if len(failReasons) > 1 {
			reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
		}
	}

	return EvalResult{
		Passed:  passed,
		Metrics: metrics,
		Reason:  reason,
	}
}

// Metric returns the named metric.
func (r EvalResult) Metric(name string) (EvalMetric, bool) {
	for _, m := range r.Metrics {
		if m.Name == name {
			return m, true
		}
	}
	return EvalMetric{}, false
}

// #endregion eval-harness
