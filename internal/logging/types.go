package logging

import "time"

// #region run-event
// RunEvent is a single row in the run_log table.
type RunEvent struct {
	RunID      string
	Event      string // "fit_completed" | "correction_computed" | "best_selected" | "closure_completed"
	Level      string // "info" | "warn" | "error"
	DetailJSON string
	CreatedAt  time.Time
}

// #endregion run-event

// #region fit-record
// FitRecord captures the outcome of a fit and the acceptance checks applied
// to it. Serialized as JSON into run_log.detail_json.
type FitRecord struct {
	Model     string  `json:"model"`
	NBins     int     `json:"nbins"`
	VtxResX   float64 `json:"vtxres_x"`
	VtxResY   float64 `json:"vtxres_y"`
	Method    string  `json:"method"`
	Chi2Dof   float64 `json:"chi2_dof"`
	Converged bool    `json:"converged"`
	Status    string  `json:"status"`
	Evals     int     `json:"evals"`

	// Overlap integral and its spread under parameter jitter
	OverlapTrue    float64 `json:"overlap_true"`
	OverlapAverage float64 `json:"overlap_average"`
	OverlapRMS     float64 `json:"overlap_rms"`

	// Acceptance
	EvalPassed bool     `json:"eval_passed"`
	EvalReason string   `json:"eval_reason"`
	AtLimit    []string `json:"at_limit,omitempty"`
}

// CorrectionRecord captures a finished correction run.
type CorrectionRecord struct {
	Toys        int     `json:"toys"`
	Used        int     `json:"used"`
	Steps       int     `json:"steps"`
	Seed        uint64  `json:"seed"`
	OverlapTrue float64 `json:"overlap_true"`
	Correction  float64 `json:"correction"`
	Uncertainty float64 `json:"uncertainty"`
}

// #endregion fit-record
