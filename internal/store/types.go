package store

import (
	"errors"
	"time"

	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/correction"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/fit"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/hist"
)

// ErrNotFound is returned when a run, histogram or best pointer is missing.
var ErrNotFound = errors.New("not found")

// #region run-record
// RunRecord is one persisted fit, correction or closure run.
type RunRecord struct {
	RunID          string
	Kind           string // "fit" | "correction" | "closure"
	Name           string
	Model          string
	Group          string // runs competing for the same best pointer
	Seed           uint64
	Chi2           float64 // Σchisq over the scans
	Dof            int     // Σdof over the scans
	Converged      bool
	Status         string
	OverlapTrue    float64
	OverlapAverage float64
	OverlapRMS     float64
	Correction     float64
	Uncertainty    float64
	Scaling        float64
	ConfigJSON     string
	CreatedAt      time.Time
}

// Chi2Dof returns Chi2/Dof, or +Inf for a run without dof.
func (r RunRecord) Chi2Dof() float64 {
	if r.Dof == 0 {
		return inf
	}
	return r.Chi2 / float64(r.Dof)
}

// #endregion run-record

// #region parameter-row
// ParameterRow is one parameter value of a run. Stage is "initial" for the
// applied parameter-file settings and "final" for the fitted values.
type ParameterRow struct {
	Stage string
	Name  string
	Value float64
	Error float64
}

// #endregion parameter-row

// #region bundle
// Bundle holds everything saved together with a run.
type Bundle struct {
	Parameters []ParameterRow
	Scans      []fit.ScanChiSq
	Hists      []*hist.Hist2D
	Toys       []correction.ToyResult
}

// #endregion bundle
