package main

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/closure"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/config"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/correction"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/eval"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/fit"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/hist"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/logging"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/minimizer"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/shape"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/store"
)

// #region generate
func newGenerateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Generate toy vertex scans from the job's model and store them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			j, err := a.job()
			if err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(a.env.Seed, 0))
			m, _, err := a.model(j.Model, j, j.Parameters, nil)
			if err != nil {
				return err
			}
			m.SetFactor(j.Factor)
			field, err := m.OverlapFunc()
			if err != nil {
				return err
			}
			gen, err := closure.NewGenerator(field, rng, j.Fit.Integrator, j.GeneratorConfig())
			if err != nil {
				return err
			}
			hs, ns := gen.GenerateToys()

			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()
			rec, err := s.SaveRun(store.RunRecord{
				Kind:  "toys",
				Name:  j.Name,
				Model: j.Model,
				Seed:  a.env.Seed,
			}, store.Bundle{Parameters: truthRows(m), Hists: hs[:]})
			if err != nil {
				return err
			}
			a.log.Info("toys generated", "run", rec.RunID, "events", ns)
			fmt.Fprintln(cmd.OutOrStdout(), rec.RunID)
			return nil
		},
	}
}

// truthRows records every fit parameter of m as an initial value.
func truthRows(m *shape.Model) []store.ParameterRow {
	var rows []store.ParameterRow
	for _, n := range m.FitNames() {
		v, err := m.Value(n)
		if err != nil {
			continue
		}
		rows = append(rows, store.ParameterRow{Stage: "initial", Name: n, Value: v})
	}
	return rows
}

// #endregion generate

// #region fit
func newFitCmd(a *app) *cobra.Command {
	var dataRun string
	var skipCorrection bool
	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Fit the job's model to stored scan histograms",
		RunE: func(cmd *cobra.Command, _ []string) error {
			j, err := a.job()
			if err != nil {
				return err
			}
			if dataRun != "" {
				j.Data.RunID = dataRun
			}
			if j.Data.RunID == "" {
				return fmt.Errorf("no data run: set data.run_id or --data")
			}
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			var data [4]*hist.Hist2D
			for i, name := range j.Data.Hists {
				if data[i], err = s.GetHistogram(j.Data.RunID, name); err != nil {
					return err
				}
			}

			group := fmt.Sprintf("%s_%s", j.Name, j.Model)
			for attempt := 0; attempt < j.Attempts; attempt++ {
				rng := rand.New(rand.NewPCG(a.env.Seed, uint64(attempt)))
				runID, err := a.fitAttempt(cmd, s, j, data, group, rng, !skipCorrection)
				if err != nil {
					return fmt.Errorf("attempt %d: %w", attempt, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), runID)
			}

			best, err := s.SelectBest(group)
			if err != nil {
				return err
			}
			if err := logging.LogDetail(s.DB(), best.RunID, "best_selected", map[string]interface{}{
				"group": group, "chi2_dof": best.Chi2Dof(),
			}); err != nil {
				return err
			}
			a.log.Info("best selected", "group", group, "run", best.RunID, "chi2_dof", best.Chi2Dof())
			return nil
		},
	}
	cmd.Flags().StringVar(&dataRun, "data", "", "stored run holding the scan histograms")
	cmd.Flags().BoolVar(&skipCorrection, "no-correction", false, "skip the correction of the fitted model")
	return cmd
}

// fitAttempt runs one randomised fit with its chi-square, residuals,
// overlap variations and correction, and stores the lot.
func (a *app) fitAttempt(cmd *cobra.Command, s *store.Store, j *config.Job, data [4]*hist.Hist2D, group string, rng *rand.Rand, correct bool) (string, error) {
	ctx := cmd.Context()
	m, applied, err := a.model(j.Model, j, j.Parameters, rng)
	if err != nil {
		return "", err
	}
	mz, err := minimizer.New(j.Fit.Minimizer)
	if err != nil {
		return "", err
	}
	res, pairs, err := fit.NewFitter(j.Fit, mz, a.log).Fit(ctx, m, data)
	if err != nil {
		return "", err
	}
	scans, err := fit.ComputeChiSq(fit.ModelHists(pairs, j.Fit.Fast, j.Fit.BinPoints), data)
	if err != nil {
		return "", err
	}
	ev := eval.NewEvalHarness(j.Eval).Run(res, scans)

	var models [4]*hist.Hist2D
	for i, p := range pairs {
		models[i] = fit.ModelHist(p.Density, p.Data, j.Fit.Fast, j.Fit.BinPoints)
	}
	resid, err := fit.Residuals(data, models, j.Scaling)
	if err != nil {
		return "", err
	}

	vars := fit.Variations{True: -1, Average: -1, RMS: -1}
	if j.Fit.Variations > 0 {
		if vars, err = fit.OverlapVariations(m, rng, j.Fit.Variations, j.Fit.Integrator); err != nil {
			return "", err
		}
	}

	var corr *correction.Result
	if correct {
		m.SetFactor(j.Factor)
		field, err := m.OverlapFunc()
		if err != nil {
			return "", err
		}
		sim, err := correction.NewSimulator(field, j.Correction, a.log)
		if err != nil {
			return "", err
		}
		if corr, err = sim.Run(ctx, nil); err != nil {
			a.log.Warn("correction failed", "model", m.Name(), "err", err)
			corr = nil
		}
		m.SetFactor(1)
	}

	rows, err := parameterRows(m, applied)
	if err != nil {
		return "", err
	}
	bundle := store.Bundle{Parameters: rows, Scans: scans[:]}
	for _, r := range resid {
		bundle.Hists = append(bundle.Hists, r.Data, r.Model, r.Residual)
	}
	cfgJSON, err := json.Marshal(j)
	if err != nil {
		return "", fmt.Errorf("marshal job: %w", err)
	}
	rec := store.RunRecord{
		Kind:           "fit",
		Name:           j.Name,
		Model:          j.Model,
		Group:          group,
		Seed:           a.env.Seed,
		Chi2:           sumChi2(scans),
		Dof:            sumDof(scans),
		Converged:      res.Converged,
		Status:         res.Status,
		OverlapTrue:    vars.True,
		OverlapAverage: vars.Average,
		OverlapRMS:     vars.RMS,
		Scaling:        j.Scaling,
		ConfigJSON:     string(cfgJSON),
	}
	if corr != nil {
		rec.Correction, rec.Uncertainty = corr.Correction, corr.Uncertainty
		bundle.Toys = corr.Toys
	}
	rec, err = s.SaveRun(rec, bundle)
	if err != nil {
		return "", err
	}

	vx, vy := j.VtxRes()
	detail := logging.FitRecord{
		Model:          j.Model,
		NBins:          j.NBins,
		VtxResX:        vx,
		VtxResY:        vy,
		Method:         string(j.Fit.Minimizer.Method),
		Chi2Dof:        fit.TotalChiSq(scans),
		Converged:      res.Converged,
		Status:         res.Status,
		Evals:          res.Evals,
		OverlapTrue:    vars.True,
		OverlapAverage: vars.Average,
		OverlapRMS:     vars.RMS,
		EvalPassed:     ev.Passed,
		EvalReason:     ev.Reason,
	}
	for _, p := range res.Parameters {
		if p.AtLimit {
			detail.AtLimit = append(detail.AtLimit, p.Name)
		}
	}
	if err := logging.LogDetail(s.DB(), rec.RunID, "fit_completed", detail); err != nil {
		return "", err
	}
	if corr != nil {
		if err := logging.LogDetail(s.DB(), rec.RunID, "correction_computed", correctionRecord(j.Correction, corr)); err != nil {
			return "", err
		}
	}
	return rec.RunID, nil
}

// parameterRows records the applied settings as initial rows and every
// parameter state as a final row.
func parameterRows(m *shape.Model, applied []shape.NamedValue) ([]store.ParameterRow, error) {
	var rows []store.ParameterRow
	for _, a := range applied {
		rows = append(rows, store.ParameterRow{Stage: "initial", Name: a.Name, Value: a.Value})
	}
	states, err := m.States()
	if err != nil {
		return nil, err
	}
	for _, st := range states {
		rows = append(rows, store.ParameterRow{Stage: "final", Name: st.Name, Value: st.Value, Error: st.Error})
	}
	return rows, nil
}

func correctionRecord(cfg correction.Config, r *correction.Result) logging.CorrectionRecord {
	return logging.CorrectionRecord{
		Toys:        len(r.Toys),
		Used:        r.Used,
		Steps:       cfg.Steps,
		Seed:        cfg.Seed,
		OverlapTrue: r.OverlapTrue,
		Correction:  r.Correction,
		Uncertainty: r.Uncertainty,
	}
}

func sumChi2(scans [4]fit.ScanChiSq) float64 {
	var c float64
	for _, s := range scans {
		c += s.Chisq
	}
	return c
}

func sumDof(scans [4]fit.ScanChiSq) int {
	var d int
	for _, s := range scans {
		d += s.Dof
	}
	return d
}

// #endregion fit
