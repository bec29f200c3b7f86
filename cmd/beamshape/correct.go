package main

import (
	"fmt"
	"math/rand/v2"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/closure"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/config"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/correction"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/fit"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/logging"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/minimizer"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/shape"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/store"
)

// #region seeded-model
// seededModel builds the job's model from its parameter file or, when
// fromRun is set, from the final values and errors of a stored run.
func (a *app) seededModel(s *store.Store, j *config.Job, fromRun string) (*shape.Model, error) {
	if fromRun == "" {
		m, _, err := a.model(j.Model, j, j.Parameters, nil)
		return m, err
	}
	run, err := s.GetRun(fromRun)
	if err != nil {
		return nil, err
	}
	m, _, err := a.model(run.Model, j, nil, nil)
	if err != nil {
		return nil, err
	}
	rows, err := s.GetParameters(fromRun, "final")
	if err != nil {
		return nil, err
	}
	est := make(map[string]shape.Estimate, len(rows))
	for _, r := range rows {
		est[r.Name] = shape.Estimate{Value: r.Value, Error: r.Error}
	}
	m.ApplyEstimates(est)
	return m, nil
}

// #endregion seeded-model

// #region correct
func newCorrectCmd(a *app) *cobra.Command {
	var fromRun string
	cmd := &cobra.Command{
		Use:   "correct",
		Short: "Compute the xy-correlation correction of a model by simulated vdM scans",
		RunE: func(cmd *cobra.Command, _ []string) error {
			j, err := a.job()
			if err != nil {
				return err
			}
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			m, err := a.seededModel(s, j, fromRun)
			if err != nil {
				return err
			}
			m.SetFactor(j.Factor)
			field, err := m.OverlapFunc()
			if err != nil {
				return err
			}
			sim, err := correction.NewSimulator(field, j.Correction, a.log)
			if err != nil {
				return err
			}
			res, err := sim.Run(cmd.Context(), nil)
			if err != nil {
				return err
			}

			rec, err := s.SaveRun(store.RunRecord{
				Kind:        "correction",
				Name:        j.Name,
				Model:       m.Name(),
				Group:       fromRun,
				Seed:        j.Correction.Seed,
				Converged:   true,
				OverlapTrue: res.OverlapTrue,
				Correction:  res.Correction,
				Uncertainty: res.Uncertainty,
			}, store.Bundle{Toys: res.Toys})
			if err != nil {
				return err
			}
			if err := logging.LogDetail(s.DB(), rec.RunID, "correction_computed", correctionRecord(j.Correction, res)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s overlapTrue=%.6g correction=%.6g uncertainty=%.6g used=%d/%d\n",
				rec.RunID, res.OverlapTrue, res.Correction, res.Uncertainty, res.Used, len(res.Toys))
			return nil
		},
	}
	cmd.Flags().StringVar(&fromRun, "from-run", "", "seed the model from a stored fit")
	return cmd
}

// #endregion correct

// #region overlap
func newOverlapCmd(a *app) *cobra.Command {
	var fromRun string
	var n int
	cmd := &cobra.Command{
		Use:   "overlap",
		Short: "Integrate the overlap of a model and its spread under parameter jitter",
		RunE: func(cmd *cobra.Command, _ []string) error {
			j, err := a.job()
			if err != nil {
				return err
			}
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			m, err := a.seededModel(s, j, fromRun)
			if err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(a.env.Seed, 0))
			v, err := fit.OverlapVariations(m, rng, n, j.Fit.Integrator)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "true=%.8g average=%.8g rms=%.8g used=%d/%d\n",
				v.True, v.Average, v.RMS, v.Used, n)
			return nil
		},
	}
	cmd.Flags().StringVar(&fromRun, "from-run", "", "seed the model from a stored fit")
	cmd.Flags().IntVarP(&n, "variations", "n", 100, "jittered integrals")
	return cmd
}

// #endregion overlap

// #region closure
func newClosureCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "closure",
		Short: "Run closure tests: toys from a truth model, fit, and compare corrections",
		RunE: func(cmd *cobra.Command, _ []string) error {
			j, err := a.job()
			if err != nil {
				return err
			}
			truth, _, err := a.model(j.Closure.TruthModel, j, nil, nil)
			if err != nil {
				return err
			}
			fitModel, _, err := a.model(j.Model, j, nil, nil)
			if err != nil {
				return err
			}
			mz, err := minimizer.New(j.Fit.Minimizer)
			if err != nil {
				return err
			}
			cfg := closure.ClosureConfig{
				Iterations:       j.Closure.Iterations,
				Seed:             a.env.Seed,
				Generator:        j.GeneratorConfig(),
				FitConfig:        j.Fit,
				EvalConfig:       j.Eval,
				CorrectionConfig: j.Correction,
				TruthSpec:        j.Closure.TruthParameters,
				FitSpec:          j.Parameters,
				ReloadEachToy:    j.Closure.ReloadEachToy,
			}
			results, err := closure.Closure(cmd.Context(), truth, fitModel, mz, cfg, a.log)
			if err != nil {
				return err
			}

			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()
			group := fmt.Sprintf("%s_closure_%s_%s", j.Name, j.Closure.TruthModel, j.Model)
			for _, r := range results {
				if err := saveIteration(s, j, group, a.env.Seed, r); err != nil {
					return err
				}
			}

			sum := closure.Summarize(results)
			if err := logging.LogDetail(s.DB(), "", "closure_completed", sum); err != nil {
				a.log.Warn("closure summary not logged", "err", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"iterations=%d passed=%d eval_rejects=%d correction_failed=%d chi2_dof=%.4g truth_corr=%.4g fit_corr=%.4g overlap_ratio=%.4g\n",
				sum.TotalIterations, sum.Passed, sum.EvalRejects, sum.CorrectionFailed,
				sum.MeanChi2Dof, sum.MeanTruthCorr, sum.MeanFitCorr, sum.MeanOverlapRatio)
			return nil
		},
	}
}

func saveIteration(s *store.Store, j *config.Job, group string, seed uint64, r closure.IterationResult) error {
	var rows []store.ParameterRow
	for name, v := range r.Truth {
		rows = append(rows, store.ParameterRow{Stage: "truth", Name: name, Value: v})
	}
	rec := store.RunRecord{
		Kind:        "closure",
		Name:        fmt.Sprintf("%s_%d", j.Name, r.Index),
		Model:       j.Model,
		Group:       group,
		Seed:        seed,
		Status:      r.Action,
		OverlapTrue: r.TruthCorrection.OverlapTrue,
		Correction:  r.FitCorrection.Correction,
		Uncertainty: r.FitCorrection.Uncertainty,
	}
	var b store.Bundle
	if r.Fit != nil {
		rec.Chi2, rec.Dof = sumChi2(r.Scans), sumDof(r.Scans)
		rec.Converged = r.Fit.Converged
		rec.OverlapAverage = r.FitCorrection.OverlapTrue
		b.Scans = r.Scans[:]
		for _, p := range r.Fit.Parameters {
			rows = append(rows, store.ParameterRow{Stage: "final", Name: p.Name, Value: p.Value, Error: p.Error})
		}
	}
	b.Parameters = rows
	_, err := s.SaveRun(rec, b)
	return err
}

// #endregion closure

// #region select-best
func newSelectBestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "select-best GROUP",
		Short: "Point GROUP at its fit with the smallest chi2/dof",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()
			best, err := s.SelectBest(args[0])
			if err != nil {
				return err
			}
			if err := logging.LogDetail(s.DB(), best.RunID, "best_selected", map[string]interface{}{
				"group": args[0], "chi2_dof": best.Chi2Dof(),
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s chi2/dof=%.4f\n", best.RunID, best.Chi2Dof())
			return nil
		},
	}
}

// #endregion select-best

// #region models
func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the registered shape models",
		Run: func(cmd *cobra.Command, _ []string) {
			for _, n := range shape.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
		},
	}
}

// #endregion models
