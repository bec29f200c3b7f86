package closure

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat"

	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/correction"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/eval"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/fit"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/minimizer"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/shape"
)

// #region types
// ClosureConfig bundles generator, fit, eval and correction configs for a
// closure run.
type ClosureConfig struct {
	Iterations       int
	Seed             uint64
	Generator        GeneratorConfig
	FitConfig        fit.Config
	EvalConfig       eval.EvalConfig
	CorrectionConfig correction.Config
	TruthSpec        shape.ParameterSpec // reloaded with a random draw before every iteration when set
	FitSpec          shape.ParameterSpec // reloaded before every fit when set
	ReloadEachToy    bool                // redraw TruthSpec before every truth-correction toy
}

// DefaultClosureConfig returns sensible defaults for all pipeline stages.
func DefaultClosureConfig() ClosureConfig {
	return ClosureConfig{
		Iterations:       1,
		Generator:        DefaultGeneratorConfig(),
		FitConfig:        fit.DefaultConfig(),
		EvalConfig:       eval.DefaultEvalConfig(),
		CorrectionConfig: correction.DefaultConfig(),
	}
}

// CorrectionSummary is the aggregate of one correction run.
type CorrectionSummary struct {
	OverlapTrue float64
	Correction  float64
	Uncertainty float64
	Used        int
}

// IterationResult captures one truth → toys → fit → correction pass.
type IterationResult struct {
	Index  int
	Action string // "pass" | "eval_reject" | "correction_failed"
	Reason string

	NEvents [4]int
	Truth   map[string]float64 // truth fit-parameter values

	// Truth-model correction
	TruthCorrection CorrectionSummary

	// Fit stage
	Fit   *fit.Result
	Scans [4]fit.ScanChiSq
	Eval  eval.EvalResult

	// Fit-model correction (zero if it failed)
	FitCorrection CorrectionSummary
}

// ClosureSummary provides aggregate stats from a closure run.
type ClosureSummary struct {
	TotalIterations  int
	Passed           int
	EvalRejects      int
	CorrectionFailed int
	MeanChi2Dof      float64
	MeanTruthCorr    float64
	MeanFitCorr      float64
	MeanOverlapRatio float64 // fitted-model over truth-model overlap
}

// #endregion types

// #region closure
// Closure runs the closure pipeline per iteration: generate toy scans from
// the truth model, correct the truth model, fit the fit model to the toys,
// validate the fit, then correct the fitted model. Iteration i draws from a
// PCG stream seeded with (Seed, i).
func Closure(ctx context.Context, truth, model *shape.Model, mz minimizer.Minimizer, config ClosureConfig, log *slog.Logger) ([]IterationResult, error) {
	if log == nil {
		log = slog.Default()
	}
	truth.SetFactor(config.CorrectionConfig.Factor)
	model.SetFactor(config.CorrectionConfig.Factor)
	for _, m := range []*shape.Model{truth, model} {
		if err := m.SetVtxRes(config.Generator.VtxResX, config.Generator.VtxResY, true); err != nil {
			return nil, fmt.Errorf("closure: %w", err)
		}
	}
	fitter := fit.NewFitter(config.FitConfig, mz, log)
	evalInst := eval.NewEvalHarness(config.EvalConfig)
	results := make([]IterationResult, 0, config.Iterations)

	for i := 0; i < config.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("closure iteration %d: %w", i, err)
		}
		rng := rand.New(rand.NewPCG(config.Seed, uint64(i)))
		r := IterationResult{Index: i, Truth: map[string]float64{}}

		// 1. Truth model and toys
		if config.TruthSpec != nil {
			if _, err := truth.LoadParameters(config.TruthSpec, rng, log); err != nil {
				return results, fmt.Errorf("closure iteration %d: load truth: %w", i, err)
			}
		}
		for _, name := range truth.FitNames() {
			v, err := truth.Value(name)
			if err != nil {
				return results, fmt.Errorf("closure iteration %d: %w", i, err)
			}
			r.Truth[name] = v
		}
		field, err := truth.OverlapFunc()
		if err != nil {
			return results, fmt.Errorf("closure iteration %d: %w", i, err)
		}
		gen, err := NewGenerator(field, rng, config.FitConfig.Integrator, config.Generator)
		if err != nil {
			return results, err
		}
		data, nev := gen.GenerateToys()
		r.NEvents = nev

		// 2. Truth correction
		var each correction.EachToy
		if config.ReloadEachToy && config.TruthSpec != nil {
			each = reloadEachToy(truth, config.TruthSpec, log)
		}
		r.TruthCorrection, err = correct(ctx, field, config.CorrectionConfig, rng.Uint64(), each, log)
		if err != nil {
			r.Action, r.Reason = "correction_failed", fmt.Sprintf("truth: %v", err)
			results = append(results, r)
			continue
		}

		// 3. Fit with positions fixed at the truth
		if config.FitSpec != nil {
			if _, err := model.LoadParameters(config.FitSpec, nil, log); err != nil {
				return results, fmt.Errorf("closure iteration %d: load fit: %w", i, err)
			}
		}
		if err := fixPositions(model, r.Truth); err != nil {
			return results, fmt.Errorf("closure iteration %d: %w", i, err)
		}
		res, pairs, err := fitter.Fit(ctx, model, data)
		if err != nil {
			return results, fmt.Errorf("closure iteration %d: %w", i, err)
		}
		r.Fit = res
		r.Scans, err = fit.ComputeChiSq(fit.ModelHists(pairs, config.FitConfig.Fast, config.FitConfig.BinPoints), data)
		if err != nil {
			return results, fmt.Errorf("closure iteration %d: %w", i, err)
		}

		// 4. Eval
		r.Eval = evalInst.Run(res, r.Scans)
		if !r.Eval.Passed {
			r.Action, r.Reason = "eval_reject", r.Eval.Reason
			results = append(results, r)
			continue
		}

		// 5. Fit-model correction
		fitted, err := model.OverlapFunc()
		if err != nil {
			return results, fmt.Errorf("closure iteration %d: %w", i, err)
		}
		r.FitCorrection, err = correct(ctx, fitted, config.CorrectionConfig, rng.Uint64(), nil, log)
		if err != nil {
			r.Action, r.Reason = "correction_failed", fmt.Sprintf("fit: %v", err)
			results = append(results, r)
			continue
		}

		r.Action, r.Reason = "pass", r.Eval.Reason
		results = append(results, r)
		log.Info("closure iteration",
			"index", i,
			"chi2_dof", fit.TotalChiSq(r.Scans),
			"truth_corr", r.TruthCorrection.Correction,
			"fit_corr", r.FitCorrection.Correction,
		)
	}

	return results, nil
}

func correct(ctx context.Context, field *shape.Field, cfg correction.Config, seed uint64, each correction.EachToy, log *slog.Logger) (CorrectionSummary, error) {
	cfg.Seed = seed
	sim, err := correction.NewSimulator(field, cfg, log)
	if err != nil {
		return CorrectionSummary{}, err
	}
	res, err := sim.Run(ctx, each)
	if err != nil {
		return CorrectionSummary{}, err
	}
	return CorrectionSummary{
		OverlapTrue: res.OverlapTrue,
		Correction:  res.Correction,
		Uncertainty: res.Uncertainty,
		Used:        res.Used,
	}, nil
}

// reloadEachToy redraws the truth model from spec before every toy, so the
// correction averages over the spread of truth shapes.
func reloadEachToy(truth *shape.Model, spec shape.ParameterSpec, log *slog.Logger) correction.EachToy {
	return func(s *correction.Simulator, rng *rand.Rand) error {
		if _, err := truth.LoadParameters(spec, rng, log); err != nil {
			return err
		}
		f, err := truth.OverlapFunc()
		if err != nil {
			return err
		}
		s.SetField(f)
		return nil
	}
}

// fixPositions makes the model's beam offsets constant at the truth values.
func fixPositions(model *shape.Model, truth map[string]float64) error {
	for _, name := range shape.PositionNames() {
		v, err := model.Variable(name)
		if err != nil {
			return err
		}
		tv, ok := truth[name]
		if !ok {
			return fmt.Errorf("fix %s: no truth value", name)
		}
		v.Fix(tv)
	}
	return nil
}

// Summarize computes aggregate stats from closure results.
func Summarize(results []IterationResult) ClosureSummary {
	s := ClosureSummary{TotalIterations: len(results)}
	var chi, tc, fc, ratio []float64
	for _, r := range results {
		switch r.Action {
		case "pass":
			s.Passed++
			chi = append(chi, fit.TotalChiSq(r.Scans))
			tc = append(tc, r.TruthCorrection.Correction)
			fc = append(fc, r.FitCorrection.Correction)
			if r.TruthCorrection.OverlapTrue != 0 {
				ratio = append(ratio, r.FitCorrection.OverlapTrue/r.TruthCorrection.OverlapTrue)
			}
		case "eval_reject":
			s.EvalRejects++
		case "correction_failed":
			s.CorrectionFailed++
		}
	}
	if len(chi) > 0 {
		s.MeanChi2Dof = stat.Mean(chi, nil)
		s.MeanTruthCorr = stat.Mean(tc, nil)
		s.MeanFitCorr = stat.Mean(fc, nil)
	}
	if len(ratio) > 0 {
		s.MeanOverlapRatio = stat.Mean(ratio, nil)
	}
	return s
}

// #endregion closure
