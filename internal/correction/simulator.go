package correction

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/minimizer"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/shape"
)

// #region simulator
// Simulator estimates the bias of the factorised van der Meer overlap
// against the true two-dimensional overlap of a field.
type Simulator struct {
	cfg   Config
	field *shape.Field
	mz    minimizer.Minimizer
	log   *slog.Logger
}

// EachToy prepares the simulator before a toy is generated, for example by
// re-jittering the field. It runs sequentially in toy order.
type EachToy func(s *Simulator, rng *rand.Rand) error

// NewSimulator returns a simulator for field. The field's factor should
// equal cfg.Factor.
func NewSimulator(field *shape.Field, cfg Config, log *slog.Logger) (*Simulator, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Steps < 2 {
		return nil, fmt.Errorf("new simulator: need at least 2 steps, got %d", cfg.Steps)
	}
	mz, err := minimizer.New(cfg.Minimizer)
	if err != nil {
		return nil, fmt.Errorf("new simulator: %w", err)
	}
	return &Simulator{cfg: cfg, field: field, mz: mz, log: log}, nil
}

// Field returns the field toys are generated from.
func (s *Simulator) Field() *shape.Field { return s.field }

// SetField replaces the field toys are generated from.
func (s *Simulator) SetField(f *shape.Field) { s.field = f }

// Config returns the simulator's configuration.
func (s *Simulator) Config() Config { return s.cfg }

// Truth returns the overlap integral divided by the squared factor.
func (s *Simulator) Truth() (float64, error) {
	v := s.field.Integral(s.cfg.Integrator) / (s.cfg.Factor * s.cfg.Factor)
	if v == 0 {
		return 0, ErrZeroOverlap
	}
	return v, nil
}

// #endregion simulator

// #region scan-profile
// scanAxis describes which field entries move during a scan.
type scanAxis struct {
	fixed, moving int
	window        Window
}

func (s *Simulator) axes() [2]scanAxis {
	return [2]scanAxis{
		{fixed: 0, moving: 2, window: s.cfg.X},
		{fixed: 1, moving: 3, window: s.cfg.Y},
	}
}

// Positions returns the moving beam's offset at every step. The fixed beam
// stays at zero.
func Positions(steps int) []float64 {
	pos := make([]float64, steps)
	for i := range pos {
		pos[i] = float64(i) - 0.5*float64(steps-1)
	}
	return pos
}

// profile returns the expected event count at every step of one scan.
func (s *Simulator) profile(f *shape.Field, a scanAxis) []float64 {
	f = f.Clone()
	out := make([]float64, s.cfg.Steps)
	for i, p := range Positions(s.cfg.Steps) {
		f.SetParameter(a.fixed, 0)
		f.SetParameter(a.moving, p)
		out[i] = math.Max(0, s.cfg.CountScale*f.Integral(s.cfg.Integrator))
	}
	return out
}

func (s *Simulator) profiles(f *shape.Field) [2][]float64 {
	ax := s.axes()
	return [2][]float64{s.profile(f, ax[0]), s.profile(f, ax[1])}
}

func draw(expected []float64, rng *rand.Rand) []float64 {
	counts := make([]float64, len(expected))
	for i, l := range expected {
		if l > 0 {
			counts[i] = distuv.Poisson{Lambda: l, Src: rng}.Rand()
		}
	}
	return counts
}

// #endregion scan-profile

// #region run
// Run simulates cfg.Toys scan pairs and aggregates the fractional
// difference between fitted and true overlap. With each == nil the expected
// scan profiles are computed once and shared by all toys. Toy i draws from
// a PCG stream seeded with (cfg.Seed, i), so results do not depend on the
// number of workers.
func (s *Simulator) Run(ctx context.Context, each EachToy) (*Result, error) {
	truth, err := s.Truth()
	if err != nil {
		return nil, fmt.Errorf("run correction: %w", err)
	}

	var shared [2][]float64
	if each == nil {
		shared = s.profiles(s.field)
	}

	toys := make([]ToyResult, s.cfg.Toys)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, s.cfg.Workers))
	for i := range toys {
		if err := gctx.Err(); err != nil {
			break
		}
		rng := rand.New(rand.NewPCG(s.cfg.Seed, uint64(i)))
		prof := shared
		var field *shape.Field
		if each != nil {
			if err := each(s, rng); err != nil {
				_ = g.Wait()
				return nil, fmt.Errorf("prepare toy %d: %w", i, err)
			}
			field = s.field.Clone()
		}
		g.Go(func() error {
			if field != nil {
				prof = s.profiles(field)
			}
			t, err := s.toy(gctx, i, truth, prof, rng)
			if err != nil {
				return fmt.Errorf("toy %d: %w", i, err)
			}
			toys[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run correction: %w", err)
	}
	return s.aggregate(truth, toys)
}

func (s *Simulator) toy(ctx context.Context, i int, truth float64, prof [2][]float64, rng *rand.Rand) (ToyResult, error) {
	t := ToyResult{Index: i, OverlapTrue: truth}
	var caps Capability
	if s.cfg.Parametrized {
		caps |= CapSigmaDiff
	}
	var fits [2]ScanFit
	for k, a := range s.axes() {
		counts := draw(prof[k], rng)
		fit, err := fitPeak(ctx, s.mz, counts, a.window, caps)
		if err != nil {
			return t, err
		}
		fits[k] = fit
	}
	if s.cfg.Extended {
		t.X, t.Y = fits[0], fits[1]
	}
	fx, fy := fits[0], fits[1]
	if !(fx.Area > 0) || !(fy.Area > 0) {
		t.Degenerate = true
		t.OverlapFit, t.OverlapDiff = -1, -1
		return t, nil
	}
	t.OverlapFit = fx.Peak / fx.Area * fy.Peak / fy.Area
	t.OverlapDiff = (t.OverlapFit - truth) / truth
	if math.IsNaN(t.OverlapDiff) || math.IsInf(t.OverlapDiff, 0) {
		t.Degenerate = true
		t.OverlapFit, t.OverlapDiff = -1, -1
	}
	return t, nil
}

func (s *Simulator) aggregate(truth float64, toys []ToyResult) (*Result, error) {
	diffs := make([]float64, 0, len(toys))
	for _, t := range toys {
		if !t.Degenerate {
			diffs = append(diffs, t.OverlapDiff)
		}
	}
	r := &Result{OverlapTrue: truth, Toys: toys, Used: len(diffs)}
	if len(diffs) == 0 {
		return r, fmt.Errorf("aggregate %d toys: %w", len(toys), ErrAllToysDegenerate)
	}
	r.Correction, r.Uncertainty = stat.PopMeanStdDev(diffs, nil)
	s.log.Info("correction computed",
		"toys", len(toys),
		"used", r.Used,
		"overlap_true", truth,
		"correction", r.Correction,
		"uncertainty", r.Uncertainty,
	)
	return r, nil
}

// #endregion run
