package fit

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat"

	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/shape"
)

// #region overlap-variations
// Variations is the overlap integral of a fitted model with its spread
// under parameter jitter.
type Variations struct {
	True    float64
	Average float64
	RMS     float64
	Used    int // jittered integrals that were positive
}

// OverlapVariations integrates the model's overlap field, then integrates n
// fields with every physics value drawn from Normal(value, error).
// Non-positive integrals are dropped. With no valid draw every field is -1.
// If the true value differs from the average by less than 1% or more than a
// factor 100 it is recomputed at tolerance 1e-12.
func OverlapVariations(m *shape.Model, rng *rand.Rand, n int, in shape.Integrator) (Variations, error) {
	field, err := m.OverlapFunc()
	if err != nil {
		return Variations{}, fmt.Errorf("overlap variations: %w", err)
	}
	truth := field.Integral(in)

	values := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if err := m.AssignOverlap(field, rng); err != nil {
			return Variations{}, fmt.Errorf("overlap variation %d: %w", i, err)
		}
		v := field.Integral(in)
		if !(v > 0) {
			continue
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return Variations{True: -1, Average: -1, RMS: -1}, nil
	}
	avg, rms := stat.PopMeanStdDev(values, nil)
	if diff := math.Abs(truth-avg) / truth; diff < 0.01 || diff > 100 {
		if err := m.AssignOverlap(field, nil); err != nil {
			return Variations{}, fmt.Errorf("overlap variations: %w", err)
		}
		truth = field.Integral(in.WithTolerance(1e-12))
	}
	return Variations{True: truth, Average: avg, RMS: rms, Used: len(values)}, nil
}

// #endregion overlap-variations

// #region best-of
// Attempt is one repeated fit of the same data.
type Attempt struct {
	ID    string
	Scans [4]ScanChiSq
}

// SelectBest returns the index of the attempt with the smallest Σchisq/Σdof.
// Ties keep the earlier attempt.
func SelectBest(attempts []Attempt) (int, error) {
	if len(attempts) == 0 {
		return -1, ErrNoAttempts
	}
	best, bestVal := 0, TotalChiSq(attempts[0].Scans)
	for i := 1; i < len(attempts); i++ {
		if v := TotalChiSq(attempts[i].Scans); v < bestVal {
			best, bestVal = i, v
		}
	}
	return best, nil
}

// #endregion best-of
