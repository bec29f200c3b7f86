package correction

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/minimizer"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/shape"
)

// #region helpers
func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// roundBeams returns an uncorrelated single-Gaussian field with all widths w.
func roundBeams(t *testing.T, w, factor float64) *shape.Field {
	t.Helper()
	m, err := shape.New("SG", shape.DefaultConfig())
	require.NoError(t, err)
	for _, n := range []string{"xWidthN1", "yWidthN1", "xWidthN2", "yWidthN2"} {
		v, err := m.Variable(n)
		require.NoError(t, err)
		v.SetVal(w)
	}
	for _, n := range []string{"rhoN1", "rhoN2"} {
		v, err := m.Variable(n)
		require.NoError(t, err)
		v.SetVal(0)
	}
	m.SetFactor(factor)
	f, err := m.OverlapFunc()
	require.NoError(t, err)
	return f
}

func testConfig(toys int) Config {
	cfg := DefaultConfig()
	cfg.Toys = toys
	cfg.Seed = 0
	return cfg
}

// #endregion helpers

// #region simulator-tests
func TestPositions_SymmetricAboutZero(t *testing.T) {
	pos := Positions(25)
	assert.Equal(t, -12.0, pos[0])
	assert.Equal(t, 0.0, pos[12])
	assert.Equal(t, 12.0, pos[24])
	assert.Equal(t, []float64{-0.5, 0.5}, Positions(2))
}

func TestTruth_ClosedForm(t *testing.T) {
	s, err := NewSimulator(roundBeams(t, 2, 100), testConfig(1), quietLogger())
	require.NoError(t, err)
	got, err := s.Truth()
	require.NoError(t, err)
	assert.InEpsilon(t, 1/(16*math.Pi), got, 1e-6)
}

func TestRun_ZeroOverlapFails(t *testing.T) {
	f := roundBeams(t, 2, 100)
	f.SetParameter(2, 1000) // beams never meet
	s, err := NewSimulator(f, testConfig(3), quietLogger())
	require.NoError(t, err)
	res, err := s.Run(context.Background(), nil)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, ErrZeroOverlap))
}

func TestRun_AllToysDegenerate(t *testing.T) {
	cfg := testConfig(3)
	cfg.CountScale = 0
	s, err := NewSimulator(roundBeams(t, 2, 100), cfg, quietLogger())
	require.NoError(t, err)
	res, err := s.Run(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrAllToysDegenerate))
	require.NotNil(t, res)
	assert.Zero(t, res.Used)
	for _, toy := range res.Toys {
		assert.True(t, toy.Degenerate)
		assert.Equal(t, -1.0, toy.OverlapDiff)
	}
}

func TestRun_DeterministicAcrossWorkers(t *testing.T) {
	run := func(workers int) *Result {
		cfg := testConfig(4)
		cfg.Seed = 17
		cfg.Workers = workers
		s, err := NewSimulator(roundBeams(t, 2, 100), cfg, quietLogger())
		require.NoError(t, err)
		res, err := s.Run(context.Background(), nil)
		require.NoError(t, err)
		return res
	}
	a, b := run(1), run(4)
	assert.Equal(t, a.Correction, b.Correction)
	assert.Equal(t, a.Uncertainty, b.Uncertainty)
	for i := range a.Toys {
		assert.Equal(t, a.Toys[i].X.NEvents, b.Toys[i].X.NEvents)
	}
}

func TestRun_SingleGaussUnbiased(t *testing.T) {
	s, err := NewSimulator(roundBeams(t, 2, 100), testConfig(50), quietLogger())
	require.NoError(t, err)
	res, err := s.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 50, res.Used)
	assert.InDelta(t, 0, res.Correction, 0.02)
	assert.Less(t, res.Uncertainty, 0.02)

	toy := res.Toys[0]
	assert.Greater(t, toy.X.NEvents, 0.0)
	assert.Greater(t, toy.Y.NEvents, 0.0)
	assert.Greater(t, toy.X.Peak, 0.0)
	assert.InEpsilon(t, toy.X.NEvents, toy.X.Area, 1e-3)
	assert.Zero(t, toy.X.Caps&CapSigmaDiff)
}

func TestRun_EachToySequentialInOrder(t *testing.T) {
	cfg := testConfig(5)
	cfg.Extended = false
	s, err := NewSimulator(roundBeams(t, 2, 100), cfg, quietLogger())
	require.NoError(t, err)

	var order []int
	res, err := s.Run(context.Background(), func(sim *Simulator, rng *rand.Rand) error {
		order = append(order, len(order))
		// widen beam 2 a little each toy
		sim.Field().SetParameter(6, sim.Field().Parameter(6)*1.01)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
	assert.Zero(t, res.Toys[0].X, "compact rows")
	assert.InEpsilon(t, 2*math.Pow(1.01, 5), s.Field().Parameter(6), 1e-12)
}

func TestRun_EachToyErrorStops(t *testing.T) {
	s, err := NewSimulator(roundBeams(t, 2, 100), testConfig(5), quietLogger())
	require.NoError(t, err)
	boom := errors.New("boom")
	_, err = s.Run(context.Background(), func(*Simulator, *rand.Rand) error { return boom })
	assert.True(t, errors.Is(err, boom))
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s, err := NewSimulator(roundBeams(t, 2, 100), testConfig(3), quietLogger())
	require.NoError(t, err)
	_, err = s.Run(ctx, nil)
	assert.True(t, errors.Is(err, context.Canceled))
}

// #endregion simulator-tests

// #region peak-tests
func TestPeakModel_BinProbsSumToOne(t *testing.T) {
	for _, caps := range []Capability{0, CapSigmaDiff} {
		p := peakModel{n: 25, caps: caps}
		probs := make([]float64, 25)
		p.binProbs(probs, []float64{10, 13, 1.5, 1.0, 0.3})
		var sum float64
		for _, v := range probs {
			assert.GreaterOrEqual(t, v, 0.0)
			sum += v
		}
		assert.InDelta(t, 1, sum, 1e-12)
	}
}

func TestFitPeak_RecoversGaussian(t *testing.T) {
	const n, mu, sigma, total = 25, 12.0, 2.5, 1e6
	counts := make([]float64, n)
	for k := range counts {
		lo, hi := float64(k)-0.5, float64(k)+0.5
		counts[k] = total * 0.5 * (math.Erf((hi-mu)/(sigma*math.Sqrt2)) - math.Erf((lo-mu)/(sigma*math.Sqrt2)))
	}
	mz, err := minimizer.New(DefaultConfig().Minimizer)
	require.NoError(t, err)
	fit, err := fitPeak(context.Background(), mz, counts, DefaultWindow(), CapSigmaDiff)
	require.NoError(t, err)

	assert.Equal(t, CapSigmaDiff, fit.Caps)
	assert.InDelta(t, fit.Sigma1+fit.SigmaDiff, fit.Sigma2, 1e-12)
	want := 1 / (math.Sqrt(2*math.Pi) * sigma)
	assert.InEpsilon(t, want, fit.Peak/fit.Area, 1e-3)
	assert.Less(t, fit.ChiSq, 1e-3)
}

// #endregion peak-tests
