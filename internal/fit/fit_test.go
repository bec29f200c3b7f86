package fit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/hist"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/minimizer"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/shape"
)

// #region helpers
func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func truthModel(t *testing.T) *shape.Model {
	t.Helper()
	m, err := shape.New("SG", shape.DefaultConfig())
	require.NoError(t, err)
	for name, v := range map[string]float64{
		"xWidthN1": 2.0, "yWidthN1": 1.8, "xWidthN2": 2.2, "yWidthN2": 1.6,
		"rhoN1": 0.1, "rhoN2": -0.1,
	} {
		setVal(t, m, name, v)
	}
	require.NoError(t, m.SetVtxRes(0.3, 0.3, true))
	return m
}

func setVal(t *testing.T, m *shape.Model, name string, v float64) {
	t.Helper()
	p, err := m.Variable(name)
	require.NoError(t, err)
	p.SetVal(v)
}

// asimov returns expected-count histograms of m with total events each.
func asimov(t *testing.T, m *shape.Model, nbins int, total float64) [4]*hist.Hist2D {
	t.Helper()
	fns, err := m.ModelFunctions()
	require.NoError(t, err)
	var out [4]*hist.Hist2D
	for i, d := range fns {
		like := hist.NewSquare(d.Name(), nbins, -10, 10)
		h := ModelHist(d, like, true, 0)
		scaleTo(h, total)
		out[i] = h
	}
	return out
}

// #endregion helpers

// #region fit-tests
func TestFit_RecoversAsimovTruth(t *testing.T) {
	m := truthModel(t)
	data := asimov(t, m, 25, 1e5)

	for name, v := range map[string]float64{
		"xWidthN1": 2.3, "yWidthN1": 1.5, "xWidthN2": 1.9, "yWidthN2": 1.9,
		"rhoN1": 0, "rhoN2": 0,
	} {
		setVal(t, m, name, v)
	}

	mz, err := minimizer.New(minimizer.DefaultConfig())
	require.NoError(t, err)
	res, pairs, err := NewFitter(DefaultConfig(), mz, quietLogger()).Fit(context.Background(), m, data)
	require.NoError(t, err)

	assert.Less(t, res.Chi2, 1e-2)
	assert.Len(t, res.Parameters, len(m.FitNames()))
	require.NotNil(t, res.Cov)
	for name, want := range map[string]float64{
		"xWidthN1": 2.0, "yWidthN1": 1.8, "xWidthN2": 2.2, "yWidthN2": 1.6,
	} {
		got, err := m.Value(name)
		require.NoError(t, err)
		assert.InDelta(t, want, got, 0.01, name)
		e, err := m.Error(name)
		require.NoError(t, err)
		assert.Greater(t, e, 0.0, name)
	}

	scans, err := ComputeChiSq(ModelHists(pairs, true, 0), data)
	require.NoError(t, err)
	assert.Less(t, TotalChiSq(scans), 1e-3)
	assert.Equal(t, "beam1RestVerticesUnfold_XScan", scans[0].Scan)
}

func TestFit_NoFreeParameters(t *testing.T) {
	m := truthModel(t)
	for _, v := range m.FreeParameters() {
		v.SetConstant(true)
	}
	mz, err := minimizer.New(minimizer.DefaultConfig())
	require.NoError(t, err)
	_, _, err = NewFitter(DefaultConfig(), mz, quietLogger()).Fit(context.Background(), m, asimov(t, m, 5, 100))
	assert.True(t, errors.Is(err, ErrNoFreeParameters))
}

func TestObjective_MatchesComputeChiSq(t *testing.T) {
	m := truthModel(t)
	data := asimov(t, m, 20, 5e4)
	// round to integer counts so the chi-square is not trivially zero
	for _, h := range data {
		for i := 0; i < h.X.N; i++ {
			for j := 0; j < h.Y.N; j++ {
				h.Set(i, j, float64(int(h.At(i, j)+0.3)))
			}
		}
	}
	setVal(t, m, "xWidthN1", 2.1)

	pairs, err := Pairs(m, data)
	require.NoError(t, err)
	obj := newJoint(pairs).value()
	scans, err := ComputeChiSq(ModelHists(pairs, true, 0), data)
	require.NoError(t, err)
	var sum float64
	for _, s := range scans {
		sum += s.Chisq
	}
	assert.InEpsilon(t, sum, obj, 1e-9)
}

// #endregion fit-tests

// #region chisq-tests
func TestComputeChiSq_HandValues(t *testing.T) {
	var model, data [4]*hist.Hist2D
	for i := range data {
		data[i] = hist.New("d", hist.Axis{N: 2, Lo: 0, Hi: 2}, hist.Axis{N: 1, Lo: 0, Hi: 1})
		data[i].Set(0, 0, 4)
		model[i] = hist.New("m", data[i].X, data[i].Y)
		model[i].Set(0, 0, 1)
		model[i].Set(1, 0, 1)
	}
	scans, err := ComputeChiSq(model, data)
	require.NoError(t, err)

	lo, _ := hist.PoissonInterval(4)
	want := (2 / lo) * (2 / lo)
	for _, s := range scans {
		assert.Equal(t, 1, s.Dof)
		assert.InDelta(t, want, s.Chisq, 1e-12)
	}
	assert.Equal(t, 2.0, model[0].At(1, 0), "model rescaled to data total")
	assert.InDelta(t, want, TotalChiSq(scans), 1e-12)
}

func TestComputeChiSq_BinningMismatch(t *testing.T) {
	var model, data [4]*hist.Hist2D
	for i := range data {
		data[i] = hist.NewSquare("d", 3, 0, 1)
		model[i] = hist.NewSquare("m", 4, 0, 1)
	}
	_, err := ComputeChiSq(model, data)
	assert.True(t, errors.Is(err, hist.ErrShape))
}

func TestResiduals_ScaledAndSigned(t *testing.T) {
	var model, data [4]*hist.Hist2D
	for i := range data {
		data[i] = hist.NewSquare("d", 2, -1, 1)
		model[i] = hist.NewSquare("m", 2, -1, 1)
		data[i].Set(0, 0, 9)
		model[i].Set(0, 0, 4)
		data[i].Set(1, 1, 1)
		model[i].Set(1, 1, 3)
		model[i].Set(0, 1, 2)
	}
	sets, err := Residuals(data, model, 2.5)
	require.NoError(t, err)
	s := sets[0]
	assert.Equal(t, "residualHistX1", s.Residual.Name)
	assert.Equal(t, -2.5, s.Residual.X.Lo)
	assert.Greater(t, s.Residual.At(0, 0), 0.0)
	assert.Less(t, s.Residual.At(1, 1), 0.0)
	assert.Zero(t, s.Residual.At(0, 1), "no data, no residual")
	assert.Equal(t, 2.0, s.Model.At(0, 1))

	lo, _ := hist.PoissonInterval(9)
	assert.InDelta(t, 5/lo, s.Residual.At(0, 0), 1e-12)
}

func TestModelHist_SlowAgreesWithFast(t *testing.T) {
	m := truthModel(t)
	require.NoError(t, m.SetVtxRes(0, 0, true))
	fns, err := m.ModelFunctions()
	require.NoError(t, err)
	like := hist.NewSquare("h", 40, -10, 10)
	slow := ModelHist(fns[0], like, false, 4)
	fast := ModelHist(fns[0], like, true, 0)
	assert.InDelta(t, 1, slow.Sum(), 1e-4)
	assert.InDelta(t, slow.Sum(), fast.Sum(), 1e-3)
	assert.InEpsilon(t, slow.At(20, 20), fast.At(20, 20), 0.02)
}

// #endregion chisq-tests

// #region variations-tests
func TestOverlapVariations_ZeroErrorsReproduceTruth(t *testing.T) {
	m := truthModel(t)
	v, err := OverlapVariations(m, rand.New(rand.NewPCG(1, 2)), 3, shape.DefaultIntegrator())
	require.NoError(t, err)
	assert.Equal(t, 3, v.Used)
	assert.InEpsilon(t, v.True, v.Average, 1e-6)
	assert.InDelta(t, 0, v.RMS, 1e-12)
}

func TestOverlapVariations_JitterSpreads(t *testing.T) {
	m := truthModel(t)
	w, err := m.Variable("xWidthN1")
	require.NoError(t, err)
	w.SetError(0.2)
	v, err := OverlapVariations(m, rand.New(rand.NewPCG(1, 2)), 20, shape.DefaultIntegrator())
	require.NoError(t, err)
	assert.Equal(t, 20, v.Used)
	assert.Greater(t, v.RMS, 0.0)
	assert.InEpsilon(t, v.True, v.Average, 0.1)
}

// #endregion variations-tests

// #region best-tests
func TestSelectBest(t *testing.T) {
	mk := func(c float64, d int) Attempt {
		var a Attempt
		for i := range a.Scans {
			a.Scans[i] = ScanChiSq{Chisq: c, Dof: d}
		}
		return a
	}
	i, err := SelectBest([]Attempt{mk(120, 100), mk(90, 100), mk(45, 50), mk(0, 0)})
	require.NoError(t, err)
	assert.Equal(t, 1, i, "ties keep the earlier attempt, zero dof never wins")

	_, err = SelectBest(nil)
	assert.True(t, errors.Is(err, ErrNoAttempts))
}

// #endregion best-tests
