package shape

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/vars"
)

// #region helpers
func mustModel(t *testing.T, name string) *Model {
	t.Helper()
	m, err := New(name, DefaultConfig())
	require.NoError(t, err)
	return m
}

func set(t *testing.T, m *Model, name string, val, err float64) {
	t.Helper()
	v, e := m.Variable(name)
	require.NoError(t, e)
	v.SetVal(val)
	v.SetError(err)
}

func val(t *testing.T, m *Model, name string) float64 {
	t.Helper()
	v, err := m.Value(name)
	require.NoError(t, err)
	return v
}

func errOf(t *testing.T, m *Model, name string) float64 {
	t.Helper()
	e, err := m.Error(name)
	require.NoError(t, err)
	return e
}

// #endregion helpers

// #region registry-tests
func TestNew_AllModelsBuild(t *testing.T) {
	dof := map[string]int{
		"SG": 10, "noCorr": 10, "DG": 18, "toyDG": 18, "SupG": 18, "toySupG": 18,
		"TG": 26, "toyTG": 26, "SupDG": 26, "toySupDG": 26,
	}
	for _, name := range Names() {
		m := mustModel(t, name)
		assert.Equal(t, name, m.Name())
		assert.Equal(t, dof[name], m.Dof(), name)
		for _, n := range m.FitNames() {
			_, err := m.Parameter(n)
			assert.NoError(t, err, "%s fit name %s", name, n)
		}
		// every overlap entry and every density input resolves
		_, err := m.OverlapFunc()
		assert.NoError(t, err, name)
		_, err = m.ModelFunctions()
		assert.NoError(t, err, name)
	}
}

func TestNew_UnknownModel(t *testing.T) {
	_, err := New("QG", DefaultConfig())
	assert.True(t, errors.Is(err, ErrUnknownModel))
}

func TestParameter_UnknownName(t *testing.T) {
	m := mustModel(t, "SG")
	_, err := m.Parameter("xWidthM1")
	assert.ErrorIs(t, err, vars.ErrUnknownParameter)
}

func TestParameters_PhysicsFirst(t *testing.T) {
	m := mustModel(t, "DG")
	params := m.Parameters()
	seenNonPhysics := false
	for _, p := range params {
		r, ok := m.Role(p.Name())
		require.True(t, ok)
		if r != RolePhysics {
			seenNonPhysics = true
		} else {
			assert.False(t, seenNonPhysics, "physics parameter %s after fit parameters", p.Name())
		}
	}
	assert.Len(t, params, len(m.Names(RolePhysics))+len(m.Names(RoleFit))+len(m.Names(RoleAuxiliary)))
}

func TestSingleGaussUncorrelated_FixesCorrelations(t *testing.T) {
	m := mustModel(t, "noCorr")
	for _, n := range []string{"rhoN1", "rhoN2"} {
		v, err := m.Variable(n)
		require.NoError(t, err)
		assert.True(t, v.Constant())
		assert.Zero(t, v.Val())
	}
	for _, v := range m.FreeParameters() {
		assert.NotContains(t, []string{"rhoN1", "rhoN2"}, v.Name())
	}
}

func TestSetVtxRes(t *testing.T) {
	m := mustModel(t, "SG")
	require.NoError(t, m.SetVtxRes(0.3, 0.4, true))
	x, _ := m.Variable("xVtxRes")
	y, _ := m.Variable("yVtxRes")
	assert.Equal(t, 0.3, x.Val())
	assert.Equal(t, 0.4, y.Val())
	assert.True(t, x.Constant())
	assert.True(t, y.Constant())
}

// #endregion registry-tests

// #region reparametrisation-tests
func TestDoubleGaussFit_WidthDifferenceAndWeights(t *testing.T) {
	m := mustModel(t, "DG")
	set(t, m, "xWidthN1", 2.0, 0.3)
	set(t, m, "xWidthM1Diff", 0.5, 0.4)
	set(t, m, "w1N", 0.7, 0.05)

	assert.InDelta(t, 2.5, val(t, m, "xWidthM1"), 1e-12)
	assert.InDelta(t, 0.5, errOf(t, m, "xWidthM1"), 1e-12)
	assert.InDelta(t, 0.3, val(t, m, "w1M"), 1e-12)
	assert.InDelta(t, 0.05, errOf(t, m, "w1M"), 1e-12)
}

func TestTripleGaussFit_AngleWeights(t *testing.T) {
	m := mustModel(t, "TG")

	set(t, m, "theta1", 0, 0)
	set(t, m, "phi1", 0.3, 0)
	assert.InDelta(t, 1.0, val(t, m, "w1N"), 1e-12)
	assert.InDelta(t, 0.0, val(t, m, "w1M"), 1e-12)
	assert.InDelta(t, 0.0, val(t, m, "w1W"), 1e-12)

	set(t, m, "theta1", math.Pi/4, 0.1)
	set(t, m, "phi1", math.Pi/4, 0.2)
	assert.InDelta(t, 0.5, val(t, m, "w1N"), 1e-12)
	assert.InDelta(t, 0.25, val(t, m, "w1M"), 1e-12)
	assert.InDelta(t, 0.25, val(t, m, "w1W"), 1e-12)
	// 2 sin cos eθ = 0.1
	assert.InDelta(t, 0.1, errOf(t, m, "w1N"), 1e-12)
	// 2 sinθ cosφ sqrt((eθ cosθ cosφ)^2 + (eφ sinθ sinφ)^2) = sqrt(0.05^2 + 0.1^2)
	assert.InDelta(t, math.Hypot(0.05, 0.1), errOf(t, m, "w1M"), 1e-12)
	assert.InDelta(t, math.Hypot(0.05, 0.1), errOf(t, m, "w1W"), 1e-12)

	set(t, m, "theta1", math.Acos(1/math.Sqrt(3)), 0)
	set(t, m, "phi1", math.Pi/4, 0)
	for _, w := range []string{"w1N", "w1M", "w1W"} {
		assert.InDelta(t, 1.0/3, val(t, m, w), 1e-12, w)
	}
}

func TestTripleGaussFit_StackedWidthErrors(t *testing.T) {
	m := mustModel(t, "TG")
	set(t, m, "yWidthN2", 1.5, 0.1)
	set(t, m, "yWidthM2Diff", 0.4, 0.2)
	set(t, m, "yWidthW2Diff", 0.6, 0.2)
	assert.InDelta(t, 2.5, val(t, m, "yWidthW2"), 1e-12)
	assert.InDelta(t, 0.3, errOf(t, m, "yWidthW2"), 1e-12)
}

func TestTripleGaussToy_FractionWeights(t *testing.T) {
	m := mustModel(t, "toyTG")
	set(t, m, "w2N", 0.6, 0.1)
	set(t, m, "w2MFraction", 0.25, 0.2)
	assert.InDelta(t, 0.1, val(t, m, "w2M"), 1e-12)
	assert.InDelta(t, 0.3, val(t, m, "w2W"), 1e-12)
	assert.InDelta(t, math.Hypot(0.1*0.25, 0.4*0.2), errOf(t, m, "w2M"), 1e-12)
	assert.InDelta(t, math.Hypot(0.1*0.75, 0.4*0.2), errOf(t, m, "w2W"), 1e-12)
}

func TestSuperGaussFit_RatioWidthAndBounds(t *testing.T) {
	m := mustModel(t, "SupG")
	set(t, m, "xWidthM1", 2.0, 0.1)
	set(t, m, "xWidthN1Ratio", 0.8, 0.05)
	set(t, m, "yWidthN1Ratio", 0.6, 0)
	set(t, m, "rhoM1", 0.2, 0)

	assert.InDelta(t, 1.6, val(t, m, "xWidthN1"), 1e-12)
	assert.InDelta(t, math.Hypot(2.0*0.05, 0.8*0.1), errOf(t, m, "xWidthN1"), 1e-12)

	assert.InDelta(t, -0.5833333333333333, val(t, m, "rhoN1Min"), 1e-12)
	assert.InDelta(t, 0.99, val(t, m, "rhoN1Max"), 1e-12)
	assert.Zero(t, errOf(t, m, "rhoN1Min"))

	rhoN, err := m.Variable("rhoN1")
	require.NoError(t, err)
	lo, hi := rhoN.Range()
	assert.InDelta(t, -0.5833333333333333, lo, 1e-12)
	assert.InDelta(t, 0.99, hi, 1e-12)

	set(t, m, "rhoN1", 0.1, 0)
	assert.InDelta(t, 0.48744230427815766, val(t, m, "omega1Max"), 1e-12)
}

func TestSuperGaussFit_WeightsFromOmega(t *testing.T) {
	m := mustModel(t, "SupG")
	set(t, m, "xWidthN1Ratio", 0.9, 0)
	set(t, m, "yWidthN1Ratio", 0.9, 0)
	set(t, m, "rhoM1", 0, 0)
	set(t, m, "rhoN1", 0, 0)
	set(t, m, "omega1", 0.5, 0.1)

	assert.InDelta(t, -1.0, val(t, m, "w1N"), 1e-12)
	assert.InDelta(t, 2.0, val(t, m, "w1M"), 1e-12)
	assert.InDelta(t, 0.1/(1-0.25), errOf(t, m, "w1N"), 1e-12)
	assert.InDelta(t, 0.1/0.25, errOf(t, m, "w1M"), 1e-12)
	assert.InDelta(t, 1.0, val(t, m, "w1N")+val(t, m, "w1M"), 1e-12)
}

func TestSuperGaussToy_InterpolatedCorrelation(t *testing.T) {
	m := mustModel(t, "toySupG")
	set(t, m, "xWidthN1", 1.6, 0)
	set(t, m, "xWidthM1", 2.0, 0)
	set(t, m, "yWidthN1", 1.5, 0)
	set(t, m, "yWidthM1", 2.5, 0)
	set(t, m, "rhoM1", 0.2, 0)
	set(t, m, "rhoN1Factor", 0.5, 0.1)

	lo, hi := val(t, m, "rhoN1Min"), val(t, m, "rhoN1Max")
	assert.InDelta(t, lo+0.5*(hi-lo), val(t, m, "rhoN1"), 1e-12)
	assert.InDelta(t, (hi-lo)*0.1, errOf(t, m, "rhoN1"), 1e-12)

	set(t, m, "omega1Prime", 0.5, 0.2)
	omax := val(t, m, "omega1Max")
	assert.InDelta(t, 0.5*omax, val(t, m, "omega1"), 1e-12)
	assert.InDelta(t, 0.2*omax, errOf(t, m, "omega1"), 1e-12)
}

func TestSuperDoubleGaussFit_WeightsSumToOne(t *testing.T) {
	m := mustModel(t, "SupDG")
	set(t, m, "w1MFraction", 0.3, 0.1)
	o, err := m.Variable("omega1")
	require.NoError(t, err)
	_, hi := o.Range()
	o.SetVal(0.5 * hi)
	o.SetError(0.05)

	sum := val(t, m, "w1N") + val(t, m, "w1M") + val(t, m, "w1W")
	assert.InDelta(t, 1.0, sum, 1e-12)

	w := o.Val()
	assert.InDelta(t, 0.05/((1-w)*(1-w)), errOf(t, m, "w1N"), 1e-12)
	assert.InDelta(t, 1/(1-w)*math.Hypot(0.1, 0.05*0.3/(1-w)), errOf(t, m, "w1M"), 1e-12)
	assert.InDelta(t, 1/(1-w)*math.Hypot(0.1, 0.05*0.7/(1-w)), errOf(t, m, "w1W"), 1e-12)
}

// #endregion reparametrisation-tests

// #region bound-property-tests
func TestSuperBounds_OrderedAndClamped(t *testing.T) {
	rhos := []float64{-0.479, -0.3, -0.1, 0, 0.1, 0.3, 0.479}
	ratios := []float64{0.101, 0.2, 0.35, 0.5, 0.65, 0.8, 0.9, 0.989}
	for _, r := range rhos {
		for _, rx := range ratios {
			for _, ry := range ratios {
				lo, hi := superRhoMin(r, rx, ry), superRhoMax(r, rx, ry)
				assert.LessOrEqual(t, lo, hi)
				assert.GreaterOrEqual(t, lo, -0.99)
				assert.LessOrEqual(t, hi, 0.99)
			}
		}
	}
}

func TestSuperDoubleBounds_OrderedAndClamped(t *testing.T) {
	rhos := []float64{-0.47, -0.3, 0, 0.3, 0.47}
	ratios := []float64{0.11, 0.3, 0.5, 0.8, 0.98}
	wide := []float64{1.003, 1.2, 1.6, 2.3}
	for _, r := range rhos {
		for _, nx := range ratios {
			for _, ny := range ratios {
				for _, wx := range wide {
					for _, wy := range wide {
						lo, hi := superDoubleRhoWMin(r, nx, ny, wx, wy), superDoubleRhoWMax(r, nx, ny, wx, wy)
						require.LessOrEqual(t, lo, hi)
						require.GreaterOrEqual(t, lo, -0.99)
						require.LessOrEqual(t, hi, 0.99)
						for _, f := range []float64{0, 0.5, 1} {
							rw := lo + (hi-lo)*f
							nlo, nhi := superDoubleRhoNMin(r, nx, ny, wx, wy, rw), superDoubleRhoNMax(r, nx, ny, wx, wy, rw)
							assert.LessOrEqual(t, nlo, nhi+1e-12)
							assert.GreaterOrEqual(t, nlo, -0.99)
							assert.LessOrEqual(t, nhi, 0.99)
						}
					}
				}
			}
		}
	}
}

func TestFreeParameters_FloatingBoundsLast(t *testing.T) {
	m := mustModel(t, "SupDG")
	free := m.FreeParameters()
	assert.Len(t, free, len(m.FitNames()))
	idx := map[string]int{}
	firstFloating := -1
	for i, v := range free {
		idx[v.Name()] = i
		if v.Floating() && firstFloating < 0 {
			firstFloating = i
		}
		if firstFloating >= 0 {
			assert.True(t, v.Floating(), "%s after floating block", v.Name())
		}
	}
	assert.Less(t, idx["rhoW1"], idx["rhoN1"])
	assert.Less(t, idx["rhoN1"], idx["omega1"])
	assert.Less(t, idx["rhoW2"], idx["rhoN2"])
}

// #endregion bound-property-tests
