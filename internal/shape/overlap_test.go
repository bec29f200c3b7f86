package shape

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// #region overlap-tests
func identicalSingleGauss(t *testing.T, w float64) *Model {
	t.Helper()
	m := mustModel(t, "SG")
	for _, n := range []string{"xWidthN1", "yWidthN1", "xWidthN2", "yWidthN2"} {
		set(t, m, n, w, 0)
	}
	set(t, m, "rhoN1", 0, 0)
	set(t, m, "rhoN2", 0, 0)
	return m
}

func TestOverlapIntegral_MatchesClosedForm(t *testing.T) {
	m := identicalSingleGauss(t, 2.0)
	f, err := m.OverlapFunc()
	require.NoError(t, err)

	got := f.Integral(DefaultIntegrator())
	want := 1 / (4 * math.Pi * 2.0 * 2.0)
	assert.InEpsilon(t, want, got, 1e-6)
}

func TestOverlapIntegral_OffsetBeams(t *testing.T) {
	m := identicalSingleGauss(t, 1.5)
	f, err := m.OverlapFunc()
	require.NoError(t, err)
	f.SetParameter(2, 2.0) // beam 2 displaced in x

	got := f.Integral(DefaultIntegrator())
	s2 := 2 * 1.5 * 1.5
	want := math.Exp(-4/(2*s2)) / (2 * math.Pi * s2)
	assert.InEpsilon(t, want, got, 1e-6)
}

func TestOverlap_FactorScalesQuadratically(t *testing.T) {
	m := identicalSingleGauss(t, 2.0)
	m.SetFactor(100)
	f, err := m.OverlapFunc()
	require.NoError(t, err)
	got := f.Integral(DefaultIntegrator()) / (100 * 100)
	assert.InEpsilon(t, 1/(16*math.Pi), got, 1e-6)
}

func TestOverlap_DegenerateReturnsSentinel(t *testing.T) {
	par := []float64{0, 0, 0, 0, 0, 2, 2, 2, 0, 0}
	assert.Equal(t, -1.0, Overlap(FamilySingle, 0, 0, par, 1))

	par = []float64{0, 0, 0, 0, 2, 2, 2, 2, 1, 0}
	assert.Equal(t, -1.0, Overlap(FamilySingle, 0.1, 0.2, par, 1))

	assert.Equal(t, -1.0, Overlap(FamilyDouble, 0, 0, par, 1), "short vector")
}

func TestOverlap_DoubleReducesToSingle(t *testing.T) {
	single := []float64{0.1, 0, 0, 0.2, 1.8, 2.1, 1.9, 2.2, 0.1, -0.2}
	double := append(append([]float64(nil), single...), 1, 1, 3, 3, 3, 3, 0, 0)
	for _, pt := range [][2]float64{{0, 0}, {1, -1}, {2.5, 0.3}} {
		assert.InDelta(t,
			Overlap(FamilySingle, pt[0], pt[1], single, 1),
			Overlap(FamilyDouble, pt[0], pt[1], double, 1), 1e-15)
	}
}

func TestAssignOverlap_CopiesPhysicsValues(t *testing.T) {
	m := mustModel(t, "DG")
	set(t, m, "xWidthN1", 1.7, 0)
	set(t, m, "w2N", 0.4, 0)
	f, err := m.OverlapFunc()
	require.NoError(t, err)
	assert.Equal(t, 18, f.NPar())
	assert.InDelta(t, 1.7, f.Parameter(4), 1e-15)
	assert.InDelta(t, 0.4, f.Parameter(11), 1e-15)
	assert.InDelta(t, val(t, m, "xWidthM1"), f.Parameter(12), 1e-15)
}

func TestAssignOverlap_JitterIsSeededAndClamped(t *testing.T) {
	m := mustModel(t, "SG")
	set(t, m, "rhoN1", 0.48, 5.0)
	set(t, m, "xWidthN1", 2.0, 0.2)

	a := NewField(FamilySingle, 1)
	b := NewField(FamilySingle, 1)
	require.NoError(t, m.AssignOverlap(a, rand.New(rand.NewPCG(7, 0))))
	require.NoError(t, m.AssignOverlap(b, rand.New(rand.NewPCG(7, 0))))
	assert.Equal(t, a.Parameters(), b.Parameters())
	assert.NotEqual(t, 2.0, a.Parameter(4), "width jittered")

	for seed := uint64(0); seed < 200; seed++ {
		f := NewField(FamilySingle, 1)
		require.NoError(t, m.AssignOverlap(f, rand.New(rand.NewPCG(seed, 1))))
		assert.LessOrEqual(t, math.Abs(f.Parameter(8)), 0.999)
	}
}

func TestAssignOverlap_FamilyMismatch(t *testing.T) {
	m := mustModel(t, "SG")
	assert.Error(t, m.AssignOverlap(NewField(FamilyDouble, 1), nil))
}

func TestField_CloneIsIndependent(t *testing.T) {
	f := NewField(FamilySingle, 1)
	g := f.Clone()
	g.SetParameter(0, 3)
	assert.Zero(t, f.Parameter(0))
}

// #endregion overlap-tests

// #region density-tests
func TestScanDensity_Normalised(t *testing.T) {
	for _, name := range []string{"SG", "DG", "TG", "SupG"} {
		m := mustModel(t, name)
		require.NoError(t, m.SetVtxRes(0.5, 0.5, true))
		fns, err := m.ModelFunctions()
		require.NoError(t, err)
		for _, d := range fns {
			k := d.Snapshot()
			require.True(t, k.Valid(), "%s %s", name, d.Name())
			got := FixedRule(k.At, OverlapDomain, OverlapDomain, 200)
			assert.InDelta(t, 1.0, got, 1e-6, "%s %s", name, d.Name())
		}
	}
}

func TestScanDensity_SingleGaussPeak(t *testing.T) {
	m := mustModel(t, "SG")
	set(t, m, "xWidthN1", 2.0, 0)
	set(t, m, "yWidthN1", 1.5, 0)
	set(t, m, "rhoN1", 0, 0)
	set(t, m, "yWidthN2", 2.5, 0)
	set(t, m, "x011", 0.2, 0)
	set(t, m, "y011", -0.1, 0)
	require.NoError(t, m.SetVtxRes(0, 0, true))

	fns, err := m.ModelFunctions()
	require.NoError(t, err)
	x1 := fns[0]
	assert.Equal(t, "beam1RestVerticesUnfold_XScan", x1.Name())

	// x keeps the resting width, y narrows to the product of both profiles
	sy2 := 1 / (1/(1.5*1.5) + 1/(2.5*2.5))
	want := 1 / (2 * math.Pi * 2.0 * math.Sqrt(sy2))
	assert.InDelta(t, want, x1.At(0.2, -0.1), 1e-12)
}

func TestScanDensity_InvalidCorrelation(t *testing.T) {
	m := mustModel(t, "SG")
	v, err := m.Variable("rhoN1")
	require.NoError(t, err)
	v.SetRange(-1, 1)
	v.SetVal(1)
	fns, err := m.ModelFunctions()
	require.NoError(t, err)
	assert.False(t, fns[0].Snapshot().Valid())
	assert.Zero(t, fns[0].At(0, 0))
}

// #endregion density-tests
