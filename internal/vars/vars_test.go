package vars

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// #region variable-tests
func TestNew_FreeVariableStartsAtMidpoint(t *testing.T) {
	v := New("xWidthN1", 1.3, 3.0)
	assert.InDelta(t, 2.15, v.Val(), 1e-12)
	assert.False(t, v.Constant())
	lo, hi := v.Range()
	assert.Equal(t, 1.3, lo)
	assert.Equal(t, 3.0, hi)
}

func TestNewConstant(t *testing.T) {
	v := NewConstant("w1N", 1.0)
	assert.True(t, v.Constant())
	assert.Equal(t, 1.0, v.Val())
	e, err := v.Err(nil)
	require.NoError(t, err)
	assert.Zero(t, e)
}

func TestSetVal_Clamps(t *testing.T) {
	v := New("rhoN1", -0.48, 0.48)
	v.SetVal(0.9)
	assert.Equal(t, 0.48, v.Val())
	v.SetVal(-2)
	assert.Equal(t, -0.48, v.Val())
}

func TestFix_WidensRange(t *testing.T) {
	v := New("xVtxRes", 0, 5)
	v.Fix(7)
	assert.True(t, v.Constant())
	assert.Equal(t, 7.0, v.Val())
}

func TestFloatingBound_FollowsReference(t *testing.T) {
	wide := New("xWidthM1", 1.3, 3.0)
	wide.SetVal(2.0)
	narrow := New("xWidthN1", 1.0, 10.0)
	narrow.SetFloatingMax(wide)
	narrow.SetVal(2.5)
	assert.Equal(t, 2.0, narrow.Val(), "clamped to floating max")

	wide.SetVal(2.8)
	_, hi := narrow.Range()
	assert.Equal(t, 2.8, hi, "range re-resolves at query time")

	// SetRange keeps the floating end and replaces the constant one.
	narrow.SetRange(1.5, 100)
	lo, hi := narrow.Range()
	assert.Equal(t, 1.5, lo)
	assert.Equal(t, 2.8, hi)
	minB, maxB := narrow.Bounds()
	assert.False(t, minB.Floating())
	assert.True(t, maxB.Floating())
	assert.Same(t, wide, maxB.Reference())
}

// #endregion variable-tests

// #region derived-tests
func widthPair() (Map, *Variable, *Variable) {
	n := New("xWidthN1", 1.3, 3.0)
	d := New("xWidthM1Diff", 0.01, 1.7)
	n.SetVal(2.0)
	n.SetError(0.3)
	d.SetVal(0.5)
	d.SetError(0.4)
	return Map{}.Add(n, d), n, d
}

func TestDerived_ValueTracksInputs(t *testing.T) {
	m, n, _ := widthPair()
	sum, err := NewDerived("xWidthM1", "xWidthN1+xWidthM1Diff",
		[]string{"xWidthN1", "xWidthM1Diff"}, m,
		func(in []float64) float64 { return in[0] + in[1] },
		func(v, e []float64) float64 { return math.Hypot(e[0], e[1]) },
	)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, sum.Val(), 1e-12)

	n.SetVal(2.2)
	assert.InDelta(t, 2.7, sum.Val(), 1e-12)

	e, err := sum.Err(m)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, e, 1e-12)
}

func TestDerived_NestedPropagation(t *testing.T) {
	m, _, _ := widthPair()
	sum, err := NewDerived("xWidthM1", "xWidthN1+xWidthM1Diff",
		[]string{"xWidthN1", "xWidthM1Diff"}, m,
		func(in []float64) float64 { return in[0] + in[1] },
		func(v, e []float64) float64 { return math.Hypot(e[0], e[1]) },
	)
	require.NoError(t, err)
	m.Add(sum)
	double, err := NewDerived("twice", "2*xWidthM1", []string{"xWidthM1"}, m,
		func(in []float64) float64 { return 2 * in[0] },
		func(v, e []float64) float64 { return 2 * e[0] },
	)
	require.NoError(t, err)
	e, err := double.Err(m)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, e, 1e-12)
}

func TestDerived_WithoutPropagationFails(t *testing.T) {
	m, _, _ := widthPair()
	d, err := NewDerived("ratio", "xWidthN1/xWidthM1Diff",
		[]string{"xWidthN1", "xWidthM1Diff"}, m,
		func(in []float64) float64 { return in[0] / in[1] }, nil)
	require.NoError(t, err)

	_, err = d.Err(m)
	assert.True(t, errors.Is(err, ErrNoPropagation))
}

func TestDerived_UnknownInput(t *testing.T) {
	m, _, _ := widthPair()
	_, err := NewDerived("bad", "missing", []string{"missing"}, m,
		func(in []float64) float64 { return in[0] }, nil)
	assert.True(t, errors.Is(err, ErrUnknownParameter))
}

func TestMap_UnknownName(t *testing.T) {
	_, err := Map{}.Parameter("nope")
	assert.ErrorIs(t, err, ErrUnknownParameter)
}

// #endregion derived-tests
