package hist

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// #region fill-tests
func TestFill_BinsAndLost(t *testing.T) {
	h := NewSquare("h", 4, -2, 2)
	h.Fill(-1.5, -1.5)
	h.Fill(-1.5, -1.4)
	h.Fill(1.99, 0)
	h.Fill(2, 0)   // upper edge is open
	h.Fill(0, -10) // outside

	assert.Equal(t, 2.0, h.At(0, 0))
	assert.Equal(t, 1.0, h.At(3, 2))
	assert.Equal(t, 3.0, h.Sum())
	assert.Equal(t, 2.0, h.Lost)
	assert.Equal(t, 1.0, h.BinArea())
}

func TestAxis_CenterAndEdges(t *testing.T) {
	a := Axis{N: 95, Lo: -10, Hi: 10}
	lo, hi := a.Edges(0)
	assert.Equal(t, -10.0, lo)
	assert.InDelta(t, -10+20.0/95, hi, 1e-12)
	assert.InDelta(t, 0, a.Center(47), 1e-12)
	assert.Equal(t, 47, a.Find(0))
	assert.Equal(t, -1, a.Find(10))
}

func TestAdd_RequiresSameBinning(t *testing.T) {
	a := NewSquare("a", 3, 0, 3)
	b := NewSquare("b", 3, 0, 3)
	b.Fill(1.5, 1.5)
	require.NoError(t, a.Add(b))
	assert.Equal(t, 1.0, a.At(1, 1))

	c := NewSquare("c", 4, 0, 3)
	assert.True(t, errors.Is(a.Add(c), ErrShape))
}

func TestClone_IsDeep(t *testing.T) {
	a := NewSquare("a", 2, 0, 2)
	b := a.Clone()
	b.Set(0, 0, 5)
	assert.Zero(t, a.At(0, 0))
}

// #endregion fill-tests

// #region poisson-tests
func TestPoissonInterval_KnownValues(t *testing.T) {
	lo, hi := PoissonInterval(0)
	assert.Zero(t, lo)
	assert.InDelta(t, 1.8410216, hi, 1e-5)

	lo, hi = PoissonInterval(1)
	assert.InDelta(t, 0.8272462, lo, 1e-5)
	assert.InDelta(t, 2.2995266, hi, 1e-5)
}

func TestPoissonInterval_ApproachesSqrtN(t *testing.T) {
	// large n: lower error tends to sqrt(n), upper error to sqrt(n)+1
	lo, hi := PoissonInterval(10000)
	assert.InDelta(t, 100, lo, 0.05)
	assert.InDelta(t, 101, hi, 0.05)
	assert.Less(t, lo, hi)
}

// #endregion poisson-tests

// #region encoding-tests
func TestBinary_RoundTripAndCorruption(t *testing.T) {
	h := New("h", Axis{N: 3, Lo: -1, Hi: 1}, Axis{N: 2, Lo: 0, Hi: 4})
	h.Fill(0, 1)
	h.Fill(5, 5)
	data, err := h.MarshalBinary()
	require.NoError(t, err)

	var got Hist2D
	require.NoError(t, got.UnmarshalBinary(data))
	assert.True(t, got.SameBinning(h))
	assert.Equal(t, h.Counts(), got.Counts())
	assert.Equal(t, 1.0, got.Lost)

	assert.True(t, errors.Is(got.UnmarshalBinary(data[:len(data)-3]), ErrCorrupt))
}

// #endregion encoding-tests
