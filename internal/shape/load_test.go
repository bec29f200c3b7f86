package shape

import (
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// #region load-tests
func TestLoadParameters_ConstRangeIni(t *testing.T) {
	m := mustModel(t, "SG")
	spec := ParameterSpec{
		"xWidthN1": {2.2},
		"yWidthN1": {1.5, 2.5},
		"rhoN1":    {-0.2, 0.2, 0.1},
	}
	applied, err := m.LoadParameters(spec, nil, quietLogger())
	require.NoError(t, err)

	v, err := m.Variable("xWidthN1")
	require.NoError(t, err)
	assert.True(t, v.Constant())
	assert.Equal(t, 2.2, v.Val())

	assert.Equal(t, 2.0, val(t, m, "yWidthN1"))
	assert.Equal(t, 0.1, val(t, m, "rhoN1"))
	lo, hi := mustRange(t, m, "rhoN1")
	assert.Equal(t, [2]float64{-0.2, 0.2}, [2]float64{lo, hi})

	// sorted order: rhoN1, xWidthN1, yWidthN1
	require.Len(t, applied, 7)
	assert.Equal(t, NamedValue{"rhoN1_min", -0.2}, applied[0])
	assert.Equal(t, NamedValue{"rhoN1_ini", 0.1}, applied[2])
	assert.Equal(t, NamedValue{"xWidthN1_const", 2.2}, applied[3])
	assert.Equal(t, NamedValue{"yWidthN1_ini", 2.0}, applied[6])
}

func TestLoadParameters_RandomIsSeeded(t *testing.T) {
	spec := ParameterSpec{"xWidthN1": {1.5, 2.5, 2.0}, "yWidthN2": {1.4, 2.8}}
	draw := func() []NamedValue {
		m := mustModel(t, "SG")
		applied, err := m.LoadParameters(spec, rand.New(rand.NewPCG(3, 4)), quietLogger())
		require.NoError(t, err)
		return applied
	}
	a, b := draw(), draw()
	assert.Equal(t, a, b)
	for _, nv := range a {
		if nv.Name == "xWidthN1_ini" {
			assert.NotEqual(t, 2.0, nv.Value, "random draw overrides ini")
			assert.GreaterOrEqual(t, nv.Value, 1.5)
			assert.LessOrEqual(t, nv.Value, 2.5)
		}
	}
}

func TestLoadParameters_SkipsUnknownAndDerived(t *testing.T) {
	m := mustModel(t, "DG")
	before := val(t, m, "xWidthM1")
	applied, err := m.LoadParameters(ParameterSpec{
		"notAParameter": {1},
		"xWidthM1":      {9},
	}, nil, quietLogger())
	require.NoError(t, err)
	assert.Empty(t, applied)
	assert.Equal(t, before, val(t, m, "xWidthM1"))
}

func TestLoadParameters_Malformed(t *testing.T) {
	m := mustModel(t, "SG")
	_, err := m.LoadParameters(ParameterSpec{"rhoN1": {0.3, -0.3}}, nil, quietLogger())
	assert.True(t, errors.Is(err, ErrMalformedRange))

	_, err = m.LoadParameters(ParameterSpec{"rhoN1": {0.1, 0.2, 0.3, 0.4}}, nil, quietLogger())
	assert.True(t, errors.Is(err, ErrMalformedRange))

	_, err = m.LoadParameters(ParameterSpec{"rhoN1": {}}, nil, quietLogger())
	assert.True(t, errors.Is(err, ErrMalformedRange))
}

func TestLoadParameterFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte("xWidthN1: [1.8]\nrhoN2: [-0.1, 0.3]\n"), 0o644))

	m := mustModel(t, "SG")
	_, err := m.LoadParameterFile(path, nil, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, 1.8, val(t, m, "xWidthN1"))
	assert.InDelta(t, 0.1, val(t, m, "rhoN2"), 1e-12)
}

func TestApplyEstimates(t *testing.T) {
	m := mustModel(t, "SG")
	m.ApplyEstimates(map[string]Estimate{
		"xWidthN1": {Value: 2.0, Error: 0.1},
		"unknown":  {Value: 1, Error: 1},
	})
	lo, hi := mustRange(t, m, "xWidthN1")
	assert.InDelta(t, 1.8, lo, 1e-12)
	assert.InDelta(t, 2.2, hi, 1e-12)
	assert.Equal(t, 2.0, val(t, m, "xWidthN1"))
	assert.Equal(t, 0.1, errOf(t, m, "xWidthN1"))
}

func TestStates_ReportsEveryParameter(t *testing.T) {
	m := mustModel(t, "DG")
	states, err := m.States()
	require.NoError(t, err)
	assert.Len(t, states, len(m.Parameters()))
	assert.Equal(t, RolePhysics, states[0].Role)
	for _, st := range states {
		if st.Name == "xWidthM1" {
			assert.True(t, st.Derived)
			assert.Equal(t, st.Value, st.Min)
		}
	}
}

func TestLoadParameters_FloatingBoundsAfterInputs(t *testing.T) {
	// omega1 sorts before the ratios and correlations its upper bound
	// follows; it must be clamped against the loaded inputs, not the
	// construction-time ones.
	spec := ParameterSpec{
		"omega1":        {0, 1, 0.5},
		"xWidthN1Ratio": {0.1, 0.99, 0.9},
		"yWidthN1Ratio": {0.1, 0.99, 0.9},
		"rhoN1":         {-0.5, 0.5, 0},
		"rhoM1":         {-0.5, 0.5, 0},
	}
	m := mustModel(t, "SupG")
	applied, err := m.LoadParameters(spec, nil, quietLogger())
	require.NoError(t, err)

	lo, hi := mustRange(t, m, "omega1")
	assert.Equal(t, 0.0, lo)
	assert.InDelta(t, 0.81, hi, 1e-12)
	assert.InDelta(t, 0.5, val(t, m, "omega1"), 1e-12)
	assert.Contains(t, applied, NamedValue{"omega1_ini", 0.5})
}

func TestLoadParameters_RecordsClampedInitial(t *testing.T) {
	spec := ParameterSpec{
		"omega1":        {0, 1, 0.95},
		"xWidthN1Ratio": {0.1, 0.99, 0.5},
		"yWidthN1Ratio": {0.1, 0.99, 0.5},
		"rhoN1":         {-0.5, 0.5, 0},
		"rhoM1":         {-0.5, 0.5, 0},
	}
	m := mustModel(t, "SupG")
	applied, err := m.LoadParameters(spec, nil, quietLogger())
	require.NoError(t, err)

	assert.InDelta(t, 0.25, val(t, m, "omega1"), 1e-12)
	for _, nv := range applied {
		if nv.Name == "omega1_ini" {
			assert.InDelta(t, 0.25, nv.Value, 1e-12)
		}
	}
}

// #endregion load-tests

func mustRange(t *testing.T, m *Model, name string) (float64, float64) {
	t.Helper()
	v, err := m.Variable(name)
	require.NoError(t, err)
	return v.Range()
}
