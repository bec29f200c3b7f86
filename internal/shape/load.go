package shape

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/vars"
)

// #region parameter-spec
// ParameterSpec maps parameter names to [c], [lo,hi] or [lo,hi,ini].
type ParameterSpec map[string][]float64

// NamedValue is one applied setting, named <param>_const, _min, _max or _ini.
type NamedValue struct {
	Name  string
	Value float64
}

// ParseParameterSpec decodes a YAML or JSON parameter mapping.
func ParseParameterSpec(data []byte) (ParameterSpec, error) {
	var spec ParameterSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse parameter spec: %w", err)
	}
	return spec, nil
}

// ReadParameterFile reads and decodes a parameter file.
func ReadParameterFile(path string) (ParameterSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read parameter file %s: %w", path, err)
	}
	spec, err := ParseParameterSpec(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return spec, nil
}

// #endregion parameter-spec

// #region load-parameters
// setting is one decoded parameter-file entry waiting to be applied.
type setting struct {
	fixed   bool
	lo, hi  float64
	initial float64
}

// LoadParameters applies spec to the model. Names the model does not know
// are logged and skipped, derived parameters are skipped. A single value
// fixes the parameter; two or three values free it on [lo,hi] with the
// initial value drawn uniformly when rng is set, else the third value, else
// the midpoint. Random draws happen in sorted-name order so they are
// reproducible. Values are then assigned with constant-bound variables
// first and floating-bound variables last in construction order, so every
// value is clamped against bounds whose inputs are already loaded.
func (m *Model) LoadParameters(spec ParameterSpec, rng *rand.Rand, log *slog.Logger) ([]NamedValue, error) {
	if log == nil {
		log = slog.Default()
	}
	names := make([]string, 0, len(spec))
	for n := range spec {
		names = append(names, n)
	}
	sort.Strings(names)

	pending := make(map[string]setting, len(names))
	for _, name := range names {
		values := spec[name]
		p, err := m.Parameter(name)
		if err != nil {
			log.Warn("skipping unknown parameter", "model", m.name, "parameter", name)
			continue
		}
		if p.Derived() {
			continue
		}
		switch len(values) {
		case 1:
			pending[name] = setting{fixed: true, initial: values[0]}
		case 2, 3:
			lo, hi := values[0], values[1]
			if lo > hi {
				return nil, fmt.Errorf("%s [%g, %g]: %w", name, lo, hi, ErrMalformedRange)
			}
			var ini float64
			switch {
			case rng != nil && hi > lo:
				ini = distuv.Uniform{Min: lo, Max: hi, Src: rng}.Rand()
			case len(values) == 3:
				ini = values[2]
			default:
				ini = 0.5 * (lo + hi)
			}
			pending[name] = setting{lo: lo, hi: hi, initial: ini}
		default:
			return nil, fmt.Errorf("%s has %d values: %w", name, len(values), ErrMalformedRange)
		}
	}

	var fixed, floating []*vars.Variable
	for _, name := range m.order {
		if _, ok := pending[name]; !ok {
			continue
		}
		v, err := m.Variable(name)
		if err != nil {
			return nil, err
		}
		if v.Floating() {
			floating = append(floating, v)
		} else {
			fixed = append(fixed, v)
		}
	}
	for _, v := range append(fixed, floating...) {
		st := pending[v.Name()]
		if st.fixed {
			v.Fix(st.initial)
			continue
		}
		v.SetConstant(false)
		v.SetRange(st.lo, st.hi)
		v.SetVal(st.initial)
	}
	m.ClampAll()

	var applied []NamedValue
	for _, name := range names {
		st, ok := pending[name]
		if !ok {
			continue
		}
		if st.fixed {
			applied = append(applied, NamedValue{name + "_const", st.initial})
			continue
		}
		p, _ := m.Parameter(name)
		applied = append(applied,
			NamedValue{name + "_min", st.lo},
			NamedValue{name + "_max", st.hi},
			NamedValue{name + "_ini", p.Val()},
		)
	}
	return applied, nil
}

// LoadParameterFile reads path and applies it with LoadParameters.
func (m *Model) LoadParameterFile(path string, rng *rand.Rand, log *slog.Logger) ([]NamedValue, error) {
	spec, err := ReadParameterFile(path)
	if err != nil {
		return nil, err
	}
	return m.LoadParameters(spec, rng, log)
}

// #endregion load-parameters

// #region estimates
// Estimate is a stored value and uncertainty.
type Estimate struct {
	Value float64
	Error float64
}

// ApplyEstimates seeds the model from a previous result: every plain
// parameter found in est gets range [v-2e, v+2e], value v and error e.
func (m *Model) ApplyEstimates(est map[string]Estimate) {
	for _, p := range m.Parameters() {
		if p.Derived() {
			continue
		}
		e, ok := est[p.Name()]
		if !ok {
			continue
		}
		v, err := m.Variable(p.Name())
		if err != nil {
			continue
		}
		v.SetRange(e.Value-2*e.Error, e.Value+2*e.Error)
		v.SetVal(e.Value)
		v.SetError(e.Error)
	}
	m.ClampAll()
}

// ParameterState is a flat view of one parameter for reporting.
type ParameterState struct {
	Name    string
	Role    Role
	Value   float64
	Error   float64
	Min     float64
	Max     float64
	Derived bool
	Const   bool
}

// States reports every parameter in Parameters order.
func (m *Model) States() ([]ParameterState, error) {
	var out []ParameterState
	for _, p := range m.Parameters() {
		e, err := p.Err(m)
		if err != nil {
			return nil, fmt.Errorf("state of %s: %w", p.Name(), err)
		}
		st := ParameterState{
			Name:    p.Name(),
			Role:    m.roles[p.Name()],
			Value:   p.Val(),
			Error:   e,
			Derived: p.Derived(),
		}
		if v, ok := p.(interface {
			Range() (float64, float64)
			Constant() bool
		}); ok {
			st.Min, st.Max = v.Range()
			st.Const = v.Constant()
		} else {
			st.Min, st.Max = st.Value, st.Value
		}
		out = append(out, st)
	}
	return out, nil
}

// #endregion estimates
