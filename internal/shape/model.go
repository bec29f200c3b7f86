package shape

import (
	"fmt"

	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/vars"
)

// #region model
// Model owns every variable of one beam-shape parametrisation. Derived
// parameters alias the model's live variables, so a model is never copied
// while in use.
type Model struct {
	name   string
	family Family
	caps   Capability
	factor float64
	crange [2]float64

	xVar *vars.Variable
	yVar *vars.Variable

	physics map[string]vars.Param
	fit     map[string]vars.Param
	aux     map[string]vars.Param
	roles   map[string]Role

	order    []string // insertion order over all roles
	fitNames []string // parameters a minimizer may vary
}

// Name returns the model's unique abbreviation.
func (m *Model) Name() string { return m.name }

// Family returns the number of components per beam.
func (m *Model) Family() Family { return m.family }

// Dof returns the number of independent parameters.
func (m *Model) Dof() int { return m.family.Dof() }

// Has reports whether the model was built with capability c.
func (m *Model) Has(c Capability) bool { return m.caps&c != 0 }

// Factor returns the overlap scale factor.
func (m *Model) Factor() float64 { return m.factor }

// SetFactor sets the overlap scale factor (1 for fits, 100 for corrections).
func (m *Model) SetFactor(f float64) { m.factor = f }

// CoordRange returns the observable range of both coordinates.
func (m *Model) CoordRange() [2]float64 { return m.crange }

// XVar returns the x coordinate variable.
func (m *Model) XVar() *vars.Variable { return m.xVar }

// YVar returns the y coordinate variable.
func (m *Model) YVar() *vars.Variable { return m.yVar }

// #endregion model

// #region lookup
// Parameter resolves a name in physics, then fit, then auxiliary order.
func (m *Model) Parameter(name string) (vars.Param, error) {
	if p, ok := m.physics[name]; ok {
		return p, nil
	}
	if p, ok := m.fit[name]; ok {
		return p, nil
	}
	if p, ok := m.aux[name]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%s: %s: %w", m.name, name, vars.ErrUnknownParameter)
}

// Variable resolves name to a plain, assignable variable.
func (m *Model) Variable(name string) (*vars.Variable, error) {
	p, err := m.Parameter(name)
	if err != nil {
		return nil, err
	}
	v, ok := p.(*vars.Variable)
	if !ok {
		return nil, fmt.Errorf("%s: %s: %w", m.name, name, ErrNotVariable)
	}
	return v, nil
}

// Role returns the map a parameter was registered in.
func (m *Model) Role(name string) (Role, bool) {
	r, ok := m.roles[name]
	return r, ok
}

// Value returns the current value of name, or an error for unknown names.
func (m *Model) Value(name string) (float64, error) {
	p, err := m.Parameter(name)
	if err != nil {
		return 0, err
	}
	return p.Val(), nil
}

// Error returns the propagated uncertainty of name.
func (m *Model) Error(name string) (float64, error) {
	p, err := m.Parameter(name)
	if err != nil {
		return 0, err
	}
	return p.Err(m)
}

// Parameters lists physics parameters, then fit parameters not already
// listed, then auxiliary parameters not already listed.
func (m *Model) Parameters() []vars.Param {
	var out []vars.Param
	for _, role := range []Role{RolePhysics, RoleFit, RoleAuxiliary} {
		for _, name := range m.order {
			if m.roles[name] == role {
				p, _ := m.Parameter(name)
				out = append(out, p)
			}
		}
	}
	return out
}

// Names returns the names registered under role in insertion order.
func (m *Model) Names(role Role) []string {
	var out []string
	for _, name := range m.order {
		if m.roles[name] == role {
			out = append(out, name)
		}
	}
	return out
}

// FitNames returns the names a minimizer is allowed to vary.
func (m *Model) FitNames() []string { return append([]string(nil), m.fitNames...) }

// #endregion lookup

// #region free-parameters
// FreeParameters returns the non-constant plain variables among the fit
// names. Variables with constant bounds come first; variables with floating
// bounds follow in construction order, so every bound a variable follows is
// already settled when the variable itself is assigned.
func (m *Model) FreeParameters() []*vars.Variable {
	allowed := make(map[string]bool, len(m.fitNames))
	for _, n := range m.fitNames {
		allowed[n] = true
	}
	var fixed, floating []*vars.Variable
	for _, n := range m.fitNames {
		v, err := m.Variable(n)
		if err != nil || v.Constant() || v.Floating() {
			continue
		}
		fixed = append(fixed, v)
	}
	for _, n := range m.order {
		if !allowed[n] {
			continue
		}
		v, err := m.Variable(n)
		if err != nil || v.Constant() || !v.Floating() {
			continue
		}
		floating = append(floating, v)
	}
	return append(fixed, floating...)
}

// ClampAll re-resolves floating bounds in construction order.
func (m *Model) ClampAll() {
	for _, n := range m.order {
		if v, err := m.Variable(n); err == nil {
			v.Clamp()
		}
	}
}

// #endregion free-parameters

// #region vtxres
// SetVtxRes sets both vertex resolutions and their constant flag.
func (m *Model) SetVtxRes(x, y float64, constant bool) error {
	for name, val := range map[string]float64{"xVtxRes": x, "yVtxRes": y} {
		v, err := m.Variable(name)
		if err != nil {
			return err
		}
		v.SetVal(val)
		v.SetConstant(constant)
	}
	return nil
}

// #endregion vtxres

// #region builder
// builder accumulates the first construction error so model constructors
// can be written as straight-line declarations.
type builder struct {
	m   *Model
	err error
}

func newBuilder(name string, family Family, caps Capability, cfg Config) *builder {
	m := &Model{
		name:    name,
		family:  family,
		caps:    caps,
		factor:  1,
		crange:  cfg.CoordRange,
		xVar:    vars.New("xVar", cfg.CoordRange[0], cfg.CoordRange[1]),
		yVar:    vars.New("yVar", cfg.CoordRange[0], cfg.CoordRange[1]),
		physics: map[string]vars.Param{},
		fit:     map[string]vars.Param{},
		aux:     map[string]vars.Param{},
		roles:   map[string]Role{},
	}
	b := &builder{m: m}
	for _, axis := range []string{"x", "y"} {
		for _, beam := range []int{1, 2} {
			for _, scan := range []Axis{AxisX, AxisY} {
				b.free(RolePhysics, position(axis, beam, scan), -0.5, 0.5)
			}
		}
	}
	b.free(RolePhysics, "xVtxRes", 0, 5)
	b.free(RolePhysics, "yVtxRes", 0, 5)
	return b
}

func (b *builder) add(role Role, p vars.Param) {
	name := p.Name()
	if _, dup := b.m.roles[name]; dup && b.err == nil {
		b.err = fmt.Errorf("%s: duplicate parameter %s", b.m.name, name)
		return
	}
	switch role {
	case RolePhysics:
		b.m.physics[name] = p
	case RoleFit:
		b.m.fit[name] = p
	default:
		b.m.aux[name] = p
	}
	b.m.roles[name] = role
	b.m.order = append(b.m.order, name)
}

func (b *builder) free(role Role, name string, lo, hi float64) *vars.Variable {
	v := vars.New(name, lo, hi)
	b.add(role, v)
	return v
}

func (b *builder) constant(role Role, name string, val float64) *vars.Variable {
	v := vars.NewConstant(name, val)
	b.add(role, v)
	return v
}

func (b *builder) derive(role Role, name, formula string, inputs []string, expr vars.Expr, prop vars.Propagation) {
	if b.err != nil {
		return
	}
	d, err := vars.NewDerived(name, formula, inputs, b.m, expr, prop)
	if err != nil {
		b.err = err
		return
	}
	b.add(role, d)
}

// floatBetween attaches floating bounds by name; an empty name keeps that end.
func (b *builder) floatBetween(v *vars.Variable, minName, maxName string) {
	if b.err != nil {
		return
	}
	if minName != "" {
		p, err := b.m.Parameter(minName)
		if err != nil {
			b.err = err
			return
		}
		v.SetFloatingMin(p)
	}
	if maxName != "" {
		p, err := b.m.Parameter(maxName)
		if err != nil {
			b.err = err
			return
		}
		v.SetFloatingMax(p)
	}
}

func (b *builder) fitNames(names ...string) {
	b.m.fitNames = append(b.m.fitNames, names...)
}

func (b *builder) done() (*Model, error) {
	if b.err != nil {
		return nil, fmt.Errorf("build %s: %w", b.m.name, b.err)
	}
	for _, n := range b.m.fitNames {
		if _, err := b.m.Parameter(n); err != nil {
			return nil, fmt.Errorf("build %s: %w", b.m.name, err)
		}
	}
	b.m.ClampAll()
	return b.m, nil
}

// #endregion builder
