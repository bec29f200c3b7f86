package vars

import (
	"fmt"
	"strings"
)

// #region derived-types
// Expr computes a derived value from its inputs' current values, in the
// order the inputs were declared.
type Expr func(in []float64) float64

// Propagation computes a derived uncertainty from the declared inputs'
// current values and uncertainties.
type Propagation func(val, err []float64) float64

// Derived is a parameter whose value is recomputed from its inputs on every
// read. It is never assigned directly.
type Derived struct {
	name    string
	formula string
	names   []string
	inputs  []Param
	expr    Expr
	prop    Propagation
}

// #endregion derived-types

// #region derived-constructor
// NewDerived binds a derived parameter to the named inputs resolved through l.
// formula is descriptive only. prop may be nil, in which case Err fails with
// ErrNoPropagation.
func NewDerived(name, formula string, inputs []string, l Lookup, expr Expr, prop Propagation) (*Derived, error) {
	d := &Derived{
		name:    name,
		formula: formula,
		names:   append([]string(nil), inputs...),
		inputs:  make([]Param, len(inputs)),
		expr:    expr,
		prop:    prop,
	}
	for i, in := range inputs {
		p, err := l.Parameter(in)
		if err != nil {
			return nil, fmt.Errorf("bind %s input %s: %w", name, in, err)
		}
		d.inputs[i] = p
	}
	return d, nil
}

// #endregion derived-constructor

// #region derived-accessors
// Name returns the parameter's unique key.
func (d *Derived) Name() string { return d.name }

// Formula returns the descriptive expression.
func (d *Derived) Formula() string { return d.formula }

// Inputs returns the declared input names.
func (d *Derived) Inputs() []string { return append([]string(nil), d.names...) }

// Derived always reports true.
func (d *Derived) Derived() bool { return true }

// Val evaluates the expression over the inputs' current values.
func (d *Derived) Val() float64 {
	in := make([]float64, len(d.inputs))
	for i, p := range d.inputs {
		in[i] = p.Val()
	}
	return d.expr(in)
}

// Err evaluates the propagation function. Inputs are re-resolved through l
// so a model can hand out its live parameters.
func (d *Derived) Err(l Lookup) (float64, error) {
	if d.prop == nil {
		return 0, fmt.Errorf("%s: %w", d.name, ErrNoPropagation)
	}
	val := make([]float64, len(d.names))
	errs := make([]float64, len(d.names))
	for i, n := range d.names {
		p, err := l.Parameter(n)
		if err != nil {
			return 0, fmt.Errorf("resolve %s input %s: %w", d.name, n, err)
		}
		e, err := p.Err(l)
		if err != nil {
			return 0, err
		}
		val[i] = p.Val()
		errs[i] = e
	}
	return d.prop(val, errs), nil
}

// SetPropagation replaces the propagation function.
func (d *Derived) SetPropagation(p Propagation) { d.prop = p }

// String renders "name = formula".
func (d *Derived) String() string {
	return d.name + " = " + strings.TrimSpace(d.formula)
}

// #endregion derived-accessors
