package vars

import (
	"errors"
	"fmt"
)

// #region errors
var (
	// ErrUnknownParameter is returned when a name does not resolve within a model.
	ErrUnknownParameter = errors.New("unknown parameter")
	// ErrNoPropagation is returned when the error of a derived variable is
	// requested but no propagation function was configured.
	ErrNoPropagation = errors.New("error propagation not configured")
)

// #endregion errors

// #region param
// Param is the read side shared by plain and derived variables.
type Param interface {
	Name() string
	Val() float64
	// Err returns the uncertainty of the current value. Derived variables
	// resolve their inputs through l.
	Err(l Lookup) (float64, error)
	Derived() bool
}

// Lookup resolves a parameter name within one model.
type Lookup interface {
	Parameter(name string) (Param, error)
}

// LookupFunc adapts a plain function to Lookup.
type LookupFunc func(name string) (Param, error)

// Parameter implements Lookup.
func (f LookupFunc) Parameter(name string) (Param, error) { return f(name) }

// #endregion param

// #region bound
// Bound is one end of a variable's range. It either holds a constant or
// refers to another parameter whose current value is read on every query.
type Bound struct {
	value float64
	ref   Param
}

// Const returns a fixed bound.
func Const(v float64) Bound { return Bound{value: v} }

// Ref returns a floating bound that follows p.
func Ref(p Param) Bound { return Bound{ref: p} }

// Resolve returns the bound's current numeric value.
func (b Bound) Resolve() float64 {
	if b.ref != nil {
		return b.ref.Val()
	}
	return b.value
}

// Floating reports whether the bound follows another parameter.
func (b Bound) Floating() bool { return b.ref != nil }

// Reference returns the followed parameter, or nil for a constant bound.
func (b Bound) Reference() Param { return b.ref }

// #endregion bound

// #region map
// Map is a Lookup over a fixed set of parameters.
type Map map[string]Param

// Parameter implements Lookup.
func (m Map) Parameter(name string) (Param, error) {
	if p, ok := m[name]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%s: %w", name, ErrUnknownParameter)
}

// Add registers params under their own names.
func (m Map) Add(params ...Param) Map {
	for _, p := range params {
		m[p.Name()] = p
	}
	return m
}

// #endregion map
