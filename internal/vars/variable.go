package vars

import "math"

// #region variable
// Variable is an atomic parameter with a value, an uncertainty and a range
// whose ends may float with other parameters.
type Variable struct {
	name     string
	val      float64
	err      float64
	min      Bound
	max      Bound
	constant bool
}

// New creates a free variable on [lo, hi] initialised at the midpoint.
func New(name string, lo, hi float64) *Variable {
	return &Variable{
		name: name,
		val:  0.5 * (lo + hi),
		min:  Const(lo),
		max:  Const(hi),
	}
}

// NewConstant creates a fixed variable holding v.
func NewConstant(name string, v float64) *Variable {
	return &Variable{
		name:     name,
		val:      v,
		min:      Const(v),
		max:      Const(v),
		constant: true,
	}
}

// Name returns the variable's unique key.
func (v *Variable) Name() string { return v.name }

// Val returns the current value.
func (v *Variable) Val() float64 { return v.val }

// Err returns the fit uncertainty. The lookup is unused.
func (v *Variable) Err(Lookup) (float64, error) { return v.err, nil }

// Uncertainty returns the fit uncertainty without the Param indirection.
func (v *Variable) Uncertainty() float64 { return v.err }

// Derived always reports false for plain variables.
func (v *Variable) Derived() bool { return false }

// Constant reports whether a minimizer must leave the variable alone.
func (v *Variable) Constant() bool { return v.constant }

// SetConstant toggles the constant flag.
func (v *Variable) SetConstant(c bool) { v.constant = c }

// SetError stores the uncertainty supplied by a fit.
func (v *Variable) SetError(e float64) { v.err = e }

// #endregion variable

// #region range
// Range resolves both bounds at query time.
func (v *Variable) Range() (lo, hi float64) {
	return v.min.Resolve(), v.max.Resolve()
}

// Bounds returns the raw bound descriptors.
func (v *Variable) Bounds() (Bound, Bound) { return v.min, v.max }

// SetRange replaces the constant ends of the range. Ends that follow another
// parameter keep following it.
func (v *Variable) SetRange(lo, hi float64) {
	if !v.min.Floating() {
		v.min = Const(lo)
	}
	if !v.max.Floating() {
		v.max = Const(hi)
	}
	v.Clamp()
}

// SetFloatingMin makes the lower bound follow p.
func (v *Variable) SetFloatingMin(p Param) {
	v.min = Ref(p)
	v.Clamp()
}

// SetFloatingMax makes the upper bound follow p.
func (v *Variable) SetFloatingMax(p Param) {
	v.max = Ref(p)
	v.Clamp()
}

// Floating reports whether either end of the range follows another parameter.
func (v *Variable) Floating() bool { return v.min.Floating() || v.max.Floating() }

// #endregion range

// #region set-value
// SetVal assigns x clamped into the currently resolved range.
func (v *Variable) SetVal(x float64) {
	v.val = x
	v.Clamp()
}

// Fix makes the variable constant at x, widening the range when needed.
func (v *Variable) Fix(x float64) {
	lo, hi := v.Range()
	if !v.min.Floating() && x < lo {
		v.min = Const(x)
	}
	if !v.max.Floating() && x > hi {
		v.max = Const(x)
	}
	v.constant = true
	v.SetVal(x)
}

// Clamp re-resolves the bounds and pulls the value back inside them.
// Call it after any parameter a floating bound follows has changed.
func (v *Variable) Clamp() {
	lo, hi := v.Range()
	if lo > hi {
		return
	}
	v.val = math.Min(math.Max(v.val, lo), hi)
}

// #endregion set-value
