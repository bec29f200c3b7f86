package shape

import (
	"errors"
	"fmt"
)

// #region errors
var (
	// ErrUnknownModel is returned by New for an unregistered model name.
	ErrUnknownModel = errors.New("unknown shape model")
	// ErrMalformedRange is returned for a parameter entry that is neither
	// [c], [lo,hi] nor [lo,hi,ini].
	ErrMalformedRange = errors.New("malformed parameter range")
	// ErrNotVariable is returned when a derived parameter is used where a
	// plain variable is required.
	ErrNotVariable = errors.New("parameter is derived")
)

// #endregion errors

// #region family
// Family is the number of Gaussian components per beam.
type Family int

const (
	FamilySingle Family = 1
	FamilyDouble Family = 2
	FamilyTriple Family = 3
)

// Dof returns the length of the overlap parameter vector, which equals the
// number of independent parameters of the family.
func (f Family) Dof() int {
	switch f {
	case FamilySingle:
		return 10
	case FamilyDouble:
		return 18
	case FamilyTriple:
		return 26
	}
	return 0
}

// Components returns the component tags used in parameter names.
func (f Family) Components() []string {
	return []string{"N", "M", "W"}[:int(f)]
}

// #endregion family

// #region capability
// Capability flags are fixed when a model is constructed.
type Capability uint8

const (
	// CapWide marks models with a second (wide) component.
	CapWide Capability = 1 << iota
	// CapThird marks models with a third component.
	CapThird
	// CapSuper marks models whose narrow correlations are bounded by the
	// wider components.
	CapSuper
	// CapToy marks parametrisations meant for toy generation.
	CapToy
)

// #endregion capability

// #region role
// Role tells which map of a model a parameter lives in.
type Role int

const (
	RolePhysics Role = iota
	RoleFit
	RoleAuxiliary
)

func (r Role) String() string {
	switch r {
	case RolePhysics:
		return "physics"
	case RoleFit:
		return "fit"
	case RoleAuxiliary:
		return "auxiliary"
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// #endregion role

// #region scans
// Axis is the displaced coordinate of a scan.
type Axis int

const (
	AxisX Axis = iota
	AxisY
)

func (a Axis) String() string {
	if a == AxisY {
		return "Y"
	}
	return "X"
}

// Scan identifies one of the four per-scan density functions: the beam held
// at rest and the scanned axis.
type Scan struct {
	Beam int
	Axis Axis
}

// Scans lists the four scans in fit order.
var Scans = [4]Scan{{1, AxisX}, {1, AxisY}, {2, AxisX}, {2, AxisY}}

// Name returns the density-function name of the scan.
func (s Scan) Name() string {
	return fmt.Sprintf("beam%dRestVerticesUnfold_%sScan", s.Beam, s.Axis)
}

// Other returns the moving beam.
func (s Scan) Other() int { return 3 - s.Beam }

// #endregion scans

// #region config
// Config holds construction options shared by all models.
type Config struct {
	// CoordRange is the observable range of both coordinates.
	CoordRange [2]float64
}

// DefaultConfig returns the standard coordinate range.
func DefaultConfig() Config {
	return Config{CoordRange: [2]float64{-10, 10}}
}

// #endregion config

// #region names
func width(axis string, comp string, beam int) string {
	return fmt.Sprintf("%sWidth%s%d", axis, comp, beam)
}

func rho(comp string, beam int) string { return fmt.Sprintf("rho%s%d", comp, beam) }

func weight(beam int, comp string) string { return fmt.Sprintf("w%d%s", beam, comp) }

func position(axis string, beam int, scan Axis) string {
	return fmt.Sprintf("%s0%d%d", axis, beam, int(scan)+1)
}

// #endregion names
