package shape

import (
	"fmt"
	"math"
)

// #region triple-gauss-helpers
type widthTriple struct{ narrow, medium, wide string }

func widthTriples() []widthTriple {
	var out []widthTriple
	for _, axis := range []string{"x", "y"} {
		for _, beam := range beams {
			out = append(out, widthTriple{width(axis, "N", beam), width(axis, "M", beam), width(axis, "W", beam)})
		}
	}
	return out
}

func tripleFitNames(b *builder, names ...string) {
	b.fitNames(names...)
	b.fitNames(PositionNames()...)
}

// #endregion triple-gauss-helpers

// #region triple-gauss-fit
// NewTripleGaussFit builds "TG": widths are stacked by positive differences
// and the three weights come from two angles, which keeps them on the simplex.
func NewTripleGaussFit(cfg Config) (*Model, error) {
	b := newBuilder("TG", FamilyTriple, CapWide|CapThird, cfg)
	for _, t := range widthTriples() {
		b.free(RolePhysics, t.narrow, 1.3, 3.0)
		mDiff := t.medium + "Diff"
		b.free(RoleFit, mDiff, 0.01, 1.7)
		b.derive(RolePhysics, t.medium, t.narrow+"+"+mDiff, []string{t.narrow, mDiff}, sumExpr, sumErr)
		wDiff := t.wide + "Diff"
		b.free(RoleFit, wDiff, 0.01, 1.7)
		b.derive(RolePhysics, t.wide, t.medium+"+"+wDiff, []string{t.medium, wDiff}, sumExpr, sumErr)
	}
	for _, beam := range beams {
		for _, c := range []string{"N", "M", "W"} {
			b.free(RolePhysics, rho(c, beam), -0.48, 0.48)
		}
	}
	for _, beam := range beams {
		theta, phi := fmt.Sprintf("theta%d", beam), fmt.Sprintf("phi%d", beam)
		b.free(RoleFit, theta, 0, 0.5*math.Pi)
		b.free(RoleFit, phi, 0, 0.5*math.Pi)
		in := []string{theta, phi}
		b.derive(RolePhysics, weight(beam, "N"), "cos(theta)^2", []string{theta},
			func(v []float64) float64 { c := math.Cos(v[0]); return c * c },
			func(v, e []float64) float64 { return 2 * math.Sin(v[0]) * math.Cos(v[0]) * e[0] })
		b.derive(RolePhysics, weight(beam, "M"), "sin(theta)^2*cos(phi)^2", in, angleWeightM, angleWeightMErr)
		b.derive(RolePhysics, weight(beam, "W"), "sin(theta)^2*sin(phi)^2", in, angleWeightW, angleWeightWErr)
	}
	tripleFitNames(b, "xWidthN1", "xWidthN2", "yWidthN1", "yWidthN2", "rhoN1", "rhoN2",
		"xWidthM1Diff", "xWidthM2Diff", "yWidthM1Diff", "yWidthM2Diff", "rhoM1", "rhoM2",
		"xWidthW1Diff", "xWidthW2Diff", "yWidthW1Diff", "yWidthW2Diff", "rhoW1", "rhoW2",
		"theta1", "theta2", "phi1", "phi2")
	return b.done()
}

func angleWeightM(v []float64) float64 {
	s, c := math.Sin(v[0]), math.Cos(v[1])
	return s * s * c * c
}

func angleWeightW(v []float64) float64 {
	s, t := math.Sin(v[0]), math.Sin(v[1])
	return s * s * t * t
}

func angleWeightMErr(v, e []float64) float64 {
	st, ct := math.Sin(v[0]), math.Cos(v[0])
	sp, cp := math.Sin(v[1]), math.Cos(v[1])
	return 2 * st * cp * math.Hypot(e[0]*ct*cp, e[1]*st*sp)
}

func angleWeightWErr(v, e []float64) float64 {
	st, ct := math.Sin(v[0]), math.Cos(v[0])
	sp, cp := math.Sin(v[1]), math.Cos(v[1])
	return 2 * st * sp * math.Hypot(e[0]*ct*sp, e[1]*st*cp)
}

// #endregion triple-gauss-fit

// #region triple-gauss-toy
// NewTripleGaussToy builds "toyTG": free widths and correlations, the narrow
// weight and a medium fraction of the remainder.
func NewTripleGaussToy(cfg Config) (*Model, error) {
	b := newBuilder("toyTG", FamilyTriple, CapWide|CapThird|CapToy, cfg)
	for _, t := range widthTriples() {
		b.free(RolePhysics, t.narrow, 1.3, 3.0)
		b.free(RolePhysics, t.medium, 1.3, 3.0)
		b.free(RolePhysics, t.wide, 1.3, 3.0)
	}
	for _, beam := range beams {
		for _, c := range []string{"N", "M", "W"} {
			b.free(RolePhysics, rho(c, beam), -0.48, 0.48)
		}
	}
	for _, beam := range beams {
		wN, frac := weight(beam, "N"), weight(beam, "M")+"Fraction"
		b.free(RolePhysics, wN, 0, 1)
		b.free(RoleFit, frac, 0, 1)
		in := []string{wN, frac}
		b.derive(RolePhysics, weight(beam, "M"), "(1.0-wN)*f", in,
			func(v []float64) float64 { return (1 - v[0]) * v[1] },
			func(v, e []float64) float64 { return math.Hypot(e[0]*v[1], (1-v[0])*e[1]) })
		b.derive(RolePhysics, weight(beam, "W"), "(1.0-wN)*(1.0-f)", in,
			func(v []float64) float64 { return (1 - v[0]) * (1 - v[1]) },
			func(v, e []float64) float64 { return math.Hypot(e[0]*(1-v[1]), (1-v[0])*e[1]) })
	}
	tripleFitNames(b, "xWidthN1", "xWidthN2", "yWidthN1", "yWidthN2", "rhoN1", "rhoN2",
		"xWidthM1", "xWidthM2", "yWidthM1", "yWidthM2", "rhoM1", "rhoM2",
		"xWidthW1", "xWidthW2", "yWidthW1", "yWidthW2", "rhoW1", "rhoW2",
		"w1N", "w2N", "w1MFraction", "w2MFraction")
	return b.done()
}

// #endregion triple-gauss-toy

// #region super-double-gauss-fit
// NewSuperDoubleGaussFit builds "SupDG": a medium and a wide Gaussian minus
// a narrow one. Both the wide and the narrow correlation float between
// bounds, and the narrow weight parameter is capped by omegaMax.
func NewSuperDoubleGaussFit(cfg Config) (*Model, error) {
	b := newBuilder("SupDG", FamilyTriple, CapWide|CapThird|CapSuper, cfg)
	for _, t := range widthTriples() {
		b.free(RolePhysics, t.medium, 1.3, 3.0)
		ratio := t.narrow + "Ratio"
		b.free(RoleFit, ratio, 0.1, 0.99)
		b.derive(RolePhysics, t.narrow, t.medium+"*"+ratio, []string{t.medium, ratio}, productExpr, productErr)
		diff := t.wide + "Diff"
		b.free(RoleFit, diff, 0.01, 1.7)
		b.derive(RolePhysics, t.wide, t.medium+"+"+diff, []string{t.medium, diff}, sumExpr, sumErr)
		b.derive(RoleAuxiliary, t.wide+"Ratio", t.wide+"/"+t.medium, []string{t.wide, t.medium}, ratioExpr, untracked)
	}
	for _, beam := range beams {
		superDoubleCorrelations(b, beam, false)
	}
	for _, beam := range beams {
		superDoubleWeights(b, beam, false)
	}
	tripleFitNames(b, "xWidthN1Ratio", "xWidthN2Ratio", "yWidthN1Ratio", "yWidthN2Ratio",
		"rhoN1", "rhoN2", "xWidthM1", "xWidthM2", "yWidthM1", "yWidthM2", "rhoM1", "rhoM2",
		"xWidthW1Diff", "xWidthW2Diff", "yWidthW1Diff", "yWidthW2Diff", "rhoW1", "rhoW2",
		"omega1", "omega2", "w1MFraction", "w2MFraction")
	return b.done()
}

// superDoubleCorrelations declares the medium correlation, the wide and
// narrow correlation bounds, and the wide and narrow correlations either as
// bounded free variables or, for toys, as interpolations between the bounds.
func superDoubleCorrelations(b *builder, beam int, toy bool) {
	rhoN, rhoM, rhoW := rho("N", beam), rho("M", beam), rho("W", beam)
	nx, ny := width("x", "N", beam)+"Ratio", width("y", "N", beam)+"Ratio"
	wx, wy := width("x", "W", beam)+"Ratio", width("y", "W", beam)+"Ratio"
	b.free(RolePhysics, rhoM, -0.48, 0.48)

	in := []string{rhoM, nx, ny, wx, wy}
	b.derive(RoleAuxiliary, rhoW+"Min", "max(-0.99,(rhoM-sqrt(1-nx)*sqrt(1-ny))/wx/wy-sqrt(1-(nx/wx)^2)*sqrt(1-(ny/wy)^2))", in,
		func(v []float64) float64 { return superDoubleRhoWMin(v[0], v[1], v[2], v[3], v[4]) }, untracked)
	b.derive(RoleAuxiliary, rhoW+"Max", "min(0.99,(rhoM+sqrt(1-nx)*sqrt(1-ny))/wx/wy+sqrt(1-(nx/wx)^2)*sqrt(1-(ny/wy)^2))", in,
		func(v []float64) float64 { return superDoubleRhoWMax(v[0], v[1], v[2], v[3], v[4]) }, untracked)
	boundedCorrelation(b, rhoW, toy)

	in = []string{rhoM, nx, ny, wx, wy, rhoW}
	b.derive(RoleAuxiliary, rhoN+"Min", "max(-0.99,max(byMedium,byWide))", in,
		func(v []float64) float64 { return superDoubleRhoNMin(v[0], v[1], v[2], v[3], v[4], v[5]) }, untracked)
	b.derive(RoleAuxiliary, rhoN+"Max", "min(0.99,min(byMedium,byWide))", in,
		func(v []float64) float64 { return superDoubleRhoNMax(v[0], v[1], v[2], v[3], v[4], v[5]) }, untracked)
	boundedCorrelation(b, rhoN, toy)
}

func boundedCorrelation(b *builder, name string, toy bool) {
	if !toy {
		v := b.free(RolePhysics, name, -0.48, 0.48)
		b.floatBetween(v, name+"Min", name+"Max")
		return
	}
	factor := name + "Factor"
	b.free(RoleFit, factor, 0, 1)
	b.derive(RolePhysics, name, "min+(max-min)*factor", []string{name + "Min", name + "Max", factor}, interpolate, interpolateErr)
}

// superDoubleWeights declares the medium fraction, omegaMax, omega and the
// three derived weights.
func superDoubleWeights(b *builder, beam int, toy bool) {
	omega := omegaName(beam)
	frac := weight(beam, "M") + "Fraction"
	b.free(RoleFit, frac, 0, 1)
	in := []string{
		width("x", "N", beam) + "Ratio", width("y", "N", beam) + "Ratio", rho("N", beam), frac,
		rho("M", beam), rho("W", beam), width("x", "W", beam) + "Ratio", width("y", "W", beam) + "Ratio",
	}
	b.derive(RoleAuxiliary, omega+"Max", "nx*ny*sqrt(1-rhoN^2)*(f/sqrt(1-rhoM^2)+(1-f)/sqrt(1-rhoW^2)/wx/wy)", in,
		func(v []float64) float64 {
			return superDoubleOmegaMax(v[0], v[1], v[2], v[3], v[4], v[5], v[6], v[7])
		}, untracked)
	if toy {
		prime := omega + "Prime"
		b.free(RoleFit, prime, 0, 1)
		b.derive(RoleAuxiliary, omega, omega+"Max*"+prime, []string{omega + "Max", prime}, productExpr,
			func(v, e []float64) float64 { return v[0] * e[1] })
	} else {
		o := b.free(RoleFit, omega, 0, 0.99)
		b.floatBetween(o, "", omega+"Max")
	}
	b.derive(RolePhysics, weight(beam, "N"), "-omega/(1.0-omega)", []string{omega}, narrowWeight,
		func(v, e []float64) float64 { return e[0] / ((1 - v[0]) * (1 - v[0])) })
	fo := []string{frac, omega}
	b.derive(RolePhysics, weight(beam, "M"), "f/(1.0-omega)", fo,
		func(v []float64) float64 { return v[0] / (1 - v[1]) },
		func(v, e []float64) float64 {
			return 1 / (1 - v[1]) * math.Hypot(e[0], e[1]*v[0]/(1-v[1]))
		})
	b.derive(RolePhysics, weight(beam, "W"), "(1.0-f)/(1.0-omega)", fo,
		func(v []float64) float64 { return (1 - v[0]) / (1 - v[1]) },
		func(v, e []float64) float64 {
			return 1 / (1 - v[1]) * math.Hypot(e[0], e[1]*(1-v[0])/(1-v[1]))
		})
}

// #endregion super-double-gauss-fit

// #region super-double-gauss-toy
// NewSuperDoubleGaussToy builds "toySupDG": free widths, correlations as
// positions between their bounds and omega as a fraction of omegaMax.
func NewSuperDoubleGaussToy(cfg Config) (*Model, error) {
	b := newBuilder("toySupDG", FamilyTriple, CapWide|CapThird|CapSuper|CapToy, cfg)
	for _, t := range widthTriples() {
		b.free(RolePhysics, t.narrow, 1.3, 3.0)
		b.free(RolePhysics, t.medium, 1.3, 3.0)
		b.free(RolePhysics, t.wide, 1.3, 3.0)
		b.derive(RoleAuxiliary, t.narrow+"Ratio", t.narrow+"/"+t.medium, []string{t.narrow, t.medium}, ratioExpr, untracked)
		b.derive(RoleAuxiliary, t.wide+"Ratio", t.wide+"/"+t.medium, []string{t.wide, t.medium}, ratioExpr, untracked)
	}
	for _, beam := range beams {
		superDoubleCorrelations(b, beam, true)
	}
	for _, beam := range beams {
		superDoubleWeights(b, beam, true)
	}
	tripleFitNames(b, "xWidthN1", "xWidthN2", "yWidthN1", "yWidthN2", "rhoN1Factor", "rhoN2Factor",
		"xWidthM1", "xWidthM2", "yWidthM1", "yWidthM2", "rhoM1", "rhoM2",
		"xWidthW1", "xWidthW2", "yWidthW1", "yWidthW2", "rhoW1Factor", "rhoW2Factor",
		"omega1Prime", "omega2Prime", "w1MFraction", "w2MFraction")
	return b.done()
}

// #endregion super-double-gauss-toy
