package shape

// #region double-gauss-helpers
type widthPair struct{ narrow, wide string }

func widthPairs(narrow, wide string) []widthPair {
	var out []widthPair
	for _, axis := range []string{"x", "y"} {
		for _, beam := range []int{1, 2} {
			out = append(out, widthPair{width(axis, narrow, beam), width(axis, wide, beam)})
		}
	}
	return out
}

// beams iterates the beam indices.
var beams = []int{1, 2}

// #endregion double-gauss-helpers

// #region double-gauss-fit
// NewDoubleGaussFit builds "DG": wide widths are narrow widths plus a
// positive difference, and the wide weight is the complement of the narrow.
func NewDoubleGaussFit(cfg Config) (*Model, error) {
	b := newBuilder("DG", FamilyDouble, CapWide, cfg)
	for _, p := range widthPairs("N", "M") {
		b.free(RolePhysics, p.narrow, 1.3, 3.0)
		diff := p.wide + "Diff"
		b.free(RoleFit, diff, 0.01, 1.7)
		b.derive(RolePhysics, p.wide, p.narrow+"+"+diff, []string{p.narrow, diff}, sumExpr, sumErr)
	}
	for _, beam := range beams {
		b.free(RolePhysics, rho("N", beam), -0.48, 0.48)
		b.free(RolePhysics, rho("M", beam), -0.48, 0.48)
	}
	for _, beam := range beams {
		wN, wM := weight(beam, "N"), weight(beam, "M")
		b.free(RolePhysics, wN, 0, 1)
		b.derive(RolePhysics, wM, "1.0-"+wN, []string{wN}, complementExpr, passErr)
	}
	b.fitNames("xWidthN1", "xWidthN2", "yWidthN1", "yWidthN2", "rhoN1", "rhoN2",
		"xWidthM1Diff", "xWidthM2Diff", "yWidthM1Diff", "yWidthM2Diff",
		"rhoM1", "rhoM2", "w1N", "w2N")
	b.fitNames(PositionNames()...)
	return b.done()
}

// #endregion double-gauss-fit

// #region double-gauss-toy
// NewDoubleGaussToy builds "toyDG" with every width and correlation free.
func NewDoubleGaussToy(cfg Config) (*Model, error) {
	b := newBuilder("toyDG", FamilyDouble, CapWide|CapToy, cfg)
	for _, p := range widthPairs("N", "M") {
		b.free(RolePhysics, p.narrow, 1.3, 3.0)
		b.free(RolePhysics, p.wide, 1.3, 3.0)
	}
	for _, beam := range beams {
		b.free(RolePhysics, rho("N", beam), -0.48, 0.48)
		b.free(RolePhysics, rho("M", beam), -0.48, 0.48)
	}
	for _, beam := range beams {
		wN, wM := weight(beam, "N"), weight(beam, "M")
		b.free(RolePhysics, wN, 0, 1)
		b.derive(RolePhysics, wM, "1.0-"+wN, []string{wN}, complementExpr, passErr)
	}
	b.fitNames("xWidthN1", "xWidthN2", "yWidthN1", "yWidthN2", "rhoN1", "rhoN2",
		"xWidthM1", "xWidthM2", "yWidthM1", "yWidthM2", "rhoM1", "rhoM2", "w1N", "w2N")
	b.fitNames(PositionNames()...)
	return b.done()
}

// #endregion double-gauss-toy

// #region super-gauss-fit
// NewSuperGaussFit builds "SupG": a wide Gaussian minus a narrower one. The
// narrow width is a ratio of the wide width, the narrow correlation floats
// between bounds implied by the wide correlation, and the negative narrow
// weight is capped so the density stays non-negative.
func NewSuperGaussFit(cfg Config) (*Model, error) {
	b := newBuilder("SupG", FamilyDouble, CapWide|CapSuper, cfg)
	for _, p := range widthPairs("N", "M") {
		b.free(RolePhysics, p.wide, 1.3, 3.0)
		ratio := p.narrow + "Ratio"
		b.free(RoleFit, ratio, 0.1, 0.99)
		b.derive(RolePhysics, p.narrow, p.wide+"*"+ratio, []string{p.wide, ratio}, productExpr, productErr)
	}
	for _, beam := range beams {
		rhoN, rhoM := rho("N", beam), rho("M", beam)
		rx, ry := width("x", "N", beam)+"Ratio", width("y", "N", beam)+"Ratio"
		b.free(RolePhysics, rhoM, -0.48, 0.48)
		in := []string{rhoM, rx, ry}
		b.derive(RoleAuxiliary, rhoN+"Min", "max(-0.99,rhoM/rx/ry-sqrt(1/rx^2-1)*sqrt(1/ry^2-1))", in,
			func(v []float64) float64 { return superRhoMin(v[0], v[1], v[2]) }, untracked)
		b.derive(RoleAuxiliary, rhoN+"Max", "min(0.99,rhoM/rx/ry+sqrt(1/rx^2-1)*sqrt(1/ry^2-1))", in,
			func(v []float64) float64 { return superRhoMax(v[0], v[1], v[2]) }, untracked)
		n := b.free(RolePhysics, rhoN, -0.48, 0.48)
		b.floatBetween(n, rhoN+"Min", rhoN+"Max")
	}
	for _, beam := range beams {
		omega := omegaName(beam)
		in := []string{width("x", "N", beam) + "Ratio", width("y", "N", beam) + "Ratio", rho("N", beam), rho("M", beam)}
		b.derive(RoleAuxiliary, omega+"Max", "rx*ry*sqrt((1-rhoN^2)/(1-rhoM^2))", in,
			func(v []float64) float64 { return superOmegaMax(v[0], v[1], v[2], v[3]) }, untracked)
		o := b.free(RoleFit, omega, 0, 0.99)
		b.floatBetween(o, "", omega+"Max")
		b.derive(RolePhysics, weight(beam, "N"), "-"+omega+"/(1.0-"+omega+")", []string{omega}, narrowWeight,
			func(v, e []float64) float64 { return e[0] / (1 - v[0]*v[0]) })
		b.derive(RolePhysics, weight(beam, "M"), "1.0/(1.0-"+omega+")", []string{omega}, wideWeight,
			func(v, e []float64) float64 { return e[0] / ((1 - v[0]) * (1 - v[0])) })
	}
	b.fitNames("xWidthN1Ratio", "xWidthN2Ratio", "yWidthN1Ratio", "yWidthN2Ratio",
		"rhoN1", "rhoN2", "xWidthM1", "xWidthM2", "yWidthM1", "yWidthM2",
		"rhoM1", "rhoM2", "omega1", "omega2")
	b.fitNames(PositionNames()...)
	return b.done()
}

func omegaName(beam int) string { return "omega" + string(rune('0'+beam)) }

// #endregion super-gauss-fit

// #region super-gauss-toy
// NewSuperGaussToy builds "toySupG": widths are free and the narrow
// correlation and weight are positions between their bounds.
func NewSuperGaussToy(cfg Config) (*Model, error) {
	b := newBuilder("toySupG", FamilyDouble, CapWide|CapSuper|CapToy, cfg)
	for _, p := range widthPairs("N", "M") {
		b.free(RolePhysics, p.narrow, 1.3, 3.0)
		b.free(RolePhysics, p.wide, 1.3, 3.0)
		b.derive(RoleAuxiliary, p.narrow+"Ratio", p.narrow+"/"+p.wide, []string{p.narrow, p.wide}, ratioExpr, untracked)
	}
	for _, beam := range beams {
		rhoN, rhoM := rho("N", beam), rho("M", beam)
		rx, ry := width("x", "N", beam)+"Ratio", width("y", "N", beam)+"Ratio"
		b.free(RolePhysics, rhoM, -0.48, 0.48)
		in := []string{rhoM, rx, ry}
		b.derive(RoleAuxiliary, rhoN+"Min", "max(-0.99,rhoM/rx/ry-sqrt(1/rx^2-1)*sqrt(1/ry^2-1))", in,
			func(v []float64) float64 { return superRhoMin(v[0], v[1], v[2]) }, untracked)
		b.derive(RoleAuxiliary, rhoN+"Max", "min(0.99,rhoM/rx/ry+sqrt(1/rx^2-1)*sqrt(1/ry^2-1))", in,
			func(v []float64) float64 { return superRhoMax(v[0], v[1], v[2]) }, untracked)
		factor := rhoN + "Factor"
		b.free(RoleFit, factor, 0, 1)
		b.derive(RolePhysics, rhoN, "min+(max-min)*factor", []string{rhoN + "Min", rhoN + "Max", factor}, interpolate, interpolateErr)
	}
	for _, beam := range beams {
		omega := omegaName(beam)
		in := []string{width("x", "N", beam) + "Ratio", width("y", "N", beam) + "Ratio", rho("N", beam), rho("M", beam)}
		b.derive(RoleAuxiliary, omega+"Max", "rx*ry*sqrt((1-rhoN^2)/(1-rhoM^2))", in,
			func(v []float64) float64 { return superOmegaMax(v[0], v[1], v[2], v[3]) }, untracked)
		prime := omega + "Prime"
		b.free(RoleFit, prime, 0, 1)
		b.derive(RoleAuxiliary, omega, omega+"Max*"+prime, []string{omega + "Max", prime}, productExpr,
			func(v, e []float64) float64 { return v[0] * e[1] })
		sameDenominator := func(v, e []float64) float64 { return e[0] / (1 - v[0]*v[0]) }
		b.derive(RolePhysics, weight(beam, "N"), "-"+omega+"/(1.0-"+omega+")", []string{omega}, narrowWeight, sameDenominator)
		b.derive(RolePhysics, weight(beam, "M"), "1.0/(1.0-"+omega+")", []string{omega}, wideWeight, sameDenominator)
	}
	b.fitNames("xWidthN1", "xWidthN2", "yWidthN1", "yWidthN2", "rhoN1Factor", "rhoN2Factor",
		"xWidthM1", "xWidthM2", "yWidthM1", "yWidthM2", "rhoM1", "rhoM2",
		"omega1Prime", "omega2Prime")
	b.fitNames(PositionNames()...)
	return b.done()
}

// interpolate maps a [0,1] position onto [min,max]; inputs are min, max, position.
func interpolate(v []float64) float64 { return v[0] + (v[1]-v[0])*v[2] }

func interpolateErr(v, e []float64) float64 { return (v[1] - v[0]) * e[2] }

// #endregion super-gauss-toy
