package shape

// #region single-gauss
func singleGaussCore(name string, caps Capability, cfg Config) *builder {
	b := newBuilder(name, FamilySingle, caps, cfg)
	for _, n := range []string{"xWidthN1", "xWidthN2", "yWidthN1", "yWidthN2"} {
		b.free(RolePhysics, n, 1.3, 3.0)
	}
	for _, n := range []string{"rhoN1", "rhoN2"} {
		b.free(RolePhysics, n, -0.48, 0.48)
	}
	for _, n := range []string{"w1N", "w2N"} {
		b.constant(RolePhysics, n, 1.0)
	}
	return b
}

// NewSingleGauss builds "SG": one correlated Gaussian per beam.
func NewSingleGauss(cfg Config) (*Model, error) {
	b := singleGaussCore("SG", 0, cfg)
	b.fitNames("xWidthN1", "xWidthN2", "yWidthN1", "yWidthN2", "rhoN1", "rhoN2")
	b.fitNames(PositionNames()...)
	return b.done()
}

// NewSingleGaussUncorrelated builds "noCorr": SG with both correlations
// fixed at zero.
func NewSingleGaussUncorrelated(cfg Config) (*Model, error) {
	b := singleGaussCore("noCorr", 0, cfg)
	for _, n := range []string{"rhoN1", "rhoN2"} {
		v, err := b.m.Variable(n)
		if err != nil {
			return nil, err
		}
		v.SetVal(0)
		v.SetConstant(true)
	}
	b.fitNames("xWidthN1", "xWidthN2", "yWidthN1", "yWidthN2")
	b.fitNames(PositionNames()...)
	return b.done()
}

// #endregion single-gauss
