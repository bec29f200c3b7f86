package closure

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/hist"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/shape"
)

// #region generator-config
// GeneratorConfig controls toy scan generation.
type GeneratorConfig struct {
	Positions  []float64  `yaml:"positions"`   // offsets of the moving beam
	EventScale float64    `yaml:"event_scale"` // expected vertices per unit of overlap integral
	Grid       int        `yaml:"grid"`        // sampling cells per axis over shape.OverlapDomain
	NBins      int        `yaml:"nbins"`
	Range      [2]float64 `yaml:"range"` // histogram range on both axes
	VtxResX    float64    `yaml:"vtxres_x"`
	VtxResY    float64    `yaml:"vtxres_y"`
}

// DefaultGeneratorConfig returns 19 positions from -9 to 9, 80 events per
// unit overlap and a 500×500 sampling grid.
func DefaultGeneratorConfig() GeneratorConfig {
	pos := make([]float64, 19)
	for i := range pos {
		pos[i] = -9 + float64(i)
	}
	return GeneratorConfig{
		Positions:  pos,
		EventScale: 80,
		Grid:       500,
		NBins:      95,
		Range:      [2]float64{-10, 10},
	}
}

// #endregion generator-config

// #region generator
// ToyScan names a generated scan and the overlap entry it displaces.
type ToyScan struct {
	Name  string
	Param int
}

// ToyScans lists the generated scans in shape.Scans order: the beam that
// moves is the one not at rest.
var ToyScans = [4]ToyScan{
	{Name: "Beam2MoveX_Add", Param: 2},
	{Name: "Beam2MoveY_Add", Param: 3},
	{Name: "Beam1MoveX_Add", Param: 0},
	{Name: "Beam1MoveY_Add", Param: 1},
}

// Generator draws vertex positions from an overlap field.
type Generator struct {
	cfg   GeneratorConfig
	field *shape.Field
	rng   *rand.Rand
	in    shape.Integrator
}

// NewGenerator returns a generator for field. The field is cloned.
func NewGenerator(field *shape.Field, rng *rand.Rand, in shape.Integrator, cfg GeneratorConfig) (*Generator, error) {
	if cfg.Grid < 1 || cfg.NBins < 1 {
		return nil, fmt.Errorf("new generator: grid %d, bins %d", cfg.Grid, cfg.NBins)
	}
	return &Generator{cfg: cfg, field: field.Clone(), rng: rng, in: in}, nil
}

// SimulateScan displaces field entry par through every position, draws
// Poisson(EventScale·I) vertices per step and returns the filled histogram
// with the number of generated events.
func (g *Generator) SimulateScan(name string, par int) (*hist.Hist2D, int) {
	h := hist.NewSquare(name, g.cfg.NBins, g.cfg.Range[0], g.cfg.Range[1])
	total := 0
	for _, p := range g.cfg.Positions {
		g.field.SetParameter(par, p)
		lambda := g.cfg.EventScale * g.field.Integral(g.in)
		if !(lambda > 0) {
			continue
		}
		n := int(distuv.Poisson{Lambda: lambda, Src: g.rng}.Rand())
		if n == 0 {
			continue
		}
		s := newSampler(g.field, g.cfg.Grid)
		for i := 0; i < n; i++ {
			x, y := s.draw(g.rng)
			x += g.rng.NormFloat64() * g.cfg.VtxResX
			y += g.rng.NormFloat64() * g.cfg.VtxResY
			h.Fill(x, y)
		}
		total += n
	}
	g.field.SetParameter(par, 0)
	return h, total
}

// GenerateToys simulates the four scans in ToyScans order.
func (g *Generator) GenerateToys() ([4]*hist.Hist2D, [4]int) {
	var hs [4]*hist.Hist2D
	var ns [4]int
	for i, s := range ToyScans {
		hs[i], ns[i] = g.SimulateScan(s.Name, s.Param)
	}
	return hs, ns
}

// #endregion generator

// #region sampler
// sampler draws points from a field via the cumulative distribution of its
// values at the cell centres of a square grid.
type sampler struct {
	lo, step float64
	n        int
	cdf      []float64
}

func newSampler(f *shape.Field, n int) *sampler {
	d := shape.OverlapDomain
	s := &sampler{lo: d[0], step: (d[1] - d[0]) / float64(n), n: n, cdf: make([]float64, n*n)}
	var acc float64
	for i := 0; i < n; i++ {
		x := s.lo + (float64(i)+0.5)*s.step
		for j := 0; j < n; j++ {
			y := s.lo + (float64(j)+0.5)*s.step
			acc += math.Max(0, f.At(x, y))
			s.cdf[i*n+j] = acc
		}
	}
	return s
}

func (s *sampler) draw(rng *rand.Rand) (float64, float64) {
	total := s.cdf[len(s.cdf)-1]
	k := sort.SearchFloat64s(s.cdf, rng.Float64()*total)
	if k >= len(s.cdf) {
		k = len(s.cdf) - 1
	}
	i, j := k/s.n, k%s.n
	x := s.lo + (float64(i)+rng.Float64())*s.step
	y := s.lo + (float64(j)+rng.Float64())*s.step
	return x, y
}

// #endregion sampler
