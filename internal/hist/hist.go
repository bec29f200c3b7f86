package hist

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// #region hist2d
// Hist2D is a two-dimensional histogram with uniform bins and no
// under/overflow storage. Entries that fall outside are counted in Lost.
type Hist2D struct {
	Name   string
	X, Y   Axis
	counts []float64
	Lost   float64
}

// New builds an empty nx×ny histogram.
func New(name string, x, y Axis) *Hist2D {
	return &Hist2D{Name: name, X: x, Y: y, counts: make([]float64, x.N*y.N)}
}

// NewSquare builds an n×n histogram over [lo,hi) on both axes.
func NewSquare(name string, n int, lo, hi float64) *Hist2D {
	a := Axis{N: n, Lo: lo, Hi: hi}
	return New(name, a, a)
}

func (h *Hist2D) index(i, j int) int { return i*h.Y.N + j }

// Fill adds one entry at (x, y).
func (h *Hist2D) Fill(x, y float64) { h.FillWeight(x, y, 1) }

// FillWeight adds w at (x, y).
func (h *Hist2D) FillWeight(x, y, w float64) {
	i, j := h.X.Find(x), h.Y.Find(y)
	if i < 0 || j < 0 {
		h.Lost += w
		return
	}
	h.counts[h.index(i, j)] += w
}

// At returns the content of bin (i, j).
func (h *Hist2D) At(i, j int) float64 { return h.counts[h.index(i, j)] }

// Set assigns the content of bin (i, j).
func (h *Hist2D) Set(i, j int, v float64) { h.counts[h.index(i, j)] = v }

// Sum returns the total in-range content.
func (h *Hist2D) Sum() float64 { return floats.Sum(h.counts) }

// BinArea returns the area of one bin.
func (h *Hist2D) BinArea() float64 { return h.X.Width() * h.Y.Width() }

// Counts returns a copy of the bin contents in row-major (x, then y) order.
func (h *Hist2D) Counts() []float64 { return append([]float64(nil), h.counts...) }

// Clone returns a deep copy.
func (h *Hist2D) Clone() *Hist2D {
	c := *h
	c.counts = h.Counts()
	return &c
}

// SameBinning reports whether o has identical axes.
func (h *Hist2D) SameBinning(o *Hist2D) bool { return h.X == o.X && h.Y == o.Y }

// Add accumulates o into h.
func (h *Hist2D) Add(o *Hist2D) error {
	if !h.SameBinning(o) {
		return fmt.Errorf("add %s to %s: %w", o.Name, h.Name, ErrShape)
	}
	floats.Add(h.counts, o.counts)
	h.Lost += o.Lost
	return nil
}

// Each calls fn for every bin with its centre and content.
func (h *Hist2D) Each(fn func(i, j int, x, y, v float64)) {
	for i := 0; i < h.X.N; i++ {
		x := h.X.Center(i)
		for j := 0; j < h.Y.N; j++ {
			fn(i, j, x, h.Y.Center(j), h.counts[h.index(i, j)])
		}
	}
}

// #endregion hist2d

// #region poisson-errors
// PoissonInterval returns the asymmetric Garwood ±1σ errors of an observed
// count n. Non-integer counts are handled through the chi-squared quantile
// with fractional degrees of freedom.
func PoissonInterval(n float64) (low, high float64) {
	const alpha = 1 - OneSigma
	if n > 0 {
		low = n - 0.5*distuv.ChiSquared{K: 2 * n}.Quantile(alpha/2)
	}
	high = 0.5*distuv.ChiSquared{K: 2 * (n + 1)}.Quantile(1-alpha/2) - n
	return low, high
}

// ErrorLow returns the lower Poisson error of bin (i, j).
func (h *Hist2D) ErrorLow(i, j int) float64 {
	lo, _ := PoissonInterval(h.At(i, j))
	return lo
}

// ErrorHigh returns the upper Poisson error of bin (i, j).
func (h *Hist2D) ErrorHigh(i, j int) float64 {
	_, hi := PoissonInterval(h.At(i, j))
	return hi
}

// #endregion poisson-errors

// #region encoding
// MarshalBinary encodes the histogram as little-endian axes followed by the
// bin contents. The name is not encoded.
func (h *Hist2D) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	hdr := []any{
		int64(h.X.N), h.X.Lo, h.X.Hi,
		int64(h.Y.N), h.Y.Lo, h.Y.Hi,
		h.Lost,
	}
	for _, v := range hdr {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			return nil, fmt.Errorf("encode histogram: %w", err)
		}
	}
	if err := binary.Write(&buf, binary.LittleEndian, h.counts); err != nil {
		return nil, fmt.Errorf("encode histogram: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes data produced by MarshalBinary.
func (h *Hist2D) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)
	var nx, ny int64
	var x, y Axis
	var lost float64
	fields := []any{&nx, &x.Lo, &x.Hi, &ny, &y.Lo, &y.Hi, &lost}
	for _, f := range fields {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return fmt.Errorf("decode histogram header: %w", ErrCorrupt)
		}
	}
	if nx <= 0 || ny <= 0 || int64(r.Len()) != nx*ny*8 {
		return fmt.Errorf("decode histogram %dx%d with %d bytes left: %w", nx, ny, r.Len(), ErrCorrupt)
	}
	x.N, y.N = int(nx), int(ny)
	counts := make([]float64, x.N*y.N)
	if err := binary.Read(r, binary.LittleEndian, counts); err != nil {
		return fmt.Errorf("decode histogram counts: %w", ErrCorrupt)
	}
	for _, c := range counts {
		if math.IsNaN(c) {
			return fmt.Errorf("decode histogram: NaN content: %w", ErrCorrupt)
		}
	}
	h.X, h.Y, h.Lost, h.counts = x, y, lost, counts
	return nil
}

// #endregion encoding
