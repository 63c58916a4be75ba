// Package histo holds the fixed-binning one dimensional histogram that every
// stored sample result is made of, together with the bin-wise arithmetic the
// stacking stage relies on. Uncertainties are carried as the per-bin sum of
// squared weights, so adding histograms adds their errors in quadrature.
package histo

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// ErrBinningMismatch is returned when two histograms with different bin
// edges are combined.
var ErrBinningMismatch = errors.New("histo: binning mismatch")

// Histogram is a weighted 1-D histogram with explicit bin edges.
type Histogram struct {
	Title    string    `cbor:"title"`
	XLabel   string    `cbor:"x_label,omitempty"`
	Edges    []float64 `cbor:"edges"`
	Contents []float64 `cbor:"contents"`
	SumW2    []float64 `cbor:"sumw2"`
	Entries  float64   `cbor:"entries"`
}

// CheckEdges returns an error unless edges describe at least one bin with strictly
// ascending bounds.
func CheckEdges(title string, edges []float64) error {
	if len(edges) < 2 {
		return fmt.Errorf("histo: %s needs at least two edges", title)
	}
	for i := 1; i < len(edges); i++ {
		if !(edges[i] > edges[i-1]) {
			return fmt.Errorf("histo: %s edges must be strictly ascending", title)
		}
	}
	return nil
}

// New builds an empty histogram over the given ascending edges.
func New(title string, edges []float64) (*Histogram, error) {
	if err := CheckEdges(title, edges); err != nil {
		return nil, err
	}
	n := len(edges) - 1
	return &Histogram{
		Title:    title,
		Edges:    slices.Clone(edges),
		Contents: make([]float64, n),
		SumW2:    make([]float64, n),
	}, nil
}

// Uniform builds an empty histogram with n equal-width bins on [lo, hi).
func Uniform(title string, n int, lo, hi float64) (*Histogram, error) {
	if n <= 0 || !(hi > lo) {
		return nil, fmt.Errorf("histo: %s invalid uniform binning %d [%g, %g)", title, n, lo, hi)
	}
	edges := make([]float64, n+1)
	width := (hi - lo) / float64(n)
	for i := range edges {
		edges[i] = lo + float64(i)*width
	}
	edges[n] = hi
	return New(title, edges)
}

// Bins returns the number of bins.
func (h *Histogram) Bins() int {
	return len(h.Contents)
}

// Find returns the bin index holding x, or -1 for under/overflow.
func (h *Histogram) Find(x float64) int {
	if len(h.Edges) < 2 || x < h.Edges[0] || x >= h.Edges[len(h.Edges)-1] {
		return -1
	}
	i, found := slices.BinarySearch(h.Edges, x)
	if found {
		return i
	}
	return i - 1
}

// Fill adds weight w at x. Values outside the edges are counted as entries
// but not binned.
func (h *Histogram) Fill(x, w float64) {
	h.Entries++
	i := h.Find(x)
	if i < 0 {
		return
	}
	h.Contents[i] += w
	h.SumW2[i] += w * w
}

// SameBinning reports whether o has identical edges.
func (h *Histogram) SameBinning(o *Histogram) bool {
	return o != nil && slices.Equal(h.Edges, o.Edges)
}

// Add sums o into h bin by bin. Errors add in quadrature.
func (h *Histogram) Add(o *Histogram) error {
	if !h.SameBinning(o) {
		return fmt.Errorf("%w: %q vs %q", ErrBinningMismatch, h.Title, titleOf(o))
	}
	for i := range h.Contents {
		h.Contents[i] += o.Contents[i]
		h.SumW2[i] += o.SumW2[i]
	}
	h.Entries += o.Entries
	return nil
}

// Sum returns a new histogram holding the bin-wise sum of hs.
func Sum(hs ...*Histogram) (*Histogram, error) {
	if len(hs) == 0 {
		return nil, fmt.Errorf("histo: nothing to sum")
	}
	total := hs[0].Clone()
	for _, h := range hs[1:] {
		if err := total.Add(h); err != nil {
			return nil, err
		}
	}
	return total, nil
}

// Clone returns a deep copy.
func (h *Histogram) Clone() *Histogram {
	if h == nil {
		return nil
	}
	return &Histogram{
		Title:    h.Title,
		XLabel:   h.XLabel,
		Edges:    slices.Clone(h.Edges),
		Contents: slices.Clone(h.Contents),
		SumW2:    slices.Clone(h.SumW2),
		Entries:  h.Entries,
	}
}

// Scale multiplies contents by f and the squared weights by f².
func (h *Histogram) Scale(f float64) {
	for i := range h.Contents {
		h.Contents[i] *= f
		h.SumW2[i] *= f * f
	}
}

// Integral is the sum of all bin contents.
func (h *Histogram) Integral() float64 {
	total := 0.0
	for _, c := range h.Contents {
		total += c
	}
	return total
}

// Max returns the largest bin content, or 0 for an empty histogram.
func (h *Histogram) Max() float64 {
	if len(h.Contents) == 0 {
		return 0
	}
	return slices.Max(h.Contents)
}

// MaxWithError returns the largest content plus its uncertainty.
func (h *Histogram) MaxWithError() float64 {
	best := 0.0
	for i, c := range h.Contents {
		best = math.Max(best, c+h.Error(i))
	}
	return best
}

// MinPositive returns the smallest strictly positive bin content, or 0 when
// there is none.
func (h *Histogram) MinPositive() float64 {
	best := 0.0
	for _, c := range h.Contents {
		if c > 0 && (best == 0 || c < best) {
			best = c
		}
	}
	return best
}

// Error returns the uncertainty of bin i.
func (h *Histogram) Error(i int) float64 {
	return math.Sqrt(h.SumW2[i])
}

// Centers returns the bin centers.
func (h *Histogram) Centers() []float64 {
	out := make([]float64, h.Bins())
	for i := range out {
		out[i] = 0.5 * (h.Edges[i] + h.Edges[i+1])
	}
	return out
}

// Ratio divides num by den bin by bin. Relative errors are added in
// quadrature; bins with an empty denominator are left at zero.
func Ratio(num, den *Histogram) (*Histogram, error) {
	if !num.SameBinning(den) {
		return nil, fmt.Errorf("%w: ratio %q / %q", ErrBinningMismatch, num.Title, titleOf(den))
	}
	out := &Histogram{
		Title:    num.Title + "/" + den.Title,
		XLabel:   num.XLabel,
		Edges:    slices.Clone(num.Edges),
		Contents: make([]float64, num.Bins()),
		SumW2:    make([]float64, num.Bins()),
	}
	for i := range num.Contents {
		n, d := num.Contents[i], den.Contents[i]
		if d == 0 {
			continue
		}
		r := n / d
		out.Contents[i] = r
		var rel2 float64
		if n != 0 {
			rel2 += num.SumW2[i] / (n * n)
		}
		rel2 += den.SumW2[i] / (d * d)
		out.SumW2[i] = r * r * rel2
	}
	return out, nil
}

func titleOf(h *Histogram) string {
	if h == nil {
		return "<nil>"
	}
	return h.Title
}
