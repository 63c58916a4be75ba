package histo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func filled(t *testing.T, title string, values ...float64) *Histogram {
	t.Helper()
	h, err := Uniform(title, 4, 0, 4)
	require.NoError(t, err)
	for _, v := range values {
		h.Fill(v, 1)
	}
	return h
}

func TestFillBinsAndOverflow(t *testing.T) {
	h := filled(t, "pt", 0, 0.5, 1, 3.99, 4, -1)
	require.Equal(t, []float64{2, 1, 0, 1}, h.Contents)
	require.Equal(t, 6.0, h.Entries)
	require.Equal(t, 4.0, h.Integral())
}

func TestNewRejectsBadEdges(t *testing.T) {
	_, err := New("x", []float64{0})
	require.Error(t, err)
	_, err = New("x", []float64{0, 1, 1})
	require.Error(t, err)
	_, err = Uniform("x", 0, 0, 1)
	require.Error(t, err)
}

func TestSumAddsContentsAndErrorsInQuadrature(t *testing.T) {
	a := filled(t, "a", 0.5, 0.5, 2.5)
	b := filled(t, "b", 0.5, 1.5)
	total, err := Sum(a, b)
	require.NoError(t, err)
	require.Equal(t, []float64{3, 1, 1, 0}, total.Contents)
	require.InDelta(t, math.Sqrt(3), total.Error(0), 1e-12)
	// inputs untouched
	require.Equal(t, []float64{2, 0, 1, 0}, a.Contents)
}

func TestAddRejectsDifferentBinning(t *testing.T) {
	a := filled(t, "a")
	b, err := Uniform("b", 2, 0, 4)
	require.NoError(t, err)
	require.ErrorIs(t, a.Add(b), ErrBinningMismatch)
}

func TestScaleScalesSumW2Quadratically(t *testing.T) {
	h := filled(t, "h", 0.5, 0.5)
	h.Scale(3)
	require.Equal(t, 6.0, h.Contents[0])
	require.Equal(t, 18.0, h.SumW2[0])
}

func TestRatio(t *testing.T) {
	num := filled(t, "data", 0.5, 0.5, 1.5)
	den := filled(t, "mc", 0.5, 2.5)
	r, err := Ratio(num, den)
	require.NoError(t, err)
	require.Equal(t, []float64{2, 0, 0, 0}, r.Contents)
	// rel² = 2/4 + 1/1
	require.InDelta(t, 4*1.5, r.SumW2[0], 1e-12)
}

func TestExtremaAndCenters(t *testing.T) {
	h := filled(t, "h", 0.5, 0.5, 1.5)
	require.Equal(t, 2.0, h.Max())
	require.Equal(t, 1.0, h.MinPositive())
	require.InDelta(t, 2+math.Sqrt(2), h.MaxWithError(), 1e-12)
	require.Equal(t, []float64{0.5, 1.5, 2.5, 3.5}, h.Centers())
}
