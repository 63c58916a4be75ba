package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"strconv"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/kingrea/histostack/internal/histo"
)

// Layer is one histogram drawn on a figure.
type Layer struct {
	Label string
	Color string
	Histo *histo.Histogram
}

// Figure is the assembled drawing state of a canvas. It renders itself at
// linear or logarithmic scale, so the log variant of a canvas can be produced
// after the build without rebuilding.
type Figure struct {
	Title  string
	XLabel string
	YLabel string
	Width  int
	Height int
	// Stack holds the simulated layers, bottom first.
	Stack  []Layer
	Data   *Layer
	Legend bool
	Ratio  bool
	Text   string
}

// ratioShare is the fraction of the canvas height given to the ratio pad.
const ratioShare = 0.28

var palette = []string{
	"1f77b4", "ff7f0e", "2ca02c", "d62728", "9467bd",
	"8c564b", "e377c2", "7f7f7f", "bcbd22", "17becf",
}

// Render draws the figure and returns it PNG encoded.
func (f *Figure) Render(logY bool) ([]byte, error) {
	if len(f.Stack) == 0 && f.Data == nil {
		return nil, ErrNoRenderers
	}
	width, height := f.Width, f.Height
	if width <= 0 {
		width = defaultWidth
	}
	if height <= 0 {
		height = defaultHeight
	}
	withRatio := f.Ratio && f.Data != nil && len(f.Stack) > 0
	mainHeight := height
	if withRatio {
		mainHeight = int(float64(height) * (1 - ratioShare))
	}

	cumulative, err := f.cumulative()
	if err != nil {
		return nil, err
	}
	main, err := f.mainChart(cumulative, width, mainHeight, logY)
	if err != nil {
		return nil, err
	}
	img, err := renderChart(main)
	if err != nil {
		return nil, err
	}
	if withRatio {
		pad, err := f.ratioChart(cumulative[len(cumulative)-1], width, height-mainHeight)
		if err != nil {
			return nil, err
		}
		padImg, err := renderChart(pad)
		if err != nil {
			return nil, err
		}
		img = stackVertically(img, padImg)
	}
	if strings.TrimSpace(f.Text) != "" {
		img = drawTextBox(img, f.Text)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("render: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// cumulative returns the running sums of the stack layers, bottom first.
func (f *Figure) cumulative() ([]*histo.Histogram, error) {
	out := make([]*histo.Histogram, 0, len(f.Stack))
	for i, layer := range f.Stack {
		if i == 0 {
			out = append(out, layer.Histo.Clone())
			continue
		}
		next := out[i-1].Clone()
		if err := next.Add(layer.Histo); err != nil {
			return nil, fmt.Errorf("render: stack layer %s: %w", layer.Label, err)
		}
		out = append(out, next)
	}
	return out, nil
}

func (f *Figure) reference() *histo.Histogram {
	if len(f.Stack) > 0 {
		return f.Stack[0].Histo
	}
	return f.Data.Histo
}

func (f *Figure) mainChart(cumulative []*histo.Histogram, width, height int, logY bool) (chart.Chart, error) {
	ref := f.reference()
	top, floor := 0.0, 0.0
	consider := func(h *histo.Histogram, withErrors bool) {
		if withErrors {
			top = math.Max(top, h.MaxWithError())
		} else {
			top = math.Max(top, h.Max())
		}
		if m := h.MinPositive(); m > 0 && (floor == 0 || m < floor) {
			floor = m
		}
	}
	for _, h := range cumulative {
		consider(h, false)
	}
	if f.Data != nil {
		if !f.Data.Histo.SameBinning(ref) {
			return chart.Chart{}, fmt.Errorf("render: data overlay %s: %w", f.Data.Label, histo.ErrBinningMismatch)
		}
		consider(f.Data.Histo, true)
	}
	if top <= 0 {
		top = 1
	}

	scale := func(v float64) float64 { return v }
	yAxis := chart.YAxis{Name: f.YLabel, Range: &chart.ContinuousRange{Min: 0, Max: top * 1.25}}
	if logY {
		if floor <= 0 {
			floor = top / 10
		}
		lo := math.Floor(math.Log10(floor / 2))
		hi := math.Log10(top) + 0.7
		scale = func(v float64) float64 { return math.Log10(math.Max(v, math.Pow(10, lo))) }
		yAxis.Range = &chart.ContinuousRange{Min: lo, Max: hi}
		yAxis.Ticks = decadeTicks(lo, hi)
	}

	var series []chart.Series
	// Highest running sum first so each lower layer paints over the one above.
	for i := len(cumulative) - 1; i >= 0; i-- {
		col := layerColor(f.Stack[i].Color, i)
		xs, ys := steps(cumulative[i], scale)
		series = append(series, chart.ContinuousSeries{
			Name:    f.Stack[i].Label,
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: col,
				StrokeWidth: 1,
				FillColor:   drawing.Color{R: col.R, G: col.G, B: col.B, A: 210},
			},
		})
	}
	if f.Data != nil {
		xs := f.Data.Histo.Centers()
		ys := make([]float64, len(xs))
		for i, c := range f.Data.Histo.Contents {
			ys[i] = scale(c)
		}
		series = append(series, chart.ContinuousSeries{
			Name:    f.Data.Label,
			XValues: xs,
			YValues: ys,
			Style:   pointStyle(drawing.ColorBlack),
		})
	}

	ch := chart.Chart{
		Title:      f.Title,
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 24, Left: 16, Right: 16, Bottom: 12}},
		XAxis: chart.XAxis{
			Name:  f.XLabel,
			Range: &chart.ContinuousRange{Min: ref.Edges[0], Max: ref.Edges[len(ref.Edges)-1]},
		},
		YAxis:  yAxis,
		Series: series,
	}
	if f.Legend {
		ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	}
	return ch, nil
}

func (f *Figure) ratioChart(total *histo.Histogram, width, height int) (chart.Chart, error) {
	ratio, err := histo.Ratio(f.Data.Histo, total)
	if err != nil {
		return chart.Chart{}, err
	}
	lo, hi := ratio.Edges[0], ratio.Edges[len(ratio.Edges)-1]
	var xs, ys []float64
	peak := 0.0
	for i, x := range ratio.Centers() {
		if total.Contents[i] == 0 {
			continue
		}
		xs = append(xs, x)
		ys = append(ys, ratio.Contents[i])
		peak = math.Max(peak, ratio.Contents[i])
	}
	yMax := math.Min(math.Max(2, math.Ceil(peak*1.1)), 5)
	series := []chart.Series{
		chart.ContinuousSeries{
			XValues: []float64{lo, hi},
			YValues: []float64{1, 1},
			Style:   chart.Style{StrokeColor: chart.ColorAlternateGray, StrokeWidth: 1},
		},
	}
	if len(xs) > 0 {
		series = append(series, chart.ContinuousSeries{
			XValues: xs,
			YValues: ys,
			Style:   pointStyle(drawing.ColorBlack),
		})
	}
	return chart.Chart{
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 4, Left: 16, Right: 16, Bottom: 12}},
		XAxis: chart.XAxis{
			Name:  f.XLabel,
			Range: &chart.ContinuousRange{Min: lo, Max: hi},
		},
		YAxis: chart.YAxis{
			Name:  "Data/MC",
			Range: &chart.ContinuousRange{Min: 0, Max: yMax},
			Ticks: []chart.Tick{{Value: 0, Label: "0"}, {Value: 1, Label: "1"}, {Value: 2, Label: "2"}},
		},
		Series: series,
	}, nil
}

// steps turns bin contents into the outline of a step histogram.
func steps(h *histo.Histogram, scale func(float64) float64) ([]float64, []float64) {
	xs := make([]float64, 0, 2*h.Bins())
	ys := make([]float64, 0, 2*h.Bins())
	for i, c := range h.Contents {
		y := scale(c)
		xs = append(xs, h.Edges[i], h.Edges[i+1])
		ys = append(ys, y, y)
	}
	return xs, ys
}

func decadeTicks(lo, hi float64) []chart.Tick {
	var ticks []chart.Tick
	for k := math.Ceil(lo); k <= hi; k++ {
		ticks = append(ticks, chart.Tick{Value: k, Label: strconv.FormatFloat(math.Pow(10, k), 'g', -1, 64)})
	}
	return ticks
}

func pointStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeWidth: 0,
		DotWidth:    4,
		DotColor:    col,
	}
}

func layerColor(hex string, index int) drawing.Color {
	hex = strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if hex == "" {
		hex = palette[index%len(palette)]
	}
	return drawing.ColorFromHex(hex)
}

func renderChart(ch chart.Chart) (image.Image, error) {
	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render: draw chart: %w", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		return nil, fmt.Errorf("render: decode chart: %w", err)
	}
	return img, nil
}

func stackVertically(top, bottom image.Image) image.Image {
	tb, bb := top.Bounds(), bottom.Bounds()
	width := max(tb.Dx(), bb.Dx())
	out := image.NewRGBA(image.Rect(0, 0, width, tb.Dy()+bb.Dy()))
	draw.Draw(out, out.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(out, image.Rect(0, 0, tb.Dx(), tb.Dy()), top, tb.Min, draw.Src)
	draw.Draw(out, image.Rect(0, tb.Dy(), bb.Dx(), tb.Dy()+bb.Dy()), bottom, bb.Min, draw.Src)
	return out
}

// drawTextBox writes text in a framed box near the top left of the main pad.
func drawTextBox(img image.Image, text string) image.Image {
	b := img.Bounds()
	rgba := image.NewRGBA(b)
	draw.Draw(rgba, b, img, b.Min, draw.Src)

	face := basicfont.Face7x13
	lines := strings.Split(strings.TrimSpace(text), "\n")
	dr := &font.Drawer{Dst: rgba, Src: image.NewUniform(color.Black), Face: face}
	textWidth := 0
	for _, line := range lines {
		textWidth = max(textWidth, dr.MeasureString(line).Ceil())
	}
	lineHeight := face.Metrics().Height.Ceil()
	pad := 6
	x := b.Min.X + 80
	y := b.Min.Y + 48
	box := image.Rect(x-pad, y-pad, x+textWidth+pad, y+lineHeight*len(lines)+pad)
	draw.Draw(rgba, box, image.NewUniform(color.RGBA{R: 255, G: 255, B: 255, A: 230}), image.Point{}, draw.Over)
	for i, line := range lines {
		dr.Dot = fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y + lineHeight*i + face.Metrics().Ascent.Ceil())}
		dr.DrawString(line)
	}
	return rgba
}
