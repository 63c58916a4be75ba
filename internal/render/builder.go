// Package render turns stacked wrappers into canvases. A Builder collects the
// rendering state of one canvas, decorators adjust that state, and the build
// procedure draws it exactly once with go-chart.
package render

import (
	"errors"
	"fmt"

	"github.com/kingrea/histostack/internal/wrp"
)

var (
	// ErrNoRenderers is returned when a wrapper without renderers enters the
	// canvas-build phase.
	ErrNoRenderers = errors.New("render: wrapper has no renderers")
	// ErrAlreadyBuilt is returned when the build procedure runs a second time.
	ErrAlreadyBuilt = errors.New("render: build procedure already ran")
	// ErrNotBuilt is returned when a canvas is requested before the build.
	ErrNotBuilt = errors.New("render: build procedure has not run")
)

// CanvasStyle holds the per-tool canvas settings.
type CanvasStyle struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	XLabel string `yaml:"x_label"`
	YLabel string `yaml:"y_label"`
	Text   string `yaml:"text"`
}

const (
	defaultWidth  = 800
	defaultHeight = 600
	defaultYLabel = "Events"
)

// Builder is the mutable, not yet finalized state of one canvas.
type Builder struct {
	source *wrp.Wrapper
	name   string
	title  string
	style  CanvasStyle

	legend    bool
	ratio     bool
	showTitle bool
	text      string

	built   bool
	figure  *Figure
	image   []byte
	history []string
}

// NewBuilder prepares a builder for a grouped or stacked wrapper.
func NewBuilder(w *wrp.Wrapper, style CanvasStyle) (*Builder, error) {
	if w == nil || len(w.Renderers) == 0 {
		name := "<nil>"
		if w != nil {
			name = w.Name
		}
		return nil, fmt.Errorf("%w: %s", ErrNoRenderers, name)
	}
	if style.Width <= 0 {
		style.Width = defaultWidth
	}
	if style.Height <= 0 {
		style.Height = defaultHeight
	}
	if style.YLabel == "" {
		style.YLabel = defaultYLabel
	}
	title := w.Name
	if first := w.Renderers[0]; first.Histo != nil && first.Histo.Title != "" {
		title = first.Histo.Title
	}
	return &Builder{
		source: w,
		name:   w.Name,
		title:  title,
		style:  style,
		text:   style.Text,
	}, nil
}

// Name is the canvas identity, used for output file names.
func (b *Builder) Name() string { return b.name }

// SetName renames the canvas.
func (b *Builder) SetName(name string) { b.name = name }

// Title is the text shown when a title decorator is applied.
func (b *Builder) Title() string { return b.title }

// SetTitle changes the title. After the build only the canvas metadata
// changes.
func (b *Builder) SetTitle(title string) { b.title = title }

// Source returns the wrapper the builder was created from.
func (b *Builder) Source() *wrp.Wrapper { return b.source }

// Renderers returns the drawable sub-objects of the source wrapper.
func (b *Builder) Renderers() []*wrp.Wrapper { return b.source.Renderers }

// Analyzer returns the analyzer tag of the first renderer.
func (b *Builder) Analyzer() string {
	if a := b.source.Renderers[0].Analyzer; a != "" {
		return a
	}
	return b.source.Analyzer
}

// Built reports whether the build procedure has run.
func (b *Builder) Built() bool { return b.built }

// HasData reports whether a data overlay is among the renderers.
func (b *Builder) HasData() bool {
	for _, r := range b.source.Renderers {
		if r.IsData {
			return true
		}
	}
	return false
}

// HasStack reports whether simulated layers are among the renderers.
func (b *Builder) HasStack() bool {
	for _, r := range b.source.Renderers {
		if !r.IsData {
			return true
		}
	}
	return false
}

// EnableLegend draws a legend.
func (b *Builder) EnableLegend() { b.legend = true }

// EnableRatio splits the canvas and adds a data over simulation pad.
func (b *Builder) EnableRatio() { b.ratio = true }

// ShowTitle draws the title above the main pad.
func (b *Builder) ShowTitle() { b.showTitle = true }

// SetText sets the text box content. An empty string removes the box.
func (b *Builder) SetText(text string) { b.text = text }

// Note appends a provenance line that ends up in the canvas history.
func (b *Builder) Note(format string, args ...any) {
	b.history = append(b.history, fmt.Sprintf(format, args...))
}

// RunProcedure assembles the figure and renders it at linear scale. It runs
// at most once; later calls return ErrAlreadyBuilt.
func (b *Builder) RunProcedure() error {
	if b.built {
		return fmt.Errorf("%w: %s", ErrAlreadyBuilt, b.name)
	}
	b.built = true
	fig, err := b.assemble()
	if err != nil {
		return err
	}
	img, err := fig.Render(false)
	if err != nil {
		return fmt.Errorf("render: build %s: %w", b.name, err)
	}
	b.figure = fig
	b.image = img
	b.Note("built canvas %s", b.name)
	return nil
}

func (b *Builder) assemble() (*Figure, error) {
	fig := &Figure{
		XLabel: b.style.XLabel,
		YLabel: b.style.YLabel,
		Width:  b.style.Width,
		Height: b.style.Height,
		Legend: b.legend,
		Ratio:  b.ratio,
		Text:   b.text,
	}
	if b.showTitle {
		fig.Title = b.title
	}
	for _, r := range b.source.Renderers {
		switch {
		case r.Kind == wrp.KindStack:
			if len(r.Renderers) == 0 {
				return nil, fmt.Errorf("%w: stack %s", ErrNoRenderers, r.Name)
			}
			for _, l := range r.Renderers {
				if l.Histo == nil {
					return nil, fmt.Errorf("render: %s layer %s is not loaded", b.name, l.Legend)
				}
				fig.Stack = append(fig.Stack, Layer{Label: l.Legend, Color: l.Color, Histo: l.Histo})
			}
		case r.Histo == nil:
			return nil, fmt.Errorf("render: %s renderer %s is not loaded", b.name, r.Name)
		case r.IsData:
			if fig.Data != nil {
				return nil, fmt.Errorf("render: %s has more than one data overlay", b.name)
			}
			fig.Data = &Layer{Label: r.Legend, Color: r.Color, Histo: r.Histo}
		default:
			fig.Stack = append(fig.Stack, Layer{Label: r.Legend, Color: r.Color, Histo: r.Histo})
		}
		if fig.XLabel == "" && r.Histo != nil {
			fig.XLabel = r.Histo.XLabel
		}
	}
	return fig, nil
}

// Canvas converts a built builder into the terminal canvas wrapper.
func (b *Builder) Canvas() (*wrp.Wrapper, error) {
	if !b.built || b.figure == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotBuilt, b.name)
	}
	canvas := &wrp.Wrapper{
		Kind:      wrp.KindCanvas,
		Name:      b.name,
		Analyzer:  b.Analyzer(),
		Legend:    b.source.Legend,
		Renderers: b.source.Renderers,
		Figure:    b.figure,
		Image:     b.image,
	}
	canvas.History = append(append(canvas.History, b.source.History...), b.history...)
	for k, v := range b.source.Info {
		canvas.SetInfo(k, v)
	}
	canvas.SetInfo("title", b.title)
	return canvas, nil
}
