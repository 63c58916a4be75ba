package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kingrea/histostack/internal/wrp"
)

// Decorator adjusts the rendering state of a builder before its build
// procedure runs. Decorators never render.
type Decorator interface {
	Name() string
	Decorate(b *Builder) error
}

// Legend attaches a legend to the main pad.
type Legend struct{}

func (Legend) Name() string { return "legend" }

func (Legend) Decorate(b *Builder) error {
	b.EnableLegend()
	b.Note("decorated with legend")
	return nil
}

// RatioSplit splits the canvas and adds a data over simulation pad. Canvases
// missing either part keep a single pad.
type RatioSplit struct{}

func (RatioSplit) Name() string { return "ratio-split" }

func (RatioSplit) Decorate(b *Builder) error {
	if !b.HasData() || !b.HasStack() {
		b.Note("ratio pad skipped for %s", b.Name())
		return nil
	}
	b.EnableRatio()
	b.Note("decorated with ratio pad")
	return nil
}

// TextBox draws free text onto the main pad.
type TextBox struct {
	Text string
}

func (TextBox) Name() string { return "textbox" }

func (d TextBox) Decorate(b *Builder) error {
	if strings.TrimSpace(d.Text) == "" {
		return fmt.Errorf("render: textbox for %s has no text", b.Name())
	}
	b.SetText(d.Text)
	b.Note("decorated with text box")
	return nil
}

// Title shows a title above the main pad. An empty Text keeps the builder's
// own title.
type Title struct {
	Text string
}

func (Title) Name() string { return "title" }

func (d Title) Decorate(b *Builder) error {
	if d.Text != "" {
		b.SetTitle(d.Text)
	}
	b.ShowTitle()
	return nil
}

// DecoratorFactory builds a named decorator from the canvas settings.
type DecoratorFactory func(style CanvasStyle) Decorator

var decorators = map[string]DecoratorFactory{
	"legend":      func(CanvasStyle) Decorator { return Legend{} },
	"ratio-split": func(CanvasStyle) Decorator { return RatioSplit{} },
	"textbox":     func(s CanvasStyle) Decorator { return TextBox{Text: s.Text} },
	"title":       func(CanvasStyle) Decorator { return Title{} },
}

// DefaultDecorators is the decorator list used when none is configured.
func DefaultDecorators() []Decorator {
	return []Decorator{RatioSplit{}, Legend{}}
}

// Lookup resolves decorator names in order.
func Lookup(names []string, style CanvasStyle) ([]Decorator, error) {
	out := make([]Decorator, 0, len(names))
	for _, name := range names {
		factory, ok := decorators[strings.TrimSpace(name)]
		if !ok {
			return nil, fmt.Errorf("render: unknown decorator %q (known: %s)", name, strings.Join(DecoratorNames(), ", "))
		}
		out = append(out, factory(style))
	}
	return out, nil
}

// DecoratorNames lists the registered decorator names.
func DecoratorNames() []string {
	names := make([]string, 0, len(decorators))
	for name := range decorators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SwitchLogScale returns a copy of a canvas re-rendered with a logarithmic
// y axis. The input canvas is left untouched.
func SwitchLogScale(canvas *wrp.Wrapper) (*wrp.Wrapper, error) {
	if canvas.Kind != wrp.KindCanvas || canvas.Figure == nil {
		return nil, fmt.Errorf("render: %s is not a built canvas", canvas.Name)
	}
	img, err := canvas.Figure.Render(true)
	if err != nil {
		return nil, fmt.Errorf("render: log scale %s: %w", canvas.Name, err)
	}
	out := canvas.Clone()
	out.Image = img
	out.LogY = true
	out.AddHistory("switched to log scale")
	return out, nil
}
