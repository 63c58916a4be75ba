// Package wrp defines the Wrapper, the unit of data flowing through the
// plotting pipeline. A Wrapper is a tagged value: a single stored histogram,
// a group of histograms sharing an identity, a stack of Monte-Carlo layers,
// or a rendered canvas.
package wrp

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/kingrea/histostack/internal/histo"
)

// Kind tags what a Wrapper represents.
type Kind string

const (
	KindHisto  Kind = "histo"
	KindStack  Kind = "stack"
	KindGroup  Kind = "group"
	KindCanvas Kind = "canvas"
)

// Drawable renders a finalized canvas as an encoded image.
type Drawable interface {
	Render(logY bool) ([]byte, error)
}

// Wrapper carries a histogram-like object and the analysis metadata stages
// attach to it along the way.
type Wrapper struct {
	Kind     Kind
	Name     string
	Analyzer string
	Sample   string
	IsData   bool
	Legend   string
	Color    string
	// Path is the on-disk location of a stored histogram, empty otherwise.
	Path  string
	Histo *histo.Histogram
	// Renderers are the ordered drawable sub-objects of groups and stacks.
	Renderers []*Wrapper
	History   []string
	Info      map[string]string

	Figure Drawable
	Image  []byte
	LogY   bool
}

// Loaded reports whether the histogram payload is in memory.
func (w *Wrapper) Loaded() bool {
	return w.Histo != nil
}

// Key is the group identity of a wrapper: analyzer and name.
func (w *Wrapper) Key() string {
	return w.Analyzer + "/" + w.Name
}

// AddHistory appends one provenance line.
func (w *Wrapper) AddHistory(format string, args ...any) {
	w.History = append(w.History, fmt.Sprintf(format, args...))
}

// SetInfo attaches a metadata value.
func (w *Wrapper) SetInfo(key, value string) {
	if w.Info == nil {
		w.Info = map[string]string{}
	}
	w.Info[key] = value
}

// Clone returns a shallow copy with its own history, info and renderer slice.
// Histograms and renderer wrappers are shared.
func (w *Wrapper) Clone() *Wrapper {
	clone := *w
	clone.Renderers = slices.Clone(w.Renderers)
	clone.History = slices.Clone(w.History)
	clone.Info = maps.Clone(w.Info)
	return &clone
}

// SameAs reports whether o has the same name and the same renderer identity
// (pointer equality of each renderer, in order).
func (w *Wrapper) SameAs(o *Wrapper) bool {
	if w == o {
		return true
	}
	if w == nil || o == nil || w.Name != o.Name || len(w.Renderers) != len(o.Renderers) {
		return false
	}
	if len(w.Renderers) == 0 {
		return w.Histo == o.Histo
	}
	for i := range w.Renderers {
		if w.Renderers[i] != o.Renderers[i] {
			return false
		}
	}
	return true
}

// Inputs lists the stored histogram paths reachable from w.
func (w *Wrapper) Inputs() []string {
	var out []string
	var walk func(*Wrapper)
	walk = func(node *Wrapper) {
		if node == nil {
			return
		}
		if node.Path != "" {
			out = append(out, node.Path)
		}
		for _, r := range node.Renderers {
			walk(r)
		}
	}
	walk(w)
	return out
}

func (w *Wrapper) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", w.Kind, w.Name)
	if w.Analyzer != "" {
		fmt.Fprintf(&b, " analyzer=%s", w.Analyzer)
	}
	if w.Sample != "" {
		fmt.Fprintf(&b, " sample=%s", w.Sample)
	}
	if w.Histo != nil {
		fmt.Fprintf(&b, " integral=%g", w.Histo.Integral())
	}
	if len(w.Renderers) > 0 {
		fmt.Fprintf(&b, " renderers=%d", len(w.Renderers))
	}
	return b.String()
}
