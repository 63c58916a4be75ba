// Package plotter builds stacked histogram plots. The stages in this file
// each turn one lazy stream into another; the StackPlotter in driver.go
// chains them in a fixed order and forces the result once.
package plotter

import (
	"fmt"
	"maps"
	"slices"

	"github.com/kingrea/histostack/internal/artifact"
	"github.com/kingrea/histostack/internal/histo"
	"github.com/kingrea/histostack/internal/pool"
	"github.com/kingrea/histostack/internal/render"
	"github.com/kingrea/histostack/internal/stream"
	"github.com/kingrea/histostack/internal/wrp"
)

// Source lists stored histograms and loads them on demand.
// histostore.Store is the file backed implementation.
type Source interface {
	Scan() ([]*wrp.Wrapper, error)
	Load(*wrp.Wrapper) (*wrp.Wrapper, error)
}

// Naming derives the output path, without extension, of a canvas.
type Naming func(*wrp.Wrapper) string

// LogSuffix is appended to the base name of the log-scale variant.
const LogSuffix = "_log"

// FilterSortLoad scans src, keeps the stubs spec selects, sorts them and
// loads each one when it is pulled. Nothing is scanned before the first pull.
func FilterSortLoad(src Source, spec *FilterSpec) stream.Seq[*wrp.Wrapper] {
	if spec == nil {
		return stream.Fail[*wrp.Wrapper](ErrMissingFilterSpec)
	}
	return stream.FromFunc(func() ([]*wrp.Wrapper, error) {
		if err := spec.Validate(); err != nil {
			return nil, err
		}
		stubs, err := src.Scan()
		if err != nil {
			return nil, err
		}
		kept := slices.DeleteFunc(stubs, func(w *wrp.Wrapper) bool { return !spec.Match(w) })
		slices.SortStableFunc(kept, spec.Compare)
		return kept, nil
	}, src.Load)
}

// Group partitions the stream by analyzer and name. Groups come out in the
// order their first member was seen; members keep input order. The first
// pull drains the input.
func Group(seq stream.Seq[*wrp.Wrapper]) stream.Seq[*wrp.Wrapper] {
	return func(yield func(*wrp.Wrapper, error) bool) {
		var order []string
		groups := map[string]*wrp.Wrapper{}
		for w, err := range seq {
			if err != nil {
				yield(nil, err)
				return
			}
			key := w.Key()
			g, ok := groups[key]
			if !ok {
				g = &wrp.Wrapper{Kind: wrp.KindGroup, Name: w.Name, Analyzer: w.Analyzer}
				groups[key] = g
				order = append(order, key)
			}
			g.Renderers = append(g.Renderers, w)
		}
		for _, key := range order {
			g := groups[key]
			g.AddHistory("grouped %d histograms as %s", len(g.Renderers), key)
			if !yield(g, nil) {
				return
			}
		}
	}
}

// StackAndOverlay combines each group into a Monte-Carlo stack and, when
// overlay is set and data members exist, one summed data overlay. The emitted
// group has renderers [stack, data] with either one possibly absent. Without
// overlay, data members are dropped.
func StackAndOverlay(seq stream.Seq[*wrp.Wrapper], overlay bool) stream.Seq[*wrp.Wrapper] {
	return stream.Map(seq, func(g *wrp.Wrapper) (*wrp.Wrapper, error) {
		var mc, data []*wrp.Wrapper
		for _, r := range g.Renderers {
			if r.IsData {
				data = append(data, r)
			} else {
				mc = append(mc, r)
			}
		}
		out := &wrp.Wrapper{
			Kind:     wrp.KindGroup,
			Name:     g.Name,
			Analyzer: g.Analyzer,
			History:  slices.Clone(g.History),
			Info:     maps.Clone(g.Info),
		}
		if len(mc) > 0 {
			stack, err := stackLayers(g, mc)
			if err != nil {
				return nil, err
			}
			out.Renderers = append(out.Renderers, stack)
		}
		if overlay && len(data) > 0 {
			d, err := merge(g, data, "data")
			if err != nil {
				return nil, err
			}
			out.Renderers = append(out.Renderers, d)
			out.AddHistory("overlaid %d data histograms", len(data))
		}
		if len(out.Renderers) == 0 {
			return nil, fmt.Errorf("plotter: %s: %w", g.Key(), render.ErrNoRenderers)
		}
		return out, nil
	})
}

// stackLayers merges Monte-Carlo members sharing a legend and stacks the
// merged layers. The stack's histogram is the bin-wise total.
func stackLayers(g *wrp.Wrapper, mc []*wrp.Wrapper) (*wrp.Wrapper, error) {
	var legends []string
	byLegend := map[string][]*wrp.Wrapper{}
	for _, w := range mc {
		if _, ok := byLegend[w.Legend]; !ok {
			legends = append(legends, w.Legend)
		}
		byLegend[w.Legend] = append(byLegend[w.Legend], w)
	}
	layers := make([]*wrp.Wrapper, 0, len(legends))
	hs := make([]*histo.Histogram, 0, len(legends))
	for _, legend := range legends {
		layer, err := merge(g, byLegend[legend], legend)
		if err != nil {
			return nil, err
		}
		layers = append(layers, layer)
		hs = append(hs, layer.Histo)
	}
	total, err := histo.Sum(hs...)
	if err != nil {
		return nil, fmt.Errorf("plotter: stack %s: %w", g.Key(), err)
	}
	stack := &wrp.Wrapper{
		Kind:      wrp.KindStack,
		Name:      g.Name,
		Analyzer:  g.Analyzer,
		Legend:    "stack",
		Histo:     total,
		Renderers: layers,
	}
	stack.AddHistory("stacked %d layers from %d histograms", len(layers), len(mc))
	return stack, nil
}

// merge sums members into one wrapper. A single member is returned as is.
func merge(g *wrp.Wrapper, members []*wrp.Wrapper, label string) (*wrp.Wrapper, error) {
	hs := make([]*histo.Histogram, 0, len(members))
	for _, m := range members {
		if !m.Loaded() {
			return nil, fmt.Errorf("plotter: %s: %s of %s is not loaded", g.Key(), m.Name, m.Sample)
		}
		hs = append(hs, m.Histo)
	}
	if len(members) == 1 {
		return members[0], nil
	}
	sum, err := histo.Sum(hs...)
	if err != nil {
		return nil, fmt.Errorf("plotter: merge %s %s: %w", g.Key(), label, err)
	}
	first := members[0]
	merged := &wrp.Wrapper{
		Kind:      wrp.KindHisto,
		Name:      g.Name,
		Analyzer:  g.Analyzer,
		Sample:    first.Sample,
		IsData:    first.IsData,
		Legend:    first.Legend,
		Color:     first.Color,
		Histo:     sum,
		Renderers: members,
	}
	merged.AddHistory("summed %d histograms as %s", len(members), label)
	return merged, nil
}

// PoolStore stores each wrapper under pool.Key(namespace, w) and re-emits
// it. A collision rejected by the pool ends the stream.
func PoolStore(seq stream.Seq[*wrp.Wrapper], pl *pool.Pool, namespace string) stream.Seq[*wrp.Wrapper] {
	return stream.Tap(seq, func(w *wrp.Wrapper) error {
		return pl.Store(pool.Key(namespace, w), w)
	})
}

// BuildCanvas wraps each stacked group into a canvas builder.
func BuildCanvas(seq stream.Seq[*wrp.Wrapper], style render.CanvasStyle) stream.Seq[*render.Builder] {
	return stream.Map(seq, func(w *wrp.Wrapper) (*render.Builder, error) {
		return render.NewBuilder(w, style)
	})
}

// PrefixAnalyzer renames each builder to "<analyzer>_<name>", the analyzer
// being that of the first renderer.
func PrefixAnalyzer(seq stream.Seq[*render.Builder]) stream.Seq[*render.Builder] {
	return stream.Tap(seq, func(b *render.Builder) error {
		if a := b.Analyzer(); a != "" {
			b.SetName(a + "_" + b.Name())
		}
		return nil
	})
}

// Decorate applies decorators in order. The build procedure does not run.
func Decorate(seq stream.Seq[*render.Builder], decorators []render.Decorator) stream.Seq[*render.Builder] {
	return stream.Tap(seq, func(b *render.Builder) error {
		for _, d := range decorators {
			if err := d.Decorate(b); err != nil {
				return fmt.Errorf("plotter: decorate %s with %s: %w", b.Name(), d.Name(), err)
			}
		}
		return nil
	})
}

// RunBuildProcedure runs every builder's procedure once.
func RunBuildProcedure(seq stream.Seq[*render.Builder]) stream.Seq[*render.Builder] {
	return stream.Tap(seq, func(b *render.Builder) error {
		return b.RunProcedure()
	})
}

// Finalize turns built builders into canvas wrappers.
func Finalize(seq stream.Seq[*render.Builder]) stream.Seq[*wrp.Wrapper] {
	return stream.Map(seq, func(b *render.Builder) (*wrp.Wrapper, error) {
		return b.Canvas()
	})
}

// SwitchLogScale re-renders each canvas with a logarithmic y axis.
func SwitchLogScale(seq stream.Seq[*wrp.Wrapper]) stream.Seq[*wrp.Wrapper] {
	return stream.Map(seq, render.SwitchLogScale)
}

// Persist writes each canvas to naming(canvas) and re-emits it.
func Persist(seq stream.Seq[*wrp.Wrapper], w *artifact.Writer, naming Naming) stream.Seq[*wrp.Wrapper] {
	return stream.Tap(seq, func(canvas *wrp.Wrapper) error {
		_, err := w.Write(canvas, naming(canvas))
		return err
	})
}

// PersistLinLog writes each canvas twice, linear under its base name and
// logarithmic under base name plus LogSuffix. The linear canvas is re-emitted,
// so each canvas counts once.
func PersistLinLog(seq stream.Seq[*wrp.Wrapper], w *artifact.Writer, naming Naming) stream.Seq[*wrp.Wrapper] {
	return stream.Tap(seq, func(canvas *wrp.Wrapper) error {
		base := naming(canvas)
		if _, err := w.Write(canvas, base); err != nil {
			return err
		}
		logCanvas, err := render.SwitchLogScale(canvas)
		if err != nil {
			return err
		}
		_, err = w.Write(logCanvas, base+LogSuffix)
		return err
	})
}
