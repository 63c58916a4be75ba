package plotter

import (
	"github.com/kingrea/histostack/internal/render"
	"github.com/kingrea/histostack/internal/stream"
	"github.com/kingrea/histostack/internal/wrp"
)

// Hook transforms a stream without changing its element type. A hook may
// filter, reorder or annotate elements.
type Hook[T any] func(stream.Seq[T]) stream.Seq[T]

// Apply runs h over seq. A nil hook is the identity.
func Apply[T any](h Hook[T], seq stream.Seq[T]) stream.Seq[T] {
	if h == nil {
		return seq
	}
	return h(seq)
}

// Chain composes hooks left to right. Nil entries are skipped.
func Chain[T any](hooks ...Hook[T]) Hook[T] {
	return func(seq stream.Seq[T]) stream.Seq[T] {
		for _, h := range hooks {
			seq = Apply(h, seq)
		}
		return seq
	}
}

// Hooks are the three extension points of the stack plotter.
type Hooks struct {
	// PostLoad sees loaded histograms before grouping.
	PostLoad Hook[*wrp.Wrapper]
	// PreBuild sees decorated builders before their build procedure runs.
	PreBuild Hook[*render.Builder]
	// PostBuild sees built builders before they become canvases.
	PostBuild Hook[*render.Builder]
}
