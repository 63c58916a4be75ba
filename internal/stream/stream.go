// Package stream is the lazy sequence abstraction the plotting pipeline is
// built from. A Seq produces nothing until it is ranged over; every helper in
// this package returns a new Seq without touching its input, so a chain of
// stages costs nothing until a terminal consumer such as Count pulls from it.
//
// Errors travel with the values: a stage that receives a non-nil error yields
// it downstream and stops. Consumers stop at the first error they see.
package stream

import (
	"context"
	"iter"
)

// Seq is a pull-based sequence of values that may terminate with an error.
type Seq[T any] = iter.Seq2[T, error]

// FromSlice exposes a slice as a sequence. The slice is read lazily.
func FromSlice[T any](items []T) Seq[T] {
	return func(yield func(T, error) bool) {
		for _, item := range items {
			if !yield(item, nil) {
				return
			}
		}
	}
}

// FromFunc builds a sequence whose elements are produced by calling load once
// per pull. The slice of keys is only consulted when iteration starts.
func FromFunc[K, T any](keys func() ([]K, error), load func(K) (T, error)) Seq[T] {
	return func(yield func(T, error) bool) {
		var zero T
		ks, err := keys()
		if err != nil {
			yield(zero, err)
			return
		}
		for _, k := range ks {
			v, err := load(k)
			if err != nil {
				yield(zero, err)
				return
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}

// Fail returns a sequence that yields err on the first pull.
func Fail[T any](err error) Seq[T] {
	return func(yield func(T, error) bool) {
		var zero T
		yield(zero, err)
	}
}

// Empty returns a sequence with no elements.
func Empty[T any]() Seq[T] {
	return func(func(T, error) bool) {}
}

// Map applies fn to each element. An error from fn ends the sequence.
func Map[T, U any](seq Seq[T], fn func(T) (U, error)) Seq[U] {
	return func(yield func(U, error) bool) {
		var zero U
		for v, err := range seq {
			if err != nil {
				yield(zero, err)
				return
			}
			out, err := fn(v)
			if err != nil {
				yield(zero, err)
				return
			}
			if !yield(out, nil) {
				return
			}
		}
	}
}

// Tap runs fn for its side effect on each element and re-emits the element.
func Tap[T any](seq Seq[T], fn func(T) error) Seq[T] {
	return Map(seq, func(v T) (T, error) {
		if err := fn(v); err != nil {
			var zero T
			return zero, err
		}
		return v, nil
	})
}

// Filter keeps the elements for which keep returns true.
func Filter[T any](seq Seq[T], keep func(T) bool) Seq[T] {
	return func(yield func(T, error) bool) {
		for v, err := range seq {
			if err != nil {
				yield(v, err)
				return
			}
			if !keep(v) {
				continue
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}

// FlatMap expands each element into zero or more elements.
func FlatMap[T, U any](seq Seq[T], fn func(T) ([]U, error)) Seq[U] {
	return func(yield func(U, error) bool) {
		var zero U
		for v, err := range seq {
			if err != nil {
				yield(zero, err)
				return
			}
			outs, err := fn(v)
			if err != nil {
				yield(zero, err)
				return
			}
			for _, out := range outs {
				if !yield(out, nil) {
					return
				}
			}
		}
	}
}

// Identity returns seq unchanged. It is the behavior of every unset hook.
func Identity[T any](seq Seq[T]) Seq[T] {
	return seq
}

// Count drains seq and reports how many elements passed through. It is the
// only helper that forces full evaluation. The first error ends the drain and
// is returned as is, together with the number of elements seen before it.
func Count[T any](ctx context.Context, seq Seq[T]) (int, error) {
	n := 0
	for _, err := range seq {
		if err != nil {
			return n, err
		}
		n++
		if ctx != nil {
			if err := ctx.Err(); err != nil {
				return n, err
			}
		}
	}
	return n, nil
}

// Collect drains seq into a slice.
func Collect[T any](seq Seq[T]) ([]T, error) {
	var out []T
	for v, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}
