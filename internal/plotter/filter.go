package plotter

import (
	"cmp"
	"errors"
	"fmt"
	"path"

	"github.com/kingrea/histostack/internal/config"
	"github.com/kingrea/histostack/internal/wrp"
)

// ErrMissingFilterSpec is returned when a stack plotter runs without a
// filter spec.
var ErrMissingFilterSpec = errors.New("plotter: filter spec is not set")

// Sort keys understood by FilterSpec.
const (
	SortAnalyzer = "analyzer"
	SortName     = "name"
	SortIsData   = "is_data"
	SortSample   = "sample"
)

// DefaultSortKeys orders histograms so that members of one group are
// adjacent, Monte-Carlo before data.
var DefaultSortKeys = []string{SortAnalyzer, SortName, SortIsData, SortSample}

// FilterSpec selects stored histograms and orders them. Glob lists use
// path.Match syntax; an empty list matches everything.
type FilterSpec struct {
	Analyzers    []string
	Names        []string
	Samples      []string
	ExcludeNames []string

	// Keep is an extra predicate applied after the globs.
	Keep func(*wrp.Wrapper) bool

	SortKeys []string
	// SampleOrder ranks samples for the sample sort key. Unset, samples sort
	// by name.
	SampleOrder func(string) int
}

// FilterSpecFromDecl converts a tool declaration. A nil filter yields a nil
// spec.
func FilterSpecFromDecl(decl *config.FilterDecl, sortKeys []string) *FilterSpec {
	if decl == nil {
		return nil
	}
	return &FilterSpec{
		Analyzers:    decl.Analyzers,
		Names:        decl.Names,
		Samples:      decl.Samples,
		ExcludeNames: decl.ExcludeNames,
		SortKeys:     sortKeys,
	}
}

// Validate checks glob syntax and sort keys.
func (f *FilterSpec) Validate() error {
	if f == nil {
		return ErrMissingFilterSpec
	}
	for _, list := range [][]string{f.Analyzers, f.Names, f.Samples, f.ExcludeNames} {
		for _, pattern := range list {
			if _, err := path.Match(pattern, ""); err != nil {
				return fmt.Errorf("plotter: filter pattern %q: %w", pattern, err)
			}
		}
	}
	for _, key := range f.SortKeys {
		switch key {
		case SortAnalyzer, SortName, SortIsData, SortSample:
		default:
			return fmt.Errorf("plotter: unknown sort key %q", key)
		}
	}
	return nil
}

// Match reports whether w is selected.
func (f *FilterSpec) Match(w *wrp.Wrapper) bool {
	if !matchAny(f.Analyzers, w.Analyzer, true) ||
		!matchAny(f.Names, w.Name, true) ||
		!matchAny(f.Samples, w.Sample, true) ||
		matchAny(f.ExcludeNames, w.Name, false) {
		return false
	}
	return f.Keep == nil || f.Keep(w)
}

// Compare orders two wrappers by the sort keys.
func (f *FilterSpec) Compare(a, b *wrp.Wrapper) int {
	keys := f.SortKeys
	if len(keys) == 0 {
		keys = DefaultSortKeys
	}
	for _, key := range keys {
		var c int
		switch key {
		case SortAnalyzer:
			c = cmp.Compare(a.Analyzer, b.Analyzer)
		case SortName:
			c = cmp.Compare(a.Name, b.Name)
		case SortIsData:
			c = cmp.Compare(boolRank(a.IsData), boolRank(b.IsData))
		case SortSample:
			if f.SampleOrder != nil {
				c = cmp.Compare(f.SampleOrder(a.Sample), f.SampleOrder(b.Sample))
			}
			if c == 0 {
				c = cmp.Compare(a.Sample, b.Sample)
			}
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

func matchAny(patterns []string, value string, empty bool) bool {
	if len(patterns) == 0 {
		return empty
	}
	for _, p := range patterns {
		if ok, _ := path.Match(p, value); ok {
			return true
		}
	}
	return false
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}
