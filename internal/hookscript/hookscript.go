// Package hookscript turns small Go files into pipeline hooks. Scripts are
// interpreted with yaegi, so a campaign can adjust selection, naming and
// titles without rebuilding histostack.
//
// A wrapper script (post-load) may define any of
//
//	func Keep(analyzer, name, sample string) bool
//	func Rename(analyzer, name string) string
//	func Legend(sample, legend string) string
//
// and a builder script (pre-build or post-build) any of
//
//	func KeepCanvas(name string) bool
//	func Title(name string) string
package hookscript

import (
	"fmt"
	"os"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/kingrea/histostack/internal/render"
	"github.com/kingrea/histostack/internal/stream"
	"github.com/kingrea/histostack/internal/wrp"
)

// WrapperScript is a loaded post-load script.
type WrapperScript struct {
	Path   string
	keep   func(string, string, string) bool
	rename func(string, string) string
	legend func(string, string) string
}

// BuilderScript is a loaded builder script.
type BuilderScript struct {
	Path  string
	keep  func(string) bool
	title func(string) string
}

// LoadWrapperScript interprets path and collects the wrapper functions.
func LoadWrapperScript(path string) (*WrapperScript, error) {
	i, err := interpret(path)
	if err != nil {
		return nil, err
	}
	s := &WrapperScript{Path: path}
	if s.keep, err = lookup[func(string, string, string) bool](i, path, "Keep"); err != nil {
		return nil, err
	}
	if s.rename, err = lookup[func(string, string) string](i, path, "Rename"); err != nil {
		return nil, err
	}
	if s.legend, err = lookup[func(string, string) string](i, path, "Legend"); err != nil {
		return nil, err
	}
	if s.keep == nil && s.rename == nil && s.legend == nil {
		return nil, fmt.Errorf("hookscript: %s defines none of Keep, Rename, Legend", path)
	}
	return s, nil
}

// Hook returns the stream transformation of the script.
func (s *WrapperScript) Hook(seq stream.Seq[*wrp.Wrapper]) stream.Seq[*wrp.Wrapper] {
	if s.keep != nil {
		seq = stream.Filter(seq, func(w *wrp.Wrapper) bool {
			return s.keep(w.Analyzer, w.Name, w.Sample)
		})
	}
	if s.rename == nil && s.legend == nil {
		return seq
	}
	return stream.Tap(seq, func(w *wrp.Wrapper) error {
		if s.rename != nil {
			if name := s.rename(w.Analyzer, w.Name); name != "" && name != w.Name {
				w.AddHistory("renamed %s to %s by %s", w.Name, name, s.Path)
				w.Name = name
			}
		}
		if s.legend != nil {
			w.Legend = s.legend(w.Sample, w.Legend)
		}
		return nil
	})
}

// LoadBuilderScript interprets path and collects the builder functions.
func LoadBuilderScript(path string) (*BuilderScript, error) {
	i, err := interpret(path)
	if err != nil {
		return nil, err
	}
	s := &BuilderScript{Path: path}
	if s.keep, err = lookup[func(string) bool](i, path, "KeepCanvas"); err != nil {
		return nil, err
	}
	if s.title, err = lookup[func(string) string](i, path, "Title"); err != nil {
		return nil, err
	}
	if s.keep == nil && s.title == nil {
		return nil, fmt.Errorf("hookscript: %s defines none of KeepCanvas, Title", path)
	}
	return s, nil
}

// Hook returns the stream transformation of the script.
func (s *BuilderScript) Hook(seq stream.Seq[*render.Builder]) stream.Seq[*render.Builder] {
	if s.keep != nil {
		seq = stream.Filter(seq, func(b *render.Builder) bool {
			return s.keep(b.Name())
		})
	}
	if s.title == nil {
		return seq
	}
	return stream.Tap(seq, func(b *render.Builder) error {
		if title := s.title(b.Name()); title != "" {
			b.SetTitle(title)
		}
		return nil
	})
}

func interpret(path string) (*interp.Interpreter, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("hookscript: read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(code))) == 0 {
		return nil, fmt.Errorf("hookscript: %s is empty", path)
	}
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("hookscript: load stdlib symbols: %w", err)
	}
	if _, err := i.EvalPath(path); err != nil {
		return nil, fmt.Errorf("hookscript: interpret %s: %w", path, err)
	}
	return i, nil
}

// lookup returns the named function, or nil when the script does not
// define it.
func lookup[F any](i *interp.Interpreter, path, name string) (F, error) {
	var zero F
	v, err := i.Eval(name)
	if err != nil || !v.IsValid() {
		return zero, nil
	}
	fn, ok := v.Interface().(F)
	if !ok {
		return zero, fmt.Errorf("hookscript: %s: %s has signature %s, want %T", path, name, v.Type(), zero)
	}
	return fn, nil
}

// LoadWrapperHook loads a post-load script and returns its hook function.
func LoadWrapperHook(path string) (func(stream.Seq[*wrp.Wrapper]) stream.Seq[*wrp.Wrapper], error) {
	s, err := LoadWrapperScript(path)
	if err != nil {
		return nil, err
	}
	return s.Hook, nil
}

// LoadBuilderHook loads a builder script and returns its hook function.
func LoadBuilderHook(path string) (func(stream.Seq[*render.Builder]) stream.Seq[*render.Builder], error) {
	s, err := LoadBuilderScript(path)
	if err != nil {
		return nil, err
	}
	return s.Hook, nil
}
