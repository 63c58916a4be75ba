package plotter

import (
	"fmt"

	"github.com/kingrea/histostack/internal/config"
	"github.com/kingrea/histostack/internal/hookscript"
	"github.com/kingrea/histostack/internal/render"
	"github.com/kingrea/histostack/internal/tool"
)

// SettingsFromDecl translates a stack-plotter declaration. Hook scripts are
// interpreted here, so a broken script fails before any tool runs.
func SettingsFromDecl(decl config.ToolDecl) (Settings, error) {
	s := Settings{
		Filter:          FilterSpecFromDecl(decl.Filter, decl.Sort),
		SaveLogScale:    decl.SaveLogScale,
		SaveLinLogScale: decl.SaveLinLogScale,
		Canvas: render.CanvasStyle{
			Width:  decl.Canvas.Width,
			Height: decl.Canvas.Height,
			XLabel: decl.Canvas.XLabel,
			YLabel: decl.Canvas.YLabel,
			Text:   decl.Canvas.Text,
		},
	}
	if s.Filter != nil {
		if err := s.Filter.Validate(); err != nil {
			return s, err
		}
	}
	if decl.Decorators != nil {
		decorators, err := render.Lookup(decl.Decorators, s.Canvas)
		if err != nil {
			return s, err
		}
		s.Decorators = decorators
	}
	if path := decl.Hooks.PostLoad; path != "" {
		h, err := hookscript.LoadWrapperHook(path)
		if err != nil {
			return s, fmt.Errorf("plotter: post-load hook: %w", err)
		}
		s.Hooks.PostLoad = h
	}
	if path := decl.Hooks.PreBuild; path != "" {
		h, err := hookscript.LoadBuilderHook(path)
		if err != nil {
			return s, fmt.Errorf("plotter: pre-build hook: %w", err)
		}
		s.Hooks.PreBuild = h
	}
	if path := decl.Hooks.PostBuild; path != "" {
		h, err := hookscript.LoadBuilderHook(path)
		if err != nil {
			return s, fmt.Errorf("plotter: post-build hook: %w", err)
		}
		s.Hooks.PostBuild = h
	}
	return s, nil
}

// NewFromDecl is the tool factory for the stack-plotter kind.
func NewFromDecl(decl config.ToolDecl) (tool.Tool, error) {
	s, err := SettingsFromDecl(decl)
	if err != nil {
		return nil, err
	}
	return NewStackPlotter(decl.Name, s), nil
}
