package tool

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kingrea/histostack/internal/config"
)

// Factory constructs a tool from its declaration.
type Factory func(config.ToolDecl) (Tool, error)

// Registry maintains known tool factories by kind.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register installs a tool factory. Returns an error if the kind already exists.
func (r *Registry) Register(kind string, factory Factory) error {
	if kind == "" {
		return fmt.Errorf("tool: kind is required")
	}
	if factory == nil {
		return fmt.Errorf("tool: factory is required for %s", kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[kind]; exists {
		return fmt.Errorf("tool: %s already registered", kind)
	}
	r.factories[kind] = factory
	return nil
}

// MustRegister panics if registration fails.
func (r *Registry) MustRegister(kind string, factory Factory) {
	if err := r.Register(kind, factory); err != nil {
		panic(err)
	}
}

// Resolve constructs a tool from a declaration.
func (r *Registry) Resolve(decl config.ToolDecl) (Tool, error) {
	r.mu.RLock()
	factory, ok := r.factories[decl.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("tool: unknown kind %s", decl.Kind)
	}
	t, err := factory(decl)
	if err != nil {
		return nil, fmt.Errorf("tool: build %s: %w", decl.Name, err)
	}
	if err := t.Info().Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Build resolves every declaration in order.
func (r *Registry) Build(decls []config.ToolDecl) ([]Tool, error) {
	tools := make([]Tool, 0, len(decls))
	for _, decl := range decls {
		t, err := r.Resolve(decl)
		if err != nil {
			return nil, err
		}
		tools = append(tools, t)
	}
	return tools, nil
}

// Kinds returns a sorted list of registered tool kinds.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.factories))
	for kind := range r.factories {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}
