// Package pool is the process-scoped key/value store tools use to hand
// intermediate wrappers to each other within one run.
package pool

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/kingrea/histostack/internal/wrp"
)

// ErrDuplicateKey is returned by a strict pool when a different wrapper is
// stored under a key that is already taken.
var ErrDuplicateKey = errors.New("pool: duplicate key")

// Policy decides what happens on key collisions.
type Policy string

const (
	// PolicyStrict rejects a different wrapper under an existing key.
	PolicyStrict Policy = "strict"
	// PolicyOverwrite replaces the stored wrapper.
	PolicyOverwrite Policy = "overwrite"
)

// ParsePolicy parses the configuration spelling of a policy.
func ParsePolicy(name string) (Policy, error) {
	switch Policy(name) {
	case "", PolicyStrict:
		return PolicyStrict, nil
	case PolicyOverwrite:
		return PolicyOverwrite, nil
	default:
		return "", fmt.Errorf("pool: unknown policy %q", name)
	}
}

// Option configures a Pool.
type Option func(*Pool)

// WithPolicy sets the collision policy.
func WithPolicy(p Policy) Option {
	return func(pl *Pool) {
		pl.policy = p
	}
}

// Pool maps keys to wrappers.
type Pool struct {
	mu      sync.RWMutex
	policy  Policy
	entries map[string]*wrp.Wrapper
}

// New returns an empty pool. The default policy is strict.
func New(opts ...Option) *Pool {
	p := &Pool{policy: PolicyStrict, entries: map[string]*wrp.Wrapper{}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Key builds the storage key of w under a tool namespace.
func Key(namespace string, w *wrp.Wrapper) string {
	return namespace + "/" + w.Analyzer + "/" + w.Name
}

// Policy returns the collision policy.
func (p *Pool) Policy() Policy {
	return p.policy
}

// Store saves w under key. Storing the same wrapper again is a no-op.
func (p *Pool) Store(key string, w *wrp.Wrapper) error {
	if key == "" {
		return fmt.Errorf("pool: key is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.entries[key]; ok && p.policy == PolicyStrict {
		if existing.SameAs(w) {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrDuplicateKey, key)
	}
	p.entries[key] = w
	return nil
}

// Lookup returns the wrapper stored under key.
func (p *Pool) Lookup(key string) (*wrp.Wrapper, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	w, ok := p.entries[key]
	return w, ok
}

// Len returns the number of entries.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// Keys returns the stored keys in sorted order.
func (p *Pool) Keys() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	keys := make([]string, 0, len(p.entries))
	for k := range p.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clear removes every entry and reports how many were dropped.
func (p *Pool) Clear() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.entries)
	p.entries = map[string]*wrp.Wrapper{}
	return n
}
