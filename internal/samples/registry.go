// Package samples keeps the campaign bookkeeping: which samples take part in
// a run, how they are labelled on plots, and whether the processing job that
// produced each of them finished successfully.
package samples

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/tidwall/jsonc"
)

// ErrUnfinishedSample signals that a run was stopped because at least one
// sample did not finish processing.
var ErrUnfinishedSample = errors.New("samples: unfinished sample")

// Sample describes one input sample.
type Sample struct {
	Name   string `json:"name"`
	Legend string `json:"legend,omitempty"`
	IsData bool   `json:"is_data,omitempty"`
	Color  string `json:"color,omitempty"`
}

// Process is the record of the job that produced a sample.
type Process struct {
	Name     string `json:"name"`
	Finished bool   `json:"finished"`
	ExitCode int    `json:"exit_code"`
}

// Successful reports whether the job finished with exit code zero.
func (p Process) Successful() bool {
	return p.Finished && p.ExitCode == 0
}

// File models the JSONC registry file.
type File struct {
	Samples   []Sample  `json:"samples"`
	Processes []Process `json:"processes,omitempty"`
}

// Registry is the process-wide set of active samples. Deleting a sample
// removes it from every later pipeline run that shares the registry.
type Registry struct {
	mu        sync.RWMutex
	order     []string
	samples   map[string]Sample
	processes []Process
}

// NewRegistry builds a registry from samples and process records.
func NewRegistry(list []Sample, procs []Process) (*Registry, error) {
	r := &Registry{samples: map[string]Sample{}}
	for _, s := range list {
		s.Name = strings.TrimSpace(s.Name)
		if s.Name == "" {
			return nil, fmt.Errorf("samples: sample name is required")
		}
		if _, dup := r.samples[s.Name]; dup {
			return nil, fmt.Errorf("samples: duplicate sample %s", s.Name)
		}
		if s.Legend == "" {
			s.Legend = s.Name
		}
		r.samples[s.Name] = s
		r.order = append(r.order, s.Name)
	}
	r.processes = slices.Clone(procs)
	return r, nil
}

// Load reads a JSONC registry file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("samples: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes JSONC registry content.
func Parse(data []byte) (*Registry, error) {
	var file File
	if err := json.Unmarshal(jsonc.ToJSON(data), &file); err != nil {
		return nil, fmt.Errorf("samples: parse registry: %w", err)
	}
	return NewRegistry(file.Samples, file.Processes)
}

// Get returns a sample by name.
func (r *Registry) Get(name string) (Sample, bool) {
	if r == nil {
		return Sample{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.samples[name]
	return s, ok
}

// Active reports whether name is still part of the run.
func (r *Registry) Active(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Names returns the active sample names in declaration order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Index returns the declaration position of a sample, or -1.
func (r *Registry) Index(name string) int {
	if r == nil {
		return -1
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Index(r.order, name)
}

// Remove deletes a sample from the registry.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.samples[name]; !ok {
		return
	}
	delete(r.samples, name)
	r.order = slices.DeleteFunc(r.order, func(n string) bool { return n == name })
}

// Processes returns the process records.
func (r *Registry) Processes() []Process {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.processes)
}
