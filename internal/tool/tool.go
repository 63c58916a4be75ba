// Package tool defines the lifecycle every post-processing step of a
// campaign follows: identity, optional output directory, reuse of earlier
// results, and the messages a tool reports while it runs.
package tool

import "fmt"

// Info describes a tool's identity and intent.
type Info struct {
	// Kind is the registry key the tool was built from.
	Kind        string
	Name        string
	Description string
	// CanReuse allows the runner to skip the tool when its output directory
	// holds a completion marker and reuse is enabled.
	CanReuse bool
	// HasOutputDir makes the runner create <plots_dir>/<name>/ before Run.
	HasOutputDir bool
}

// Validate ensures the info block is well-formed.
func (i Info) Validate() error {
	if i.Kind == "" {
		return fmt.Errorf("tool: kind is required")
	}
	if i.Name == "" {
		return fmt.Errorf("tool: name is required for %s", i.Kind)
	}
	return nil
}

// Result captures the outcome of a tool execution.
type Result struct {
	Status  Status
	Message string
}

// Status enumerates tool run outcomes.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusSkipped   Status = "skipped"
	// StatusStopped asks the runner to abort the remaining chain.
	StatusStopped Status = "stopped"
	StatusFailed  Status = "failed"
)

// Tool is implemented by every step of the chain.
type Tool interface {
	Info() Info
	Run(ctx *Context) (Result, error)
}
