package tool

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kingrea/histostack/internal/artifact"
	"github.com/kingrea/histostack/internal/logbook"
	"github.com/kingrea/histostack/internal/samples"
)

// EventKind tags runner events.
type EventKind string

const (
	EventStarted  EventKind = "started"
	EventMessage  EventKind = "message"
	EventFinished EventKind = "finished"
)

// Event reports progress of a chain run.
type Event struct {
	Kind    EventKind
	Tool    string
	Index   int
	Total   int
	Status  Status
	Message string
	Err     error
}

// Observer receives runner events. It is called synchronously.
type Observer func(Event)

// Runner executes tools in order.
type Runner struct {
	ctx      *Context
	reuse    bool
	observer Observer
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithReuse skips reusable tools whose output directory holds a completion
// marker.
func WithReuse(reuse bool) RunnerOption {
	return func(r *Runner) {
		r.reuse = reuse
	}
}

// WithObserver forwards events to o.
func WithObserver(o Observer) RunnerOption {
	return func(r *Runner) {
		r.observer = o
	}
}

// NewRunner builds a runner around a shared context.
func NewRunner(ctx *Context, opts ...RunnerOption) *Runner {
	r := &Runner{ctx: ctx}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes tools in order and returns one result per tool that ran. A
// stopped tool aborts the chain with samples.ErrUnfinishedSample; a failing
// tool aborts it with its error.
func (r *Runner) Run(tools []Tool) ([]Result, error) {
	results := make([]Result, 0, len(tools))
	for i, t := range tools {
		if err := r.ctx.Context().Err(); err != nil {
			return results, err
		}
		info := t.Info()
		if err := info.Validate(); err != nil {
			return results, err
		}
		r.emit(Event{Kind: EventStarted, Tool: info.Name, Index: i, Total: len(tools)})
		res, err := r.runOne(t, info)
		results = append(results, res)
		r.emit(Event{Kind: EventFinished, Tool: info.Name, Index: i, Total: len(tools), Status: res.Status, Message: res.Message, Err: err})
		if err != nil {
			return results, err
		}
		if res.Status == StatusStopped {
			return results, fmt.Errorf("%w: %s", samples.ErrUnfinishedSample, res.Message)
		}
	}
	return results, nil
}

func (r *Runner) runOne(t Tool, info Info) (Result, error) {
	dir := ""
	if info.HasOutputDir {
		if r.ctx.Config == nil {
			return Result{Status: StatusFailed}, fmt.Errorf("tool: %s needs a config for its output dir", info.Name)
		}
		dir = r.ctx.Config.ToolOutputDir(info.Name)
	}
	tc := r.ctx.WithTool(info.Name, dir).WithObserver(r.observer)

	if r.reuse && info.CanReuse && dir != "" {
		done, err := artifact.HasMarker(dir)
		if err != nil {
			return Result{Status: StatusFailed}, fmt.Errorf("tool: %s: %w", info.Name, err)
		}
		if done {
			tc.Logger.Info("reusing previous output", "dir", dir)
			return Result{Status: StatusSkipped, Message: "reused " + filepath.Base(dir)}, nil
		}
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Result{Status: StatusFailed}, fmt.Errorf("tool: %s: ensure output dir: %w", info.Name, err)
		}
		if err := artifact.RemoveMarker(dir); err != nil {
			return Result{Status: StatusFailed}, fmt.Errorf("tool: %s: %w", info.Name, err)
		}
	}

	tc.Logger.Info("tool started", "kind", info.Kind)
	res, err := t.Run(tc)
	if err != nil {
		tc.Logger.Error("tool failed", "err", err)
		tc.Message(logbook.LevelError, fmt.Sprintf("%s failed: %v", info.Name, err))
		return Result{Status: StatusFailed, Message: err.Error()}, fmt.Errorf("tool: %s: %w", info.Name, err)
	}
	if res.Status == "" {
		res.Status = StatusCompleted
	}
	if res.Status == StatusCompleted && dir != "" {
		if err := artifact.WriteMarker(dir); err != nil {
			return Result{Status: StatusFailed}, fmt.Errorf("tool: %s: %w", info.Name, err)
		}
	}
	tc.Logger.Info("tool finished", "status", res.Status)
	return res, nil
}

func (r *Runner) emit(e Event) {
	if r.observer != nil {
		r.observer(e)
	}
}

// IsStop reports whether err is the abort caused by an unfinished sample.
func IsStop(err error) bool {
	return errors.Is(err, samples.ErrUnfinishedSample)
}
