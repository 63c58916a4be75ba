package tool

import (
	"fmt"

	"github.com/kingrea/histostack/internal/config"
	"github.com/kingrea/histostack/internal/logbook"
)

// PoolClearer empties the shared pool.
type PoolClearer struct {
	name string
}

// NewPoolClearer builds the tool from its declaration.
func NewPoolClearer(decl config.ToolDecl) (Tool, error) {
	return &PoolClearer{name: decl.Name}, nil
}

func (p *PoolClearer) Info() Info {
	return Info{
		Kind:        config.KindPoolClearer,
		Name:        p.name,
		Description: "Removes every entry from the shared pool",
	}
}

func (p *PoolClearer) Run(ctx *Context) (Result, error) {
	if ctx.Pool == nil {
		return Result{Status: StatusSkipped, Message: "no pool"}, nil
	}
	keys := ctx.Pool.Keys()
	n := ctx.Pool.Clear()
	ctx.log().Debug("pool cleared", "entries", n, "keys", keys)
	return Result{Status: StatusCompleted, Message: fmt.Sprintf("cleared %d entries", n)}, nil
}

// UnfinishedSampleRemover drops samples whose processing job did not finish
// successfully, or stops the chain when configured to.
type UnfinishedSampleRemover struct {
	name string
	stop bool
}

// NewUnfinishedSampleRemover builds the tool. stop mirrors the
// stop_on_unfinished setting.
func NewUnfinishedSampleRemover(name string, stop bool) *UnfinishedSampleRemover {
	return &UnfinishedSampleRemover{name: name, stop: stop}
}

func (u *UnfinishedSampleRemover) Info() Info {
	return Info{
		Kind:        config.KindUnfinishedSampleRemove,
		Name:        u.name,
		Description: "Removes samples whose processing did not finish",
	}
}

func (u *UnfinishedSampleRemover) Run(ctx *Context) (Result, error) {
	if ctx.Samples == nil {
		return Result{}, fmt.Errorf("sample registry is required")
	}
	removed, reason := ctx.Samples.RemoveUnfinished(u.stop)
	if reason.Stop() {
		ctx.Message(logbook.LevelError, fmt.Sprintf("Process '%s' unfinished. Stopping.", reason.Sample))
		return Result{Status: StatusStopped, Message: reason.String()}, nil
	}
	for _, name := range removed {
		ctx.Message(logbook.LevelWarning, fmt.Sprintf("Process '%s' unfinished. Removing sample from list.", name))
	}
	return Result{Status: StatusCompleted, Message: fmt.Sprintf("removed %d samples", len(removed))}, nil
}
