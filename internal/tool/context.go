package tool

import (
	"context"
	"log/slog"
	"sync"

	"github.com/kingrea/histostack/internal/config"
	"github.com/kingrea/histostack/internal/logbook"
	"github.com/kingrea/histostack/internal/logging"
	"github.com/kingrea/histostack/internal/pool"
	"github.com/kingrea/histostack/internal/samples"
)

// Context carries shared runtime dependencies into every tool.
type Context struct {
	Ctx     context.Context
	Config  *config.Config
	Samples *samples.Registry
	Pool    *pool.Pool
	Logbook *logbook.Logbook
	Logger  *slog.Logger

	// ToolName and OutputDir are set by the runner for the tool being run.
	ToolName  string
	OutputDir string

	observer Observer
	messages *messageLog
}

type messageLog struct {
	mu    sync.Mutex
	lines []string
}

// NewContext builds a Context with an empty message history. A nil pool is
// replaced by a fresh strict pool.
func NewContext(ctx context.Context, cfg *config.Config, reg *samples.Registry, pl *pool.Pool, lb *logbook.Logbook, logger *slog.Logger) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if pl == nil {
		pl = pool.New()
	}
	return &Context{
		Ctx:      ctx,
		Config:   cfg,
		Samples:  reg,
		Pool:     pl,
		Logbook:  lb,
		Logger:   logging.OrDiscard(logger),
		messages: &messageLog{},
	}
}

// WithTool returns a copy scoped to one tool run. Messages stay shared.
func (c *Context) WithTool(name, outputDir string) *Context {
	clone := *c
	clone.ToolName = name
	clone.OutputDir = outputDir
	clone.Logger = c.log().With("tool", name)
	return &clone
}

// WithObserver returns a copy that forwards messages to o.
func (c *Context) WithObserver(o Observer) *Context {
	clone := *c
	clone.observer = o
	return &clone
}

// Message reports a user-facing line such as "INFO stacks produced 3
// canvases.".
func (c *Context) Message(level logbook.Level, text string) {
	line := logbook.Message(level, text)
	if c.messages == nil {
		c.messages = &messageLog{}
	}
	c.messages.mu.Lock()
	c.messages.lines = append(c.messages.lines, line)
	c.messages.mu.Unlock()
	c.Logbook.Append(level, text)
	c.log().Debug("message", "line", line)
	if c.observer != nil {
		c.observer(Event{Kind: EventMessage, Tool: c.ToolName, Message: line})
	}
}

// Messages returns every reported line in order.
func (c *Context) Messages() []string {
	if c.messages == nil {
		return nil
	}
	c.messages.mu.Lock()
	defer c.messages.mu.Unlock()
	return append([]string{}, c.messages.lines...)
}

// PlotOutputDir is the output directory of the running tool.
func (c *Context) PlotOutputDir() string {
	return c.OutputDir
}

// Context returns the cancellation context, never nil.
func (c *Context) Context() context.Context {
	if c.Ctx == nil {
		return context.Background()
	}
	return c.Ctx
}

func (c *Context) log() *slog.Logger {
	return logging.OrDiscard(c.Logger)
}
