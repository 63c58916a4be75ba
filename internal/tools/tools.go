// Package tools wires the built-in tool kinds and the shared run state a
// campaign needs: sample registry, pool, logbook and diagnostic log.
package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kingrea/histostack/internal/config"
	"github.com/kingrea/histostack/internal/logbook"
	"github.com/kingrea/histostack/internal/logging"
	"github.com/kingrea/histostack/internal/plotter"
	"github.com/kingrea/histostack/internal/pool"
	"github.com/kingrea/histostack/internal/samples"
	"github.com/kingrea/histostack/internal/tool"
	"github.com/kingrea/histostack/internal/web"
)

// RegisterBuiltins installs every built-in tool factory into reg. The
// unfinished-sample remover reads stop_on_unfinished from cfg.
func RegisterBuiltins(reg *tool.Registry, cfg *config.Config) {
	if reg == nil {
		return
	}
	reg.MustRegister(config.KindStackPlotter, plotter.NewFromDecl)
	reg.MustRegister(config.KindWebCreator, web.NewFromDecl)
	reg.MustRegister(config.KindPoolClearer, tool.NewPoolClearer)
	reg.MustRegister(config.KindUnfinishedSampleRemove, func(decl config.ToolDecl) (tool.Tool, error) {
		stop := cfg != nil && cfg.Project.StopOnUnfinished
		return tool.NewUnfinishedSampleRemover(decl.Name, stop), nil
	})
}

// Session is the run state shared by every tool of one invocation.
type Session struct {
	Config  *config.Config
	Samples *samples.Registry
	Pool    *pool.Pool
	Logbook *logbook.Logbook
	Context *tool.Context

	logger *logging.Logger
}

// Open loads the sample registry and opens the logbook and diagnostic log
// for cfg.
func Open(ctx context.Context, cfg *config.Config, level slog.Level) (*Session, error) {
	reg, err := samples.Load(cfg.Project.SamplesFile)
	if err != nil {
		return nil, fmt.Errorf("load samples: %w", err)
	}
	policy, err := pool.ParsePolicy(cfg.Project.PoolPolicy)
	if err != nil {
		return nil, err
	}
	book, err := logbook.New(cfg.LogbookPath())
	if err != nil {
		return nil, fmt.Errorf("open logbook: %w", err)
	}
	logger, err := logging.New(cfg.LogsDir(), level)
	if err != nil {
		return nil, err
	}
	pl := pool.New(pool.WithPolicy(policy))
	logger.Info("session opened", "project", cfg.ProjectDir, "samples", len(reg.Names()), "policy", policy)
	return &Session{
		Config:  cfg,
		Samples: reg,
		Pool:    pl,
		Logbook: book,
		Context: tool.NewContext(ctx, cfg, reg, pl, book, logger.Logger),
		logger:  logger,
	}, nil
}

// Tools builds the configured tool chain.
func (s *Session) Tools() ([]tool.Tool, error) {
	reg := tool.NewRegistry()
	RegisterBuiltins(reg, s.Config)
	return reg.Build(s.Config.Project.Tools)
}

// Run executes tools with the project's reuse setting. Extra options are
// applied after it.
func (s *Session) Run(tools []tool.Tool, opts ...tool.RunnerOption) ([]tool.Result, error) {
	opts = append([]tool.RunnerOption{tool.WithReuse(s.Config.Project.Reuse)}, opts...)
	results, err := tool.NewRunner(s.Context, opts...).Run(tools)
	if tool.IsStop(err) {
		s.Logbook.Warn("chain stopped after %d of %d tools", len(results), len(tools))
	}
	return results, err
}

// Logger returns the diagnostic logger.
func (s *Session) Logger() *slog.Logger {
	return s.logger.Logger
}

// Close releases the diagnostic log file.
func (s *Session) Close() error {
	return s.logger.Close()
}
