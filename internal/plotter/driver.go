package plotter

import (
	"fmt"
	"path/filepath"

	"github.com/kingrea/histostack/internal/artifact"
	"github.com/kingrea/histostack/internal/config"
	"github.com/kingrea/histostack/internal/histostore"
	"github.com/kingrea/histostack/internal/logbook"
	"github.com/kingrea/histostack/internal/render"
	"github.com/kingrea/histostack/internal/stream"
	"github.com/kingrea/histostack/internal/tool"
	"github.com/kingrea/histostack/internal/wrp"
)

// Phase is the state of a StackPlotter run.
type Phase string

const (
	PhaseNew         Phase = "new"
	PhaseConfigure   Phase = "configure"
	PhaseStacking    Phase = "set-up-stacking"
	PhaseMakeCanvas  Phase = "set-up-make-canvas"
	PhaseSaveCanvas  Phase = "set-up-save-canvas"
	PhaseRunSequence Phase = "run-sequence"
	PhaseDone        Phase = "done"
	PhaseFailed      Phase = "failed"
)

// Settings configure one stack plotter.
type Settings struct {
	// Filter is required.
	Filter *FilterSpec
	// Decorators default to [ratio-split, legend] when nil. An empty,
	// non-nil slice applies none.
	Decorators []render.Decorator
	Hooks      Hooks

	// SaveLogScale persists the log-scale variant only.
	SaveLogScale bool
	// SaveLinLogScale persists both variants and wins over SaveLogScale.
	SaveLinLogScale bool

	Canvas render.CanvasStyle
	// Naming defaults to <plot output dir>/<canvas name>.
	Naming Naming
	// Formats default to the project formats.
	Formats []string
}

// Option customizes a StackPlotter.
type Option func(*StackPlotter)

// WithSource replaces the histogram store read from the project input dir.
func WithSource(src Source) Option {
	return func(p *StackPlotter) {
		p.source = src
	}
}

// WithConfigure installs a function that adjusts the settings at the start
// of every run.
func WithConfigure(fn func(*Settings) error) Option {
	return func(p *StackPlotter) {
		p.configure = fn
	}
}

// StackPlotter is the stacked-plot tool. Run assembles the stage chain and
// forces it once.
type StackPlotter struct {
	name      string
	settings  Settings
	source    Source
	configure func(*Settings) error

	phase Phase
	count int
}

// NewStackPlotter builds a stack plotter named name.
func NewStackPlotter(name string, settings Settings, opts ...Option) *StackPlotter {
	if name == "" {
		name = config.KindStackPlotter
	}
	p := &StackPlotter{name: name, settings: settings, phase: PhaseNew}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *StackPlotter) Info() tool.Info {
	return tool.Info{
		Kind:         config.KindStackPlotter,
		Name:         p.name,
		Description:  "Stacks Monte-Carlo histograms, overlays data and saves the canvases",
		CanReuse:     true,
		HasOutputDir: true,
	}
}

// Phase returns the phase the last run reached.
func (p *StackPlotter) Phase() Phase {
	return p.phase
}

// Count returns the number of canvases the last run produced.
func (p *StackPlotter) Count() int {
	return p.count
}

func (p *StackPlotter) Run(ctx *tool.Context) (tool.Result, error) {
	seq, err := p.Pipeline(ctx)
	if err != nil {
		return tool.Result{Status: tool.StatusFailed, Message: err.Error()}, err
	}
	return p.runSequence(ctx, seq)
}

// Pipeline runs the set-up phases and returns the assembled, unforced
// stream. Nothing is read, stored or written until the stream is pulled.
func (p *StackPlotter) Pipeline(ctx *tool.Context) (stream.Seq[*wrp.Wrapper], error) {
	p.count = 0
	p.phase = PhaseConfigure
	settings, err := p.configured(ctx)
	if err != nil {
		return nil, p.fail(err)
	}

	p.phase = PhaseStacking
	stacked, err := p.setUpStacking(ctx, settings)
	if err != nil {
		return nil, p.fail(err)
	}

	p.phase = PhaseMakeCanvas
	canvases := p.setUpMakeCanvas(stacked, settings)

	p.phase = PhaseSaveCanvas
	saved, err := p.setUpSaveCanvas(canvases, settings)
	if err != nil {
		return nil, p.fail(err)
	}
	return saved, nil
}

func (p *StackPlotter) configured(ctx *tool.Context) (Settings, error) {
	s := p.settings
	if p.configure != nil {
		if err := p.configure(&s); err != nil {
			return s, fmt.Errorf("plotter: configure %s: %w", p.name, err)
		}
	}
	if s.Decorators == nil {
		s.Decorators = render.DefaultDecorators()
	}
	if s.Filter != nil {
		f := *s.Filter
		if f.SampleOrder == nil && ctx.Samples != nil {
			f.SampleOrder = ctx.Samples.Index
		}
		s.Filter = &f
	}
	if s.Naming == nil {
		dir := p.outputDir(ctx)
		s.Naming = func(w *wrp.Wrapper) string {
			return filepath.Join(dir, w.Name)
		}
	}
	if len(s.Formats) == 0 && ctx.Config != nil {
		s.Formats = ctx.Config.Project.Formats
	}
	return s, nil
}

func (p *StackPlotter) setUpStacking(ctx *tool.Context, s Settings) (stream.Seq[*wrp.Wrapper], error) {
	if s.Filter == nil {
		return nil, ErrMissingFilterSpec
	}
	if ctx.Pool == nil {
		return nil, fmt.Errorf("plotter: %s needs a pool", p.name)
	}
	src := p.source
	if src == nil {
		if ctx.Config == nil || ctx.Samples == nil {
			return nil, fmt.Errorf("plotter: %s needs a config and a sample registry to read histograms", p.name)
		}
		src = histostore.New(ctx.Config.Project.InputDir, ctx.Samples)
	}
	seq := FilterSortLoad(src, s.Filter)
	seq = Apply(s.Hooks.PostLoad, seq)
	seq = Group(seq)
	seq = StackAndOverlay(seq, true)
	return PoolStore(seq, ctx.Pool, p.name), nil
}

func (p *StackPlotter) setUpMakeCanvas(seq stream.Seq[*wrp.Wrapper], s Settings) stream.Seq[*wrp.Wrapper] {
	builders := BuildCanvas(seq, s.Canvas)
	builders = PrefixAnalyzer(builders)
	builders = Decorate(builders, s.Decorators)
	builders = Apply(s.Hooks.PreBuild, builders)
	builders = RunBuildProcedure(builders)
	builders = Apply(s.Hooks.PostBuild, builders)
	return Finalize(builders)
}

func (p *StackPlotter) setUpSaveCanvas(seq stream.Seq[*wrp.Wrapper], s Settings) (stream.Seq[*wrp.Wrapper], error) {
	writer, err := artifact.NewWriter(p.name, s.Formats)
	if err != nil {
		return nil, err
	}
	switch {
	case s.SaveLinLogScale:
		return PersistLinLog(seq, writer, s.Naming), nil
	case s.SaveLogScale:
		return Persist(SwitchLogScale(seq), writer, s.Naming), nil
	default:
		return Persist(seq, writer, s.Naming), nil
	}
}

func (p *StackPlotter) runSequence(ctx *tool.Context, seq stream.Seq[*wrp.Wrapper]) (tool.Result, error) {
	p.phase = PhaseRunSequence
	n, err := stream.Count(ctx.Context(), seq)
	p.count = n
	if err != nil {
		p.phase = PhaseFailed
		return tool.Result{Status: tool.StatusFailed, Message: err.Error()}, err
	}
	level := logbook.LevelInfo
	if n == 0 {
		level = logbook.LevelWarning
	}
	text := fmt.Sprintf("%s produced %d canvases.", p.name, n)
	ctx.Message(level, text)
	p.phase = PhaseDone
	return tool.Result{Status: tool.StatusCompleted, Message: text}, nil
}

func (p *StackPlotter) fail(err error) error {
	p.phase = PhaseFailed
	return err
}

func (p *StackPlotter) outputDir(ctx *tool.Context) string {
	if dir := ctx.PlotOutputDir(); dir != "" {
		return dir
	}
	if ctx.Config != nil {
		return ctx.Config.ToolOutputDir(p.name)
	}
	return p.name
}
