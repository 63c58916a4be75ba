package plotter

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kingrea/histostack/internal/artifact"
	"github.com/kingrea/histostack/internal/config"
	"github.com/kingrea/histostack/internal/histostore"
	"github.com/kingrea/histostack/internal/logbook"
	"github.com/kingrea/histostack/internal/pool"
	"github.com/kingrea/histostack/internal/render"
	"github.com/kingrea/histostack/internal/samples"
	"github.com/kingrea/histostack/internal/stream"
	"github.com/kingrea/histostack/internal/tool"
	"github.com/kingrea/histostack/internal/wrp"
)

type fixture struct {
	cfg *config.Config
	ctx *tool.Context
}

// newFixture stores sel/met for Monte-Carlo samples A and B and data sample
// C.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	reg, err := samples.NewRegistry([]samples.Sample{
		{Name: "A", Color: "#1f77b4"},
		{Name: "B", Color: "#ff7f0e"},
		{Name: "C", Legend: "Data", IsData: true},
	}, nil)
	require.NoError(t, err)
	for sample, values := range map[string][]float64{
		"A": {1, 2, 3},
		"B": {2, 2, 2},
		"C": {3, 4, 5},
	} {
		path := histostore.PathFor(cfg.Project.InputDir, sample, "sel", "met")
		require.NoError(t, histostore.WriteFile(path, filled(t, values...), histostore.CompressionZstd))
	}
	book, err := logbook.New(cfg.LogbookPath())
	require.NoError(t, err)
	return &fixture{
		cfg: cfg,
		ctx: tool.NewContext(context.Background(), cfg, reg, pool.New(), book, nil),
	}
}

func filesWithExt(t *testing.T, dir, ext string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	var out []string
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ext {
			out = append(out, e.Name())
		}
	}
	return out
}

func TestStackPlotterProducesOneCanvas(t *testing.T) {
	f := newFixture(t)
	p := NewStackPlotter("stacks", Settings{Filter: &FilterSpec{Analyzers: []string{"sel"}}})

	results, err := tool.NewRunner(f.ctx).Run([]tool.Tool{p})
	require.NoError(t, err)
	require.Equal(t, tool.StatusCompleted, results[0].Status)
	require.Equal(t, PhaseDone, p.Phase())
	require.Equal(t, 1, p.Count())

	dir := f.cfg.ToolOutputDir("stacks")
	require.Equal(t, []string{"sel_met.png"}, filesWithExt(t, dir, ".png"))
	require.Equal(t, []string{"sel_met.info"}, filesWithExt(t, dir, artifact.InfoExt))

	want := "INFO stacks produced 1 canvases."
	require.Equal(t, []string{want}, f.ctx.Messages())
	lines, _ := f.ctx.Logbook.Tail(1)
	require.Equal(t, []string{want}, lines)

	info, err := artifact.Read(filepath.Join(dir, "sel_met.info"))
	require.NoError(t, err)
	require.Equal(t, "stacks", info.Tool)
	require.Equal(t, "sel", info.Analyzer)
	require.Len(t, info.Inputs, 3)
	require.False(t, info.LogY)

	stored, ok := f.ctx.Pool.Lookup("stacks/sel/met")
	require.True(t, ok)
	require.Len(t, stored.Renderers, 2)
	require.Equal(t, []float64{3, 4, 5}, stored.Renderers[0].Histo.Contents)
}

func TestStackPlotterZeroMatchesWarns(t *testing.T) {
	f := newFixture(t)
	p := NewStackPlotter("stacks", Settings{Filter: &FilterSpec{Names: []string{"nothing"}}})

	_, err := tool.NewRunner(f.ctx).Run([]tool.Tool{p})
	require.NoError(t, err)
	require.Empty(t, filesWithExt(t, f.cfg.ToolOutputDir("stacks"), ".png"))
	require.Equal(t, []string{"WARNING stacks produced 0 canvases."}, f.ctx.Messages())
}

func TestStackPlotterDualScaleWritesTwoImages(t *testing.T) {
	f := newFixture(t)
	p := NewStackPlotter("stacks", Settings{Filter: &FilterSpec{}, SaveLinLogScale: true})

	_, err := tool.NewRunner(f.ctx).Run([]tool.Tool{p})
	require.NoError(t, err)
	dir := f.cfg.ToolOutputDir("stacks")
	require.Equal(t, []string{"sel_met.png", "sel_met_log.png"}, filesWithExt(t, dir, ".png"))
	require.Equal(t, 1, p.Count())

	linear, err := artifact.Read(filepath.Join(dir, "sel_met.info"))
	require.NoError(t, err)
	logInfo, err := artifact.Read(filepath.Join(dir, "sel_met_log.info"))
	require.NoError(t, err)
	require.False(t, linear.LogY)
	require.True(t, logInfo.LogY)
	require.NotEqual(t, linear.Checksum, logInfo.Checksum)
}

func TestStackPlotterLogScaleOnly(t *testing.T) {
	f := newFixture(t)
	p := NewStackPlotter("stacks", Settings{Filter: &FilterSpec{}, SaveLogScale: true, Formats: []string{".png", ".jpg"}})

	_, err := tool.NewRunner(f.ctx).Run([]tool.Tool{p})
	require.NoError(t, err)
	dir := f.cfg.ToolOutputDir("stacks")
	require.Equal(t, []string{"sel_met.png"}, filesWithExt(t, dir, ".png"))
	require.Equal(t, []string{"sel_met.jpg"}, filesWithExt(t, dir, ".jpg"))
	info, err := artifact.Read(filepath.Join(dir, "sel_met.info"))
	require.NoError(t, err)
	require.True(t, info.LogY)
}

func TestStackPlotterWithoutFilterRunsNothing(t *testing.T) {
	f := newFixture(t)
	src := &memSource{}
	p := NewStackPlotter("stacks", Settings{}, WithSource(src))

	_, err := p.Run(f.ctx)
	require.ErrorIs(t, err, ErrMissingFilterSpec)
	require.Equal(t, PhaseFailed, p.Phase())
	require.Zero(t, src.scans)
	require.Zero(t, f.ctx.Pool.Len())
	_, statErr := os.Stat(f.cfg.ToolOutputDir("stacks"))
	require.ErrorIs(t, statErr, fs.ErrNotExist)
	require.Empty(t, f.ctx.Messages())
}

func TestStackPlotterPipelineIsLazy(t *testing.T) {
	f := newFixture(t)
	src := &memSource{}
	src.add("sel", "met", "A", false, filled(t, 1, 2))
	src.add("sel", "met", "C", true, filled(t, 2, 2))
	p := NewStackPlotter("stacks", Settings{Filter: &FilterSpec{}}, WithSource(src))

	seq, err := p.Pipeline(f.ctx)
	require.NoError(t, err)
	require.Equal(t, PhaseSaveCanvas, p.Phase())
	require.Zero(t, src.scans)
	require.Zero(t, src.loads)
	require.Zero(t, f.ctx.Pool.Len())
	require.Empty(t, filesWithExt(t, f.cfg.ToolOutputDir("stacks"), ".png"))

	n, err := stream.Count(context.Background(), seq)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, 1, f.ctx.Pool.Len())
	require.Len(t, filesWithExt(t, f.cfg.ToolOutputDir("stacks"), ".png"), 1)
}

func TestStackPlotterConfigureAndHooks(t *testing.T) {
	f := newFixture(t)
	p := NewStackPlotter("stacks", Settings{}, WithConfigure(func(s *Settings) error {
		s.Filter = &FilterSpec{Analyzers: []string{"sel"}}
		s.Decorators = []render.Decorator{render.Legend{}, render.Title{}}
		s.Hooks.PostLoad = func(seq stream.Seq[*wrp.Wrapper]) stream.Seq[*wrp.Wrapper] {
			return stream.Filter(seq, func(w *wrp.Wrapper) bool { return !w.IsData })
		}
		s.Hooks.PreBuild = func(seq stream.Seq[*render.Builder]) stream.Seq[*render.Builder] {
			return stream.Tap(seq, func(b *render.Builder) error {
				b.SetTitle("Missing transverse energy")
				return nil
			})
		}
		return nil
	}))

	_, err := tool.NewRunner(f.ctx).Run([]tool.Tool{p})
	require.NoError(t, err)
	info, err := artifact.Read(filepath.Join(f.cfg.ToolOutputDir("stacks"), "sel_met.info"))
	require.NoError(t, err)
	require.Equal(t, "Missing transverse energy", info.Title)
	require.Len(t, info.Inputs, 2)
	for _, in := range info.Inputs {
		require.NotContains(t, in, string(filepath.Separator)+"C"+string(filepath.Separator))
	}
}

func TestStackPlotterConfigureError(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("boom")
	p := NewStackPlotter("stacks", Settings{}, WithConfigure(func(*Settings) error { return boom }))
	_, err := p.Run(f.ctx)
	require.ErrorIs(t, err, boom)
	require.Equal(t, PhaseFailed, p.Phase())
}

func TestStrictPoolRejectsSecondRunUntilCleared(t *testing.T) {
	f := newFixture(t)
	p := NewStackPlotter("stacks", Settings{Filter: &FilterSpec{}})

	_, err := p.Run(f.ctx)
	require.NoError(t, err)
	_, err = p.Run(f.ctx)
	require.ErrorIs(t, err, pool.ErrDuplicateKey)
	require.Equal(t, PhaseFailed, p.Phase())

	f.ctx.Pool.Clear()
	_, err = p.Run(f.ctx)
	require.NoError(t, err)
}

func TestNewFromDecl(t *testing.T) {
	f := newFixture(t)
	script := filepath.Join(t.TempDir(), "post_load.go")
	require.NoError(t, os.WriteFile(script, []byte(`package main

func Legend(sample, legend string) string {
	if sample == "A" {
		return "Signal"
	}
	return legend
}
`), 0o644))

	decl := config.ToolDecl{
		Kind:       config.KindStackPlotter,
		Name:       "stacks",
		Filter:     &config.FilterDecl{Analyzers: []string{"sel"}},
		Decorators: []string{"ratio-split", "legend", "textbox"},
		Hooks:      config.HooksDecl{PostLoad: script},
		Canvas:     config.CanvasDecl{Width: 640, Height: 480, Text: "Simulation"},
	}
	tl, err := NewFromDecl(decl)
	require.NoError(t, err)
	require.Equal(t, config.KindStackPlotter, tl.Info().Kind)
	require.True(t, tl.Info().CanReuse)

	_, err = tool.NewRunner(f.ctx).Run([]tool.Tool{tl})
	require.NoError(t, err)
	stored, ok := f.ctx.Pool.Lookup("stacks/sel/met")
	require.True(t, ok)
	require.Equal(t, "Signal", stored.Renderers[0].Renderers[0].Legend)

	info, err := artifact.Read(filepath.Join(f.cfg.ToolOutputDir("stacks"), "sel_met.info"))
	require.NoError(t, err)
	require.True(t, strings.Contains(strings.Join(info.History, "\n"), "text box"))

	bad := decl
	bad.Decorators = []string{"sparkles"}
	_, err = NewFromDecl(bad)
	require.Error(t, err)

	bad = decl
	bad.Hooks = config.HooksDecl{PreBuild: filepath.Join(t.TempDir(), "missing.go")}
	_, err = NewFromDecl(bad)
	require.Error(t, err)

	noFilter, err := NewFromDecl(config.ToolDecl{Kind: config.KindStackPlotter, Name: "bare"})
	require.NoError(t, err)
	_, err = noFilter.Run(f.ctx)
	require.ErrorIs(t, err, ErrMissingFilterSpec)
}
