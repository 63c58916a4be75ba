package web

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kingrea/histostack/internal/artifact"
	"github.com/kingrea/histostack/internal/config"
	"github.com/kingrea/histostack/internal/tool"
	"github.com/kingrea/histostack/internal/wrp"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

// newPlotsTree lays out plots/stacks with one canvas, a note and a TeX
// table, a plain sidecar at the top and an empty directory.
func newPlotsTree(t *testing.T) (*config.Config, string) {
	t.Helper()
	project := t.TempDir()
	cfg, err := config.Load(project)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	plots := cfg.Project.PlotsDir
	writer, err := artifact.NewWriter("stacks", []string{".png"})
	if err != nil {
		t.Fatalf("writer: %v", err)
	}
	canvas := &wrp.Wrapper{Kind: wrp.KindCanvas, Name: "sel_met", Image: []byte("png"), History: []string{"built canvas sel_met"}}
	if _, err := writer.Write(canvas, filepath.Join(plots, "stacks", "sel_met")); err != nil {
		t.Fatalf("write canvas: %v", err)
	}
	writeFile(t, filepath.Join(plots, "stacks", "notes.md"), "# Selection notes\n\nMET above *40 GeV*.\n")
	writeFile(t, filepath.Join(plots, "stacks", "yields.tex"), "\\begin{tabular}{ll}\nttbar & 12 \\\\\n\\end{tabular}\n")
	writeFile(t, filepath.Join(plots, "stacks", "sel_met.hist"), "raw")
	writeFile(t, filepath.Join(plots, "summary.info"), "campaign summary\n")
	if err := os.MkdirAll(filepath.Join(plots, "empty"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	return cfg, plots
}

func TestCreatorBuildsPagesRecursively(t *testing.T) {
	cfg, plots := newPlotsTree(t)
	ctx := tool.NewContext(context.Background(), cfg, nil, nil, nil, nil)

	res, err := New("web").Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status != tool.StatusCompleted || res.Message != "built 2 pages" {
		t.Fatalf("unexpected result %+v", res)
	}

	top := readFile(t, filepath.Join(plots, IndexFile))
	if !strings.Contains(top, `<a href="stacks/index.html">stacks</a>`) {
		t.Fatalf("missing subfolder link:\n%s", top)
	}
	if strings.Contains(top, "empty/index.html") {
		t.Fatalf("empty folder must not be linked")
	}
	if !strings.Contains(top, "campaign summary") {
		t.Fatalf("plain info file not shown:\n%s", top)
	}
	if _, err := os.Stat(filepath.Join(plots, "empty", IndexFile)); err == nil {
		t.Fatalf("empty folder must not get a page")
	}

	page := readFile(t, filepath.Join(plots, "stacks", IndexFile))
	for _, want := range []string{
		`<img src="sel_met.png"`,
		`id="history_sel_met"`,
		"built canvas sel_met",
		"<h1>Selection notes</h1>",
		"<em>40 GeV</em>",
		"tabular",
	} {
		if !strings.Contains(page, want) {
			t.Fatalf("page missing %q:\n%s", want, page)
		}
	}

	msgs := ctx.Messages()
	if len(msgs) != 2 || msgs[0] != "INFO Building page in "+plots {
		t.Fatalf("unexpected messages %v", msgs)
	}
}

func TestCreatorShowsHandWrittenImageSidecar(t *testing.T) {
	cfg, plots := newPlotsTree(t)
	writeFile(t, filepath.Join(plots, "stacks", "manual.png"), "png")
	writeFile(t, filepath.Join(plots, "stacks", "manual.info"), "hand made\r\n\r\nfilled by hand\n")
	writeFile(t, filepath.Join(plots, "stacks", "sketch.png"), "png")
	writeFile(t, filepath.Join(plots, "stacks", "sketch.info"), "drawn on paper\n")
	ctx := tool.NewContext(context.Background(), cfg, nil, nil, nil, nil)

	if _, err := New("web").Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	page := readFile(t, filepath.Join(plots, "stacks", IndexFile))
	for _, want := range []string{
		`<img src="manual.png"`,
		"filled by hand",
		`<img src="sketch.png"`,
		"drawn on paper",
		"built canvas sel_met",
	} {
		if !strings.Contains(page, want) {
			t.Fatalf("page missing %q:\n%s", want, page)
		}
	}
	if strings.Contains(page, "hand made") {
		t.Fatalf("text before the blank line must not be shown:\n%s", page)
	}
}

func TestCreatorCopiesToTarget(t *testing.T) {
	cfg, plots := newPlotsTree(t)
	target := t.TempDir()
	writeFile(t, filepath.Join(target, HtaccessFile), "Require all granted\n")
	writeFile(t, filepath.Join(target, "stacks", "stale.png"), "old")
	if err := cfg.Set("web_target_dir", target); err != nil {
		t.Fatalf("set: %v", err)
	}
	ctx := tool.NewContext(context.Background(), cfg, nil, nil, nil, nil)

	if _, err := New("web").Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, want := range []string{
		IndexFile,
		filepath.Join("stacks", IndexFile),
		filepath.Join("stacks", "sel_met.png"),
		filepath.Join("stacks", HtaccessFile),
	} {
		if _, err := os.Stat(filepath.Join(target, want)); err != nil {
			t.Fatalf("expected %s in target: %v", want, err)
		}
	}
	for _, unwanted := range []string{
		filepath.Join("stacks", "sel_met.info"),
		filepath.Join("stacks", "sel_met.hist"),
		filepath.Join("stacks", "stale.png"),
	} {
		if _, err := os.Stat(filepath.Join(target, unwanted)); err == nil {
			t.Fatalf("%s must not be published", unwanted)
		}
	}
	if _, err := os.Stat(filepath.Join(plots, "stacks", HtaccessFile)); err != nil {
		t.Fatalf("subfolder should receive .htaccess: %v", err)
	}
	msgs := ctx.Messages()
	if got := msgs[len(msgs)-1]; got != "INFO Copying page to "+target {
		t.Fatalf("unexpected last message %q", got)
	}
}

func TestCreatorWithoutImageFormatWarns(t *testing.T) {
	ctx := tool.NewContext(context.Background(), nil, nil, nil, nil, nil)
	res, err := New("web", WithRoot(t.TempDir()), WithFormats([]string{".pdf"})).Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status != tool.StatusSkipped {
		t.Fatalf("expected skip, got %s", res.Status)
	}
	if msgs := ctx.Messages(); len(msgs) != 2 || msgs[0] != "WARNING No image formats for web available!" {
		t.Fatalf("unexpected messages %v", msgs)
	}
}

func TestCreatorSkipsEmptyRoot(t *testing.T) {
	root := t.TempDir()
	ctx := tool.NewContext(context.Background(), nil, nil, nil, nil, nil)
	res, err := New("web", WithRoot(root), WithFormats([]string{".png"})).Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Message != "built 0 pages" {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, err := os.Stat(filepath.Join(root, IndexFile)); err == nil {
		t.Fatalf("no page expected for an empty root")
	}
}

func TestImageExtPrefersPNG(t *testing.T) {
	if got := ImageExt([]string{".jpg", ".png"}); got != ".png" {
		t.Fatalf("got %q", got)
	}
	if got := ImageExt([]string{".eps"}); got != "" {
		t.Fatalf("got %q", got)
	}
}
