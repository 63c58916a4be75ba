package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/kingrea/histostack/internal/histo"
	"github.com/kingrea/histostack/internal/histostore"
	"github.com/kingrea/histostack/internal/logbook"
	"github.com/kingrea/histostack/internal/logging"
	"github.com/kingrea/histostack/internal/tool"
	"github.com/kingrea/histostack/internal/tools"
	"github.com/kingrea/histostack/internal/tui"
	"github.com/kingrea/histostack/internal/web"
)

func runChain(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("run", stderr)
	var pf projectFlags
	pf.add(fs)
	reuse := fs.Bool("reuse", false, "skip tools whose output is complete from an earlier run")
	stop := fs.Bool("stop-on-unfinished", false, "abort when a sample has unfinished jobs")
	useTUI := fs.Bool("tui", false, "show a terminal monitor while the chain runs")
	if done, err := parse(fs, args); done || err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("run: unexpected argument %q", fs.Arg(0))
	}

	cfg, err := pf.load()
	if err != nil {
		return err
	}
	if fs.Changed("reuse") {
		if err := cfg.Set("reuse", strconv.FormatBool(*reuse)); err != nil {
			return err
		}
	}
	if fs.Changed("stop-on-unfinished") {
		if err := cfg.Set("stop_on_unfinished", strconv.FormatBool(*stop)); err != nil {
			return err
		}
	}
	level, err := logging.ParseLevel(pf.logLevel)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	sess, err := tools.Open(ctx, cfg, level)
	if err != nil {
		return err
	}
	defer sess.Close()

	chain, err := sess.Tools()
	if err != nil {
		return err
	}
	execute := func(observer tool.Observer) ([]tool.Result, error) {
		return sess.Run(chain, tool.WithObserver(observer))
	}

	var results []tool.Result
	if *useTUI {
		results, err = tui.Watch("histostack run "+cfg.ProjectDir, cancel, execute, tea.WithAltScreen())
	} else {
		results, err = execute(printer(stderr))
	}
	printSummary(stdout, chain, results)
	fmt.Fprintf(stderr, "messages logged to %s\n", sess.Logbook.Path())
	if tool.IsStop(err) {
		return fmt.Errorf("chain stopped: %w", err)
	}
	return err
}

func runWeb(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("web", stderr)
	var pf projectFlags
	pf.add(fs)
	target := fs.String("target", "", "publish target (defaults to web_target_dir)")
	if done, err := parse(fs, args); done || err != nil {
		return err
	}
	cfg, err := pf.load()
	if err != nil {
		return err
	}
	level, err := logging.ParseLevel(pf.logLevel)
	if err != nil {
		return err
	}
	book, err := logbook.New(cfg.LogbookPath())
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogsDir(), level)
	if err != nil {
		return err
	}
	defer logger.Close()

	var opts []web.Option
	if *target != "" {
		opts = append(opts, web.WithTarget(*target))
	}
	chain := []tool.Tool{web.New("web", opts...)}
	tctx := tool.NewContext(context.Background(), cfg, nil, nil, book, logger.Logger)
	results, err := tool.NewRunner(tctx, tool.WithObserver(printer(stderr))).Run(chain)
	printSummary(stdout, chain, results)
	return err
}

func runInspect(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("inspect", stderr)
	diag := fs.Bool("diag", false, "print the raw payload in CBOR diagnostic notation")
	if done, err := parse(fs, args); done || err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("inspect: expected one file, got %d", fs.NArg())
	}
	path := fs.Arg(0)
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	c, err := histostore.CompressionOf(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if *diag {
		text, err := histostore.Diagnose(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Fprintln(stdout, text)
		return nil
	}
	h, err := histostore.Decode(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	fingerprint, err := histostore.Fingerprint(h)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "title:       %s\n", h.Title)
	if h.XLabel != "" {
		fmt.Fprintf(stdout, "x label:     %s\n", h.XLabel)
	}
	fmt.Fprintf(stdout, "compression: %s\n", c)
	fmt.Fprintf(stdout, "bins:        %d\n", h.Bins())
	fmt.Fprintf(stdout, "entries:     %g\n", h.Entries)
	fmt.Fprintf(stdout, "integral:    %g\n", h.Integral())
	fmt.Fprintf(stdout, "blake3:      %s\n", fingerprint)
	fmt.Fprintln(stdout, binTable(h))
	return nil
}

var headerCell = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var bodyCell = lipgloss.NewStyle().Padding(0, 1)

func binTable(h *histo.Histogram) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#444444"))).
		Headers("bin", "low", "high", "content", "error").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerCell
			}
			return bodyCell
		})
	for i := 0; i < h.Bins(); i++ {
		t.Row(
			strconv.Itoa(i),
			strconv.FormatFloat(h.Edges[i], 'g', 6, 64),
			strconv.FormatFloat(h.Edges[i+1], 'g', 6, 64),
			strconv.FormatFloat(h.Contents[i], 'g', 6, 64),
			strconv.FormatFloat(h.Error(i), 'g', 4, 64),
		)
	}
	return t.Render()
}

func runRecompress(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("recompress", stderr)
	var pf projectFlags
	pf.add(fs)
	name := fs.String("compression", "", "target compression (defaults to the configured one)")
	if done, err := parse(fs, args); done || err != nil {
		return err
	}
	cfg, err := pf.load()
	if err != nil {
		return err
	}
	target := cfg.Project.Compression
	if *name != "" {
		target = *name
	}
	c, err := histostore.ParseCompression(target)
	if err != nil {
		return err
	}
	n, err := histostore.Recompress(cfg.Project.InputDir, c)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "recompressed %d files to %s\n", n, c)
	return nil
}
