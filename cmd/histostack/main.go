// Command histostack runs the configured tool chain of a campaign directory
// and offers a few maintenance commands around its histogram files.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"

	"github.com/kingrea/histostack/internal/config"
	"github.com/kingrea/histostack/internal/logbook"
	"github.com/kingrea/histostack/internal/tool"
)

const usage = `histostack stacks and publishes histogram plots of an analysis campaign.

Usage:
  histostack <command> [flags]

Commands:
  init         create .histostack/ with a default config
  run          run the configured tool chain
  web          rebuild and publish the web pages only
  inspect      print the content of one .hist file
  recompress   rewrite stored histograms with the configured compression

Run "histostack <command> --help" for the flags of a command.
`

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		die("histostack: %v", err)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return errors.New("no command given")
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "init":
		return runInit(rest, stdout, stderr)
	case "run":
		return runChain(rest, stdout, stderr)
	case "web":
		return runWeb(rest, stdout, stderr)
	case "inspect":
		return runInspect(rest, stdout, stderr)
	case "recompress":
		return runRecompress(rest, stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// projectFlags are shared by every command that works on a campaign.
type projectFlags struct {
	project  string
	config   string
	logLevel string
	sets     keyValueFlag
}

func (p *projectFlags) add(fs *pflag.FlagSet) {
	fs.StringVarP(&p.project, "project", "p", "", "campaign directory (defaults to cwd)")
	fs.StringVar(&p.config, "config", "", "config file to load instead of .histostack/config.yaml")
	fs.StringVar(&p.logLevel, "log-level", "info", "level of the diagnostic log (debug, info, warn, error)")
	fs.Var(&p.sets, "set", "config override (key=value, repeatable)")
}

func (p *projectFlags) load() (*config.Config, error) {
	dir := strings.TrimSpace(p.project)
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		dir = cwd
	}
	var (
		cfg *config.Config
		err error
	)
	if path := strings.TrimSpace(p.config); path != "" {
		cfg, err = config.LoadFile(dir, path)
	} else {
		cfg, err = config.Load(dir)
	}
	if err != nil {
		return nil, err
	}
	if err := applyOverrides(cfg, p.sets); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyOverrides applies --set values in key order.
func applyOverrides(cfg *config.Config, overrides keyValueFlag) error {
	keys := make([]string, 0, len(overrides))
	for key := range overrides {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := cfg.Set(key, overrides[key]); err != nil {
			return err
		}
	}
	return nil
}

func newFlagSet(name string, stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// parse reports done when --help was requested.
func parse(fs *pflag.FlagSet, args []string) (done bool, err error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return true, nil
		}
		return false, err
	}
	return false, nil
}

func runInit(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("init", stderr)
	project := fs.StringP("project", "p", "", "campaign directory (defaults to cwd)")
	var sets keyValueFlag
	fs.Var(&sets, "set", "config value to store (key=value, repeatable)")
	if done, err := parse(fs, args); done || err != nil {
		return err
	}
	dir := *project
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		dir = cwd
	}
	if err := config.InitProjectDir(dir); err != nil {
		return err
	}
	if len(sets) > 0 {
		cfg, err := config.Load(dir)
		if err != nil {
			return err
		}
		if err := applyOverrides(cfg, sets); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}
	}
	fmt.Fprintf(stdout, "initialized %s\n", filepath.Join(dir, config.ProjectStateDir))
	return nil
}

var (
	infoLine    = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	warningLine = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	errorLine   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	toolLine    = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
)

// printer echoes runner events on w.
func printer(w io.Writer) tool.Observer {
	return func(e tool.Event) {
		switch e.Kind {
		case tool.EventStarted:
			fmt.Fprintln(w, toolLine.Render(fmt.Sprintf("==> %s (%d/%d)", e.Tool, e.Index+1, e.Total)))
		case tool.EventMessage:
			fmt.Fprintln(w, styleLine(e.Message))
		}
	}
}

func styleLine(line string) string {
	switch {
	case strings.HasPrefix(line, string(logbook.LevelError)):
		return errorLine.Render(line)
	case strings.HasPrefix(line, string(logbook.LevelWarning)):
		return warningLine.Render(line)
	default:
		return infoLine.Render(line)
	}
}

func printSummary(w io.Writer, chain []tool.Tool, results []tool.Result) {
	for i, res := range results {
		line := fmt.Sprintf("%-28s %-10s", chain[i].Info().Name, res.Status)
		if res.Message != "" {
			line += " " + res.Message
		}
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
}

type keyValueFlag map[string]string

func (kv *keyValueFlag) String() string {
	if kv == nil || len(*kv) == 0 {
		return ""
	}
	var pairs []string
	for key, value := range *kv {
		pairs = append(pairs, fmt.Sprintf("%s=%s", key, value))
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ", ")
}

func (kv *keyValueFlag) Set(value string) error {
	parts := strings.SplitN(value, "=", 2)
	if len(parts) != 2 {
		return fmt.Errorf("expected key=value, got %q", value)
	}
	key := strings.TrimSpace(parts[0])
	if key == "" {
		return fmt.Errorf("override key is empty in %q", value)
	}
	if *kv == nil {
		*kv = keyValueFlag{}
	}
	(*kv)[key] = parts[1]
	return nil
}

func (kv *keyValueFlag) Type() string {
	return "key=value"
}
