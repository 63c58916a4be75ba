// internal/config/config.go
//
// This package handles configuration and the .histostack directory structure.
// Every campaign directory that uses histostack gets a .histostack/ folder.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// ProjectStateDir is the name of the directory we create in each project.
	ProjectStateDir = ".histostack"

	KindStackPlotter           = "stack-plotter"
	KindWebCreator             = "web-creator"
	KindPoolClearer            = "pool-clearer"
	KindUnfinishedSampleRemove = "unfinished-sample-remover"
)

const defaultProjectConfigYAML = `# histostack project configuration
version: 1

# Histograms are read from <input_dir>/<sample>/<analyzer>/<name>.hist
input_dir: input
plots_dir: plots
samples_file: samples.jsonc
# Copy the finished web report here (optional).
# web_target_dir: /var/www/plots

formats: [.png]
compression: zstd
# strict rejects a different wrapper stored under a taken key; overwrite replaces it.
pool_policy: strict
reuse: false
stop_on_unfinished: false

tools:
  - kind: unfinished-sample-remover
  - kind: stack-plotter
    name: stacks
    filter:
      analyzers: ["*"]
    decorators: [ratio-split, legend]
    save_lin_log_scale: true
    # hooks:
    #   post_load: hooks/rename.go
  - kind: web-creator
`

// FilterDecl selects stored histograms by glob patterns. An empty list
// matches everything.
type FilterDecl struct {
	Analyzers    []string `yaml:"analyzers,omitempty"`
	Names        []string `yaml:"names,omitempty"`
	Samples      []string `yaml:"samples,omitempty"`
	ExcludeNames []string `yaml:"exclude_names,omitempty"`
}

// HooksDecl points at hook scripts.
type HooksDecl struct {
	PostLoad  string `yaml:"post_load,omitempty"`
	PreBuild  string `yaml:"pre_build,omitempty"`
	PostBuild string `yaml:"post_build,omitempty"`
}

// CanvasDecl sets canvas dimensions and labels.
type CanvasDecl struct {
	Width  int    `yaml:"width,omitempty"`
	Height int    `yaml:"height,omitempty"`
	XLabel string `yaml:"x_label,omitempty"`
	YLabel string `yaml:"y_label,omitempty"`
	Text   string `yaml:"text,omitempty"`
}

// ToolDecl declares one tool of the chain.
type ToolDecl struct {
	Kind string `yaml:"kind"`
	Name string `yaml:"name,omitempty"`

	// stack-plotter
	Filter          *FilterDecl `yaml:"filter,omitempty"`
	Sort            []string    `yaml:"sort,omitempty"`
	Decorators      []string    `yaml:"decorators,omitempty"`
	SaveLogScale    bool        `yaml:"save_log_scale,omitempty"`
	SaveLinLogScale bool        `yaml:"save_lin_log_scale,omitempty"`
	Hooks           HooksDecl   `yaml:"hooks,omitempty"`
	Canvas          CanvasDecl  `yaml:"canvas,omitempty"`
}

// ProjectConfig models .histostack/config.yaml.
type ProjectConfig struct {
	Version          int        `yaml:"version"`
	InputDir         string     `yaml:"input_dir"`
	PlotsDir         string     `yaml:"plots_dir"`
	WebTargetDir     string     `yaml:"web_target_dir,omitempty"`
	SamplesFile      string     `yaml:"samples_file"`
	Formats          []string   `yaml:"formats"`
	Compression      string     `yaml:"compression"`
	PoolPolicy       string     `yaml:"pool_policy"`
	Reuse            bool       `yaml:"reuse"`
	StopOnUnfinished bool       `yaml:"stop_on_unfinished"`
	Tools            []ToolDecl `yaml:"tools"`
}

// Config holds the runtime configuration for one campaign directory.
type Config struct {
	// ProjectDir is the campaign directory histostack runs in.
	ProjectDir string
	// StateDir is ProjectDir/.histostack
	StateDir string
	// Path is the config file that was loaded, if any.
	Path string

	Project ProjectConfig
}

// InitProjectDir creates the .histostack directory structure in projectDir
// and writes a commented default config when none exists.
//
// .histostack/
// ├── config.yaml
// ├── logs/       <- logbook.log and histostack.log
// └── hooks/      <- hook scripts referenced from config.yaml
func InitProjectDir(projectDir string) error {
	stateDir := filepath.Join(projectDir, ProjectStateDir)
	for _, dir := range []string{
		filepath.Join(stateDir, "logs"),
		filepath.Join(stateDir, "hooks"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return ensureProjectConfig(filepath.Join(stateDir, "config.yaml"))
}

// Load reads .histostack/config.yaml below projectDir. A missing file yields
// the defaults.
func Load(projectDir string) (*Config, error) {
	return LoadFile(projectDir, filepath.Join(projectDir, ProjectStateDir, "config.yaml"))
}

// LoadFile reads the config at path, resolving relative paths against
// projectDir.
func LoadFile(projectDir, path string) (*Config, error) {
	abs, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("config: resolve %s: %w", projectDir, err)
	}
	cfg := &Config{
		ProjectDir: abs,
		StateDir:   filepath.Join(abs, ProjectStateDir),
		Path:       path,
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := yaml.Unmarshal([]byte(defaultProjectConfigYAML), &cfg.Project); err != nil {
			return nil, fmt.Errorf("config: parse defaults: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg.Project); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) finish() error {
	c.Project.applyDefaults()
	c.Project.normalize(c.ProjectDir)
	if err := c.Project.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// LogsDir returns the path to the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.StateDir, "logs")
}

// LogbookPath returns the tool message log.
func (c *Config) LogbookPath() string {
	return filepath.Join(c.LogsDir(), "logbook.log")
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.StateDir, "config.yaml")
}

// ToolOutputDir returns <plots_dir>/<tool-name>.
func (c *Config) ToolOutputDir(name string) string {
	return filepath.Join(c.Project.PlotsDir, name)
}

// Set applies a single key=value override, as given on the command line.
func (c *Config) Set(key, value string) error {
	pc := &c.Project
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	switch key {
	case "input_dir":
		pc.InputDir = value
	case "plots_dir":
		pc.PlotsDir = value
	case "web_target_dir":
		pc.WebTargetDir = value
	case "samples_file":
		pc.SamplesFile = value
	case "compression":
		pc.Compression = value
	case "pool_policy":
		pc.PoolPolicy = value
	case "formats":
		pc.Formats = strings.Split(value, ",")
	case "reuse", "stop_on_unfinished":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		if key == "reuse" {
			pc.Reuse = b
		} else {
			pc.StopOnUnfinished = b
		}
	default:
		return fmt.Errorf("config: unknown key %q", key)
	}
	return c.finish()
}

// Save writes the project config back to .histostack/config.yaml.
func (c *Config) Save() error {
	if c == nil {
		return fmt.Errorf("config: nil receiver")
	}
	if err := c.finish(); err != nil {
		return err
	}
	if err := os.MkdirAll(c.StateDir, 0o755); err != nil {
		return fmt.Errorf("config: ensure state dir: %w", err)
	}
	data, err := yaml.Marshal(c.Project)
	if err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := os.WriteFile(c.ProjectConfigPath(), data, 0o644); err != nil {
		return fmt.Errorf("config: write project config: %w", err)
	}
	return nil
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if strings.TrimSpace(pc.InputDir) == "" {
		pc.InputDir = "input"
	}
	if strings.TrimSpace(pc.PlotsDir) == "" {
		pc.PlotsDir = "plots"
	}
	if strings.TrimSpace(pc.SamplesFile) == "" {
		pc.SamplesFile = "samples.jsonc"
	}
	if len(pc.Formats) == 0 {
		pc.Formats = []string{".png"}
	}
	if strings.TrimSpace(pc.Compression) == "" {
		pc.Compression = "zstd"
	}
	if strings.TrimSpace(pc.PoolPolicy) == "" {
		pc.PoolPolicy = "strict"
	}
}

func (pc *ProjectConfig) normalize(base string) {
	pc.InputDir = resolvePath(base, pc.InputDir)
	pc.PlotsDir = resolvePath(base, pc.PlotsDir)
	pc.WebTargetDir = resolvePath(base, pc.WebTargetDir)
	pc.SamplesFile = resolvePath(base, pc.SamplesFile)
	pc.Compression = normalizeWord(pc.Compression)
	pc.PoolPolicy = normalizeWord(pc.PoolPolicy)
	for i, f := range pc.Formats {
		f = normalizeWord(f)
		if f != "" && !strings.HasPrefix(f, ".") {
			f = "." + f
		}
		pc.Formats[i] = f
	}
	for i := range pc.Tools {
		pc.Tools[i].normalize(base)
	}
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	for _, f := range pc.Formats {
		if !slices.Contains([]string{".png", ".jpg", ".jpeg"}, f) {
			return fmt.Errorf("formats: unsupported format %q", f)
		}
	}
	if !slices.Contains([]string{"zstd", "lz4", "none"}, pc.Compression) {
		return fmt.Errorf("compression must be 'zstd', 'lz4' or 'none'")
	}
	if !slices.Contains([]string{"strict", "overwrite"}, pc.PoolPolicy) {
		return fmt.Errorf("pool_policy must be 'strict' or 'overwrite'")
	}
	seen := map[string]bool{}
	for i := range pc.Tools {
		if err := pc.Tools[i].validate(); err != nil {
			return fmt.Errorf("tools[%d]: %w", i, err)
		}
		if seen[pc.Tools[i].Name] {
			return fmt.Errorf("tools[%d]: duplicate tool name %s", i, pc.Tools[i].Name)
		}
		seen[pc.Tools[i].Name] = true
	}
	return nil
}

func (t *ToolDecl) normalize(base string) {
	t.Kind = normalizeWord(t.Kind)
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		t.Name = t.Kind
	}
	t.Hooks.PostLoad = resolvePath(base, t.Hooks.PostLoad)
	t.Hooks.PreBuild = resolvePath(base, t.Hooks.PreBuild)
	t.Hooks.PostBuild = resolvePath(base, t.Hooks.PostBuild)
	for i, d := range t.Decorators {
		t.Decorators[i] = normalizeWord(d)
	}
}

func (t ToolDecl) validate() error {
	switch t.Kind {
	case KindStackPlotter, KindWebCreator, KindPoolClearer, KindUnfinishedSampleRemove:
	case "":
		return fmt.Errorf("kind is required")
	default:
		return fmt.Errorf("unknown kind %q", t.Kind)
	}
	if strings.ContainsAny(t.Name, `/\`) {
		return fmt.Errorf("name %q must not contain path separators", t.Name)
	}
	if t.Canvas.Width < 0 || t.Canvas.Height < 0 {
		return fmt.Errorf("canvas size must not be negative")
	}
	return nil
}

func normalizeWord(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644)
}
