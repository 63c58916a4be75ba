// Package web publishes the plots directory as a tree of static pages: one
// index.html per directory listing its canvases with their history, plain
// sidecars, TeX snippets and Markdown notes.
package web

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/kingrea/histostack/internal/artifact"
	"github.com/kingrea/histostack/internal/config"
	"github.com/kingrea/histostack/internal/logbook"
	"github.com/kingrea/histostack/internal/tool"
)

// IndexFile is the page written into every published directory.
const IndexFile = "index.html"

// HtaccessFile is copied from the target root into published subdirectories.
const HtaccessFile = ".htaccess"

// imageExts are the browser-viewable formats, in order of preference.
var imageExts = []string{".png", ".jpg", ".jpeg"}

// skipOnCopy lists extensions never copied to the publish target.
var skipOnCopy = []string{".hist", ".pdf", ".eps", artifact.InfoExt}

// ImageExt picks the first browser-viewable format among formats, or "".
func ImageExt(formats []string) string {
	for _, ext := range imageExts {
		if slices.Contains(formats, ext) {
			return ext
		}
	}
	return ""
}

// Option customizes a Creator.
type Option func(*Creator)

// WithRoot overrides the directory pages are built for.
func WithRoot(dir string) Option {
	return func(c *Creator) {
		c.root = dir
	}
}

// WithTarget overrides the publish target.
func WithTarget(dir string) Option {
	return func(c *Creator) {
		c.target = dir
	}
}

// WithFormats overrides the image formats looked for.
func WithFormats(formats []string) Option {
	return func(c *Creator) {
		c.formats = formats
	}
}

// Creator is the web-creator tool.
type Creator struct {
	name    string
	root    string
	target  string
	formats []string
}

// New builds a creator. Unset options are taken from the project config at
// run time.
func New(name string, opts ...Option) *Creator {
	if name == "" {
		name = config.KindWebCreator
	}
	c := &Creator{name: name}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromDecl is the tool factory for the web-creator kind.
func NewFromDecl(decl config.ToolDecl) (tool.Tool, error) {
	return New(decl.Name), nil
}

func (c *Creator) Info() tool.Info {
	return tool.Info{
		Kind:        config.KindWebCreator,
		Name:        c.name,
		Description: "Builds index.html pages for the plots directory",
		CanReuse:    true,
	}
}

func (c *Creator) Run(ctx *tool.Context) (tool.Result, error) {
	root, target, formats := c.root, c.target, c.formats
	if ctx.Config != nil {
		if root == "" {
			root = ctx.Config.Project.PlotsDir
		}
		if target == "" {
			target = ctx.Config.Project.WebTargetDir
		}
		if formats == nil {
			formats = ctx.Config.Project.Formats
		}
	}
	if root == "" {
		return tool.Result{}, fmt.Errorf("web: no plots directory configured")
	}
	ext := ImageExt(formats)
	if ext == "" {
		ctx.Message(logbook.LevelWarning, "No image formats for web available!")
		ctx.Message(logbook.LevelWarning, fmt.Sprintf("formats: %v", formats))
		return tool.Result{Status: tool.StatusSkipped, Message: "no image format"}, nil
	}
	s := &site{ctx: ctx, root: filepath.Clean(root), target: target, ext: ext}
	if _, err := s.build(s.root); err != nil {
		return tool.Result{}, err
	}
	return tool.Result{Status: tool.StatusCompleted, Message: fmt.Sprintf("built %d pages", s.pages)}, nil
}

type site struct {
	ctx    *tool.Context
	root   string
	target string
	ext    string
	pages  int
}

// listing is what one directory holds.
type listing struct {
	subfolders []string
	images     []string
	infos      []string
	tex        []string
	notes      []string
}

func (l listing) empty() bool {
	return len(l.subfolders) == 0 && len(l.images) == 0 && len(l.infos) == 0 &&
		len(l.tex) == 0 && len(l.notes) == 0
}

func (s *site) scan(dir string) (listing, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return listing{}, fmt.Errorf("web: read %s: %w", dir, err)
	}
	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name()] = true
	}
	var l listing
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if e.IsDir() {
			l.subfolders = append(l.subfolders, name)
			continue
		}
		switch filepath.Ext(name) {
		case artifact.InfoExt:
			base := strings.TrimSuffix(name, artifact.InfoExt)
			if names[base+s.ext] {
				l.images = append(l.images, base)
			} else {
				l.infos = append(l.infos, name)
			}
		case ".tex":
			l.tex = append(l.tex, name)
		case ".md":
			l.notes = append(l.notes, name)
		}
	}
	return l, nil
}

// build writes the page of dir after its subdirectories and reports whether
// a page was written.
func (s *site) build(dir string) (bool, error) {
	l, err := s.scan(dir)
	if err != nil {
		return false, err
	}
	if l.empty() {
		return false, nil
	}
	s.ctx.Message(logbook.LevelInfo, "Building page in "+dir)

	kept := l.subfolders[:0]
	for _, sub := range l.subfolders {
		if _, err := s.build(filepath.Join(dir, sub)); err != nil {
			return false, err
		}
		if exists(filepath.Join(dir, sub, IndexFile)) {
			kept = append(kept, sub)
		}
	}
	l.subfolders = kept

	page, err := s.page(dir, l)
	if err != nil {
		return false, err
	}
	var buf strings.Builder
	if err := pageTemplate.Execute(&buf, page); err != nil {
		return false, fmt.Errorf("web: render %s: %w", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, IndexFile), []byte(buf.String()), 0o644); err != nil {
		return false, err
	}
	s.pages++
	s.ctx.Logger.Debug("page written", "dir", dir)
	return true, s.publish(dir, l.subfolders)
}

// publish copies .htaccess into subdirectories, and from the top level
// copies the whole page tree to the target.
func (s *site) publish(dir string, subfolders []string) error {
	if s.target == "" {
		return nil
	}
	if dir != s.root {
		src := filepath.Join(s.target, HtaccessFile)
		if !exists(src) {
			return nil
		}
		return copyFile(src, filepath.Join(dir, HtaccessFile))
	}
	s.ctx.Message(logbook.LevelInfo, "Copying page to "+s.target)
	if err := os.MkdirAll(s.target, 0o755); err != nil {
		return err
	}
	if err := copyFile(filepath.Join(dir, IndexFile), filepath.Join(s.target, IndexFile)); err != nil {
		return err
	}
	for _, sub := range subfolders {
		dst := filepath.Join(s.target, sub)
		if err := os.RemoveAll(dst); err != nil {
			return err
		}
		if err := copyTree(filepath.Join(dir, sub), dst); err != nil {
			return fmt.Errorf("web: copy %s: %w", sub, err)
		}
	}
	return nil
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		out := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(out, 0o755)
		}
		if slices.Contains(skipOnCopy, filepath.Ext(path)) {
			return nil
		}
		return copyFile(path, out)
	})
}

func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, info.Mode().Perm())
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}
