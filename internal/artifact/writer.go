// Package artifact persists finished canvases: one image per configured
// format plus a `.info` sidecar whose YAML frontmatter records provenance
// and whose body lists the canvas history.
package artifact

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"image/jpeg"
	"image/png"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/zeebo/blake3"

	"github.com/kingrea/histostack/internal/wrp"
)

// InfoExt is the sidecar extension.
const InfoExt = ".info"

// CompleteMarker is written into a tool's output directory after it
// finished successfully.
const CompleteMarker = ".complete"

// Info is the provenance of a persisted canvas.
type Info struct {
	Name      string
	Tool      string
	Analyzer  string
	Title     string
	Inputs    []string
	Formats   []string
	CreatedAt time.Time
	Checksum  string
	LogY      bool
	History   []string
}

func (i Info) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "name:     %s\n", i.Name)
	fmt.Fprintf(&b, "tool:     %s\n", i.Tool)
	if i.Analyzer != "" {
		fmt.Fprintf(&b, "analyzer: %s\n", i.Analyzer)
	}
	if i.Title != "" {
		fmt.Fprintf(&b, "title:    %s\n", i.Title)
	}
	fmt.Fprintf(&b, "created:  %s\n", i.CreatedAt.Format(timeLayout))
	if i.LogY {
		b.WriteString("scale:    log\n")
	}
	if i.Checksum != "" {
		fmt.Fprintf(&b, "blake3:   %s\n", i.Checksum)
	}
	for _, in := range i.Inputs {
		fmt.Fprintf(&b, "input:    %s\n", in)
	}
	return b.String()
}

// Writer writes canvases for one tool.
type Writer struct {
	tool    string
	formats []string
	now     func() time.Time
}

// WriterOption customizes a Writer during construction.
type WriterOption func(*Writer)

// WithClock overrides the clock used for metadata timestamps.
func WithClock(clock func() time.Time) WriterOption {
	return func(w *Writer) {
		w.now = clock
	}
}

// NewWriter builds a writer for the named tool. Formats are file extensions
// such as ".png"; the first one is the primary image.
func NewWriter(tool string, formats []string, opts ...WriterOption) (*Writer, error) {
	formats = slices.Clone(formats)
	if len(formats) == 0 {
		formats = []string{".png"}
	}
	for i, f := range formats {
		f = strings.ToLower(strings.TrimSpace(f))
		if !strings.HasPrefix(f, ".") {
			f = "." + f
		}
		switch f {
		case ".png", ".jpg", ".jpeg":
		default:
			return nil, fmt.Errorf("artifact: unsupported format %s", f)
		}
		formats[i] = f
	}
	w := &Writer{tool: tool, formats: formats, now: time.Now}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Formats returns the configured image extensions.
func (w *Writer) Formats() []string {
	return append([]string{}, w.formats...)
}

// Write stores canvas under base (a path without extension) and returns the
// paths written, sidecar last.
func (w *Writer) Write(canvas *wrp.Wrapper, base string) ([]string, error) {
	if canvas.Kind != wrp.KindCanvas || len(canvas.Image) == 0 {
		return nil, fmt.Errorf("artifact: %s is not a rendered canvas", canvas.Name)
	}
	if err := os.MkdirAll(filepath.Dir(base), 0o755); err != nil {
		return nil, err
	}
	var written []string
	for _, ext := range w.formats {
		data, err := encodeAs(canvas.Image, ext)
		if err != nil {
			return nil, fmt.Errorf("artifact: %s: %w", canvas.Name, err)
		}
		path := base + ext
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, err
		}
		written = append(written, path)
	}
	sum := blake3.Sum256(canvas.Image)
	info := Info{
		Name:      filepath.Base(base),
		Tool:      w.tool,
		Analyzer:  canvas.Analyzer,
		Title:     canvas.Info["title"],
		Inputs:    canvas.Inputs(),
		Formats:   w.Formats(),
		CreatedAt: w.now().UTC(),
		Checksum:  hex.EncodeToString(sum[:]),
		LogY:      canvas.LogY,
		History:   canvas.History,
	}
	content, err := FormatInfo(info)
	if err != nil {
		return nil, err
	}
	path := base + InfoExt
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return nil, err
	}
	return append(written, path), nil
}

func encodeAs(pngData []byte, ext string) ([]byte, error) {
	if ext == ".png" {
		return pngData, nil
	}
	img, err := png.Decode(bytes.NewReader(pngData))
	if err != nil {
		return nil, fmt.Errorf("decode png: %w", err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 92}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Read loads a sidecar.
func Read(path string) (Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Info{}, err
	}
	info, err := ParseInfo(data)
	if err != nil {
		return Info{}, fmt.Errorf("%s: %w", path, err)
	}
	return info, nil
}

// WriteMarker creates the completion marker in dir.
func WriteMarker(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, CompleteMarker), []byte{}, 0o644)
}

// HasMarker reports whether dir holds a completion marker.
func HasMarker(dir string) (bool, error) {
	info, err := os.Stat(filepath.Join(dir, CompleteMarker))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, fmt.Errorf("artifact: expected marker file got directory")
	}
	return true, nil
}

// RemoveMarker deletes the completion marker if present.
func RemoveMarker(dir string) error {
	err := os.Remove(filepath.Join(dir, CompleteMarker))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
