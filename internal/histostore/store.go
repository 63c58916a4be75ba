package histostore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kingrea/histostack/internal/histo"
	"github.com/kingrea/histostack/internal/samples"
	"github.com/kingrea/histostack/internal/wrp"
)

// Ext is the file extension of stored histograms.
const Ext = ".hist"

// WriteFile stores h at path, creating parent directories.
func WriteFile(path string, h *histo.Histogram, c Compression) error {
	data, err := Encode(h, c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadFile loads the histogram stored at path.
func ReadFile(path string) (*histo.Histogram, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	h, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return h, nil
}

// PathFor returns the canonical location of a histogram in dir.
func PathFor(dir, sample, analyzer, name string) string {
	return filepath.Join(dir, sample, analyzer, name+Ext)
}

// Store lists and loads the histograms of one campaign directory.
type Store struct {
	dir      string
	registry *samples.Registry
}

// New returns a store rooted at dir. Only samples still active in registry
// are visible.
func New(dir string, registry *samples.Registry) *Store {
	return &Store{dir: dir, registry: registry}
}

// Dir returns the root directory.
func (s *Store) Dir() string {
	return s.dir
}

// Scan lists every stored histogram of an active sample as an unloaded
// wrapper stub. No payload is read.
func (s *Store) Scan() ([]*wrp.Wrapper, error) {
	var stubs []*wrp.Wrapper
	for _, name := range s.registry.Names() {
		sample, _ := s.registry.Get(name)
		root := filepath.Join(s.dir, name)
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) && path == root {
					return filepath.SkipDir
				}
				return err
			}
			if d.IsDir() || filepath.Ext(path) != Ext {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			parts := strings.Split(filepath.ToSlash(rel), "/")
			if len(parts) != 2 {
				return nil
			}
			stubs = append(stubs, &wrp.Wrapper{
				Kind:     wrp.KindHisto,
				Name:     strings.TrimSuffix(parts[1], Ext),
				Analyzer: parts[0],
				Sample:   sample.Name,
				IsData:   sample.IsData,
				Legend:   sample.Legend,
				Color:    sample.Color,
				Path:     path,
			})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("histostore: scan %s: %w", root, err)
		}
	}
	return stubs, nil
}

// Load reads the payload of a stub in place and returns it.
func (s *Store) Load(w *wrp.Wrapper) (*wrp.Wrapper, error) {
	if w.Loaded() {
		return w, nil
	}
	h, err := ReadFile(w.Path)
	if err != nil {
		return nil, err
	}
	w.Histo = h
	w.AddHistory("loaded %s", w.Path)
	return w, nil
}

// Recompress rewrites every histogram file below dir with compression c and
// returns how many files changed. Files already stored with c are left
// alone.
func Recompress(dir string, c Compression) (int, error) {
	changed := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != Ext {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		current, err := CompressionOf(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if current == c {
			return nil
		}
		h, err := Decode(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := WriteFile(path, h, c); err != nil {
			return err
		}
		changed++
		return nil
	})
	if err != nil {
		return changed, fmt.Errorf("histostore: recompress %s: %w", dir, err)
	}
	return changed, nil
}
