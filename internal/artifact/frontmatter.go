package artifact

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingFrontMatter indicates the document did not start with a YAML fence.
	ErrMissingFrontMatter = errors.New("artifact: missing frontmatter")
	// ErrMalformedFrontMatter indicates the YAML block could not be parsed.
	ErrMalformedFrontMatter = errors.New("artifact: malformed frontmatter")
)

// ParseInfo extracts the canvas metadata block and the history body from a
// sidecar that starts with `---` YAML fences.
func ParseInfo(content []byte) (Info, error) {
	if len(content) == 0 {
		return Info{}, ErrMissingFrontMatter
	}
	normalized := normalizeNewlines(content)
	if !bytes.HasPrefix(normalized, []byte("---\n")) {
		return Info{}, ErrMissingFrontMatter
	}
	parts := bytes.SplitN(normalized[4:], []byte("\n---\n"), 2)
	if len(parts) < 2 {
		return Info{}, ErrMalformedFrontMatter
	}
	var envelope canvasEnvelope
	if err := yaml.Unmarshal(parts[0], &envelope); err != nil {
		return Info{}, fmt.Errorf("artifact: parse frontmatter: %w", err)
	}
	info, err := envelope.toInfo()
	if err != nil {
		return Info{}, err
	}
	for _, line := range strings.Split(string(parts[1]), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			info.History = append(info.History, line)
		}
	}
	return info, nil
}

// FormatInfo renders metadata and history with YAML fences.
func FormatInfo(info Info) ([]byte, error) {
	if info.Name == "" {
		return nil, fmt.Errorf("artifact: info missing canvas name")
	}
	envelope := canvasEnvelope{}
	envelope.fromInfo(info)
	data, err := yaml.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("artifact: encode frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(bytes.TrimRight(data, "\n"))
	buf.WriteString("\n---\n\n")
	for _, line := range info.History {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

type canvasEnvelope struct {
	Canvas canvasMetadata `yaml:"histostack"`
}

type canvasMetadata struct {
	Name     string   `yaml:"name"`
	Tool     string   `yaml:"tool"`
	Analyzer string   `yaml:"analyzer,omitempty"`
	Title    string   `yaml:"title,omitempty"`
	Inputs   []string `yaml:"inputs,omitempty"`
	Formats  []string `yaml:"formats,omitempty"`
	Created  string   `yaml:"created"`
	Checksum string   `yaml:"checksum,omitempty"`
	LogY     bool     `yaml:"log_y,omitempty"`
}

func (e canvasEnvelope) toInfo() (Info, error) {
	if e.Canvas.Name == "" || e.Canvas.Tool == "" {
		return Info{}, ErrMalformedFrontMatter
	}
	created, err := parseTime(e.Canvas.Created)
	if err != nil {
		return Info{}, fmt.Errorf("artifact: parse created timestamp: %w", err)
	}
	return Info{
		Name:      e.Canvas.Name,
		Tool:      e.Canvas.Tool,
		Analyzer:  e.Canvas.Analyzer,
		Title:     e.Canvas.Title,
		Inputs:    append([]string{}, e.Canvas.Inputs...),
		Formats:   append([]string{}, e.Canvas.Formats...),
		CreatedAt: created,
		Checksum:  e.Canvas.Checksum,
		LogY:      e.Canvas.LogY,
	}, nil
}

func (e *canvasEnvelope) fromInfo(info Info) {
	e.Canvas = canvasMetadata{
		Name:     info.Name,
		Tool:     info.Tool,
		Analyzer: info.Analyzer,
		Title:    info.Title,
		Inputs:   append([]string{}, info.Inputs...),
		Formats:  append([]string{}, info.Formats...),
		Created:  info.CreatedAt.UTC().Format(timeLayout),
		Checksum: info.Checksum,
		LogY:     info.LogY,
	}
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

func parseTime(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, fmt.Errorf("artifact: empty created timestamp")
	}
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func normalizeNewlines(content []byte) []byte {
	return bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
}
