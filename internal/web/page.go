package web

import (
	"bytes"
	"html/template"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/kingrea/histostack/internal/artifact"
)

// Page is the template model of one index.html.
type Page struct {
	Folder     string
	Subfolders []string
	Infos      []Block
	Tex        []Block
	Notes      []Block
	Images     []Image
}

// Block is a named chunk of preformatted or pre-rendered content.
type Block struct {
	Name string
	Text string
	HTML template.HTML
}

// Image is one canvas with its toggleable history.
type Image struct {
	Name      string
	Src       string
	HistoryID string
	History   string
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

func (s *site) page(dir string, l listing) (Page, error) {
	p := Page{Folder: dir, Subfolders: l.subfolders}
	for _, name := range l.infos {
		text, err := infoText(filepath.Join(dir, name))
		if err != nil {
			return p, err
		}
		p.Infos = append(p.Infos, Block{Name: name, Text: text})
	}
	for _, name := range l.tex {
		src, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return p, err
		}
		p.Tex = append(p.Tex, Block{Name: name, HTML: highlightTeX(string(src))})
	}
	for _, name := range l.notes {
		src, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return p, err
		}
		var buf bytes.Buffer
		if err := markdown.Convert(src, &buf); err != nil {
			return p, err
		}
		p.Notes = append(p.Notes, Block{Name: name, HTML: template.HTML(buf.String())})
	}
	for _, name := range l.images {
		history, err := imageHistory(filepath.Join(dir, name+artifact.InfoExt))
		if err != nil {
			return p, err
		}
		p.Images = append(p.Images, Image{
			Name:      name,
			Src:       name + s.ext,
			HistoryID: "history_" + name,
			History:   history,
		})
	}
	return p, nil
}

// imageHistory returns the history block of an image sidecar. A sidecar
// without front matter contributes whatever follows its first blank line,
// or all of it when there is none.
func imageHistory(path string) (string, error) {
	info, err := artifact.Read(path)
	if err == nil {
		return strings.Join(info.History, "\n"), nil
	}
	raw, readErr := os.ReadFile(path)
	if readErr != nil {
		return "", readErr
	}
	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	if _, rest, ok := strings.Cut(text, "\n\n"); ok {
		text = rest
	}
	return strings.TrimRight(text, "\n"), nil
}

// infoText renders a plain sidecar. Files that are not canvas sidecars are
// shown verbatim.
func infoText(path string) (string, error) {
	info, err := artifact.Read(path)
	if err == nil {
		return info.String(), nil
	}
	raw, readErr := os.ReadFile(path)
	if readErr != nil {
		return "", readErr
	}
	return string(raw), nil
}

func highlightTeX(src string) template.HTML {
	lexer := lexers.Get("tex")
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)
	style := styles.Get("github")
	if style == nil {
		style = styles.Fallback
	}
	iterator, err := lexer.Tokenise(nil, src)
	if err != nil {
		return template.HTML("<pre>" + template.HTMLEscapeString(src) + "</pre>")
	}
	var buf bytes.Buffer
	if err := chromahtml.New(chromahtml.WithClasses(false)).Format(&buf, style, iterator); err != nil {
		return template.HTML("<pre>" + template.HTMLEscapeString(src) + "</pre>")
	}
	return template.HTML(buf.String())
}

var pageTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Folder}}</title>
<script type="text/javascript">
function toggleDiv(id) {
  var d = document.getElementById(id);
  d.style.display = d.style.display == "none" ? "block" : "none";
}
</script>
</head>
<body>
<h1>Folder: {{.Folder}}</h1>
<hr width="60%">
{{- if .Subfolders}}
<h2>Subfolders:</h2>
{{- range .Subfolders}}
<p><a href="{{.}}/index.html">{{.}}</a></p>
{{- end}}
<hr width="60%">
{{- end}}
{{- if .Infos}}
<h2>Info files:</h2>
{{- range .Infos}}
<div>
<p><b>{{.Name}}</b></p>
<pre>{{.Text}}</pre>
</div>
<hr width="60%">
{{- end}}
{{- end}}
{{- if .Tex}}
<h2>Tex files:</h2>
{{- range .Tex}}
<div>
<p><b>{{.Name}}</b></p>
{{.HTML}}
</div>
<hr width="60%">
{{- end}}
{{- end}}
{{- if .Notes}}
<h2>Notes:</h2>
{{- range .Notes}}
<div class="note">
{{.HTML}}
</div>
<hr width="60%">
{{- end}}
{{- end}}
{{- if .Images}}
<h2>Images:</h2>
{{- range .Images}}
<div>
<p><b>{{.Name}}:</b> <a href="#" onclick="toggleDiv('{{.HistoryID}}'); return false;">(toggle history)</a></p>
<div id="{{.HistoryID}}" style="display:none;"><pre>{{.History}}</pre></div>
<img src="{{.Src}}" alt="{{.Name}}" />
</div>
<hr width="95%">
{{- end}}
{{- end}}
</body>
</html>
`))
