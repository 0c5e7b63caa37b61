// Package render turns note markdown into HTML for the preview endpoint.
package render

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

// Renderer is a wrapper around the goldmark parser with pre-configured extensions.
// Raw HTML in note bodies is not passed through.
type Renderer struct {
	md goldmark.Markdown
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
<article class="markdown-body">
{{.Content}}
</article>
</body>
</html>
`))

func NewRenderer() *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.TaskList,
			extension.Linkify,
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)
	return &Renderer{md: md}
}

// Fragment converts markdown source into an HTML fragment.
func (r *Renderer) Fragment(source []byte) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert(source, &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

// Page renders source as a complete HTML document titled title.
func (r *Renderer) Page(title string, source []byte) (string, error) {
	fragment, err := r.Fragment(source)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	err = pageTemplate.Execute(&buf, struct {
		Title   string
		Content template.HTML
	}{
		Title: title,
		// goldmark escapes raw HTML unless WithUnsafe is set.
		Content: template.HTML(fragment), //nolint:gosec
	})
	if err != nil {
		return "", fmt.Errorf("render page: %w", err)
	}
	return buf.String(), nil
}
