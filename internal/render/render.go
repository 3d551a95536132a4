// Package render turns the refined markdown transcript into HTML and PDF.
package render

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"github.com/chaz8081/sbobinator/internal/artifact"
)

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
)

var page = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
{{.Body}}</body>
</html>
`))

// HTML converts markdown to a standalone UTF-8 HTML document.
func HTML(markdown, title string) ([]byte, error) {
	var body bytes.Buffer
	if err := md.Convert([]byte(markdown), &body); err != nil {
		return nil, fmt.Errorf("render: markdown: %w", err)
	}

	var doc bytes.Buffer
	err := page.Execute(&doc, struct {
		Title string
		Body  template.HTML
	}{Title: title, Body: template.HTML(body.String())})
	if err != nil {
		return nil, fmt.Errorf("render: html document: %w", err)
	}
	return doc.Bytes(), nil
}

// WriteHTML renders markdown and writes it to path atomically.
func WriteHTML(markdown, path, title string) error {
	doc, err := HTML(markdown, title)
	if err != nil {
		return err
	}
	if err := artifact.WriteFile(path, doc); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return nil
}
