package http

import (
	"bytes"
	"html/template"
	"log/slog"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Replies are written in markdown.  goldmark's default renderer omits raw
// HTML and drops javascript: style URLs, so its output is safe to embed.
var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// renderMarkdown converts an assistant reply to HTML.  If conversion fails
// the reply is shown escaped.
func renderMarkdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		slog.Warn("markdown conversion failed", "error", err)
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(buf.String())
}
