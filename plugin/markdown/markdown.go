// Package markdown renders assistant answers to HTML for the web channel.
// Chat platforms receive plain text; only the web widget gets markup.
package markdown

import (
	"bytes"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Renderer converts LLM output to HTML. Raw HTML in the source is omitted
// rather than passed through, so model output cannot inject markup.
type Renderer struct {
	md goldmark.Markdown
}

func NewRenderer() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
	}
}

// ToHTML renders source to an HTML fragment. Callers fall back to the plain
// text answer when it fails.
func (r *Renderer) ToHTML(source string) (string, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(source), &buf); err != nil {
		return "", errors.Wrap(err, "render markdown")
	}
	return strings.TrimSpace(buf.String()), nil
}
