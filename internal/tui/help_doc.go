package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// minHelpWidth keeps narrow terminals from wrapping every binding onto its own line.
const minHelpWidth = 24

// helpDocKey identifies one rendered help document.
type helpDocKey struct {
	source string
	width  int
}

// helpDoc renders the key-binding reference through glamour, keeping one
// render per source and wrap width. Bindings only change on rebinding and
// widths only on resize, so the cache stays small.
type helpDoc struct {
	style    string
	rendered map[helpDocKey]string
}

// newHelpDoc constructs a help document renderer for a glamour standard style.
func newHelpDoc(style string) *helpDoc {
	return &helpDoc{style: style, rendered: map[helpDocKey]string{}}
}

// view returns source rendered for width. Render failures show the raw markdown.
func (d *helpDoc) view(source string, width int) string {
	source = strings.TrimSpace(source)
	if source == "" {
		return ""
	}
	k := helpDocKey{source: source, width: max(width, minHelpWidth)}
	if out, ok := d.rendered[k]; ok {
		return out
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(d.style),
		glamour.WithWordWrap(k.width),
	)
	if err != nil {
		return source
	}
	out, err := renderer.Render(source)
	if err != nil {
		return source
	}
	out = strings.TrimRight(out, "\n")
	d.rendered[k] = out
	return out
}
