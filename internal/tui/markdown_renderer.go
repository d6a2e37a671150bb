package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

const (
	defaultMarkdownStyle = "dark"
	minMarkdownWidth     = 24
)

// markdownRenderer renders task text for the info modal. The glamour
// renderer is rebuilt only when the wrap width or style changes.
type markdownRenderer struct {
	style      string
	width      int
	builtStyle string
	renderer   *glamour.TermRenderer
}

// render returns text as styled terminal output, or text unchanged when
// glamour cannot render it.
func (r *markdownRenderer) render(text string, width int) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	style := r.style
	if style == "" {
		style = defaultMarkdownStyle
	}
	width = max(width, minMarkdownWidth)

	if r.renderer == nil || r.width != width || r.builtStyle != style {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return text
		}
		r.renderer = renderer
		r.width = width
		r.builtStyle = style
	}

	rendered, err := r.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(rendered, "\n")
}
