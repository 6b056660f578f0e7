package render

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// DefaultWidth is the word-wrap width used when the terminal width is unknown.
const DefaultWidth = 100

// Renderer renders markdown for the terminal.
type Renderer interface {
	Render(markdown string) (string, error)
}

// NewMarkdown returns a glamour renderer that picks a dark or light style
// from the terminal background.
func NewMarkdown(width int) (*glamour.TermRenderer, error) {
	if width <= 0 {
		width = DefaultWidth
	}
	return glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
}

// Markdown renders md with r, returning md unchanged when r is nil or fails.
func Markdown(r Renderer, md string) string {
	if r == nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n") + "\n"
}

// ResponseParts splits a reply into its think and main parts and renders both.
func ResponseParts(content string, r Renderer) (think, main string, hasThink bool) {
	thinkRaw, mainRaw, hasThink := SplitThink(content)
	if hasThink && thinkRaw != "" {
		think = Markdown(r, thinkRaw)
	}
	main = Markdown(r, mainRaw)
	return think, main, hasThink
}
