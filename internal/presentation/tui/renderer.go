package tui

import (
	"github.com/aretw0/vitrine/pkg/domain"
	"github.com/charmbracelet/glamour"
)

// Renderer turns views into terminal output.
type Renderer struct {
	md *glamour.TermRenderer
}

// NewRenderer creates a renderer wrapping at width columns (0 keeps
// glamour's default).
func NewRenderer(width int) (*Renderer, error) {
	opts := []glamour.TermRendererOption{
		glamour.WithAutoStyle(), // Automatically detect light/dark background
	}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, err
	}
	return &Renderer{md: r}, nil
}

// Render draws the status line followed by the document.
func (r *Renderer) Render(v domain.View) (string, error) {
	body, err := r.md.Render(Markdown(v))
	if err != nil {
		return "", err
	}
	return StatusLine(v) + "\n" + body, nil
}
