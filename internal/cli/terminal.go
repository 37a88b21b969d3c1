package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/vitrine/internal/presentation/tui"
	"github.com/aretw0/vitrine/pkg/domain"
	"github.com/aretw0/vitrine/pkg/ports"
	"golang.org/x/term"
)

const clearScreen = "\x1b[H\x1b[2J"

// Display writes views to an output. On a terminal every view redraws the
// screen through glamour; otherwise plain markdown is appended.
type Display struct {
	out      io.Writer
	renderer *tui.Renderer
}

// NewDisplay detects whether out is a terminal and sizes the renderer.
func NewDisplay(out io.Writer) (*Display, error) {
	d := &Display{out: out}
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return d, nil
	}

	width := 0
	if w, _, err := term.GetSize(int(f.Fd())); err == nil {
		width = w
	}
	r, err := tui.NewRenderer(width)
	if err != nil {
		return nil, err
	}
	d.renderer = r
	return d, nil
}

// Show writes one view.
func (d *Display) Show(v domain.View) error {
	if d.renderer == nil {
		_, err := fmt.Fprintf(d.out, "%s\n\n%s\n", tui.StatusLine(v), tui.Markdown(v))
		return err
	}
	s, err := d.renderer.Render(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(d.out, clearScreen+s)
	return err
}

// Follow shows every view published by ctrl until ctx ends.
func (d *Display) Follow(ctx context.Context, ctrl ports.Controller) error {
	views, err := ctrl.Subscribe(ctx)
	if err != nil {
		return err
	}
	for v := range views {
		if err := d.Show(v); err != nil {
			return err
		}
	}
	return nil
}
