// Package logging builds the slog loggers shared by vitrine's components.
//
// Stdout belongs to the terminal view of `vitrine watch` and to the MCP
// stdio transport, so logs go to stderr unless another writer is given.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

type options struct {
	out    io.Writer
	format string
}

// Option configures New.
type Option func(*options)

// WithOutput sends records to w instead of stderr.
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		o.out = w
	}
}

// WithFormat selects FormatText or FormatJSON. An empty format means text.
func WithFormat(format string) Option {
	return func(o *options) {
		o.format = format
	}
}

// New creates the application logger. Attributes named "error" are
// renamed to "err" so call sites can use either.
func New(level slog.Level, opts ...Option) (*slog.Logger, error) {
	o := options{out: os.Stderr, format: FormatText}
	for _, opt := range opts {
		opt(&o)
	}

	handlerOpts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: renameError,
	}
	switch o.format {
	case FormatText, "":
		return slog.New(slog.NewTextHandler(o.out, handlerOpts)), nil
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(o.out, handlerOpts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", o.format)
	}
}

func renameError(_ []string, a slog.Attr) slog.Attr {
	if a.Key == "error" {
		a.Key = "err"
	}
	return a
}

// NewNop returns a logger that drops everything. Components default to it.
func NewNop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
