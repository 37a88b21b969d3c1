package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/vitrine/pkg/domain"
	"github.com/aretw0/vitrine/pkg/ports"
)

// Mask replaces every redacted match.
const Mask = "***"

type redactMiddleware struct {
	next     ports.ReportArchive
	patterns []*regexp.Regexp
}

// NewRedactionMiddleware masks text matching any of patterns before a
// recording is stored: text bodies, exception messages and stacks, and
// string cells of tabular data. Loads are untouched.
func NewRedactionMiddleware(patterns []string) (Middleware, error) {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		compiled[i] = re
	}
	return func(next ports.ReportArchive) ports.ReportArchive {
		return &redactMiddleware{next: next, patterns: compiled}
	}, nil
}

func (m *redactMiddleware) Save(ctx context.Context, rec *domain.Recording) error {
	// Envelopes are shared with the live session; rebuild instead of mutating.
	cloned := *rec
	cloned.CommandLine = m.mask(rec.CommandLine)
	cloned.Envelopes = make([]domain.Inbound, len(rec.Envelopes))
	for i, env := range rec.Envelopes {
		cloned.Envelopes[i] = m.envelope(env)
	}
	return m.next.Save(ctx, &cloned)
}

func (m *redactMiddleware) Load(ctx context.Context, id domain.ReportID) (*domain.Recording, error) {
	return m.next.Load(ctx, id)
}

func (m *redactMiddleware) Delete(ctx context.Context, id domain.ReportID) error {
	return m.next.Delete(ctx, id)
}

func (m *redactMiddleware) List(ctx context.Context) ([]domain.ReportSummary, error) {
	return m.next.List(ctx)
}

func (m *redactMiddleware) mask(s string) string {
	for _, p := range m.patterns {
		s = p.ReplaceAllString(s, Mask)
	}
	return s
}

func (m *redactMiddleware) masks(lines []string) []string {
	if lines == nil {
		return nil
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = m.mask(l)
	}
	return out
}

func (m *redactMiddleware) envelope(env domain.Inbound) domain.Inbound {
	switch v := env.(type) {
	case domain.Delta:
		switch body := v.Body.(type) {
		case domain.NewElement:
			v.Body = domain.NewElement{Payload: m.payload(body.Payload)}
		case domain.AddRows:
			body.Rows.Data = m.frame(body.Rows.Data)
			v.Body = body
		}
		return v
	case domain.SessionEvent:
		if v.Exception != nil {
			exc := *v.Exception
			exc.Message = m.mask(exc.Message)
			exc.StackTrace = m.masks(exc.StackTrace)
			v.Exception = &exc
		}
		return v
	}
	return env
}

func (m *redactMiddleware) payload(p domain.Payload) domain.Payload {
	switch v := p.(type) {
	case domain.Text:
		v.Body = m.mask(v.Body)
		return v
	case domain.Exception:
		v.Message = m.mask(v.Message)
		v.StackTrace = m.masks(v.StackTrace)
		return v
	}
	if df, ok := domain.Rows(p); ok {
		out, _ := domain.WithRows(p, m.frame(df))
		return out
	}
	return p
}

func (m *redactMiddleware) frame(df domain.DataFrame) domain.DataFrame {
	cols := make([]domain.Column, len(df.Columns))
	for i, c := range df.Columns {
		cols[i] = c
		if c.Type != domain.ColumnString {
			continue
		}
		cols[i].Values = make([]any, len(c.Values))
		for j, v := range c.Values {
			if s, ok := v.(string); ok {
				v = m.mask(s)
			}
			cols[i].Values[j] = v
		}
	}
	return domain.DataFrame{Columns: cols}
}
