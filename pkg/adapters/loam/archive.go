// Package loam keeps recorded reports as markdown documents in a Loam
// repository: frontmatter carries the summary, a fenced JSON block carries
// the envelopes. The files stay readable and diffable next to the script.
package loam

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"
	"github.com/aretw0/vitrine/pkg/adapters/memory"
	"github.com/aretw0/vitrine/pkg/domain"
	"gopkg.in/yaml.v3"
)

const (
	fenceOpen  = "```json\n"
	fenceClose = "\n```"
)

// Archive implements ports.ReportArchive on top of a Loam repository.
type Archive struct {
	Dir   string
	repo  core.Repository
	typed *loam.TypedRepository[ReportMetadata]
}

// Open initializes a Loam repository in dir and wraps it.
// Versioning is off unless an option turns it back on.
func Open(dir string, opts ...loam.Option) (*Archive, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve archive path: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to ensure archive directory: %w", err)
	}
	repo, err := loam.Init(abs, append([]loam.Option{loam.WithVersioning(false)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to init loam repository: %w", err)
	}
	return New(repo, abs), nil
}

// New wraps an initialized repository rooted at dir.
func New(repo core.Repository, dir string) *Archive {
	return &Archive{
		Dir:   dir,
		repo:  repo,
		typed: loam.NewTypedRepository[ReportMetadata](repo),
	}
}

// Save writes rec as <id>.md.
func (a *Archive) Save(ctx context.Context, rec *domain.Recording) error {
	if rec.ReportID == "" || strings.ContainsAny(string(rec.ReportID), `/\`) {
		return fmt.Errorf("invalid report id %q", rec.ReportID)
	}
	content, err := render(rec)
	if err != nil {
		return err
	}
	doc := core.Document{ID: string(rec.ReportID) + ".md", Content: content}
	if err := a.repo.Save(ctx, doc); err != nil {
		return fmt.Errorf("loam save failed for %s: %w", rec.ReportID, err)
	}
	return nil
}

// Load finds the document for id and decodes its envelope block.
func (a *Archive) Load(ctx context.Context, id domain.ReportID) (*domain.Recording, error) {
	docs, err := a.typed.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}
	for _, doc := range docs {
		if reportID(doc.ID, doc.Data) != id {
			continue
		}
		rec, err := parseBody(doc.Content)
		if err != nil {
			return nil, fmt.Errorf("report %s: %w", id, err)
		}
		return rec, nil
	}
	return nil, domain.ErrReportNotFound
}

// List summarizes documents from their frontmatter alone.
func (a *Archive) List(ctx context.Context) ([]domain.ReportSummary, error) {
	docs, err := a.typed.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	summaries := make([]domain.ReportSummary, 0, len(docs))
	for _, doc := range docs {
		id := reportID(doc.ID, doc.Data)
		if id == "" {
			continue
		}
		summaries = append(summaries, doc.Data.Summary(id))
	}
	memory.SortSummaries(summaries)
	return summaries, nil
}

// Delete removes the report file. Loam has no delete operation, so the
// file is removed from the repository directory directly.
func (a *Archive) Delete(ctx context.Context, id domain.ReportID) error {
	if id == "" || strings.ContainsAny(string(id), `/\`) {
		return fmt.Errorf("invalid report id %q", id)
	}
	err := os.Remove(filepath.Join(a.Dir, string(id)+".md"))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete report file: %w", err)
	}
	return nil
}

func reportID(docID string, meta ReportMetadata) domain.ReportID {
	if meta.ID != "" {
		return domain.ReportID(meta.ID)
	}
	return domain.ReportID(strings.TrimSuffix(filepath.ToSlash(docID), filepath.Ext(docID)))
}

func render(rec *domain.Recording) (string, error) {
	front, err := yaml.Marshal(metadataFor(rec))
	if err != nil {
		return "", fmt.Errorf("failed to marshal frontmatter: %w", err)
	}
	body, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal recording: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(front)
	b.WriteString("---\n\n")
	title := rec.Name
	if title == "" {
		title = string(rec.ReportID)
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if rec.CommandLine != "" {
		fmt.Fprintf(&b, "`%s`\n\n", rec.CommandLine)
	}
	b.WriteString(fenceOpen)
	b.Write(body)
	b.WriteString(fenceClose)
	b.WriteString("\n")
	return b.String(), nil
}

func parseBody(content string) (*domain.Recording, error) {
	start := strings.Index(content, fenceOpen)
	if start < 0 {
		return nil, fmt.Errorf("no envelope block")
	}
	rest := content[start+len(fenceOpen):]
	end := strings.LastIndex(rest, fenceClose)
	if end < 0 {
		return nil, fmt.Errorf("unterminated envelope block")
	}

	var rec domain.Recording
	dec := json.NewDecoder(bytes.NewReader([]byte(rest[:end])))
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recording: %w", err)
	}
	return &rec, nil
}

func metadataFor(rec *domain.Recording) ReportMetadata {
	return ReportMetadata{
		ID:          string(rec.ReportID),
		Name:        rec.Name,
		CommandLine: rec.CommandLine,
		RecordedAt:  rec.RecordedAt.UTC().Format(time.RFC3339Nano),
		Envelopes:   len(rec.Envelopes),
	}
}
