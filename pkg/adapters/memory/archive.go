package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/aretw0/vitrine/pkg/domain"
)

// Archive implements ports.ReportArchive in memory.
// Safe for concurrent use.
type Archive struct {
	data map[domain.ReportID]*domain.Recording
	mu   sync.RWMutex
}

// NewArchive creates an empty in-memory archive.
func NewArchive() *Archive {
	return &Archive{
		data: make(map[domain.ReportID]*domain.Recording),
	}
}

// Save stores a copy of rec, replacing any recording with the same id.
func (a *Archive) Save(ctx context.Context, rec *domain.Recording) error {
	copied := clone(rec)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.data[rec.ReportID] = copied
	return nil
}

// Load returns a copy so callers cannot mutate the archive through the pointer.
func (a *Archive) Load(ctx context.Context, id domain.ReportID) (*domain.Recording, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	rec, ok := a.data[id]
	if !ok {
		return nil, domain.ErrReportNotFound
	}
	return clone(rec), nil
}

// Delete removes the recording.
func (a *Archive) Delete(ctx context.Context, id domain.ReportID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.data, id)
	return nil
}

// List returns every summary, oldest first.
func (a *Archive) List(ctx context.Context) ([]domain.ReportSummary, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	summaries := make([]domain.ReportSummary, 0, len(a.data))
	for _, rec := range a.data {
		summaries = append(summaries, rec.Summary())
	}
	SortSummaries(summaries)
	return summaries, nil
}

// SortSummaries orders summaries by recording time, then by id.
func SortSummaries(summaries []domain.ReportSummary) {
	slices.SortFunc(summaries, func(a, b domain.ReportSummary) int {
		if c := a.RecordedAt.Compare(b.RecordedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ReportID, b.ReportID)
	})
}

// Envelopes are immutable values once recorded, so a fresh slice is enough.
func clone(rec *domain.Recording) *domain.Recording {
	out := *rec
	out.Envelopes = slices.Clone(rec.Envelopes)
	out.Sealed = slices.Clone(rec.Sealed)
	return &out
}
