package ports

import (
	"context"

	"github.com/aretw0/vitrine/pkg/domain"
)

// ReportSource provides recorded reports for replay.
type ReportSource interface {
	// Load retrieves a recording.
	// Returns domain.ErrReportNotFound if the report does not exist.
	Load(ctx context.Context, id domain.ReportID) (*domain.Recording, error)

	// List returns the summaries of every stored recording, oldest first.
	List(ctx context.Context) ([]domain.ReportSummary, error)
}

// ReportSink stores finished recordings.
type ReportSink interface {
	Save(ctx context.Context, rec *domain.Recording) error
}

// ReportArchive is a read-write store of recordings.
type ReportArchive interface {
	ReportSource
	ReportSink

	// Delete removes a recording. Deleting a missing report is not an error.
	Delete(ctx context.Context, id domain.ReportID) error
}
