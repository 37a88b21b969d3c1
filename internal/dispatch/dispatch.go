// Package dispatch routes inbound envelopes to their handlers.
package dispatch

import (
	"context"

	"github.com/aretw0/vitrine/pkg/domain"
)

// Handlers receives each inbound envelope kind. Exactly one method runs per envelope.
type Handlers interface {
	HandleInitialize(ctx context.Context, msg domain.Initialize) error
	HandleSessionStateChanged(ctx context.Context, msg domain.SessionStateChanged) error
	HandleSessionEvent(ctx context.Context, msg domain.SessionEvent) error
	HandleNewReport(ctx context.Context, msg domain.NewReport) error
	HandleDelta(ctx context.Context, msg domain.Delta) error
	HandleReportFinished(ctx context.Context, msg domain.ReportFinished) error
	HandleUploadReportProgress(ctx context.Context, msg domain.UploadReportProgress) error
	HandleReportUploaded(ctx context.Context, msg domain.ReportUploaded) error
}

// Dispatch invokes the handler matching msg.
// Envelopes outside the known set fail with *domain.ProtocolError.
func Dispatch(ctx context.Context, h Handlers, msg domain.Inbound) error {
	switch m := msg.(type) {
	case domain.Initialize:
		return h.HandleInitialize(ctx, m)
	case domain.SessionStateChanged:
		return h.HandleSessionStateChanged(ctx, m)
	case domain.SessionEvent:
		return h.HandleSessionEvent(ctx, m)
	case domain.NewReport:
		return h.HandleNewReport(ctx, m)
	case domain.Delta:
		return h.HandleDelta(ctx, m)
	case domain.ReportFinished:
		return h.HandleReportFinished(ctx, m)
	case domain.UploadReportProgress:
		return h.HandleUploadReportProgress(ctx, m)
	case domain.ReportUploaded:
		return h.HandleReportUploaded(ctx, m)
	case nil:
		return &domain.ProtocolError{Tag: ""}
	default:
		return &domain.ProtocolError{Tag: msg.Tag()}
	}
}
