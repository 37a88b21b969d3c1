package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/aretw0/vitrine/pkg/domain"
	"github.com/aretw0/vitrine/pkg/ports"
	"github.com/aretw0/vitrine/pkg/session"
)

// ListReports prints the recorded reports of src as a table.
func ListReports(ctx context.Context, src ports.ReportSource, w io.Writer) error {
	summaries, err := src.List(ctx)
	if err != nil && len(summaries) == 0 {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tRECORDED\tENVELOPES")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", s.ReportID, s.Name, s.RecordedAt.Format(time.RFC3339), s.Envelopes)
	}
	if flushErr := tw.Flush(); flushErr != nil {
		return flushErr
	}
	// Unreadable entries do not hide the readable ones.
	return err
}

// InspectReport prints one recording: its envelopes as JSON, or a summary
// with the number of envelopes per tag.
func InspectReport(ctx context.Context, src ports.ReportSource, id domain.ReportID, w io.Writer, asJSON bool) error {
	rec, err := src.Load(ctx, id)
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}

	fmt.Fprintf(w, "Report:   %s\n", rec.ReportID)
	fmt.Fprintf(w, "Name:     %s\n", rec.Name)
	fmt.Fprintf(w, "Command:  %s\n", rec.CommandLine)
	fmt.Fprintf(w, "Recorded: %s\n", rec.RecordedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Envelopes (%d):\n", len(rec.Envelopes))

	var tags []string
	counts := map[string]int{}
	for _, msg := range rec.Envelopes {
		if counts[msg.Tag()] == 0 {
			tags = append(tags, msg.Tag())
		}
		counts[msg.Tag()]++
	}
	for _, tag := range tags {
		fmt.Fprintf(w, "  %-22s %d\n", tag, counts[tag])
	}
	return nil
}

// RemoveReport deletes a recording while holding its archive lock.
func RemoveReport(ctx context.Context, m *session.Manager, id domain.ReportID) error {
	if _, err := m.LoadRecording(ctx, id); err != nil {
		return err
	}
	return m.DeleteRecording(ctx, id)
}
