package tests

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/vitrine/pkg/domain"
	"github.com/aretw0/vitrine/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SampleRecording builds a small but complete recording for id.
func SampleRecording(id domain.ReportID) *domain.Recording {
	return &domain.Recording{
		ReportID:    id,
		Name:        "demo",
		CommandLine: "streamlit run demo.py",
		RecordedAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Envelopes: []domain.Inbound{
			domain.NewReport{ID: id, Name: "demo", CommandLine: []string{"streamlit", "run", "demo.py"}},
			domain.Delta{ID: 0, Body: domain.NewElement{Payload: domain.Text{Body: "# Hello", Format: domain.FormatMarkdown}}},
			domain.Delta{ID: 1, Body: domain.NewElement{Payload: domain.DataFrame{Columns: []domain.Column{
				{Name: "label", Type: domain.ColumnString, Values: []any{"a", "b"}},
			}}}},
			domain.Delta{ID: 1, Body: domain.AddRows{Rows: domain.NamedDataSet{Data: domain.DataFrame{Columns: []domain.Column{
				{Name: "label", Type: domain.ColumnString, Values: []any{"c"}},
			}}}}},
			domain.ReportFinished{},
		},
	}
}

// ReportArchiveContract verifies that an archive honours the ports.ReportArchive contract.
func ReportArchiveContract(t *testing.T, archive ports.ReportArchive) {
	t.Helper()
	ctx := context.Background()
	prefix := "contract-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		id := domain.ReportID(prefix + "-save")
		rec := SampleRecording(id)

		require.NoError(t, archive.Save(ctx, rec), "Save should not return error")

		loaded, err := archive.Load(ctx, id)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, rec.ReportID, loaded.ReportID)
		assert.Equal(t, rec.Name, loaded.Name)
		assert.Equal(t, rec.CommandLine, loaded.CommandLine)
		assert.True(t, rec.RecordedAt.Equal(loaded.RecordedAt))
		assert.Equal(t, rec.Envelopes, loaded.Envelopes)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := archive.Load(ctx, domain.ReportID(prefix+"-missing"))
		assert.ErrorIs(t, err, domain.ErrReportNotFound)
	})

	t.Run("Overwrite", func(t *testing.T) {
		id := domain.ReportID(prefix + "-overwrite")
		require.NoError(t, archive.Save(ctx, SampleRecording(id)))

		second := SampleRecording(id)
		second.Name = "second"
		second.Envelopes = second.Envelopes[:1]
		require.NoError(t, archive.Save(ctx, second))

		loaded, err := archive.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "second", loaded.Name)
		assert.Len(t, loaded.Envelopes, 1)
	})

	t.Run("Delete", func(t *testing.T) {
		id := domain.ReportID(prefix + "-delete")
		require.NoError(t, archive.Save(ctx, SampleRecording(id)))

		require.NoError(t, archive.Delete(ctx, id), "Delete should not return error")

		_, err := archive.Load(ctx, id)
		assert.ErrorIs(t, err, domain.ErrReportNotFound, "Load after Delete should return ErrReportNotFound")

		assert.NoError(t, archive.Delete(ctx, id), "deleting twice is not an error")
	})

	t.Run("List", func(t *testing.T) {
		id1 := domain.ReportID(prefix + "-1")
		id2 := domain.ReportID(prefix + "-2")
		require.NoError(t, archive.Save(ctx, SampleRecording(id1)))
		require.NoError(t, archive.Save(ctx, SampleRecording(id2)))
		defer func() {
			_ = archive.Delete(ctx, id1)
			_ = archive.Delete(ctx, id2)
		}()

		summaries, err := archive.List(ctx)
		require.NoError(t, err)

		found := map[domain.ReportID]domain.ReportSummary{}
		for _, s := range summaries {
			found[s.ReportID] = s
		}
		require.Contains(t, found, id1)
		require.Contains(t, found, id2)
		assert.Equal(t, "demo", found[id1].Name)
		assert.Equal(t, 5, found[id1].Envelopes)
	})
}
