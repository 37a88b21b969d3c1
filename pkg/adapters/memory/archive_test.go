package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/vitrine/pkg/adapters/memory"
	"github.com/aretw0/vitrine/pkg/domain"
	"github.com/aretw0/vitrine/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryArchive_Contract(t *testing.T) {
	tests.ReportArchiveContract(t, memory.NewArchive())
}

func TestMemoryArchive_Isolation(t *testing.T) {
	ctx := context.Background()
	archive := memory.NewArchive()
	rec := tests.SampleRecording("iso")

	require.NoError(t, archive.Save(ctx, rec))
	rec.Name = "mutated"
	rec.Envelopes[0] = domain.ReportFinished{}

	loaded, err := archive.Load(ctx, "iso")
	require.NoError(t, err)
	assert.Equal(t, "demo", loaded.Name)
	assert.IsType(t, domain.NewReport{}, loaded.Envelopes[0])
}

func TestMemoryArchive_ListOrder(t *testing.T) {
	ctx := context.Background()
	archive := memory.NewArchive()

	late := tests.SampleRecording("late")
	late.RecordedAt = late.RecordedAt.Add(time.Hour)
	require.NoError(t, archive.Save(ctx, late))
	require.NoError(t, archive.Save(ctx, tests.SampleRecording("b")))
	require.NoError(t, archive.Save(ctx, tests.SampleRecording("a")))

	summaries, err := archive.List(ctx)
	require.NoError(t, err)

	var ids []domain.ReportID
	for _, s := range summaries {
		ids = append(ids, s.ReportID)
	}
	assert.Equal(t, []domain.ReportID{"a", "b", "late"}, ids)
}
