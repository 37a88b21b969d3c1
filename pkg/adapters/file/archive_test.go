package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/vitrine/pkg/adapters/file"
	"github.com/aretw0/vitrine/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileArchive_Contract(t *testing.T) {
	tests.ReportArchiveContract(t, file.New(t.TempDir()))
}

func TestFileArchive_DefaultPath(t *testing.T) {
	assert.Equal(t, filepath.Join(".vitrine", "reports"), file.New("").BasePath)
}

func TestFileArchive_NoTempLeftovers(t *testing.T) {
	dir := t.TempDir()
	archive := file.New(dir)
	ctx := context.Background()

	require.NoError(t, archive.Save(ctx, tests.SampleRecording("r1")))
	require.NoError(t, archive.Save(ctx, tests.SampleRecording("r1")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "r1.json", entries[0].Name())
}

func TestFileArchive_RejectsPathIDs(t *testing.T) {
	archive := file.New(t.TempDir())
	ctx := context.Background()

	assert.Error(t, archive.Save(ctx, tests.SampleRecording("../escape")))
	assert.Error(t, archive.Save(ctx, tests.SampleRecording("")))
}

func TestFileArchive_ListSkipsCorrupt(t *testing.T) {
	dir := t.TempDir()
	archive := file.New(dir)
	ctx := context.Background()

	require.NoError(t, archive.Save(ctx, tests.SampleRecording("good")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{not json"), 0644))

	summaries, err := archive.List(ctx)
	assert.Error(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "good", string(summaries[0].ReportID))
}

func TestFileArchive_ListMissingDir(t *testing.T) {
	archive := file.New(filepath.Join(t.TempDir(), "nope"))
	summaries, err := archive.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, summaries)
}
