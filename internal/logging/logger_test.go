package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(slog.LevelInfo, WithOutput(&buf))
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("Dropping request", "error", errors.New("not connected"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=\"Dropping request\"")
	assert.Contains(t, out, "err=\"not connected\"")
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(slog.LevelDebug, WithOutput(&buf), WithFormat(FormatJSON))
	require.NoError(t, err)

	logger.Debug("Swept stale elements", "swept", 2, "error", "boom")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "Swept stale elements", rec["msg"])
	assert.Equal(t, float64(2), rec["swept"])
	assert.Equal(t, "boom", rec["err"])
	assert.NotContains(t, rec, "error")
}

func TestNew_UnknownFormat(t *testing.T) {
	_, err := New(slog.LevelInfo, WithFormat("xml"))
	assert.ErrorContains(t, err, "unknown log format")
}

func TestNewNop(t *testing.T) {
	assert.False(t, NewNop().Enabled(t.Context(), slog.LevelError))
}
