package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/vitrine/pkg/adapters/redis"
	"github.com/aretw0/vitrine/pkg/domain"
	"github.com/aretw0/vitrine/pkg/ports/tests"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisArchive_Contract(t *testing.T) {
	_, client := newClient(t)
	tests.ReportArchiveContract(t, redis.NewFromClient(client))
}

func TestRedisArchive_TTL_Expiration(t *testing.T) {
	mr, client := newClient(t)
	archive := redis.NewFromClient(client, redis.WithTTL(time.Second))
	ctx := context.Background()

	require.NoError(t, archive.Save(ctx, tests.SampleRecording("ttl")))

	summaries, err := archive.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	mr.FastForward(2 * time.Second)

	_, err = archive.Load(ctx, "ttl")
	assert.ErrorIs(t, err, domain.ErrReportNotFound)

	// The index entry may outlive the key; List skips it either way.
	summaries, err = archive.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestRedisArchive_Prefix(t *testing.T) {
	mr, client := newClient(t)
	archive := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	require.NoError(t, archive.Save(ctx, tests.SampleRecording("mine")))

	assert.True(t, mr.Exists("custom:app:mine"), "recording key uses the prefix")
	assert.True(t, mr.Exists("custom:app:index"), "index key uses the prefix")
	assert.False(t, mr.Exists(redis.DefaultPrefix+"mine"))

	summaries, err := archive.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, domain.ReportID("mine"), summaries[0].ReportID)
	assert.Equal(t, 5, summaries[0].Envelopes)
}
