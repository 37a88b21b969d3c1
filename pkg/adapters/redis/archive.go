// Package redis stores recorded reports in Redis and coordinates
// recorder replicas with a Redis lock.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/vitrine/pkg/adapters/memory"
	"github.com/aretw0/vitrine/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key the archive writes.
const DefaultPrefix = "vitrine:report:"

// Score given to index entries of recordings that never expire (2100-01-01).
const noExpiryScore = 4102444800

// Archive implements ports.ReportArchive using Redis.
// Each recording is a JSON string; a sorted set indexes ids by expiry.
type Archive struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Archive)

// WithTTL sets the expiration for recordings.
func WithTTL(ttl time.Duration) Option {
	return func(a *Archive) {
		a.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(a *Archive) {
		a.prefix = prefix
	}
}

// New connects to Redis and creates an archive.
func New(address, password string, db int, opts ...Option) *Archive {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates an archive on an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Archive {
	a := &Archive{
		client: client,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Client exposes the underlying connection so a Locker can share it.
func (a *Archive) Client() *backend.Client {
	return a.client
}

func (a *Archive) key(id domain.ReportID) string {
	return a.prefix + string(id)
}

func (a *Archive) indexKey() string {
	return a.prefix + "index"
}

// Save writes the recording and indexes it in one pipeline.
func (a *Archive) Save(ctx context.Context, rec *domain.Recording) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal recording: %w", err)
	}

	score := float64(time.Now().Add(a.ttl).Unix())
	if a.ttl == 0 {
		score = noExpiryScore
	}

	pipe := a.client.Pipeline()
	pipe.Set(ctx, a.key(rec.ReportID), data, a.ttl)
	pipe.ZAdd(ctx, a.indexKey(), backend.Z{Score: score, Member: string(rec.ReportID)})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load retrieves a recording.
func (a *Archive) Load(ctx context.Context, id domain.ReportID) (*domain.Recording, error) {
	val, err := a.client.Get(ctx, a.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrReportNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var rec domain.Recording
	if err := json.Unmarshal(val, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report %s: %w", id, err)
	}
	return &rec, nil
}

// Delete removes the recording and its index entry.
func (a *Archive) Delete(ctx context.Context, id domain.ReportID) error {
	pipe := a.client.Pipeline()
	pipe.Del(ctx, a.key(id))
	pipe.ZRem(ctx, a.indexKey(), string(id))

	_, err := pipe.Exec(ctx)
	return err
}

// summaryJSON reads the index fields of a stored recording without
// decoding its envelopes.
type summaryJSON struct {
	ReportID   domain.ReportID   `json:"report_id"`
	Name       string            `json:"name"`
	RecordedAt time.Time         `json:"recorded_at"`
	Envelopes  []json.RawMessage `json:"envelopes"`
}

// List prunes expired index entries, then summarizes what is left.
func (a *Archive) List(ctx context.Context) ([]domain.ReportSummary, error) {
	now := float64(time.Now().Unix())
	if err := a.client.ZRemRangeByScore(ctx, a.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune expired reports: %w", err)
	}

	ids, err := a.client.ZRange(ctx, a.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	if len(ids) == 0 {
		return []domain.ReportSummary{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = a.key(domain.ReportID(id))
	}
	vals, err := a.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read reports: %w", err)
	}

	summaries := make([]domain.ReportSummary, 0, len(vals))
	for i, v := range vals {
		// Expired before the index caught up.
		s, ok := v.(string)
		if !ok {
			continue
		}
		var sj summaryJSON
		if err := json.Unmarshal([]byte(s), &sj); err != nil {
			return nil, fmt.Errorf("failed to unmarshal report %s: %w", ids[i], err)
		}
		summaries = append(summaries, domain.ReportSummary{
			ReportID:   sj.ReportID,
			Name:       sj.Name,
			RecordedAt: sj.RecordedAt,
			Envelopes:  len(sj.Envelopes),
		})
	}
	memory.SortSummaries(summaries)
	return summaries, nil
}

// Close closes the redis client.
func (a *Archive) Close() error {
	return a.client.Close()
}
