package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/vitrine/internal/logging"
	"github.com/aretw0/vitrine/pkg/domain"
	"github.com/aretw0/vitrine/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed archive lock is held.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager keeps the registry of running sessions and serializes access to
// the report archive. Lock entries are reference counted and dropped when unused.
type Manager struct {
	archive ports.ReportArchive

	mu       sync.Mutex
	locks    map[string]*lockEntry
	sessions map[string]ports.Controller

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager over archive. A nil archive disables recording operations.
func NewManager(archive ports.ReportArchive, opts ...Option) *Manager {
	m := &Manager{
		archive:  archive,
		locks:    make(map[string]*lockEntry),
		sessions: make(map[string]ports.Controller),
		lockTTL:  DefaultLockTTL,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds a running session. A session with the same id is replaced.
func (m *Manager) Register(c ports.Controller) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[c.ID()] = c
}

// Unregister removes a session from the registry.
func (m *Manager) Unregister(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Get returns the running session with the given id.
func (m *Manager) Get(id string) (ports.Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return c, nil
}

// Sessions returns the ids of every running session, sorted.
func (m *Manager) Sessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

var errNoArchive = errors.New("no report archive configured")

// SaveRecording stores rec while holding the lock for its report.
func (m *Manager) SaveRecording(ctx context.Context, rec *domain.Recording) error {
	if m.archive == nil {
		return errNoArchive
	}
	return m.WithLock(ctx, string(rec.ReportID), func(ctx context.Context) error {
		return m.archive.Save(ctx, rec)
	})
}

// LoadRecording retrieves a recording from the archive.
func (m *Manager) LoadRecording(ctx context.Context, id domain.ReportID) (*domain.Recording, error) {
	if m.archive == nil {
		return nil, errNoArchive
	}
	var rec *domain.Recording
	err := m.WithLock(ctx, string(id), func(ctx context.Context) error {
		var err error
		rec, err = m.archive.Load(ctx, id)
		return err
	})
	return rec, err
}

// DeleteRecording removes a recording from the archive.
func (m *Manager) DeleteRecording(ctx context.Context, id domain.ReportID) error {
	if m.archive == nil {
		return errNoArchive
	}
	return m.WithLock(ctx, string(id), func(ctx context.Context) error {
		return m.archive.Delete(ctx, id)
	})
}

// Recordings lists the archive.
func (m *Manager) Recordings(ctx context.Context) ([]domain.ReportSummary, error) {
	if m.archive == nil {
		return nil, errNoArchive
	}
	return m.archive.List(ctx)
}

// Archive returns the underlying archive.
func (m *Manager) Archive() ports.ReportArchive {
	return m.archive
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(key) after unlocking.
func (m *Manager) acquire(key string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		entry = &lockEntry{}
		m.locks[key] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, key)
	}
}

// WithLock executes fn while holding the lock for key.
func (m *Manager) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	entry := m.acquire(key)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(key)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, key, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"key", key,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
