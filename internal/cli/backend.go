package cli

import (
	"fmt"
	"log/slog"

	"github.com/aretw0/vitrine/internal/config"
	"github.com/aretw0/vitrine/pkg/adapters/file"
	loamAdapter "github.com/aretw0/vitrine/pkg/adapters/loam"
	"github.com/aretw0/vitrine/pkg/adapters/memory"
	redisAdapter "github.com/aretw0/vitrine/pkg/adapters/redis"
	"github.com/aretw0/vitrine/pkg/persistence/middleware"
	"github.com/aretw0/vitrine/pkg/ports"
	"github.com/aretw0/vitrine/pkg/session"
)

// Backend is the report archive selected by the configuration, plus the
// distributed locker when the backend provides one.
type Backend struct {
	Archive ports.ReportArchive
	Locker  ports.DistributedLocker
	close   func() error
}

// OpenBackend builds the archive named by cfg.Archive.Backend, wrapped
// with redaction and encryption when they are configured.
func OpenBackend(cfg config.Config) (*Backend, error) {
	b, err := openBackend(cfg)
	if err != nil {
		return nil, err
	}

	var mws []middleware.Middleware
	if len(cfg.Archive.Redact) > 0 {
		mw, err := middleware.NewRedactionMiddleware(cfg.Archive.Redact)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	key, err := cfg.Archive.Key()
	if err != nil {
		return nil, err
	}
	if key != nil {
		mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	b.Archive = middleware.Chain(b.Archive, mws...)
	return b, nil
}

func openBackend(cfg config.Config) (*Backend, error) {
	switch cfg.Archive.Backend {
	case config.BackendMemory:
		return &Backend{Archive: memory.NewArchive()}, nil

	case config.BackendFile:
		return &Backend{Archive: file.New(cfg.Archive.Path)}, nil

	case config.BackendLoam:
		a, err := loamAdapter.Open(cfg.Archive.Path)
		if err != nil {
			return nil, err
		}
		return &Backend{Archive: a}, nil

	case config.BackendRedis:
		opts := []redisAdapter.Option{redisAdapter.WithPrefix(cfg.Redis.Prefix)}
		if cfg.Redis.TTL > 0 {
			opts = append(opts, redisAdapter.WithTTL(cfg.Redis.TTL))
		}
		a := redisAdapter.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, opts...)
		return &Backend{
			Archive: a,
			Locker:  redisAdapter.NewLocker(a.Client(), cfg.Redis.Prefix),
			close:   a.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown archive backend %q", cfg.Archive.Backend)
}

// Manager creates a session manager over the backend.
func (b *Backend) Manager(logger *slog.Logger) *session.Manager {
	opts := []session.Option{session.WithLogger(logger)}
	if b.Locker != nil {
		opts = append(opts, session.WithLocker(b.Locker))
	}
	return session.NewManager(b.Archive, opts...)
}

// Close releases the backend connection, if any.
func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	if err := b.close(); err != nil {
		return fmt.Errorf("failed to close archive: %w", err)
	}
	return nil
}
