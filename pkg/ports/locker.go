package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker coordinates archive writes across replicas recording the same report.
type DistributedLocker interface {
	// Lock blocks until the lock for key is held or ctx is done.
	// The returned UnlockFunc MUST be called; the lock expires after ttl otherwise.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
