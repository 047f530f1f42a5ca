// Package lease provides single-owner leases used to serialize batch
// execution of a run across processes.
package lease

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotAcquired indicates the lease is currently held by another owner.
	ErrNotAcquired = errors.New("lease not acquired")

	// ErrLeaseLost indicates the lease expired or was taken over since it
	// was acquired.
	ErrLeaseLost = errors.New("lease lost")
)

// Lease is a held lease. Renew extends the TTL and fails with
// ErrLeaseLost when the holder no longer owns the key.
type Lease interface {
	Renew(ctx context.Context, ttl time.Duration) error
	Release(ctx context.Context) error
}

// Manager acquires leases by key. Acquire fails with ErrNotAcquired when
// the key is already held.
type Manager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}
