package lease

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LocalManager implements Manager in process memory. It is used by tests
// and single-process deployments; TTLs are enforced lazily on Acquire.
type LocalManager struct {
	mu     sync.Mutex
	owners map[string]localEntry
}

type localEntry struct {
	owner     string
	expiresAt time.Time
}

func NewLocalManager() *LocalManager {
	return &LocalManager{owners: make(map[string]localEntry)}
}

func (m *LocalManager) Acquire(_ context.Context, key string, ttl time.Duration) (Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()

	entry, held := m.owners[key]
	if held && entry.expiresAt.After(now) {
		return nil, ErrNotAcquired
	}

	owner := uuid.New().String()
	m.owners[key] = localEntry{owner: owner, expiresAt: now.Add(ttl)}

	return &localLease{manager: m, key: key, owner: owner}, nil
}

type localLease struct {
	manager *LocalManager
	key     string
	owner   string
}

func (l *localLease) Renew(_ context.Context, ttl time.Duration) error {
	l.manager.mu.Lock()
	defer l.manager.mu.Unlock()

	entry, held := l.manager.owners[l.key]
	if !held || entry.owner != l.owner || entry.expiresAt.Before(time.Now()) {
		return ErrLeaseLost
	}

	entry.expiresAt = time.Now().Add(ttl)
	l.manager.owners[l.key] = entry

	return nil
}

func (l *localLease) Release(_ context.Context) error {
	l.manager.mu.Lock()
	defer l.manager.mu.Unlock()

	entry, held := l.manager.owners[l.key]
	if held && entry.owner == l.owner {
		delete(l.manager.owners, l.key)
	}

	return nil
}
