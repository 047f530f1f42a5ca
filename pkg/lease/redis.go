package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Lua scripts that only act when the stored owner matches, so an expired
// lease that was re-acquired by someone else is never touched.
var renewScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("PEXPIRE", KEYS[1], ARGV[2])
	end
	return 0
`)

var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// RedisManager implements Manager on a shared Redis instance.
type RedisManager struct {
	client *redis.Client
	prefix string
}

// NewRedisManager creates a lease manager backed by the given client.
// Keys are namespaced under prefix.
func NewRedisManager(client *redis.Client, prefix string) *RedisManager {
	return &RedisManager{client: client, prefix: prefix}
}

func (m *RedisManager) key(key string) string {
	return m.prefix + ":" + key
}

// Acquire takes the lease with SET NX; each acquisition gets a unique
// owner token so renew/release cannot affect a successor's lease.
func (m *RedisManager) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	owner := uuid.New().String()

	ok, err := m.client.SetNX(ctx, m.key(key), owner, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lease %s: %w", key, err)
	}

	if !ok {
		return nil, ErrNotAcquired
	}

	return &redisLease{client: m.client, key: m.key(key), owner: owner}, nil
}

type redisLease struct {
	client *redis.Client
	key    string
	owner  string
}

func (l *redisLease) Renew(ctx context.Context, ttl time.Duration) error {
	renewed, err := renewScript.Run(ctx, l.client, []string{l.key}, l.owner, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("failed to renew lease %s: %w", l.key, err)
	}

	if renewed == 0 {
		return ErrLeaseLost
	}

	return nil
}

func (l *redisLease) Release(ctx context.Context) error {
	_, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.owner).Int()
	if err != nil {
		return fmt.Errorf("failed to release lease %s: %w", l.key, err)
	}

	return nil
}
