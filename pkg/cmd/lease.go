package cmd

import (
	"github.com/redis/go-redis/v9"

	"github.com/agentmatrix/matrix/pkg/lease"
)

// NewLeaseManager creates a lease manager. With a redis URL, leases are
// shared across processes; without one, they are process-local.
func NewLeaseManager(redisURL string) (lease.Manager, error) {
	if redisURL == "" {
		return lease.NewLocalManager(), nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	return lease.NewRedisManager(redis.NewClient(opts), "matrix:lease"), nil
}
