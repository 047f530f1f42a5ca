package lease

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalManager_Acquire(t *testing.T) {
	manager := NewLocalManager()

	held, err := manager.Acquire(t.Context(), "run:abc", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, held)

	_, err = manager.Acquire(t.Context(), "run:abc", time.Minute)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotAcquired)

	// A different key is independent.
	other, err := manager.Acquire(t.Context(), "run:def", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, other)
}

func TestLocalManager_ReleaseFreesKey(t *testing.T) {
	manager := NewLocalManager()

	held, err := manager.Acquire(t.Context(), "run:abc", time.Minute)
	require.NoError(t, err)

	require.NoError(t, held.Release(t.Context()))

	again, err := manager.Acquire(t.Context(), "run:abc", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, again)
}

func TestLocalManager_ExpiredLeaseIsTakeable(t *testing.T) {
	manager := NewLocalManager()

	held, err := manager.Acquire(t.Context(), "run:abc", time.Millisecond)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	taken, err := manager.Acquire(t.Context(), "run:abc", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, taken)

	// The original holder lost ownership and cannot renew.
	err = held.Renew(t.Context(), time.Minute)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLeaseLost)
}

func TestLocalLease_Renew(t *testing.T) {
	manager := NewLocalManager()

	held, err := manager.Acquire(t.Context(), "run:abc", time.Minute)
	require.NoError(t, err)

	require.NoError(t, held.Renew(t.Context(), time.Minute))

	// Renewing after release reports the lease as lost.
	require.NoError(t, held.Release(t.Context()))

	err = held.Renew(t.Context(), time.Minute)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLeaseLost)
}

// Release by a stale holder must not free a newer owner's lease.
func TestLocalLease_StaleReleaseIsNoop(t *testing.T) {
	manager := NewLocalManager()

	stale, err := manager.Acquire(t.Context(), "run:abc", time.Millisecond)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	current, err := manager.Acquire(t.Context(), "run:abc", time.Minute)
	require.NoError(t, err)

	require.NoError(t, stale.Release(t.Context()))

	_, err = manager.Acquire(t.Context(), "run:abc", time.Minute)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotAcquired)

	require.NoError(t, current.Release(t.Context()))
}
