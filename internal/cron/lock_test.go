package cron

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	values    map[string]string
	failSet   bool
	deletions int
}

func newMemoryStore() *memoryStore { return &memoryStore{values: map[string]string{}} }

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if m.failSet {
		return false, errors.New("unavailable")
	}
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memoryStore) DeleteIfValue(_ context.Context, key, value string) (bool, error) {
	m.deletions++
	if m.values[key] != value {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func TestRedisLockExclusive(t *testing.T) {
	store := newMemoryStore()
	first, err := NewRedisLock(store, "bs:lock:cron", time.Minute)
	require.NoError(t, err)
	second, err := NewRedisLock(store, "bs:lock:cron", time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	lease, err := first.TryAcquire(ctx)
	require.NoError(t, err)

	_, err = second.TryAcquire(ctx)
	require.ErrorIs(t, err, ErrLockHeld)

	require.NoError(t, lease.Release(ctx))
	require.NotContains(t, store.values, "bs:lock:cron")
	require.NoError(t, lease.Release(ctx))
	require.Equal(t, 1, store.deletions)

	_, err = second.TryAcquire(ctx)
	require.NoError(t, err)
}

func TestRedisLeaseDoesNotFreeForeignToken(t *testing.T) {
	store := newMemoryStore()
	lock, err := NewRedisLock(store, "k", time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	lease, err := lock.TryAcquire(ctx)
	require.NoError(t, err)
	// TTL expiry handed the key to someone else.
	store.values["k"] = "other"

	require.NoError(t, lease.Release(ctx))
	require.Equal(t, "other", store.values["k"])
}

func TestRedisLockErrors(t *testing.T) {
	_, err := NewRedisLock(nil, "k", 0)
	require.Error(t, err)
	_, err = NewRedisLock(newMemoryStore(), "", 0)
	require.Error(t, err)

	store := newMemoryStore()
	store.failSet = true
	lock, err := NewRedisLock(store, "k", 0)
	require.NoError(t, err)
	require.Equal(t, defaultLockTTL, lock.TTL())
	_, err = lock.TryAcquire(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrLockHeld)
}

func TestLocalLock(t *testing.T) {
	lock := &LocalLock{}
	ctx := context.Background()

	lease, err := lock.TryAcquire(ctx)
	require.NoError(t, err)
	_, err = lock.TryAcquire(ctx)
	require.ErrorIs(t, err, ErrLockHeld)

	require.NoError(t, lease.Release(ctx))
	require.NoError(t, lease.Release(ctx))

	_, err = lock.TryAcquire(ctx)
	require.NoError(t, err)
}
