package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultLockTTL = 10 * time.Minute

// ErrLockHeld means another holder owns the cycle lock.
var ErrLockHeld = errors.New("cron lock held elsewhere")

// Lock grants exclusive cron cycles. TryAcquire never waits.
type Lock interface {
	TryAcquire(ctx context.Context) (Lease, error)
}

// Lease is one successful acquisition. Release is safe to call twice.
type Lease interface {
	Release(ctx context.Context) error
}

type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DeleteIfValue(ctx context.Context, key, value string) (bool, error)
}

// RedisLock is a SET NX lock with a TTL shared by every cron-worker
// instance. Each lease owns a random token and only deletes the key while
// the token still matches.
type RedisLock struct {
	store redisStore
	key   string
	ttl   time.Duration
}

func NewRedisLock(store redisStore, key string, ttl time.Duration) (*RedisLock, error) {
	switch {
	case store == nil:
		return nil, errors.New("redis client required for lock")
	case key == "":
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{store: store, key: key, ttl: ttl}, nil
}

// TTL bounds how long a cycle may run before the lock can be taken over.
func (l *RedisLock) TTL() time.Duration { return l.ttl }

func (l *RedisLock) TryAcquire(ctx context.Context) (Lease, error) {
	token := uuid.NewString()
	ok, err := l.store.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return &redisLease{lock: l, token: token}, nil
}

type redisLease struct {
	lock  *RedisLock
	token string
	once  sync.Once
}

func (r *redisLease) Release(ctx context.Context) error {
	var err error
	r.once.Do(func() {
		if _, delErr := r.lock.store.DeleteIfValue(ctx, r.lock.key, r.token); delErr != nil {
			err = fmt.Errorf("release %s: %w", r.lock.key, delErr)
		}
	})
	return err
}

// LocalLock serializes cycles within one process, for single-instance
// deployments without Redis.
type LocalLock struct {
	mu sync.Mutex
}

func (l *LocalLock) TryAcquire(context.Context) (Lease, error) {
	if !l.mu.TryLock() {
		return nil, ErrLockHeld
	}
	return &localLease{mu: &l.mu}, nil
}

type localLease struct {
	mu   *sync.Mutex
	once sync.Once
}

func (l *localLease) Release(context.Context) error {
	l.once.Do(l.mu.Unlock)
	return nil
}
