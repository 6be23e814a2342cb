package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	pkgerrors "github.com/angelmondragon/banksampah-backend/pkg/errors"
)

// Locker serializes ledger work per resident. The returned unlock func is
// safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, residentID uuid.UUID) (unlock func(), err error)
}

// KeyedMutex is the in-process Locker. Slots are reference counted and
// dropped once nobody holds or waits on them.
type KeyedMutex struct {
	mu    sync.Mutex
	slots map[uuid.UUID]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{slots: make(map[uuid.UUID]*slot)}
}

func (k *KeyedMutex) Lock(ctx context.Context, residentID uuid.UUID) (func(), error) {
	k.mu.Lock()
	s, ok := k.slots[residentID]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		k.slots[residentID] = s
	}
	s.refs++
	k.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(residentID, s)
		return nil, pkgerrors.Wrap(pkgerrors.CodeConcurrencyConflict, ctx.Err(), "wait for ledger lock")
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			k.release(residentID, s)
		})
	}, nil
}

func (k *KeyedMutex) release(residentID uuid.UUID, s *slot) {
	k.mu.Lock()
	defer k.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(k.slots, residentID)
	}
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DeleteIfValue(ctx context.Context, key, value string) (bool, error)
	LockKey(parts ...string) string
}

const (
	redisLockPoll      = 25 * time.Millisecond
	redisUnlockTimeout = 2 * time.Second
)

var errLockHeld = errors.New("ledger lock held")

// RedisLocker is the cross-instance Locker. The lock value is a random
// owner token so an expired holder never releases a successor's lock.
type RedisLocker struct {
	store lockStore
	ttl   time.Duration
	wait  time.Duration
}

func NewRedisLocker(store lockStore, ttl, wait time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &RedisLocker{store: store, ttl: ttl, wait: wait}
}

func (r *RedisLocker) Lock(ctx context.Context, residentID uuid.UUID) (func(), error) {
	key := r.store.LockKey("ledger", residentID.String())
	owner := uuid.NewString()

	backoff := retry.WithMaxDuration(r.wait, retry.NewConstant(redisLockPoll))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		acquired, err := r.store.SetNX(ctx, key, owner, r.ttl)
		if err != nil {
			return err
		}
		if !acquired {
			return retry.RetryableError(errLockHeld)
		}
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, errLockHeld), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return nil, pkgerrors.Wrap(pkgerrors.CodeConcurrencyConflict, err, "ledger lock busy").
			WithDetails(map[string]any{"resident_id": residentID})
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire ledger lock")
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			unlockCtx, cancel := context.WithTimeout(context.Background(), redisUnlockTimeout)
			defer cancel()
			_, _ = r.store.DeleteIfValue(unlockCtx, key, owner)
		})
	}, nil
}
