package redis

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/banksampah-backend/pkg/config"
)

func TestSetNXAndDeleteIfValue(t *testing.T) {
	ctx := context.Background()
	client := &Client{cmd: newFakeRedis()}

	ok, err := client.SetNX(ctx, "k", "owner-a", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = client.SetNX(ctx, "k", "owner-b", time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	removed, err := client.DeleteIfValue(ctx, "k", "owner-b")
	require.NoError(t, err)
	assert.False(t, removed, "foreign owner must not delete the key")

	removed, err = client.DeleteIfValue(ctx, "k", "owner-a")
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = client.Get(ctx, "k")
	assert.ErrorIs(t, err, Nil)
}

func TestGetDelConsumesKey(t *testing.T) {
	ctx := context.Background()
	client := &Client{cmd: newFakeRedis()}
	require.NoError(t, client.Set(ctx, "k", "v", time.Minute))

	v, err := client.GetDel(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	_, err = client.GetDel(ctx, "k")
	assert.ErrorIs(t, err, Nil)
}

func TestIncrWithTTLStartsWindowOnce(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	client := &Client{cmd: fake}

	for want := int64(1); want <= 3; want++ {
		got, err := client.IncrWithTTL(ctx, "bs:rl:login:ip:1.2.3.4", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, []string{"bs:rl:login:ip:1.2.3.4=60000"}, fake.expiries)
}

func TestUninitializedClientErrors(t *testing.T) {
	client := &Client{}
	ctx := context.Background()
	assert.ErrorIs(t, client.Ping(ctx), errNotConnected)
	_, err := client.SetNX(ctx, "k", "v", time.Second)
	assert.ErrorIs(t, err, errNotConnected)
	_, err = client.IncrWithTTL(ctx, "k", time.Second)
	assert.ErrorIs(t, err, errNotConnected)
	assert.NoError(t, client.Close())
}

func TestKeyspace(t *testing.T) {
	var defaults Keyspace
	assert.Equal(t, "bs:idempotency:POST /transactions:abc", defaults.IdempotencyKey("POST /transactions", "abc"))
	assert.Equal(t, "bs:lock:ledger:resident-1", defaults.LockKey("ledger", "resident-1"))
	assert.Equal(t, "bs:lock:cron:reconcile", defaults.LockKey("cron", " ", "reconcile"))

	assert.Equal(t, "bs:rl:login:ip:10.0.0.1", defaults.RateLimitKey("login", "ip", "10.0.0.1"))

	staging := Keyspace("bs-staging")
	assert.Equal(t, "bs-staging:session:abc", staging.AccessSessionKey("abc"))

	client := &Client{Keyspace: staging}
	assert.Equal(t, "bs-staging:lock:ledger:r", client.LockKey("ledger", "r"))
}

func TestOptionsFromConfig(t *testing.T) {
	_, err := optionsFromConfig(config.RedisConfig{})
	assert.Error(t, err)

	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/2", PoolSize: 10, DB: 5})
	require.NoError(t, err)
	assert.Equal(t, 2, opts.DB, "url db wins")
	assert.Equal(t, 10, opts.PoolSize)

	opts, err = optionsFromConfig(config.RedisConfig{Address: "cache:6379", DB: 3, DialTimeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, 3, opts.DB)
	assert.Equal(t, time.Second, opts.DialTimeout)

	_, err = optionsFromConfig(config.RedisConfig{URL: "://bad"})
	assert.Error(t, err)
}

// fakeRedis understands the two scripts the client evaluates.
type fakeRedis struct {
	data     map[string]string
	expiries []string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}}
}

func (f *fakeRedis) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) GetDel(ctx context.Context, key string) *redis.StringCmd {
	cmd := f.Get(ctx, key)
	delete(f.data, key)
	return cmd
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(f.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (f *fakeRedis) Eval(_ context.Context, script string, keys []string, args ...any) *redis.Cmd {
	key := keys[0]
	switch script {
	case deleteIfOwner:
		if f.data[key] != fmt.Sprint(args[0]) {
			return redis.NewCmdResult(int64(0), nil)
		}
		delete(f.data, key)
		return redis.NewCmdResult(int64(1), nil)
	case incrWindow:
		n, _ := strconv.ParseInt(f.data[key], 10, 64)
		n++
		f.data[key] = strconv.FormatInt(n, 10)
		if n == 1 {
			f.expiries = append(f.expiries, fmt.Sprintf("%s=%v", key, args[0]))
		}
		return redis.NewCmdResult(n, nil)
	}
	return redis.NewCmdResult(nil, fmt.Errorf("unexpected script"))
}
