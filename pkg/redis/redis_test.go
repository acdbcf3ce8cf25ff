package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func getTestLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewClientFromRedis(rdb, getTestLogger()), mr
}

func TestLocker_AcquireAndRelease(t *testing.T) {
	client, mr := newTestClient(t)
	locker := NewLocker(client, "fern:lock:")
	ctx := context.Background()

	lock, err := locker.Acquire(ctx, "run", time.Minute)
	require.NoError(t, err)
	assert.True(t, mr.Exists("fern:lock:run"))

	_, err = locker.Acquire(ctx, "run", time.Minute)
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	require.NoError(t, lock.Release(ctx))
	assert.False(t, mr.Exists("fern:lock:run"))
	assert.ErrorIs(t, lock.Release(ctx), ErrLockNotHeld)
}

func TestLocker_ExpiredLockCannotBeExtended(t *testing.T) {
	client, mr := newTestClient(t)
	locker := NewLocker(client, "fern:lock:")
	ctx := context.Background()

	lock, err := locker.Acquire(ctx, "run", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	assert.ErrorIs(t, lock.Extend(ctx, time.Minute), ErrLockNotHeld)

	other, err := locker.Acquire(ctx, "run", time.Minute)
	require.NoError(t, err)
	assert.ErrorIs(t, lock.Release(ctx), ErrLockNotHeld)
	require.NoError(t, other.Release(ctx))
}

func TestLocker_WithLock(t *testing.T) {
	client, mr := newTestClient(t)
	locker := NewLocker(client, "fern:lock:")
	ctx := context.Background()

	boom := errors.New("boom")
	err := locker.WithLock(ctx, "run", time.Minute, func(ctx context.Context) error {
		assert.True(t, mr.Exists("fern:lock:run"))

		_, err := locker.Acquire(ctx, "run", time.Minute)
		assert.ErrorIs(t, err, ErrLockNotAcquired)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("fern:lock:run"))
}

func TestRateLimiter_Allow(t *testing.T) {
	client, _ := newTestClient(t)
	limiter := NewRateLimiter(client, "fern:ratelimit:")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := limiter.Allow(ctx, "harvest", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, int64(2-i), res.Remaining)
	}

	res, err := limiter.Allow(ctx, "harvest", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Greater(t, res.RetryIn, time.Duration(0))
	assert.LessOrEqual(t, res.RetryIn, time.Minute)

	res, err = limiter.Allow(ctx, "forecast", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestRateLimiter_BlockFor(t *testing.T) {
	client, mr := newTestClient(t)
	limiter := NewRateLimiter(client, "fern:ratelimit:")
	ctx := context.Background()

	require.NoError(t, limiter.BlockFor(ctx, "harvest", 10*time.Second))

	blocked, ttl, err := limiter.IsBlocked(ctx, "harvest")
	require.NoError(t, err)
	assert.True(t, blocked)
	assert.Equal(t, 10*time.Second, ttl)

	res, err := limiter.Allow(ctx, "harvest", 100, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	mr.FastForward(11 * time.Second)
	blocked, _, err = limiter.IsBlocked(ctx, "harvest")
	require.NoError(t, err)
	assert.False(t, blocked)
}
