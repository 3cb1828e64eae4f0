package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLocker(t *testing.T) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLocker(client, zap.NewNop()), mr
}

func TestLockerExclusive(t *testing.T) {
	locker, mr := newTestLocker(t)
	ctx := context.Background()

	token, ok, err := locker.TryLock(ctx, "seed", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("dentaldesk:lock:seed"))

	_, ok, err = locker.TryLock(ctx, "seed", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, locker.Release(ctx, "seed", "someone-else"))
	assert.True(t, mr.Exists(LockKey("seed")))

	require.NoError(t, locker.Release(ctx, "seed", token))
	assert.False(t, mr.Exists(LockKey("seed")))
}

func TestLockerRejectsInvalidLease(t *testing.T) {
	locker, _ := newTestLocker(t)

	_, _, err := locker.TryLock(context.Background(), " ", time.Minute)
	assert.ErrorIs(t, err, ErrInvalidLock)
	_, _, err = locker.TryLock(context.Background(), "seed", 0)
	assert.ErrorIs(t, err, ErrInvalidLock)
}

func TestWithLockHoldsAndReleases(t *testing.T) {
	locker, mr := newTestLocker(t)
	ctx := context.Background()

	err := locker.WithLock(ctx, "purge", time.Minute, func(ctx context.Context) error {
		assert.True(t, mr.Exists(LockKey("purge")))

		inner := locker.WithLock(ctx, "purge", time.Minute, func(context.Context) error {
			t.Fatal("nested holder must not run")
			return nil
		})
		assert.ErrorIs(t, inner, ErrLockHeld)
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists(LockKey("purge")))

	boom := errors.New("boom")
	err = locker.WithLock(ctx, "purge", time.Minute, func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists(LockKey("purge")))
}

func TestWithLockReportsUnreachableRedis(t *testing.T) {
	locker, mr := newTestLocker(t)
	mr.Close()

	called := false
	err := locker.WithLock(context.Background(), "seed", time.Minute, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrLockUnavailable)
	assert.False(t, called)
}

func TestNilLockerRunsDirectly(t *testing.T) {
	var locker *Locker
	called := false
	require.NoError(t, locker.WithLock(context.Background(), "seed", time.Minute, func(context.Context) error {
		called = true
		return nil
	}))
	assert.True(t, called)
}
