package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LockKeyPrefix namespaces every clinic lock in a shared Redis.
const LockKeyPrefix = "dentaldesk:lock:"

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var (
	ErrLockHeld        = errors.New("lock_held")
	ErrLockUnavailable = errors.New("lock_unavailable")
	ErrInvalidLock     = errors.New("invalid_lock")
)

// Locker hands out short-lived exclusive leases used to keep bootstrap and
// housekeeping work on a single replica.
type Locker struct {
	client *redis.Client
	script *redis.Script
	log    *zap.Logger
}

// NewLocker returns nil without a Redis client. A nil Locker runs work
// unguarded.
func NewLocker(client *redis.Client, log *zap.Logger) *Locker {
	if client == nil {
		return nil
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Locker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
		log:    log.Named("locker"),
	}
}

// LockKey is the Redis key backing the lock called name.
func LockKey(name string) string {
	return LockKeyPrefix + strings.TrimSpace(name)
}

// TryLock acquires name for ttl and returns the lease token. ok is false when
// another holder owns the lock.
func (l *Locker) TryLock(ctx context.Context, name string, ttl time.Duration) (token string, ok bool, err error) {
	if l == nil || l.client == nil {
		return "", false, ErrLockUnavailable
	}
	if strings.TrimSpace(name) == "" || ttl <= 0 {
		return "", false, ErrInvalidLock
	}

	token = uuid.NewString()
	ok, err = l.client.SetNX(ctx, LockKey(name), token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("%w: %w", ErrLockUnavailable, err)
	}
	return token, ok, nil
}

// Release drops the lease only while token still owns it.
func (l *Locker) Release(ctx context.Context, name, token string) error {
	if l == nil || l.client == nil || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{LockKey(name)}, token).Err()
}

// WithLock runs fn while holding name. It returns ErrLockHeld without running
// fn when another replica holds the lock, and an error wrapping
// ErrLockUnavailable when Redis cannot be reached. A nil Locker runs fn
// directly.
func (l *Locker) WithLock(ctx context.Context, name string, ttl time.Duration, fn func(context.Context) error) error {
	if l == nil {
		return fn(ctx)
	}

	token, ok, err := l.TryLock(ctx, name, ttl)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLockHeld
	}
	defer func() {
		if err := l.Release(context.WithoutCancel(ctx), name, token); err != nil {
			l.log.Warn("failed to release lock", zap.String("lock", name), zap.Error(err))
		}
	}()

	return fn(ctx)
}
