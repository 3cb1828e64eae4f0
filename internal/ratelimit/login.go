package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/dentaldesk/internal/config"
	"go.uber.org/zap"
)

const keyLoginAttempts = "dentaldesk:login:%s"

// LoginLimiter throttles login attempts per client. It uses the Redis token
// bucket when available and an in-process limiter otherwise.
type LoginLimiter struct {
	log    *zap.Logger
	bucket *TokenBucket
	local  *memoryLimiter
	rate   float64
	burst  int
}

func NewLoginLimiter(cfg config.Config, bucket *TokenBucket, log *zap.Logger) *LoginLimiter {
	attempts := cfg.LoginRateLimit.Attempts
	if attempts <= 0 {
		attempts = 5
	}
	window := time.Duration(cfg.LoginRateLimit.Window) * time.Second
	if window <= 0 {
		window = 10 * time.Minute
	}
	perSecond := float64(attempts) / window.Seconds()

	return &LoginLimiter{
		log:    log.Named("ratelimit.login"),
		bucket: bucket,
		local:  newMemoryLimiter(perSecond, attempts, 2*window),
		rate:   perSecond,
		burst:  attempts,
	}
}

func (l *LoginLimiter) Allow(ctx context.Context, client string) *RateLimitResult {
	key := fmt.Sprintf(keyLoginAttempts, strings.TrimSpace(client))
	if l.bucket != nil {
		res, err := l.bucket.Allow(ctx, key, l.rate, l.burst)
		if err == nil {
			return res
		}
		l.log.Warn("redis rate limit failed, using local limiter", zap.Error(err))
	}
	return l.local.allow(key)
}

// Reset clears the attempts of a client after a successful login.
func (l *LoginLimiter) Reset(ctx context.Context, client string) {
	key := fmt.Sprintf(keyLoginAttempts, strings.TrimSpace(client))
	if l.bucket != nil {
		if err := l.bucket.Reset(ctx, key); err != nil {
			l.log.Warn("redis rate limit reset failed", zap.Error(err))
		}
	}
	l.local.reset(key)
}
