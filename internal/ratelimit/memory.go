package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// memoryLimiter keeps one token bucket per key inside the process.
type memoryLimiter struct {
	mu       sync.Mutex
	limiters map[string]*memoryEntry
	rate     rate.Limit
	burst    int
	idleTTL  time.Duration
	now      func() time.Time
}

type memoryEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newMemoryLimiter(perSecond float64, burst int, idleTTL time.Duration) *memoryLimiter {
	return &memoryLimiter{
		limiters: make(map[string]*memoryEntry),
		rate:     rate.Limit(perSecond),
		burst:    burst,
		idleTTL:  idleTTL,
		now:      time.Now,
	}
}

func (m *memoryLimiter) allow(key string) *RateLimitResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.evict(now)

	entry, ok := m.limiters[key]
	if !ok {
		entry = &memoryEntry{limiter: rate.NewLimiter(m.rate, m.burst)}
		m.limiters[key] = entry
	}
	entry.lastSeen = now

	reservation := entry.limiter.ReserveN(now, 1)
	delay := reservation.DelayFrom(now)
	if delay > 0 {
		reservation.CancelAt(now)
		return &RateLimitResult{
			Allowed:    false,
			Limit:      m.burst,
			ResetTime:  now.Add(delay),
			RetryAfter: delay,
		}
	}
	return &RateLimitResult{
		Allowed:   true,
		Limit:     m.burst,
		Remaining: int(entry.limiter.TokensAt(now)),
		ResetTime: now,
	}
}

func (m *memoryLimiter) reset(key string) {
	m.mu.Lock()
	delete(m.limiters, key)
	m.mu.Unlock()
}

func (m *memoryLimiter) evict(now time.Time) {
	for key, entry := range m.limiters {
		if now.Sub(entry.lastSeen) > m.idleTTL {
			delete(m.limiters, key)
		}
	}
}
