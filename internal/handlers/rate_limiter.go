package handlers

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Per-client budgets for the unauthenticated endpoints. Promo validation is
// throttled harder because it is the natural target for code enumeration.
const (
	promoValidatePerMinute = 30
	trackLookupsPerMinute  = 60
)

// rateLimiter gates requests per caller key.
type rateLimiter interface {
	Allow(key string) bool
}

type fixedWindowLimiter struct {
	limit  int
	window time.Duration
	clock  func() time.Time

	mu      sync.Mutex
	buckets map[string]windowBucket
}

type windowBucket struct {
	count   int
	resetAt time.Time
}

// newFixedWindowLimiter counts requests per key in fixed windows. A
// non-positive limit or window disables limiting and returns nil.
func newFixedWindowLimiter(limit int, window time.Duration, clock func() time.Time) rateLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &fixedWindowLimiter{
		limit:   limit,
		window:  window,
		clock:   clock,
		buckets: make(map[string]windowBucket),
	}
}

func (l *fixedWindowLimiter) Allow(key string) bool {
	if key = strings.TrimSpace(key); key == "" {
		key = "unknown"
	}

	now := l.clock()
	l.mu.Lock()
	defer l.mu.Unlock()

	bucket, ok := l.buckets[key]
	if !ok || now.After(bucket.resetAt) {
		l.dropStaleLocked(now)
		l.buckets[key] = windowBucket{count: 1, resetAt: now.Add(l.window)}
		return true
	}
	if bucket.count >= l.limit {
		return false
	}
	bucket.count++
	l.buckets[key] = bucket
	return true
}

func (l *fixedWindowLimiter) dropStaleLocked(now time.Time) {
	for key, bucket := range l.buckets {
		if now.After(bucket.resetAt) {
			delete(l.buckets, key)
		}
	}
}

// clientKey identifies the caller. The RealIP middleware has already folded
// forwarding headers into RemoteAddr.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
