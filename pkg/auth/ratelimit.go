package auth

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rhuss/feynmind/pkg/observability"
)

// LoginLimiter is a fixed-window limiter that counts login attempts per
// client address in memory.
type LoginLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	counters  map[string]*counter
	lastSweep time.Time
}

type counter struct {
	count    int
	windowAt time.Time
}

// NewLoginLimiter creates a limiter allowing attemptsPerMinute attempts per
// client per minute. Zero or negative disables limiting.
func NewLoginLimiter(attemptsPerMinute int) *LoginLimiter {
	return &LoginLimiter{
		limit:    attemptsPerMinute,
		window:   time.Minute,
		now:      time.Now,
		counters: make(map[string]*counter),
	}
}

// Allow records an attempt for key and returns ErrTooManyRequests once the
// window's budget is spent. A nil limiter allows everything.
func (l *LoginLimiter) Allow(key string) error {
	if l == nil || l.limit <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	c, ok := l.counters[key]
	if !ok || now.Sub(c.windowAt) >= l.window {
		l.counters[key] = &counter{count: 1, windowAt: now}
		return nil
	}

	c.count++
	if c.count > l.limit {
		observability.RateLimitRejectedTotal.Inc()
		return ErrTooManyRequests
	}
	return nil
}

// sweep drops counters whose window has passed, at most once per window.
// Must be called with the lock held.
func (l *LoginLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	for k, c := range l.counters {
		if now.Sub(c.windowAt) >= l.window {
			delete(l.counters, k)
		}
	}
	l.lastSweep = now
}

// ClientAddress returns the host part of the request's remote address.
func ClientAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
