package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Limiter counts requests per key in fixed windows.
type Limiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	windows map[string]*window
}

type window struct {
	count int
	ends  time.Time
}

// maxTrackedKeys bounds the map before expired windows are swept.
const maxTrackedKeys = 1024

func NewLimiter(limit int, per time.Duration) *Limiter {
	return &Limiter{limit: limit, window: per, windows: make(map[string]*window)}
}

// Allow records a request for key at now. When the window is full it
// reports false and how long until the window resets.
func (l *Limiter) Allow(key string, now time.Time) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || !now.Before(w.ends) {
		if len(l.windows) >= maxTrackedKeys {
			l.sweep(now)
		}
		w = &window{ends: now.Add(l.window)}
		l.windows[key] = w
	}
	if w.count >= l.limit {
		return false, w.ends.Sub(now)
	}
	w.count++
	return true, 0
}

func (l *Limiter) sweep(now time.Time) {
	for key, w := range l.windows {
		if !now.Before(w.ends) {
			delete(l.windows, key)
		}
	}
}

// RateLimit allows limit requests per remote address in each window of
// length per and answers 429 with Retry-After beyond that. A limit of zero or
// less disables it. Forwarding headers are not consulted; run it behind
// chi's RealIP when a trusted proxy rewrites RemoteAddr.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		limiter := NewLimiter(limit, per)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, wait := limiter.Allow(remoteHost(r), time.Now())
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(wait/time.Second)+1))
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
