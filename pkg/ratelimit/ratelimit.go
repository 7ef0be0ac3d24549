// Package ratelimit implements the simple per-client token-bucket rate
// limiter that gates HTTP ingress ahead of the core. Exceeding the
// bucket yields a caller-facing 429 Too Many Requests without touching
// any downstream component.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter manages a token-bucket limiter per client key (typically the
// client's remote IP or API key).
type Limiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rps      rate.Limit
	burst    int
	maxAge   time.Duration
	stop     chan struct{}
}

// New returns a Limiter allowing rps requests per second per client, with
// burst headroom. A background goroutine evicts clients idle longer than
// maxAge so the visitor map doesn't grow unbounded.
func New(rps float64, burst int, maxAge time.Duration) *Limiter {
	if maxAge <= 0 {
		maxAge = 3 * time.Minute
	}
	l := &Limiter{
		visitors: make(map[string]*visitor),
		rps:      rate.Limit(rps),
		burst:    burst,
		maxAge:   maxAge,
		stop:     make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Allow reports whether the client identified by key may proceed now.
func (l *Limiter) Allow(key string) bool {
	return l.visitorFor(key).limiter.Allow()
}

func (l *Limiter) visitorFor(key string) *visitor {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = time.Now()
	return v
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case now := <-ticker.C:
			l.mu.Lock()
			for key, v := range l.visitors {
				if now.Sub(v.lastSeen) > l.maxAge {
					delete(l.visitors, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

// Close stops the background eviction goroutine.
func (l *Limiter) Close() {
	close(l.stop)
}
