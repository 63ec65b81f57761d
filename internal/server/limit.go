package server

import (
	"errors"
	"sync"

	"golang.org/x/time/rate"
)

// Default snapshot budget per session.
const (
	DefaultSnapshotRate  = 2
	DefaultSnapshotBurst = 4
)

var errRateLimited = errors.New("snapshot rate exceeded, try again shortly")

// exportLimiter hands out one token bucket per session id.
type exportLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func newExportLimiter(perSecond float64, burst int) *exportLimiter {
	if perSecond <= 0 {
		perSecond = DefaultSnapshotRate
	}
	if burst <= 0 {
		burst = DefaultSnapshotBurst
	}
	return &exportLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(perSecond),
		burst:    burst,
	}
}

// Allow takes one token for key.
func (l *exportLimiter) Allow(key string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.rate, l.burst)
		l.limiters[key] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

// Forget drops the bucket of a closed session.
func (l *exportLimiter) Forget(key string) {
	l.mu.Lock()
	delete(l.limiters, key)
	l.mu.Unlock()
}

func (l *exportLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
