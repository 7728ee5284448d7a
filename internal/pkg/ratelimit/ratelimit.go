package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Rule is a request budget over a window
type Rule struct {
	Max    int
	Window time.Duration
}

// Result reports the decision for a single hit
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter counts hits per key
type Limiter interface {
	Allow(ctx context.Context, key string, rule Rule) (Result, error)
	Reset(ctx context.Context, key string) error
}

// MemoryLimiter implements a sliding window per key in process memory
type MemoryLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	now      func() time.Time
	stop     chan struct{}
}

// NewMemoryLimiter creates an in-memory limiter and starts its cleanup loop
func NewMemoryLimiter() *MemoryLimiter {
	l := &MemoryLimiter{
		requests: make(map[string][]time.Time),
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Allow records a hit for key if the rule still has budget
func (l *MemoryLimiter) Allow(_ context.Context, key string, rule Rule) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-rule.Window)

	// Remove requests outside the window
	reqs := l.requests[key]
	filtered := reqs[:0]
	for _, t := range reqs {
		if t.After(cutoff) {
			filtered = append(filtered, t)
		}
	}

	if len(filtered) >= rule.Max {
		l.requests[key] = filtered
		return Result{
			Allowed:    false,
			RetryAfter: filtered[0].Add(rule.Window).Sub(now),
		}, nil
	}

	filtered = append(filtered, now)
	l.requests[key] = filtered
	return Result{Allowed: true, Remaining: rule.Max - len(filtered)}, nil
}

// Reset forgets every hit recorded for key
func (l *MemoryLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.requests, key)
	return nil
}

// Stop ends the cleanup loop
func (l *MemoryLimiter) Stop() {
	close(l.stop)
}

// cleanupLoop periodically removes keys with no recent hits
func (l *MemoryLimiter) cleanupLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.mu.Lock()
			cutoff := l.now().Add(-2 * time.Hour)
			for key, reqs := range l.requests {
				if len(reqs) == 0 || reqs[len(reqs)-1].Before(cutoff) {
					delete(l.requests, key)
				}
			}
			l.mu.Unlock()
		case <-l.stop:
			return
		}
	}
}
