// Package ratelimit is an in-memory token bucket keyed by caller.
package ratelimit

import (
	"sync"
	"time"
)

const (
	sweepEvery     = 5 * time.Minute
	staleThreshold = 10 * time.Minute
)

// Limiter hands out capacity tokens per key and refills one every rate.
type Limiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	rate      time.Duration
	capacity  int
	lastSweep time.Time
	now       func() time.Time
}

type bucket struct {
	tokens   int
	lastFill time.Time
}

// New returns a limiter. A non-positive rate or capacity disables limiting.
func New(rate time.Duration, capacity int) *Limiter {
	return &Limiter{
		buckets:  make(map[string]*bucket),
		rate:     rate,
		capacity: capacity,
		now:      time.Now,
	}
}

// Allow takes one token from key's bucket.
func (l *Limiter) Allow(key string) bool {
	if l == nil || l.rate <= 0 || l.capacity <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.capacity, lastFill: now}
		l.buckets[key] = b
	}

	if add := int(now.Sub(b.lastFill) / l.rate); add > 0 {
		b.tokens = min(b.tokens+add, l.capacity)
		b.lastFill = b.lastFill.Add(time.Duration(add) * l.rate)
	}
	if b.tokens == 0 {
		return false
	}
	b.tokens--
	return true
}

// Reset refills key's bucket, e.g. after a successful sign-in.
func (l *Limiter) Reset(key string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	delete(l.buckets, key)
	l.mu.Unlock()
}

// sweep drops buckets untouched for a while. Callers hold l.mu.
func (l *Limiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < sweepEvery {
		return
	}
	l.lastSweep = now
	cutoff := now.Add(-staleThreshold)
	for key, b := range l.buckets {
		if b.lastFill.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}
