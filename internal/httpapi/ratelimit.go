package httpapi

import (
	"strings"
	"sync"
	"time"
)

// Rule is one route's budget: at most Max requests per Window per key.
type Rule struct {
	Max    int
	Window time.Duration
}

// Limiter enforces per-route sliding-window limits. Keys are the credential
// id when the request is authenticated, otherwise the caller's address, so
// one misbehaving integration cannot exhaust another's quota.
type Limiter struct {
	mu      sync.Mutex
	rules   map[string]Rule
	windows map[string][]time.Time // "route|key" → timestamps inside window
}

func NewLimiter() *Limiter {
	return &Limiter{
		rules:   make(map[string]Rule),
		windows: make(map[string][]time.Time),
	}
}

// SetRule installs or replaces the budget for a route.
func (l *Limiter) SetRule(route string, max int, window time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rules[route] = Rule{Max: max, Window: window}
}

// Allow records a request for (route, key) and reports whether it fits the
// budget. When rejected, retryAfter is how long until a slot frees up.
func (l *Limiter) Allow(route, key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rule, ok := l.rules[route]
	if !ok || rule.Max <= 0 {
		return true, 0
	}

	now := time.Now()
	cutoff := now.Add(-rule.Window)
	bucket := route + "|" + key

	entries := l.windows[bucket]
	start := 0
	for start < len(entries) && entries[start].Before(cutoff) {
		start++
	}
	entries = entries[start:]

	if len(entries) >= rule.Max {
		retryAfter := entries[0].Add(rule.Window).Sub(now)
		l.windows[bucket] = entries
		return false, retryAfter
	}

	l.windows[bucket] = append(entries, now)
	return true, 0
}

// Cleanup drops buckets whose entries have all aged out. Call periodically.
func (l *Limiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for bucket, entries := range l.windows {
		route, _, _ := strings.Cut(bucket, "|")
		rule, ok := l.rules[route]
		if !ok {
			delete(l.windows, bucket)
			continue
		}
		cutoff := now.Add(-rule.Window)
		keep := entries[:0]
		for _, t := range entries {
			if !t.Before(cutoff) {
				keep = append(keep, t)
			}
		}
		if len(keep) == 0 {
			delete(l.windows, bucket)
		} else {
			l.windows[bucket] = keep
		}
	}
}
