package gateway

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ConnLimiter throttles connection attempts per caller address with a token
// bucket, so a misbehaving client cannot spin the upgrade path.
type ConnLimiter struct {
	limiters sync.Map // key → *limiterEntry
	r        rate.Limit
	burst    int
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewConnLimiter creates a limiter allowing rpm attempts per minute with the
// given burst. rpm <= 0 disables it.
func NewConnLimiter(rpm, burst int) *ConnLimiter {
	if burst <= 0 {
		burst = 5
	}
	r := rate.Limit(0)
	if rpm > 0 {
		r = rate.Limit(float64(rpm) / 60.0)
	}
	cl := &ConnLimiter{r: r, burst: burst}
	go cl.cleanupLoop()
	return cl
}

// Allow reports whether a connection attempt from key may proceed.
func (cl *ConnLimiter) Allow(key string) bool {
	if cl.r == 0 {
		return true
	}
	entry := cl.getOrCreate(key)
	if !entry.limiter.Allow() {
		return false
	}
	entry.lastSeen = time.Now()
	return true
}

func (cl *ConnLimiter) getOrCreate(key string) *limiterEntry {
	if v, ok := cl.limiters.Load(key); ok {
		return v.(*limiterEntry)
	}
	entry := &limiterEntry{
		limiter:  rate.NewLimiter(cl.r, cl.burst),
		lastSeen: time.Now(),
	}
	actual, _ := cl.limiters.LoadOrStore(key, entry)
	return actual.(*limiterEntry)
}

func (cl *ConnLimiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-10 * time.Minute)
		cl.limiters.Range(func(key, value any) bool {
			if value.(*limiterEntry).lastSeen.Before(cutoff) {
				cl.limiters.Delete(key)
			}
			return true
		})
	}
}
