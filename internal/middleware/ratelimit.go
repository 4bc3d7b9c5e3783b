package middleware

import (
	"errors"
	"sync"
	"time"

	"reqlens/request"

	"golang.org/x/time/rate"
)

var ErrRateLimited = errors.New("rate limit exceeded")

const (
	defaultLimiterTTL = 10 * time.Minute
	defaultCleanup    = time.Minute
)

type limiterEntry struct {
	l        *rate.Limiter
	lastSeen time.Time
}

// RateLimit keeps one token bucket per client address.
type RateLimit struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	rps      rate.Limit
	burst    int
	ttl      time.Duration
	now      func() time.Time
}

func NewRateLimit(rps float64, burst int) *RateLimit {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimit{
		limiters: make(map[string]*limiterEntry),
		rps:      rate.Limit(rps),
		burst:    burst,
		ttl:      defaultLimiterTTL,
		now:      time.Now,
	}
}

func (rl *RateLimit) get(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if e, ok := rl.limiters[key]; ok {
		e.lastSeen = rl.now()
		return e.l
	}

	l := rate.NewLimiter(rl.rps, rl.burst)
	rl.limiters[key] = &limiterEntry{l: l, lastSeen: rl.now()}
	return l
}

func (rl *RateLimit) HandleRequest(req *request.Request) error {
	if !rl.get(req.Address()).AllowN(rl.now(), 1) {
		return ErrRateLimited
	}
	return nil
}

// Sweep drops limiters idle for longer than the pool ttl.
func (rl *RateLimit) Sweep() {
	cutoff := rl.now().Add(-rl.ttl)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for k, e := range rl.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(rl.limiters, k)
		}
	}
}

// Run sweeps idle limiters until done is closed.
func (rl *RateLimit) Run(done <-chan struct{}) {
	ticker := time.NewTicker(defaultCleanup)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.Sweep()
		case <-done:
			return
		}
	}
}

func (rl *RateLimit) tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}
