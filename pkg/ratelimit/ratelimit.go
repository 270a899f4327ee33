// Package ratelimit implements the per-address rate gate and the
// concurrent-policy-evaluation backpressure semaphore of spec §5.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// addressLimiterIdleAfter is how long an address's limiter can go
// unused before a sweep prunes it from the map.
const addressLimiterIdleAfter = 10 * time.Minute

// addressLimiterSweepInterval is how often the background goroutine
// started by NewAddressLimiter sweeps for idle limiters.
const addressLimiterSweepInterval = time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// AddressLimiter hands out a token-bucket limiter per
// certificate.address, pruning limiters that have gone idle so the
// map does not grow unboundedly under churn.
type AddressLimiter struct {
	mu       sync.Mutex
	limiters map[[32]byte]*limiterEntry
	rps      rate.Limit
	burst    int
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

// NewAddressLimiter builds a limiter allowing rps requests per second
// per address, with the given burst, and starts a background goroutine
// that sweeps limiters idle longer than addressLimiterIdleAfter.
func NewAddressLimiter(rps float64, burst int) *AddressLimiter {
	a := &AddressLimiter{
		limiters: make(map[[32]byte]*limiterEntry),
		rps:      rate.Limit(rps),
		burst:    burst,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go a.sweepLoop()
	return a
}

// Allow reports whether a request from address may proceed now,
// consuming a token if so.
func (a *AddressLimiter) Allow(address [32]byte) bool {
	now := a.now()
	a.mu.Lock()
	e, ok := a.limiters[address]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(a.rps, a.burst)}
		a.limiters[address] = e
	}
	e.lastUsed = now
	a.mu.Unlock()
	return e.limiter.Allow()
}

// PruneIdle removes every limiter last used before now.Add(-idleAfter).
// Exposed directly so tests can exercise pruning deterministically
// instead of waiting on the background sweep.
func (a *AddressLimiter) PruneIdle(idleAfter time.Duration, now time.Time) {
	cutoff := now.Add(-idleAfter)
	a.mu.Lock()
	for addr, e := range a.limiters {
		if e.lastUsed.Before(cutoff) {
			delete(a.limiters, addr)
		}
	}
	a.mu.Unlock()
}

// Len reports how many addresses currently hold a live limiter.
func (a *AddressLimiter) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.limiters)
}

func (a *AddressLimiter) sweepLoop() {
	ticker := time.NewTicker(addressLimiterSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.PruneIdle(addressLimiterIdleAfter, a.now())
		case <-a.stop:
			return
		}
	}
}

// Stop halts the background sweep goroutine. Safe to call more than
// once.
func (a *AddressLimiter) Stop() {
	a.stopOnce.Do(func() { close(a.stop) })
}

// Semaphore caps concurrent in-flight operations (stage 5's outbound
// full-node RPCs), returning Overloaded-style backpressure to excess
// callers rather than queuing indefinitely.
type Semaphore struct {
	slots chan struct{}
}

// NewSemaphore builds a semaphore with the given capacity.
func NewSemaphore(capacity int) *Semaphore {
	return &Semaphore{slots: make(chan struct{}, capacity)}
}

// TryAcquire attempts to take a slot without blocking, returning false
// if the semaphore is at capacity.
func (s *Semaphore) TryAcquire() bool {
	select {
	case s.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release returns a slot to the semaphore.
func (s *Semaphore) Release() {
	<-s.slots
}
