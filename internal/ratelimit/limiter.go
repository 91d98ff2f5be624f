// Package ratelimit implements the process-local fixed-window limiter that
// guards calls to the model API. Counters live in memory only: a single
// serving instance owns the map, and a multi-instance deployment would move
// this state behind the same Check contract (e.g. Redis INCR with expiry).
package ratelimit

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultWindow is the counting window when none is configured.
	DefaultWindow = time.Hour

	// DefaultSweepInterval is how often expired entries are evicted.
	DefaultSweepInterval = 5 * time.Minute
)

// Result reports a single limiter decision. Denial is expressed through
// Allowed, never through an error.
type Result struct {
	Allowed    bool
	RetryAfter time.Duration
}

type entry struct {
	count   int
	resetAt time.Time
}

// Limiter is a fixed-window counter keyed by (userID, action). All requests
// inside one window share a counter; when the window elapses the counter
// resets rather than decaying. Bursts at window boundaries are possible;
// the tradeoff buys O(1) checks with no background recomputation beyond
// the sweep.
type Limiter struct {
	window        time.Duration
	sweepInterval time.Duration

	mu      sync.Mutex
	entries map[string]*entry

	// now is swapped out in tests to drive the clock.
	now func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithWindow overrides the default one-hour counting window.
func WithWindow(d time.Duration) Option {
	return func(l *Limiter) { l.window = d }
}

// WithSweepInterval overrides the default five-minute sweep interval.
func WithSweepInterval(d time.Duration) Option {
	return func(l *Limiter) { l.sweepInterval = d }
}

// New creates a stopped Limiter. Call Start to launch the sweep goroutine.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		window:        DefaultWindow,
		sweepInterval: DefaultSweepInterval,
		entries:       make(map[string]*entry),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check records one request for the (userID, action) pair and reports whether
// it is within the maxRequests ceiling for the current window. The first
// request for a key, or the first after the window expired, always passes and
// starts a fresh window with count 1.
func (l *Limiter) Check(userID, action string, maxRequests int) Result {
	key := fmt.Sprintf("%s:%s", userID, action)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok || now.After(e.resetAt) {
		l.entries[key] = &entry{count: 1, resetAt: now.Add(l.window)}
		return Result{Allowed: true}
	}

	if e.count >= maxRequests {
		return Result{Allowed: false, RetryAfter: e.resetAt.Sub(now)}
	}

	e.count++
	return Result{Allowed: true}
}

// Start launches the background sweep that evicts expired entries, bounding
// memory growth. Calling Start on a running limiter is a no-op.
func (l *Limiter) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopCh != nil {
		return
	}
	l.stopCh = make(chan struct{})
	l.doneCh = make(chan struct{})
	go l.sweepLoop(l.stopCh, l.doneCh)
}

// Stop terminates the sweep goroutine and waits for it to exit.
func (l *Limiter) Stop() {
	l.mu.Lock()
	stopCh, doneCh := l.stopCh, l.doneCh
	l.stopCh, l.doneCh = nil, nil
	l.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-doneCh
}

func (l *Limiter) sweepLoop(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(l.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-stopCh:
			return
		}
	}
}

func (l *Limiter) sweep() {
	now := l.now()

	l.mu.Lock()
	removed := 0
	for key, e := range l.entries {
		if now.After(e.resetAt) {
			delete(l.entries, key)
			removed++
		}
	}
	remaining := len(l.entries)
	l.mu.Unlock()

	if removed > 0 {
		slog.Debug("rate limiter sweep", "removed", removed, "remaining", remaining)
	}
}

// Len reports the number of tracked keys. Used by the sweep tests.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
