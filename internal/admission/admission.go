// Package admission defers ingestion triggers that exceed the system-wide
// throttle or the per-source rate limit. Requests are delayed, never rejected.
package admission

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"pdfrag/internal/contextutil"
)

// Policy bounds how often ingestion may start.
type Policy struct {
	// ThrottleLimit runs may start per ThrottlePeriod across all sources.
	ThrottleLimit  int
	ThrottlePeriod time.Duration
	// RatePeriod is the minimum spacing between runs for one source. Zero disables it.
	RatePeriod time.Duration
}

// DefaultPolicy admits two ingestions per minute and one per source every four hours.
var DefaultPolicy = Policy{
	ThrottleLimit:  2,
	ThrottlePeriod: time.Minute,
	RatePeriod:     4 * time.Hour,
}

// Validate checks the policy bounds.
func (p Policy) Validate() error {
	if p.ThrottleLimit <= 0 {
		return fmt.Errorf("throttle limit must be positive, got %d", p.ThrottleLimit)
	}
	if p.ThrottlePeriod <= 0 {
		return fmt.Errorf("throttle period must be positive, got %s", p.ThrottlePeriod)
	}
	if p.RatePeriod < 0 {
		return fmt.Errorf("rate period must not be negative, got %s", p.RatePeriod)
	}
	return nil
}

const pruneInterval = time.Minute

// Controller applies a Policy. It is safe for concurrent use.
type Controller struct {
	policy Policy
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error

	mu sync.Mutex
	// starts holds the last ThrottleLimit booked start times, oldest first.
	starts    []time.Time
	sources   map[string]*rate.Limiter
	lastPrune time.Time
}

// New creates a controller for policy.
func New(policy Policy) (*Controller, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Controller{
		policy:  policy,
		now:     time.Now,
		sleep:   sleepContext,
		starts:  make([]time.Time, 0, policy.ThrottleLimit),
		sources: make(map[string]*rate.Limiter),
	}, nil
}

// ReserveSource books the next slot for key at now and returns how long the
// caller must wait before it may proceed to the throttle.
func (c *Controller) ReserveSource(key string, now time.Time) time.Duration {
	if key == "" || c.policy.RatePeriod == 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.prune(now)
	lim, ok := c.sources[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(c.policy.RatePeriod), 1)
		c.sources[key] = lim
	}
	return lim.ReserveN(now, 1).DelayFrom(now)
}

// ReserveThrottle books the next system-wide slot at now and returns the wait.
// Any ThrottlePeriod window holds at most ThrottleLimit starts: once the log
// is full, the next start is one period after the oldest booked one.
func (c *Controller) ReserveThrottle(now time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := now
	if n := len(c.starts); n > 0 {
		if last := c.starts[n-1]; last.After(start) {
			start = last
		}
		if n >= c.policy.ThrottleLimit {
			if next := c.starts[n-c.policy.ThrottleLimit].Add(c.policy.ThrottlePeriod); next.After(start) {
				start = next
			}
		}
	}
	c.starts = append(c.starts, start)
	if extra := len(c.starts) - c.policy.ThrottleLimit; extra > 0 {
		c.starts = append(c.starts[:0], c.starts[extra:]...)
	}
	return start.Sub(now)
}

// Wait blocks until an ingestion for key may start.
// The per-source slot is taken first; the throttle slot is reserved only once
// that wait is over, so limiter time never moves backwards.
func (c *Controller) Wait(ctx context.Context, key string) error {
	logger := contextutil.LoggerFromContext(ctx)

	if d := c.ReserveSource(key, c.now()); d > 0 {
		logger.InfoContext(ctx, "ingestion deferred by source rate limit", "source_id", key, "delay", d)
		if err := c.sleep(ctx, d); err != nil {
			return err
		}
	}
	if d := c.ReserveThrottle(c.now()); d > 0 {
		logger.InfoContext(ctx, "ingestion deferred by throttle", "source_id", key, "delay", d)
		if err := c.sleep(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

// Tracked returns the number of sources with a live rate limiter.
func (c *Controller) Tracked() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sources)
}

// prune drops limiters whose bucket has refilled; a fresh limiter behaves the same.
// Callers hold c.mu.
func (c *Controller) prune(now time.Time) {
	if now.Sub(c.lastPrune) < pruneInterval {
		return
	}
	c.lastPrune = now
	for key, lim := range c.sources {
		if lim.TokensAt(now) >= float64(lim.Burst()) {
			delete(c.sources, key)
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
