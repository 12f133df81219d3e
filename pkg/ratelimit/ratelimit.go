package ratelimit

import (
	"context"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces operations to a steady rate with optional positive jitter.
// It is safe for concurrent use by multiple goroutines.
type Limiter struct {
	limiter  *rate.Limiter
	jitter   float64 // 0.0 to 1.0
	interval time.Duration
}

// NewLimiter creates a limiter allowing rps operations per second. The first
// operation is never delayed. Jitter is clamped to [0, 1] and adds a random
// extra wait of up to jitter*interval. If rps <= 0 the limiter does not block.
func NewLimiter(rps float64, jitter float64) *Limiter {
	if rps <= 0 {
		return &Limiter{}
	}

	if jitter < 0 {
		jitter = 0
	} else if jitter > 1 {
		jitter = 1
	}

	return &Limiter{
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		jitter:   jitter,
		interval: time.Duration(float64(time.Second) / rps),
	}
}

// Wait blocks until the next operation may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.limiter == nil {
		return nil
	}

	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}

	if l.jitter > 0 {
		extra := time.Duration(float64(l.interval) * l.jitter * rand.Float64())
		if extra > 0 {
			t := time.NewTimer(extra)
			defer t.Stop()
			select {
			case <-t.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

// Interval returns the nominal gap between operations, zero when unlimited.
func (l *Limiter) Interval() time.Duration {
	if l == nil {
		return 0
	}
	return l.interval
}
