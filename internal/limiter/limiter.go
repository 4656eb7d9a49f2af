package limiter

import (
	"context"
	"sync"
	"time"
)

// TokenBucket bounds outbound detection requests to a configured rate.
// Acquire never rejects, it only delays: when no full token is available it
// sleeps for the exact deficit before consuming one.
type TokenBucket struct {
	mu       sync.Mutex
	rate     float64 // tokens added per second
	capacity float64 // max tokens held
	tokens   float64
	last     time.Time
}

type Options struct {
	Rate  float64 // requests per second
	Burst float64 // bucket capacity; default 1 (strict spacing)
}

func New(opts Options) *TokenBucket {
	if opts.Rate <= 0 {
		opts.Rate = 1
	}
	if opts.Burst < 1 {
		opts.Burst = 1
	}
	return &TokenBucket{
		rate:     opts.Rate,
		capacity: opts.Burst,
		tokens:   opts.Burst,
		last:     time.Now(),
	}
}

// Acquire blocks until a token is available or ctx is cancelled. Holding the
// lock across the wait serializes concurrent callers, which keeps the
// long-run rate bounded; no fairness is guaranteed.
func (b *TokenBucket) Acquire(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	b.refill(time.Now())
	if b.tokens < 1 {
		deficit := (1 - b.tokens) / b.rate
		timer := time.NewTimer(time.Duration(deficit * float64(time.Second)))
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		b.refill(time.Now())
		if b.tokens < 1 {
			// timer granularity can leave us fractionally short
			b.tokens = 1
		}
	}
	b.tokens--
	return nil
}

// refill credits elapsed time at the configured rate, capped at capacity.
func (b *TokenBucket) refill(now time.Time) {
	elapsed := now.Sub(b.last).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * b.rate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.last = now
}
