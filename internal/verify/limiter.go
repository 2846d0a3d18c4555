package verify

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	speedup  = 1.2
	slowdown = 0.5
)

// AdaptiveLimiter paces calls to a verification service. Every accepted
// call nudges the rate up, every 429 halves it; the rate never leaves
// [base/4, base*2].
type AdaptiveLimiter struct {
	lim *rate.Limiter

	mu     sync.Mutex
	cur    rate.Limit
	lo, hi rate.Limit
}

// NewAdaptiveLimiter starts at base events per second with the given burst.
func NewAdaptiveLimiter(base rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		lim: rate.NewLimiter(base, burst),
		cur: base,
		lo:  base / 4,
		hi:  base * 2,
	}
}

func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.lim.Wait(ctx)
}

// OnSuccess raises the rate by a fifth.
func (a *AdaptiveLimiter) OnSuccess() {
	a.adjust(speedup)
}

// OnRateLimit halves the rate.
func (a *AdaptiveLimiter) OnRateLimit() {
	r := a.adjust(slowdown)
	zap.L().Warn("verify: throttled by upstream", zap.Float64("rate_per_sec", float64(r)))
}

func (a *AdaptiveLimiter) adjust(factor float64) rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	next := min(max(a.cur*rate.Limit(factor), a.lo), a.hi)
	if next != a.cur {
		a.cur = next
		a.lim.SetLimit(next)
	}
	return next
}

// Limit is the current rate in events per second.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cur
}
