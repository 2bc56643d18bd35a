package ratelimiter

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// TargetLimiters holds one token bucket limiter per webhook host.
// Targets are free-form URLs supplied per notification, so limiters are
// created lazily on first use rather than from a fixed set.
// Each limiter enforces a steady-state rate (e.g. 50 tokens/sec).
// Burst is set equal to the rate so no extra burst capacity is allowed
// beyond the configured per-second maximum.
type TargetLimiters struct {
	mu       sync.Mutex
	perSec   int
	limiters map[string]*rate.Limiter
}

// New creates a TargetLimiters granting ratePerSec tokens per second per host.
func New(ratePerSec int) *TargetLimiters {
	return &TargetLimiters{
		perSec:   ratePerSec,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until the host's limiter grants a token.
// Called by each worker immediately before sending to the webhook.
// Returns a non-nil error only if ctx is cancelled while waiting.
func (tl *TargetLimiters) Wait(ctx context.Context, host string) error {
	return tl.limiter(host).Wait(ctx)
}

func (tl *TargetLimiters) limiter(host string) *rate.Limiter {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	l, ok := tl.limiters[host]
	if !ok {
		// burst == rate: prevents any "saved up" burst above the limit
		l = rate.NewLimiter(rate.Limit(tl.perSec), tl.perSec)
		tl.limiters[host] = l
	}
	return l
}
