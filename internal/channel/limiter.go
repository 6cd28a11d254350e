package channel

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Limiter throttles outbound provider calls. A nil Limiter never blocks.
// Waiting is the only policy: calls are delayed, never dropped or retried.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter allows perSecond calls per second with the given burst. perSecond <= 0 disables throttling.
func NewLimiter(perSecond float64, burst int) *Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Wait blocks until a call may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.limiter == nil {
		return nil
	}
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("outbound rate limit: %w", err)
	}
	return nil
}
