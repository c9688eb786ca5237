package extract

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// WithRateLimit bounds how often next is called. Callers wait for a token
// or give up when their context ends.
func WithRateLimit(next Extractor, limiter *rate.Limiter) Extractor {
	return ExtractorFunc(func(ctx context.Context, src Source) (Raw, error) {
		if err := limiter.Wait(ctx); err != nil {
			return Raw{}, fmt.Errorf("rate limit: %w", err)
		}
		return next.Extract(ctx, src)
	})
}

// PerMinute builds a limiter allowing n calls per minute with a burst of one.
// A non-positive n disables limiting.
func PerMinute(n int) *rate.Limiter {
	if n <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
}
