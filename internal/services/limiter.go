package services

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces calls to the carrier-tracking provider.
type Limiter interface {
	Wait(ctx context.Context) error
}

// NewLimiter allows one call per interval with no burst. A non-positive interval disables pacing.
func NewLimiter(interval time.Duration) Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}
