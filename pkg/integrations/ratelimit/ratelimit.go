// Package ratelimit spaces outbound requests so the market-data API budget
// (300 requests per minute) is never exceeded.
package ratelimit

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

var ErrInvalidInterval = errors.New("min interval must be positive")

// Limiter grants at most one request per interval. Waiters are served in the
// order they called Acquire.
type Limiter struct {
	interval time.Duration
	limiter  *rate.Limiter
}

func New(minInterval time.Duration) (*Limiter, error) {
	if minInterval <= 0 {
		return nil, ErrInvalidInterval
	}
	return &Limiter{
		interval: minInterval,
		limiter:  rate.NewLimiter(rate.Every(minInterval), 1),
	}, nil
}

// Acquire blocks until the caller may issue its request or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limiter wait")
	}
	return nil
}

func (l *Limiter) Interval() time.Duration {
	return l.interval
}
