package retry

import (
	"context"
	"math/rand"
	"time"

	errs "igrepost/pkg/errors"
)

// BackoffStrategy computes the pause before retry number attempt (1-based)
type BackoffStrategy interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff multiplies the delay after every attempt, up to MaxDelay
type ExponentialBackoff struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	// JitterFactor spreads each delay by +/- that fraction (0.0 to 1.0)
	JitterFactor float64
}

// DefaultExponentialBackoff starts at 1s and doubles up to a minute
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:    time.Second,
		MaxDelay:     time.Minute,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// NextDelay implements BackoffStrategy
func (b *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	m := b.Multiplier
	if m < 1 {
		m = 1
	}
	d := float64(b.BaseDelay)
	for i := 1; i < attempt; i++ {
		if b.MaxDelay > 0 && d >= float64(b.MaxDelay) {
			break
		}
		d *= m
	}
	if b.MaxDelay > 0 && d > float64(b.MaxDelay) {
		d = float64(b.MaxDelay)
	}
	return spread(d, b.JitterFactor)
}

// scaled returns a copy whose delays are factor times longer
func (b *ExponentialBackoff) scaled(factor float64, maxDelay time.Duration) *ExponentialBackoff {
	c := *b
	c.BaseDelay = time.Duration(float64(b.BaseDelay) * factor)
	if maxDelay > c.MaxDelay {
		c.MaxDelay = maxDelay
	}
	return &c
}

func spread(d, factor float64) time.Duration {
	if factor > 0 {
		d += (rand.Float64()*2 - 1) * d * factor
	}
	if d < 0 {
		return 0
	}
	return time.Duration(d)
}

// ConstantBackoff waits the same delay before every retry
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay implements BackoffStrategy
func (c *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return c.Delay
}

// TypedBackoff picks a strategy by the type of a failed call's error
type TypedBackoff map[errs.ErrorType]BackoffStrategy

// For returns the strategy registered for t
func (tb TypedBackoff) For(t errs.ErrorType) (BackoffStrategy, bool) {
	s, ok := tb[t]
	return s, ok && s != nil
}

// APIBackoff derives per-type strategies from base. Instagram throttling
// clears slowly, so rate limits back off far longer than network blips.
func APIBackoff(base *ExponentialBackoff) TypedBackoff {
	if base == nil {
		base = DefaultExponentialBackoff()
	}

	network := *base
	network.JitterFactor = 0.2

	rateLimit := base.scaled(30, 5*time.Minute)
	rateLimit.Multiplier = 1.5
	rateLimit.JitterFactor = 0.3

	return TypedBackoff{
		errs.ErrorTypeNetwork:     &network,
		errs.ErrorTypeServerError: base.scaled(5, time.Minute),
		errs.ErrorTypeRateLimit:   rateLimit,
	}
}

// Wait sleeps for delay or until ctx is done
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
