// Package ratelimit keeps igrepost under Instagram's request budget.
//
// TokenBucket refills continuously, so rate_limit.requests_per_minute
// allows a short burst and then spaces requests evenly.
//
//	limiter := ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
package ratelimit
