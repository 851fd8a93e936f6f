// Package ratelimit paces requests to the board API and media host.
//
// TokenBucket hands out a fixed number of tokens per refill period. Wait
// blocks until a token is available and returns early with the context
// error when the caller is cancelled, so a shutdown never waits out a
// full period.
//
//	limiter := ratelimit.PerSecond(1)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
//	// Proceed with request
package ratelimit
