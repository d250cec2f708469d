package client

import (
	"context"
	"time"
)

// Backoff computes the delay before each retry. The base delay doubles with
// every retry and is capped at Max.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter func(time.Duration) time.Duration
}

// Delay returns the wait before retry number n (1 for the first retry).
// A positive retryAfter from the server replaces the exponential delay.
func (b Backoff) Delay(n int, retryAfter time.Duration) time.Duration {
	var delay time.Duration
	if retryAfter > 0 {
		delay = retryAfter
	} else {
		delay = b.Base
		for i := 1; i < n; i++ {
			delay *= 2
			if b.Max > 0 && delay >= b.Max {
				break
			}
		}
		if b.Jitter != nil {
			delay += b.Jitter(delay)
		}
	}

	if b.Max > 0 && delay > b.Max {
		delay = b.Max
	}
	return delay
}

// sleepContext blocks for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
