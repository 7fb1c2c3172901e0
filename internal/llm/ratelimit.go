package llm

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimit applies a process-wide token bucket to upstream attempts.
// rps <= 0 disables it.
func RateLimit(rps float64, burst int) Middleware {
	return func(next Client) Client {
		if rps <= 0 {
			return next
		}
		if burst < 1 {
			burst = 1
		}
		return &rateLimited{next: next, lim: rate.NewLimiter(rate.Limit(rps), burst)}
	}
}

type rateLimited struct {
	next Client
	lim  *rate.Limiter
}

func (c *rateLimited) Name() string { return c.next.Name() }

func (c *rateLimited) Complete(ctx context.Context, req Request) (string, error) {
	if err := c.lim.Wait(ctx); err != nil {
		return "", err
	}
	return c.next.Complete(ctx, req)
}

// Timeout bounds each attempt with its own deadline.
func Timeout(d time.Duration) Middleware {
	return func(next Client) Client {
		if d <= 0 {
			return next
		}
		return &timed{next: next, d: d}
	}
}

type timed struct {
	next Client
	d    time.Duration
}

func (c *timed) Name() string { return c.next.Name() }

func (c *timed) Complete(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.d)
	defer cancel()
	return c.next.Complete(ctx, req)
}
