package llm

import (
	"context"
	"errors"
	"time"

	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/pkg/httpx"
)

// maxRetryAfter bounds how long an upstream Retry-After can park a call.
const maxRetryAfter = 60 * time.Second

// RetryAfterer is implemented by errors that carry an upstream Retry-After.
type RetryAfterer interface {
	RetryAfter() time.Duration
}

type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// Retryable defaults to httpx.IsRetryableError.
	Retryable func(error) bool
	// OnRetry runs before each backoff sleep.
	OnRetry func(ctx context.Context, attempt int, err error, wait time.Duration)

	sleep func(ctx context.Context, d time.Duration) error
}

// Retry retries retryable failures with exponential backoff and jitter.
// Caller cancellation stops the loop immediately.
func Retry(cfg RetryConfig) Middleware {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.Retryable == nil {
		cfg.Retryable = httpx.IsRetryableError
	}
	if cfg.sleep == nil {
		cfg.sleep = httpx.Sleep
	}
	return func(next Client) Client {
		return &retrying{next: next, cfg: cfg}
	}
}

type retrying struct {
	next Client
	cfg  RetryConfig
}

func (r *retrying) Name() string { return r.next.Name() }

func (r *retrying) Complete(ctx context.Context, req Request) (string, error) {
	var last error
	for attempt := 0; attempt < r.cfg.MaxAttempts; attempt++ {
		out, err := r.next.Complete(ctx, req)
		if err == nil {
			return out, nil
		}
		last = err
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if attempt == r.cfg.MaxAttempts-1 || !r.cfg.Retryable(err) {
			break
		}
		wait := httpx.JitterSleep(httpx.Backoff(attempt, r.cfg.BaseDelay, r.cfg.MaxDelay))
		var ra RetryAfterer
		if errors.As(err, &ra) {
			if d := ra.RetryAfter(); d > wait {
				wait = min(d, maxRetryAfter)
			}
		}
		if r.cfg.OnRetry != nil {
			r.cfg.OnRetry(ctx, attempt+1, err, wait)
		}
		if err := r.cfg.sleep(ctx, wait); err != nil {
			return "", err
		}
	}
	return "", last
}
