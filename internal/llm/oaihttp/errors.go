package oaihttp

import (
	"fmt"
	"time"
)

type HTTPError struct {
	StatusCode int
	Body       string

	retryAfter time.Duration
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "upstream http error"
	}
	if e.Body == "" {
		return fmt.Sprintf("upstream http error: status=%d", e.StatusCode)
	}
	body := e.Body
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("upstream http error: status=%d body=%s", e.StatusCode, body)
}

func (e *HTTPError) HTTPStatusCode() int { return e.StatusCode }

// RetryAfter is the upstream Retry-After hint, zero when absent.
func (e *HTTPError) RetryAfter() time.Duration { return e.retryAfter }
