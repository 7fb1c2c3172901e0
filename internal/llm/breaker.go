package llm

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("llm: circuit breaker open")

type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerHalfOpen
	BreakerOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerHalfOpen:
		return "half-open"
	case BreakerOpen:
		return "open"
	default:
		return "closed"
	}
}

// Breaker opens after threshold consecutive failures and, once cooldown
// has passed, lets a single trial call through to decide whether to close.
// A threshold <= 0 disables it.
type Breaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	failures  int
	state     BreakerState
	openedAt  time.Time
	probing   bool

	now      func() time.Time
	onChange func(BreakerState)
}

func NewBreaker(threshold int, cooldown time.Duration, onChange func(BreakerState)) *Breaker {
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{threshold: threshold, cooldown: cooldown, now: time.Now, onChange: onChange}
}

func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether a call may proceed. It returns ErrCircuitOpen while
// open, and while half-open with a trial call already in flight.
func (b *Breaker) Allow() error {
	if b == nil || b.threshold <= 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case BreakerOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return ErrCircuitOpen
		}
		b.setState(BreakerHalfOpen)
		b.probing = true
		return nil
	case BreakerHalfOpen:
		if b.probing {
			return ErrCircuitOpen
		}
		b.probing = true
		return nil
	default:
		return nil
	}
}

// Record feeds the outcome of an allowed call back into the breaker.
// Caller cancellation says nothing about upstream health and is ignored.
func (b *Breaker) Record(err error) {
	if b == nil || b.threshold <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if errors.Is(err, context.Canceled) {
		if b.state == BreakerHalfOpen {
			b.probing = false
		}
		return
	}
	if err == nil {
		b.failures = 0
		b.probing = false
		b.setState(BreakerClosed)
		return
	}
	b.failures++
	if b.state == BreakerHalfOpen || b.failures >= b.threshold {
		b.probing = false
		b.openedAt = b.now()
		b.setState(BreakerOpen)
	}
}

func (b *Breaker) setState(s BreakerState) {
	if b.state == s {
		return
	}
	b.state = s
	if b.onChange != nil {
		b.onChange(s)
	}
}

// CircuitBreaker short-circuits calls with ErrCircuitOpen while b is open.
func CircuitBreaker(b *Breaker) Middleware {
	return func(next Client) Client {
		return &breakered{next: next, b: b}
	}
}

type breakered struct {
	next Client
	b    *Breaker
}

func (c *breakered) Name() string { return c.next.Name() }

func (c *breakered) Complete(ctx context.Context, req Request) (string, error) {
	if err := c.b.Allow(); err != nil {
		return "", err
	}
	out, err := c.next.Complete(ctx, req)
	c.b.Record(err)
	return out, err
}
