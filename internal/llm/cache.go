package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// Cache lookup results reported to onLookup.
const (
	CacheHit    = "hit"
	CacheMiss   = "miss"
	CacheShared = "shared"
)

// Cache is a process-wide TTL cache of completions. Identical concurrent
// requests share one upstream call.
type Cache struct {
	lru   *expirable.LRU[string, string]
	group singleflight.Group
}

func NewCache(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = 256
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Cache{lru: expirable.NewLRU[string, string](size, nil, ttl)}
}

func (c *Cache) Purge() {
	if c != nil {
		c.lru.Purge()
	}
}

func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

// CacheKey is a digest over everything that shapes a completion.
func CacheKey(req Request) string {
	raw, _ := json.Marshal(struct {
		Model       string    `json:"m"`
		Temperature float64   `json:"t"`
		MaxTokens   int       `json:"n"`
		Messages    []Message `json:"msgs"`
	}{req.Model, req.Temperature, req.MaxTokens, req.Messages})
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Cached serves repeated requests from c. A shared upstream call runs
// detached from any one caller's cancellation and finishes within its own
// deadline; callers stop waiting when their context ends.
func Cached(c *Cache, onLookup func(result string)) Middleware {
	report := func(string) {}
	if onLookup != nil {
		report = onLookup
	}
	return func(next Client) Client {
		if c == nil {
			return next
		}
		return &cached{next: next, c: c, report: report}
	}
}

type cached struct {
	next   Client
	c      *Cache
	report func(string)
}

func (m *cached) Name() string { return m.next.Name() }

func (m *cached) Complete(ctx context.Context, req Request) (string, error) {
	key := CacheKey(req)
	if out, ok := m.c.lru.Get(key); ok {
		m.report(CacheHit)
		return out, nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	detached := context.WithoutCancel(ctx)
	ch := m.c.group.DoChan(key, func() (any, error) {
		out, err := m.next.Complete(detached, req)
		if err != nil {
			return "", err
		}
		m.c.lru.Add(key, out)
		return out, nil
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Shared {
			m.report(CacheShared)
		} else {
			m.report(CacheMiss)
		}
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}
