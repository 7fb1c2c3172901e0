package runstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/domain/scoping"
)

// Memory holds runs in a size-bounded LRU whose entries expire after ttl.
// Content is stored encoded so callers never share slices with the store.
type Memory struct {
	lru *expirable.LRU[string, []byte]
}

func NewMemory(size int, ttl time.Duration) *Memory {
	if size <= 0 {
		size = 512
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Memory{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (m *Memory) Save(_ context.Context, content scoping.GeneratedContent) error {
	if content.RunID == "" {
		return ErrMissingID
	}
	b, err := json.Marshal(content)
	if err != nil {
		return err
	}
	m.lru.Add(content.RunID, b)
	return nil
}

func (m *Memory) Get(_ context.Context, runID string) (scoping.GeneratedContent, error) {
	b, ok := m.lru.Get(runID)
	if !ok {
		return scoping.GeneratedContent{}, ErrNotFound
	}
	var out scoping.GeneratedContent
	if err := json.Unmarshal(b, &out); err != nil {
		return scoping.GeneratedContent{}, err
	}
	return out, nil
}

func (m *Memory) Len() int { return m.lru.Len() }

func (m *Memory) Close() error {
	m.lru.Purge()
	return nil
}
