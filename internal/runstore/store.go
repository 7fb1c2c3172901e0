// Package runstore keeps the last generated content of each run so answers
// can be applied and pushed after the stream has closed.
package runstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/config"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/domain/scoping"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/platform/logger"
)

var (
	ErrNotFound  = errors.New("runstore: run not found")
	ErrMissingID = errors.New("runstore: content has no run id")
)

type Store interface {
	// Save replaces the stored content for content.RunID.
	Save(ctx context.Context, content scoping.GeneratedContent) error
	Get(ctx context.Context, runID string) (scoping.GeneratedContent, error)
	Close() error
}

// New opens the backend named by cfg.Backend; an empty backend means memory.
func New(ctx context.Context, cfg config.StoreConfig, log *logger.Logger) (Store, error) {
	if log == nil {
		log = logger.Nop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", config.StoreMemory:
		return NewMemory(cfg.Size, cfg.TTL.Duration), nil
	case config.StoreRedis:
		return NewRedis(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("runstore: unknown backend %q", cfg.Backend)
	}
}
