package runstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/config"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/domain/scoping"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/platform/logger"
)

// Redis stores each run as one JSON string key with a TTL, so several
// instances behind a load balancer see the same runs.
type Redis struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
}

func NewRedis(ctx context.Context, cfg config.StoreConfig, log *logger.Logger) (*Redis, error) {
	if log == nil {
		log = logger.Nop()
	}
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, fmt.Errorf("runstore: missing redis address")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "scope:run:"
	}
	ttl := cfg.TTL.Duration
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Redis{
		log:    log.With("component", "RedisRunStore"),
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
	}, nil
}

func (r *Redis) key(runID string) string { return r.prefix + runID }

func (r *Redis) Save(ctx context.Context, content scoping.GeneratedContent) error {
	if content.RunID == "" {
		return ErrMissingID
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, r.key(content.RunID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("runstore: save %s: %w", content.RunID, err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, runID string) (scoping.GeneratedContent, error) {
	raw, err := r.rdb.Get(ctx, r.key(runID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return scoping.GeneratedContent{}, ErrNotFound
	}
	if err != nil {
		return scoping.GeneratedContent{}, fmt.Errorf("runstore: get %s: %w", runID, err)
	}
	var out scoping.GeneratedContent
	if err := json.Unmarshal(raw, &out); err != nil {
		r.log.Warn("bad stored run payload", "run_id", runID, "error", err.Error())
		return scoping.GeneratedContent{}, err
	}
	return out, nil
}

func (r *Redis) Close() error {
	if r == nil || r.rdb == nil {
		return nil
	}
	return r.rdb.Close()
}
