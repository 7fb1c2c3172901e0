package llm

import (
	"context"
	"strings"
	"time"

	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/config"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/observability"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/platform/logger"
)

// Gateway is the single entry point for completions. It fills request
// defaults, then runs the engine behind cache, breaker, retry, rate limit
// and per-attempt timeout.
type Gateway struct {
	log     *logger.Logger
	engine  Client
	client  Client
	cache   *Cache
	breaker *Breaker

	temperature float64
	maxTokens   int
}

func NewGateway(engine Client, cfg config.GatewayConfig, log *logger.Logger, metrics *observability.Metrics) *Gateway {
	if log == nil {
		log = logger.Nop()
	}
	log = log.With("component", "LLMGateway")

	cache := NewCache(cfg.CacheSize, cfg.CacheTTL.Duration)
	breaker := NewBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown.Duration, func(s BreakerState) {
		metrics.SetBreakerState(int(s))
		log.Warn("circuit breaker state change", "state", s.String())
	})

	client := Wrap(engine,
		Cached(cache, metrics.IncCache),
		CircuitBreaker(breaker),
		Retry(RetryConfig{
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   cfg.BaseDelay.Duration,
			MaxDelay:    cfg.MaxDelay.Duration,
			OnRetry: func(ctx context.Context, attempt int, err error, wait time.Duration) {
				metrics.IncLLMRetry(PhaseFrom(ctx))
				log.Info("retrying llm call", "phase", PhaseFrom(ctx), "attempt", attempt, "wait_ms", wait.Milliseconds(), "error", err.Error())
			},
		}),
		RateLimit(cfg.RPS, cfg.Burst),
		Timeout(cfg.Timeout.Duration),
		Instrument(log, metrics),
	)

	return &Gateway{
		log:         log,
		engine:      engine,
		client:      client,
		cache:       cache,
		breaker:     breaker,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

func (g *Gateway) Name() string { return "gateway:" + g.engine.Name() }

func (g *Gateway) Complete(ctx context.Context, req Request) (string, error) {
	if err := req.Valid(); err != nil {
		return "", err
	}
	req.Model = strings.TrimSpace(req.Model)
	if req.Temperature == 0 {
		req.Temperature = g.temperature
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = g.maxTokens
	}
	return g.client.Complete(ctx, req)
}

// Purge drops every cached completion.
func (g *Gateway) Purge() {
	g.cache.Purge()
	g.log.Info("llm cache purged")
}

func (g *Gateway) BreakerState() BreakerState { return g.breaker.State() }
