package app

import (
	"context"
	"fmt"
	"time"

	apphttp "github.com/scopestack-jon/scopestack-content-engine-sub000/internal/http"
	httpH "github.com/scopestack-jon/scopestack-content-engine-sub000/internal/http/handlers"

	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/clients/scopestack"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/config"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/llm"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/modules/scoping/orchestrator"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/observability"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/platform/logger"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/runstore"
)

type App struct {
	Log          *logger.Logger
	Cfg          *config.Config
	Metrics      *observability.Metrics
	Gateway      *llm.Gateway
	Orchestrator *orchestrator.Orchestrator
	Runs         runstore.Store
	Server       *apphttp.Server

	otelShutdown func(context.Context) error
}

// New wires the HTTP service: engine behind the gateway, the pipeline, the
// run store and the optional ScopeStack client.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: config required")
	}
	if log == nil {
		log = logger.Nop()
	}

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: observability.ServiceName,
		Environment: cfg.Env,
	})

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics()
	}

	log.Info("Wiring pipeline...", "engine", cfg.Gateway.Engine)
	gw, orch, err := NewPipeline(ctx, cfg, log, metrics)
	if err != nil {
		return nil, err
	}

	log.Info("Wiring run store...", "backend", cfg.Store.Backend)
	runs, err := runstore.New(ctx, cfg.Store, log)
	if err != nil {
		return nil, fmt.Errorf("init run store: %w", err)
	}

	// A typed nil would make the push handler think ScopeStack is on.
	var pusher httpH.Pusher
	if cfg.ScopeStack.Enabled() {
		client, err := scopestack.New(cfg.ScopeStack, log)
		if err != nil {
			_ = runs.Close()
			return nil, fmt.Errorf("init scopestack client: %w", err)
		}
		pusher = client
	} else {
		log.Info("ScopeStack push disabled")
	}

	log.Info("Wiring handlers...")
	research := httpH.NewResearchHandler(log, orch, runs, cfg.HTTP.HeartbeatInterval.Duration)
	server := apphttp.NewServer(cfg.HTTP, apphttp.RouterConfig{
		Log:             log,
		Metrics:         metrics,
		CORSOrigins:     cfg.HTTP.CORSOrigins,
		MaxRequestBytes: cfg.HTTP.MaxRequestBytes,
		APIToken:        cfg.HTTP.APIToken,
		MetricsEnabled:  cfg.Metrics.Enabled,
		ResearchHandler: research,
		PushHandler:     httpH.NewPushHandler(research, pusher),
		HealthHandler:   httpH.NewHealthHandler(engineName(cfg.Gateway)),
	})

	return &App{
		Log:          log,
		Cfg:          cfg,
		Metrics:      metrics,
		Gateway:      gw,
		Orchestrator: orch,
		Runs:         runs,
		Server:       server,
		otelShutdown: otelShutdown,
	}, nil
}

// NewPipeline builds the completion engine named by cfg.Gateway.Engine,
// wraps it in the gateway, builds every pipeline stage against it once and
// hands the stages to a new orchestrator.
func NewPipeline(ctx context.Context, cfg *config.Config, log *logger.Logger, metrics *observability.Metrics) (*llm.Gateway, *orchestrator.Orchestrator, error) {
	engine, err := NewEngine(ctx, cfg.Gateway)
	if err != nil {
		return nil, nil, fmt.Errorf("init %s engine: %w", cfg.Gateway.Engine, err)
	}
	gw := llm.NewGateway(engine, cfg.Gateway, log, metrics)
	stages := orchestrator.NewComponents(gw, cfg.Models, cfg.Pipeline, log)
	orch, err := orchestrator.New(stages, cfg.Models, log, metrics)
	if err != nil {
		return nil, nil, err
	}
	return gw, orch, nil
}

func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Server.Run(ctx)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Runs != nil {
		if err := a.Runs.Close(); err != nil {
			a.Log.Warn("run store close failed", "error", err.Error())
		}
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.otelShutdown(ctx)
		cancel()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
