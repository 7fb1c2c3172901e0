package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/config"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/llm"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/llm/gemini"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/llm/mock"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/llm/oaihttp"
)

// NewEngine returns the raw completion backend for cfg.Engine.
func NewEngine(ctx context.Context, cfg config.GatewayConfig) (llm.Client, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Engine)) {
	case config.EngineOpenRouter, config.EngineOAIHTTP, "openai_http", "":
		return oaihttp.New(cfg)
	case config.EngineGemini:
		return gemini.New(ctx, cfg.GeminiAPIKey)
	case config.EngineMock:
		return mock.New(), nil
	default:
		return nil, fmt.Errorf("unknown engine %q", cfg.Engine)
	}
}

func engineName(cfg config.GatewayConfig) string {
	if name := strings.TrimSpace(cfg.Engine); name != "" {
		return name
	}
	return config.EngineOpenRouter
}
