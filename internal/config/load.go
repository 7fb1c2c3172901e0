package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/platform/envutil"
)

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	s := strings.TrimSpace(node.Value)
	if s == "" || s == "null" || s == "~" {
		d.Duration = 0
		return nil
	}
	if dd, err := time.ParseDuration(s); err == nil {
		d.Duration = dd
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("duration must be a string like \"5s\" or an int nanoseconds: %q", s)
	}
	d.Duration = time.Duration(n)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.Duration.String(), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Env: "development",
		HTTP: HTTPConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: D(5 * time.Second),
			IdleTimeout:       D(2 * time.Minute),
			ShutdownTimeout:   D(15 * time.Second),
			MaxRequestBytes:   2 << 20,
			CORSOrigins: []string{
				"http://localhost:3000",
				"http://localhost:5173",
				"http://127.0.0.1:3000",
				"http://127.0.0.1:5173",
			},
			HeartbeatInterval: D(15 * time.Second),
		},
		Gateway: GatewayConfig{
			Engine:              EngineOpenRouter,
			BaseURL:             "https://openrouter.ai/api",
			ChatCompletionsPath: "/v1/chat/completions",
			SiteName:            "ScopeStack Content Engine",
			Timeout:             D(45 * time.Second),
			MaxAttempts:         3,
			BaseDelay:           D(time.Second),
			MaxDelay:            D(8 * time.Second),
			BreakerThreshold:    5,
			BreakerCooldown:     D(30 * time.Second),
			CacheTTL:            D(10 * time.Minute),
			CacheSize:           256,
			Temperature:         0.3,
			MaxTokens:           8000,
		},
		Models: ModelSet{
			Research: "perplexity/sonar",
			Analysis: "anthropic/claude-3.5-sonnet",
			Content:  "openai/gpt-4o",
			Format:   "openai/gpt-4o-mini",
		},
		Pipeline: PipelineConfig{
			MinServices:         4,
			MinSubservices:      12,
			MinPhaseCoverage:    0.6,
			ResearchSources:     8,
			EnhanceSources:      3,
			EnhanceConcurrency:  3,
			MaxContextQuestions: 6,
		},
		Store: StoreConfig{
			Backend:   StoreMemory,
			KeyPrefix: "scope:run:",
			TTL:       D(24 * time.Hour),
			Size:      512,
		},
		ScopeStack: ScopeStackConfig{
			BaseURL: "https://api.scopestack.io",
			Timeout: D(30 * time.Second),
		},
	}
}

// Load reads .env, then the YAML file at SCOPE_CONFIG_PATH (or
// ./config/config.yaml when present), then environment overrides.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	cfgPath := strings.TrimSpace(os.Getenv("SCOPE_CONFIG_PATH"))
	if cfgPath == "" {
		if wd, err := os.Getwd(); err == nil {
			p := filepath.Join(wd, "config", "config.yaml")
			if _, err := os.Stat(p); err == nil {
				cfgPath = p
			}
		}
	}
	if cfgPath != "" {
		b, err := os.ReadFile(cfgPath)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", cfgPath, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Env = envutil.String("LOG_MODE", cfg.Env)
	cfg.HTTP.Addr = envutil.String("HTTP_ADDR", cfg.HTTP.Addr)
	cfg.HTTP.APIToken = envutil.String("API_TOKEN", cfg.HTTP.APIToken)
	if v := strings.TrimSpace(os.Getenv("CORS_ORIGINS")); v != "" {
		cfg.HTTP.CORSOrigins = splitList(v)
	}

	g := &cfg.Gateway
	g.Engine = envutil.String("LLM_ENGINE", g.Engine)
	g.BaseURL = envutil.String("OPENROUTER_BASE_URL", g.BaseURL)
	g.APIKey = envutil.String("OPENROUTER_API_KEY", g.APIKey)
	g.SiteURL = envutil.String("SITE_URL", g.SiteURL)
	g.SiteName = envutil.String("SITE_NAME", g.SiteName)
	g.GeminiAPIKey = envutil.String("GEMINI_API_KEY", g.GeminiAPIKey)
	g.Timeout = D(envutil.Duration("LLM_TIMEOUT", g.Timeout.Duration))
	g.MaxAttempts = envutil.Int("LLM_MAX_ATTEMPTS", g.MaxAttempts)
	g.RPS = envutil.Float("LLM_RPS", g.RPS)
	g.Burst = envutil.Int("LLM_BURST", g.Burst)

	cfg.Store.Backend = envutil.String("STORE_BACKEND", cfg.Store.Backend)
	cfg.Store.RedisAddr = envutil.String("REDIS_ADDR", cfg.Store.RedisAddr)
	cfg.Store.RedisPassword = envutil.String("REDIS_PASSWORD", cfg.Store.RedisPassword)

	cfg.ScopeStack.BaseURL = envutil.String("SCOPESTACK_BASE_URL", cfg.ScopeStack.BaseURL)
	cfg.ScopeStack.APIToken = envutil.String("SCOPESTACK_API_TOKEN", cfg.ScopeStack.APIToken)
	cfg.ScopeStack.AccountSlug = envutil.String("SCOPESTACK_ACCOUNT", cfg.ScopeStack.AccountSlug)

	cfg.Metrics.Enabled = envutil.Bool("METRICS_ENABLED", cfg.Metrics.Enabled)
}

// Validate normalizes cfg in place and rejects unusable settings.
func (cfg *Config) Validate() error {
	if cfg.Env == "" {
		cfg.Env = "development"
	}
	if strings.TrimSpace(cfg.HTTP.Addr) == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.MaxRequestBytes <= 0 {
		cfg.HTTP.MaxRequestBytes = 2 << 20
	}

	g := &cfg.Gateway
	g.Engine = strings.ToLower(strings.TrimSpace(g.Engine))
	g.BaseURL = strings.TrimRight(strings.TrimSpace(g.BaseURL), "/")
	switch g.Engine {
	case EngineOpenRouter, EngineOAIHTTP, "openai_http":
		if g.Engine == "openai_http" {
			g.Engine = EngineOAIHTTP
		}
		if g.BaseURL == "" {
			return fmt.Errorf("gateway.base_url required for engine %q", g.Engine)
		}
		if g.Engine == EngineOpenRouter && g.APIKey == "" {
			return errors.New("gateway.api_key (OPENROUTER_API_KEY) required for engine \"openrouter\"")
		}
		if g.ChatCompletionsPath == "" {
			g.ChatCompletionsPath = "/v1/chat/completions"
		}
	case EngineGemini:
		if g.GeminiAPIKey == "" {
			return errors.New("gateway.gemini_api_key (GEMINI_API_KEY) required for engine \"gemini\"")
		}
	case EngineMock:
	default:
		return fmt.Errorf("invalid gateway.engine=%q", g.Engine)
	}
	if g.Timeout.Duration <= 0 {
		g.Timeout = D(45 * time.Second)
	}
	if g.MaxAttempts < 1 {
		g.MaxAttempts = 1
	}
	if g.BaseDelay.Duration < 0 || g.MaxDelay.Duration < 0 {
		return errors.New("gateway.base_delay and gateway.max_delay must not be negative")
	}
	if g.BreakerThreshold < 0 {
		return errors.New("gateway.breaker_threshold must not be negative")
	}

	if cfg.Models.Research == "" || cfg.Models.Analysis == "" || cfg.Models.Content == "" || cfg.Models.Format == "" {
		return errors.New("models.research, models.analysis, models.content and models.format are required")
	}

	p := &cfg.Pipeline
	if p.MinServices < 1 {
		p.MinServices = 1
	}
	if p.MinPhaseCoverage < 0 || p.MinPhaseCoverage > 1 {
		return fmt.Errorf("pipeline.min_phase_coverage must be within [0,1], got %v", p.MinPhaseCoverage)
	}
	if p.EnhanceConcurrency < 1 {
		p.EnhanceConcurrency = 1
	}

	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	switch cfg.Store.Backend {
	case "", StoreMemory:
		cfg.Store.Backend = StoreMemory
	case StoreRedis:
		if cfg.Store.RedisAddr == "" {
			return errors.New("store.redis_addr (REDIS_ADDR) required for store backend \"redis\"")
		}
	default:
		return fmt.Errorf("invalid store.backend=%q", cfg.Store.Backend)
	}
	cfg.ScopeStack.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.ScopeStack.BaseURL), "/")
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
