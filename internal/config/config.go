package config

import "time"

type Duration struct {
	Duration time.Duration
}

func D(d time.Duration) Duration { return Duration{Duration: d} }

type HTTPConfig struct {
	Addr              string   `yaml:"addr"`
	ReadHeaderTimeout Duration `yaml:"read_header_timeout"`
	IdleTimeout       Duration `yaml:"idle_timeout"`
	ShutdownTimeout   Duration `yaml:"shutdown_timeout"`
	MaxRequestBytes   int64    `yaml:"max_request_bytes"`

	// CORSOrigins lists browser origins allowed to call the API.
	CORSOrigins []string `yaml:"cors_origins"`

	// HeartbeatInterval is how often idle SSE streams get a comment line.
	HeartbeatInterval Duration `yaml:"heartbeat_interval"`

	// APIToken, when set, is required as a bearer token on /api routes.
	APIToken string `yaml:"api_token"`
}

// Engine names accepted by gateway.engine.
const (
	EngineOpenRouter = "openrouter"
	EngineOAIHTTP    = "oai_http"
	EngineGemini     = "gemini"
	EngineMock       = "mock"
)

type GatewayConfig struct {
	Engine string `yaml:"engine"`

	// BaseURL and APIKey address an OpenAI-compatible chat completion API.
	BaseURL             string `yaml:"base_url"`
	APIKey              string `yaml:"api_key"`
	ChatCompletionsPath string `yaml:"chat_completions_path"`

	// SiteURL and SiteName are sent as HTTP-Referer / X-Title.
	SiteURL  string `yaml:"site_url"`
	SiteName string `yaml:"site_name"`

	GeminiAPIKey string `yaml:"gemini_api_key"`

	Timeout     Duration `yaml:"timeout"`
	MaxAttempts int      `yaml:"max_attempts"`
	BaseDelay   Duration `yaml:"base_delay"`
	MaxDelay    Duration `yaml:"max_delay"`

	BreakerThreshold int      `yaml:"breaker_threshold"`
	BreakerCooldown  Duration `yaml:"breaker_cooldown"`

	CacheTTL  Duration `yaml:"cache_ttl"`
	CacheSize int      `yaml:"cache_size"`

	// RPS <= 0 disables rate limiting.
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`

	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// ModelSet names the model used by each pipeline role.
type ModelSet struct {
	Research string `yaml:"research" json:"research,omitempty"`
	Analysis string `yaml:"analysis" json:"analysis,omitempty"`
	Content  string `yaml:"content" json:"content,omitempty"`
	Format   string `yaml:"format" json:"format,omitempty"`
}

// Merge returns m with every non-empty field of override applied.
func (m ModelSet) Merge(override ModelSet) ModelSet {
	if override.Research != "" {
		m.Research = override.Research
	}
	if override.Analysis != "" {
		m.Analysis = override.Analysis
	}
	if override.Content != "" {
		m.Content = override.Content
	}
	if override.Format != "" {
		m.Format = override.Format
	}
	return m
}

type PipelineConfig struct {
	MinServices      int     `yaml:"min_services"`
	MinSubservices   int     `yaml:"min_subservices"`
	MinPhaseCoverage float64 `yaml:"min_phase_coverage"`

	ResearchSources    int `yaml:"research_sources"`
	EnhanceSources     int `yaml:"enhance_sources"`
	EnhanceConcurrency int `yaml:"enhance_concurrency"`

	MaxContextQuestions int `yaml:"max_context_questions"`
}

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type StoreConfig struct {
	Backend       string   `yaml:"backend"`
	RedisAddr     string   `yaml:"redis_addr"`
	RedisPassword string   `yaml:"redis_password"`
	RedisDB       int      `yaml:"redis_db"`
	KeyPrefix     string   `yaml:"key_prefix"`
	TTL           Duration `yaml:"ttl"`
	Size          int      `yaml:"size"`
}

type ScopeStackConfig struct {
	BaseURL     string   `yaml:"base_url"`
	APIToken    string   `yaml:"api_token"`
	AccountSlug string   `yaml:"account_slug"`
	Timeout     Duration `yaml:"timeout"`
}

// Enabled reports whether pushing to ScopeStack is configured.
func (c ScopeStackConfig) Enabled() bool {
	return c.BaseURL != "" && c.APIToken != "" && c.AccountSlug != ""
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type Config struct {
	Env        string           `yaml:"env"`
	HTTP       HTTPConfig       `yaml:"http"`
	Gateway    GatewayConfig    `yaml:"gateway"`
	Models     ModelSet         `yaml:"models"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Store      StoreConfig      `yaml:"store"`
	ScopeStack ScopeStackConfig `yaml:"scopestack"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}
