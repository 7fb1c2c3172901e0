package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadYAMLWithEnvOverrides(t *testing.T) {
	p := writeConfig(t, `
env: production
http:
  addr: ":9090"
  shutdown_timeout: 3s
gateway:
  engine: openrouter
  timeout: 20s
  max_attempts: 2
  cache_ttl: 1m
models:
  research: perplexity/sonar-pro
pipeline:
  min_subservices: 10
`)
	t.Setenv("SCOPE_CONFIG_PATH", p)
	t.Setenv("OPENROUTER_API_KEY", "sk-test")
	t.Setenv("HTTP_ADDR", ":7070")
	t.Setenv("LLM_RPS", "2.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, ":7070", cfg.HTTP.Addr)
	assert.Equal(t, 3*time.Second, cfg.HTTP.ShutdownTimeout.Duration)
	assert.Equal(t, 20*time.Second, cfg.Gateway.Timeout.Duration)
	assert.Equal(t, 2, cfg.Gateway.MaxAttempts)
	assert.Equal(t, time.Minute, cfg.Gateway.CacheTTL.Duration)
	assert.Equal(t, 2.5, cfg.Gateway.RPS)
	assert.Equal(t, "sk-test", cfg.Gateway.APIKey)
	assert.Equal(t, "perplexity/sonar-pro", cfg.Models.Research)
	// Fields absent from the file keep their defaults.
	assert.Equal(t, "openai/gpt-4o-mini", cfg.Models.Format)
	assert.Equal(t, 10, cfg.Pipeline.MinSubservices)
	assert.Equal(t, 4, cfg.Pipeline.MinServices)
	assert.Equal(t, "https://openrouter.ai/api", cfg.Gateway.BaseURL)
}

func TestLoadRequiresAPIKeyForOpenRouter(t *testing.T) {
	t.Setenv("SCOPE_CONFIG_PATH", writeConfig(t, "gateway:\n  engine: openrouter\n"))
	t.Setenv("OPENROUTER_API_KEY", "")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENROUTER_API_KEY")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Gateway.Engine = "Mock"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, EngineMock, cfg.Gateway.Engine)

	cfg = Default()
	cfg.Gateway.Engine = EngineMock
	cfg.Store.Backend = StoreRedis
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Gateway.Engine = "carrier-pigeon"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Gateway.Engine = EngineMock
	cfg.Pipeline.MinPhaseCoverage = 1.5
	assert.Error(t, cfg.Validate())
}

func TestDurationAcceptsNanoseconds(t *testing.T) {
	t.Setenv("SCOPE_CONFIG_PATH", writeConfig(t, "gateway:\n  engine: mock\n  base_delay: 1500000000\n"))
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, cfg.Gateway.BaseDelay.Duration)
}

func TestModelSetMerge(t *testing.T) {
	base := Default().Models
	got := base.Merge(ModelSet{Content: "x/y"})
	assert.Equal(t, "x/y", got.Content)
	assert.Equal(t, base.Research, got.Research)
}
