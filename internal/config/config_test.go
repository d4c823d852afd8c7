package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5*time.Minute, cfg.Catalog.TitleCacheTTL)
	assert.Equal(t, 0.3, cfg.Vector.MinSimilarity)
	assert.Equal(t, 10, cfg.Retrieval.SemanticLimit)
	assert.Equal(t, 5, cfg.Retrieval.RecommendationLimit)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_YAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlDoc := `
server:
  port: 9090
catalog:
  title_cache_ttl: 90s
retrieval:
  semantic_limit: 7
  recommendation_limit: 3
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o600))

	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("REDIS_URL", "redis://cache:6379")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 90*time.Second, cfg.Catalog.TitleCacheTTL)
	assert.Equal(t, 7, cfg.Retrieval.SemanticLimit)
	assert.Equal(t, 3, cfg.Retrieval.RecommendationLimit)
	assert.Equal(t, "warn", cfg.Observability.LogLevel)
	assert.Equal(t, "redis", cfg.Cache.Driver)
	assert.Equal(t, "cache:6379", cfg.Cache.Redis.Addr)
}

func TestLoad_DatabaseURLOverride(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://user:pass@db:5432/shop?sslmode=disable")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://user:pass@db:5432/shop?sslmode=disable", cfg.DatabaseDSN())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"bad driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = "postgres" }},
		{"bad cache", func(c *Config) { c.Cache.Driver = "memcached" }},
		{"bad vector adapter", func(c *Config) { c.Vector.Adapter = "faiss" }},
		{"similarity out of range", func(c *Config) { c.Vector.MinSimilarity = 1.5 }},
		{"bad embedding provider", func(c *Config) { c.Embedding.Provider = "openai" }},
		{"auth without secret", func(c *Config) { c.Auth.Enabled = true }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestResolveRelativePath(t *testing.T) {
	assert.Equal(t, "/etc/app/data.db", ResolveRelativePath("/etc/app/config.yaml", "data.db"))
	assert.Equal(t, "/var/data.db", ResolveRelativePath("/etc/app/config.yaml", "/var/data.db"))
}
