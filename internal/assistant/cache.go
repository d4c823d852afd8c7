package assistant

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/cache"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/fusion"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/observability"
)

// ResponseCache caches fused contexts for anonymous product queries.
type ResponseCache struct {
	client cache.Client
	logger *observability.Logger
	config ResponseCacheConfig
}

// ResponseCacheConfig configures the response cache.
type ResponseCacheConfig struct {
	// TTL bounds how stale a cached catalog answer may be.
	TTL       time.Duration
	KeyPrefix string
	Enabled   bool
}

// DefaultResponseCacheConfig returns default cache configuration.
func DefaultResponseCacheConfig() ResponseCacheConfig {
	return ResponseCacheConfig{
		TTL:       5 * time.Minute,
		KeyPrefix: "assistant:response:",
		Enabled:   true,
	}
}

// NewResponseCache creates a response cache over client. A nil client
// disables caching.
func NewResponseCache(client cache.Client, logger *observability.Logger, config ResponseCacheConfig) *ResponseCache {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "assistant:response:"
	}
	if config.TTL == 0 {
		config.TTL = 5 * time.Minute
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &ResponseCache{client: client, logger: logger, config: config}
}

// Key generates the cache key for a query and optional intent hint.
func (c *ResponseCache) Key(query, hint string) string {
	combined := strings.ToLower(strings.TrimSpace(query)) + "|" + strings.ToLower(strings.TrimSpace(hint))
	hash := sha256.Sum256([]byte(combined))
	return c.config.KeyPrefix + hex.EncodeToString(hash[:16])
}

// CachedResponse is the stored form of a fused context.
type CachedResponse struct {
	Response fusion.FusedContext `json:"response"`
	CachedAt time.Time           `json:"cached_at"`
}

// Get returns the cached context for the query, if any.
func (c *ResponseCache) Get(ctx context.Context, query, hint string) (*fusion.FusedContext, bool) {
	if !c.enabled() {
		return nil, false
	}

	key := c.Key(query, hint)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Debug().Err(err).Str("key", key).Msg("Cache get error")
		}
		return nil, false
	}

	var cached CachedResponse
	if err := json.Unmarshal(data, &cached); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Failed to unmarshal cached response")
		return nil, false
	}

	c.logger.Debug().Str("key", key).Msg("Cache hit")
	return &cached.Response, true
}

// Set stores fc when it is cacheable.
func (c *ResponseCache) Set(ctx context.Context, query, hint string, fc fusion.FusedContext) error {
	if !c.enabled() || !Cacheable(fc) {
		return nil
	}

	key := c.Key(query, hint)
	data, err := json.Marshal(CachedResponse{Response: fc, CachedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	if err := c.client.Set(ctx, key, data, c.config.TTL); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Failed to cache response")
		return err
	}

	c.logger.Debug().Str("key", key).Dur("ttl", c.config.TTL).Msg("Cached response")
	return nil
}

// Invalidate drops every cached response, typically after the catalog or
// its embeddings change.
func (c *ResponseCache) Invalidate(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	c.logger.Info().Str("prefix", c.config.KeyPrefix).Msg("Invalidating response cache")
	return c.client.DeleteByPrefix(ctx, c.config.KeyPrefix)
}

func (c *ResponseCache) enabled() bool {
	return c != nil && c.config.Enabled && c.client != nil
}

// Cacheable reports whether fc depends only on the catalog. Order, account
// and failed responses are never cached.
func Cacheable(fc fusion.FusedContext) bool {
	if fc.Error != "" || fc.UserID != "" {
		return false
	}
	switch fc.Type {
	case fusion.TypeProductList, fusion.TypeProductDetail, fusion.TypeProductComparison, fusion.TypeProductRecommendation:
		return true
	}
	return false
}
