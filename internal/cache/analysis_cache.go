package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andresuchdata/compras/backend-go/internal/config"
)

const (
	analysisKeyPrefix     = "analysis"
	analysisScanBatchSize = 100
)

// Kind separates the result types sharing one keyspace.
type Kind string

const (
	KindProducts         Kind = "products"
	KindCustomers        Kind = "customers"
	KindCustomerProducts Kind = "customer_products"
	KindCustomerTrend    Kind = "customer_trend"
)

// ResultCache stores finished analysis results as JSON. Results are a pure
// function of their inputs, so entries never go stale before the TTL.
type ResultCache interface {
	Get(ctx context.Context, kind Kind, key string, dst any) (bool, error)
	Set(ctx context.Context, kind Kind, key string, value any) error
	// InvalidateAll drops every cached result and reports how many were removed.
	InvalidateAll(ctx context.Context) (int64, error)
}

type redisResultCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopResultCache struct{}

// NewResultCache connects to Redis when caching is enabled and returns a
// no-op cache otherwise.
func NewResultCache(ctx context.Context, cfg config.CacheConfig) (ResultCache, error) {
	if !cfg.Enabled {
		return &noopResultCache{}, nil
	}

	client, err := dialRedis(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewRedisResultCache(client, cacheTTL(cfg)), nil
}

// NewRedisResultCache wraps an existing client.
func NewRedisResultCache(client *redis.Client, ttl time.Duration) ResultCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &redisResultCache{client: client, ttl: ttl}
}

func NewNoopResultCache() ResultCache {
	return &noopResultCache{}
}

func (c *redisResultCache) Get(ctx context.Context, kind Kind, key string, dst any) (bool, error) {
	payload, err := c.client.Get(ctx, buildAnalysisKey(kind, key)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get failed: %w", err)
	}

	if err := json.Unmarshal(payload, dst); err != nil {
		return false, fmt.Errorf("decode %s cache: %w", kind, err)
	}
	return true, nil
}

func (c *redisResultCache) Set(ctx context.Context, kind Kind, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s cache: %w", kind, err)
	}

	if err := c.client.Set(ctx, buildAnalysisKey(kind, key), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisResultCache) InvalidateAll(ctx context.Context) (int64, error) {
	return purgePrefix(ctx, c.client, analysisKeyPrefix+":", analysisScanBatchSize)
}

func (n *noopResultCache) Get(ctx context.Context, kind Kind, key string, dst any) (bool, error) {
	return false, nil
}

func (n *noopResultCache) Set(ctx context.Context, kind Kind, key string, value any) error {
	return nil
}

func (n *noopResultCache) InvalidateAll(ctx context.Context) (int64, error) {
	return 0, nil
}

// Fingerprint hashes the parts that identify one run: input digests, the
// column mapping, the parameters and any per-request selector.
func Fingerprint(parts ...string) string {
	hash := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(hash[:])
}

func buildAnalysisKey(kind Kind, key string) string {
	return fmt.Sprintf("%s:%s:%s", analysisKeyPrefix, kind, key)
}
