package cache

import (
	"cmp"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andresuchdata/compras/backend-go/internal/config"
)

const (
	defaultCacheTTL  = 10 * time.Minute
	redisDialTimeout = 3 * time.Second
	redisPingTimeout = 5 * time.Second
	redisMaxDB       = 15
)

// dialRedis returns a client that has answered PING.
func dialRedis(ctx context.Context, cfg config.CacheConfig) (*redis.Client, error) {
	opts, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis at %s unreachable: %w", opts.Addr, err)
	}
	return client, nil
}

func cacheTTL(cfg config.CacheConfig) time.Duration {
	if cfg.TTLSeconds <= 0 {
		return defaultCacheTTL
	}
	return time.Duration(cfg.TTLSeconds) * time.Second
}

// redisOptions prefers REDIS_URL and falls back to host/port/db.
func redisOptions(cfg config.CacheConfig) (*redis.Options, error) {
	var opts *redis.Options
	if cfg.RedisURL != "" {
		parsed, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		opts = parsed
	} else {
		if cfg.RedisDB < 0 || cfg.RedisDB > redisMaxDB {
			return nil, fmt.Errorf("REDIS_DB %d out of range 0-%d", cfg.RedisDB, redisMaxDB)
		}
		opts = &redis.Options{
			Addr:     net.JoinHostPort(cmp.Or(cfg.RedisHost, "127.0.0.1"), cmp.Or(cfg.RedisPort, "6379")),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}
	}
	opts.DialTimeout = redisDialTimeout
	return opts, nil
}

// purgePrefix unlinks every key under prefix, one SCAN page at a time, and
// returns how many keys were removed.
func purgePrefix(ctx context.Context, client *redis.Client, prefix string, pageSize int64) (int64, error) {
	var (
		cursor  uint64
		removed int64
	)
	for {
		keys, next, err := client.Scan(ctx, cursor, prefix+"*", pageSize).Result()
		if err != nil {
			return removed, fmt.Errorf("redis scan %q: %w", prefix, err)
		}
		if len(keys) > 0 {
			n, err := client.Unlink(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("redis unlink %q: %w", prefix, err)
			}
			removed += n
		}
		if cursor = next; cursor == 0 {
			return removed, nil
		}
	}
}
