package bootstrap

import (
	"context"
	"fmt"
	"log"

	"github.com/go-authgate/grantd/internal/config"

	"github.com/redis/go-redis/v9"
)

// initializeRateLimitRedisClient connects the go-redis client used by the
// rate limiter store. ulule/limiter only accepts go-redis clients, so this
// is separate from the rueidis caches. Returns nil when Redis is not needed.
func initializeRateLimitRedisClient(
	ctx context.Context,
	cfg *config.Config,
) (*redis.Client, error) {
	if !cfg.EnableRateLimit || cfg.RateLimitStore != config.RateLimitStoreRedis {
		return nil, nil //nolint:nilnil // redis client not needed in this configuration
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(ctx, cfg.RedisConnTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.RedisAddr, err)
	}

	log.Printf("Rate limit store: redis (addr=%s, db=%d)", cfg.RedisAddr, cfg.RedisDB)
	return client, nil
}
