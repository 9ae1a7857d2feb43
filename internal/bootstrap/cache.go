package bootstrap

import (
	"context"
	"fmt"
	"log"

	"github.com/go-authgate/grantd/internal/cache"
	"github.com/go-authgate/grantd/internal/config"
	"github.com/go-authgate/grantd/internal/core"
	"github.com/go-authgate/grantd/internal/metrics"
	"github.com/go-authgate/grantd/internal/models"
)

// initializeMetrics initializes Prometheus metrics
func initializeMetrics(cfg *config.Config) core.Recorder {
	prometheusMetrics := metrics.Init(cfg.MetricsEnabled)
	if cfg.MetricsEnabled {
		log.Println("Prometheus metrics initialized")
	} else {
		log.Println("Metrics disabled (using noop implementation)")
	}
	return prometheusMetrics
}

// newCache builds a cache of the configured type under prefix.
func newCache[T any](
	ctx context.Context,
	cfg *config.Config,
	name, prefix string,
) (core.Cache[T], error) {
	// Create timeout context for cache initialization
	ctx, cancel := context.WithTimeout(ctx, cfg.CacheInitTimeout)
	defer cancel()

	switch cfg.ClientCacheType {
	case config.ClientCacheTypeRedisAside:
		c, err := cache.NewRueidisAsideCache[T](
			ctx,
			cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
			prefix,
			cfg.ClientCacheClientTTL,
			cfg.ClientCacheSizePerConn,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis-aside %s cache: %w", name, err)
		}
		log.Printf(
			"%s cache: redis-aside (addr=%s, db=%d, client_ttl=%s, cache_size_per_conn=%dMB)",
			name,
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.ClientCacheClientTTL,
			cfg.ClientCacheSizePerConn,
		)
		return c, nil

	case config.ClientCacheTypeRedis:
		c, err := cache.NewRueidisCache[T](
			ctx,
			cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
			prefix,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis %s cache: %w", name, err)
		}
		log.Printf("%s cache: redis (addr=%s, db=%d)", name, cfg.RedisAddr, cfg.RedisDB)
		return c, nil

	default: // memory
		log.Printf("%s cache: memory (single instance only)", name)
		return cache.NewMemoryCache[T](), nil
	}
}

// initializeClientCache initializes the cache in front of client lookups
func initializeClientCache(
	ctx context.Context,
	cfg *config.Config,
) (core.Cache[models.RegisteredClient], error) {
	return newCache[models.RegisteredClient](ctx, cfg, "Client", "grantd:clients:")
}

// initializeGaugeCache initializes the cache shared by gauge updates across replicas.
// Returns nil when metrics are disabled.
func initializeGaugeCache(ctx context.Context, cfg *config.Config) (core.Cache[int64], error) {
	if !cfg.MetricsEnabled || cfg.MetricsGaugeUpdateInterval <= 0 {
		return nil, nil
	}
	return newCache[int64](ctx, cfg, "Metrics", "grantd:metrics:")
}
