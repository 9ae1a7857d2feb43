package bootstrap

import (
	"fmt"
	"log"

	"github.com/go-authgate/grantd/internal/config"
	"github.com/go-authgate/grantd/internal/middleware"
	"github.com/go-authgate/grantd/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// rateLimitMiddlewares holds rate limiting middlewares for different endpoints
type rateLimitMiddlewares struct {
	token     gin.HandlerFunc
	login     gin.HandlerFunc
	authorize gin.HandlerFunc
}

// setupRateLimiting configures rate limiting middlewares based on configuration
func setupRateLimiting(
	cfg *config.Config,
	auditService *services.AuditService,
	redisClient *redis.Client,
) (rateLimitMiddlewares, error) {
	if !cfg.EnableRateLimit {
		noOpMiddleware := func(c *gin.Context) { c.Next() }
		log.Println("Rate limiting disabled")
		return rateLimitMiddlewares{
			token:     noOpMiddleware,
			login:     noOpMiddleware,
			authorize: noOpMiddleware,
		}, nil
	}

	log.Printf("Rate limiting enabled (store: %s)", cfg.RateLimitStore)
	storeType := middleware.RateLimitStoreType(cfg.RateLimitStore)

	createLimiter := func(requestsPerMinute int, endpoint string) (gin.HandlerFunc, error) {
		limiter, err := middleware.NewRateLimiter(middleware.RateLimitConfig{
			Endpoint:          endpoint,
			RequestsPerMinute: requestsPerMinute,
			StoreType:         storeType,
			RedisClient:       redisClient, // nil for memory store
			CleanupInterval:   cfg.RateLimitCleanupInterval,
			AuditService:      auditService,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limiter for %s: %w", endpoint, err)
		}
		return limiter, nil
	}

	var (
		limiters rateLimitMiddlewares
		err      error
	)
	if limiters.token, err = createLimiter(cfg.TokenRateLimit, "token"); err != nil {
		return limiters, err
	}
	if limiters.login, err = createLimiter(cfg.LoginRateLimit, "login"); err != nil {
		return limiters, err
	}
	if limiters.authorize, err = createLimiter(cfg.AuthorizeRateLimit, "authorize"); err != nil {
		return limiters, err
	}
	return limiters, nil
}
