package bootstrap

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-authgate/grantd/internal/config"
	"github.com/go-authgate/grantd/internal/core"
	"github.com/go-authgate/grantd/internal/keys"
	"github.com/go-authgate/grantd/internal/metrics"
	"github.com/go-authgate/grantd/internal/services"
	"github.com/go-authgate/grantd/internal/store"

	"github.com/appleboy/graceful"
	"github.com/redis/go-redis/v9"
)

// createHTTPServer creates the HTTP server instance
func createHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// addServerRunningJob adds the HTTP server running job
func addServerRunningJob(m *graceful.Manager, srv *http.Server) {
	m.AddRunningJob(func(ctx context.Context) error {
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("Failed to start server: %v", err)
			}
		}()
		<-ctx.Done()
		return nil
	})
}

// addServerShutdownJob adds HTTP server shutdown handler
func addServerShutdownJob(m *graceful.Manager, cfg *config.Config, srv *http.Server) {
	m.AddShutdownJob(func() error {
		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server forced to shutdown: %v", err)
			return err
		}

		log.Println("Server exited")
		return nil
	})
}

// addRedisClientShutdownJob adds Redis client shutdown handler
func addRedisClientShutdownJob(m *graceful.Manager, redisClient *redis.Client) {
	if redisClient == nil {
		return
	}

	m.AddShutdownJob(func() error {
		log.Println("Closing Redis connection...")
		if err := redisClient.Close(); err != nil {
			log.Printf("Error closing Redis client: %v", err)
			return err
		}
		log.Println("Redis connection closed")
		return nil
	})
}

// addAuditServiceShutdownJob flushes buffered audit entries on shutdown
func addAuditServiceShutdownJob(
	m *graceful.Manager,
	cfg *config.Config,
	auditService *services.AuditService,
) {
	m.AddShutdownJob(func() error {
		log.Println("Shutting down audit service...")
		ctx, cancel := context.WithTimeout(context.Background(), cfg.AuditShutdownTimeout)
		defer cancel()

		if err := auditService.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down audit service: %v", err)
			return err
		}
		return nil
	})
}

// addTickerJob runs fn once at startup and then on every tick until shutdown.
func addTickerJob(m *graceful.Manager, interval time.Duration, fn func(ctx context.Context)) {
	m.AddRunningJob(func(ctx context.Context) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		fn(ctx)

		for {
			select {
			case <-ticker.C:
				fn(ctx)
			case <-ctx.Done():
				return nil
			}
		}
	})
}

// addAuditLogCleanupJob adds periodic audit log cleanup job
func addAuditLogCleanupJob(
	m *graceful.Manager,
	cfg *config.Config,
	auditService *services.AuditService,
) {
	if !cfg.EnableAuditLogging || cfg.AuditLogRetention <= 0 {
		return
	}

	addTickerJob(m, 24*time.Hour, func(ctx context.Context) {
		if deleted, err := auditService.CleanupOldLogs(ctx, cfg.AuditLogRetention); err != nil {
			log.Printf("Failed to cleanup old audit logs: %v", err)
		} else if deleted > 0 {
			log.Printf("Cleaned up %d old audit logs", deleted)
		}
	})
}

// addMetricsGaugeUpdateJob adds periodic metrics gauge update job
func addMetricsGaugeUpdateJob(
	m *graceful.Manager,
	cfg *config.Config,
	db *store.Store,
	recorder core.Recorder,
	gaugeCache core.Cache[int64],
) {
	if !cfg.MetricsEnabled || gaugeCache == nil {
		return
	}

	updater := metrics.NewGaugeUpdater(db, gaugeCache, recorder, cfg.MetricsGaugeUpdateInterval)
	errLog := newErrorLogger()

	addTickerJob(m, cfg.MetricsGaugeUpdateInterval, func(ctx context.Context) {
		if err := updater.Update(ctx); err != nil {
			errLog.logIfNeeded("count_refresh_tokens", err)
		}
	})
}

// addKeyRotationJob rotates the signing key every KEY_ROTATION_INTERVAL.
// Between rotations it prunes retired keys once their tokens have expired.
func addKeyRotationJob(
	m *graceful.Manager,
	cfg *config.Config,
	manager *keys.Manager,
	recorder core.Recorder,
	auditService *services.AuditService,
) {
	if cfg.KeyRotationInterval <= 0 {
		return
	}
	log.Printf("Signing key rotation every %s", cfg.KeyRotationInterval)

	m.AddRunningJob(func(ctx context.Context) error {
		rotate := time.NewTicker(cfg.KeyRotationInterval)
		defer rotate.Stop()
		prune := time.NewTicker(time.Minute)
		defer prune.Stop()

		for {
			select {
			case <-rotate.C:
				if err := rotateSigningKey(ctx, cfg, manager, recorder, auditService); err != nil {
					log.Printf("Failed to rotate signing key: %v", err)
				}
			case <-prune.C:
				if manager.PruneExpired() > 0 {
					active, retired := manager.Counts()
					recorder.SetSigningKeysCount(active, retired)
				}
			case <-ctx.Done():
				return nil
			}
		}
	})
}

// addExpiredRecordCleanupJob purges authorization codes and refresh tokens
// that can no longer be redeemed.
func addExpiredRecordCleanupJob(m *graceful.Manager, cfg *config.Config, db *store.Store) {
	if cfg.ExpiredRecordCleanupInterval <= 0 {
		return
	}

	addTickerJob(m, cfg.ExpiredRecordCleanupInterval, func(ctx context.Context) {
		purgeExpiredRecords(ctx, db, time.Now())
	})
}

func purgeExpiredRecords(ctx context.Context, db *store.Store, now time.Time) {
	if n, err := db.DeleteExpiredAuthorizationCodes(ctx, now); err != nil {
		log.Printf("Failed to delete expired authorization codes: %v", err)
	} else if n > 0 {
		log.Printf("Deleted %d expired authorization codes", n)
	}

	if n, err := db.DeleteExpiredRefreshTokens(ctx, now); err != nil {
		log.Printf("Failed to delete expired refresh tokens: %v", err)
	} else if n > 0 {
		log.Printf("Deleted %d expired refresh tokens", n)
	}
}

// addCacheCleanupJob adds cache cleanup on shutdown
func addCacheCleanupJob[T any](m *graceful.Manager, name string, c core.Cache[T]) {
	if c == nil {
		return
	}

	m.AddShutdownJob(func() error {
		if err := c.Close(); err != nil {
			log.Printf("Error closing %s: %v", name, err)
		} else {
			log.Printf("%s closed", name)
		}
		return nil
	})
}

// addDatabaseCloseJob closes the connection pool on shutdown
func addDatabaseCloseJob(m *graceful.Manager, db *store.Store) {
	m.AddShutdownJob(func() error {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
			return err
		}
		return nil
	})
}

// errorLogger handles rate-limited error logging
type errorLogger struct {
	mu              sync.Mutex
	lastErrorTimes  map[string]time.Time
	rateLimitWindow time.Duration
}

// newErrorLogger creates a new error logger with rate limiting
func newErrorLogger() *errorLogger {
	return &errorLogger{
		lastErrorTimes:  make(map[string]time.Time),
		rateLimitWindow: 5 * time.Minute, // at most once per 5 minutes per operation
	}
}

// logIfNeeded logs an error only if rate limit allows
func (e *errorLogger) logIfNeeded(operation string, err error) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	lastTime, exists := e.lastErrorTimes[operation]
	if exists && now.Sub(lastTime) < e.rateLimitWindow {
		return false
	}

	log.Printf("Database query failed for %s: %v (further errors will be suppressed for %v)",
		operation, err, e.rateLimitWindow)
	e.lastErrorTimes[operation] = now
	return true
}
