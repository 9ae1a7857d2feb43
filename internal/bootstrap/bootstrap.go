package bootstrap

import (
	"context"
	"log"
	"net/http"

	"github.com/go-authgate/grantd/internal/config"
	"github.com/go-authgate/grantd/internal/core"
	"github.com/go-authgate/grantd/internal/keys"
	"github.com/go-authgate/grantd/internal/models"
	"github.com/go-authgate/grantd/internal/services"
	"github.com/go-authgate/grantd/internal/store"
	"github.com/go-authgate/grantd/internal/token"

	"github.com/appleboy/graceful"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Application holds all initialized components
type Application struct {
	Config *config.Config

	// Core infrastructure
	DB                   *store.Store
	MetricsRecorder      core.Recorder
	GaugeCache           core.Cache[int64]
	ClientCache          core.Cache[models.RegisteredClient]
	RateLimitRedisClient *redis.Client
	KeyManager           *keys.Manager

	// Services
	AuditService   *services.AuditService
	UserDirectory  core.UserDirectory
	JWTProvider    *token.JWTProvider
	ClientRegistry *services.ClientRegistry
	CodeService    *services.AuthorizationCodeService
	TokenIssuer    *services.TokenIssuer
	GrantProcessor *services.GrantProcessor

	// HTTP
	HandlerSet handlerSet
	Router     *gin.Engine
	Server     *http.Server
}

// Run initializes and starts the application
func Run(cfg *config.Config) error {
	// Phase 1: Validate configuration
	if err := validateAllConfiguration(cfg); err != nil {
		return err
	}

	// Phases 2-4: infrastructure, business layer, HTTP layer
	app, err := New(context.Background(), cfg)
	if err != nil {
		return err
	}

	// Phase 5: Start server with graceful shutdown
	app.startWithGracefulShutdown()

	return nil
}

// New builds every component without starting the listener or background jobs.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	app := &Application{Config: cfg}

	if err := app.initializeInfrastructure(ctx); err != nil {
		app.Close(ctx)
		return nil, err
	}

	if err := app.initializeBusinessLayer(ctx); err != nil {
		app.Close(ctx)
		return nil, err
	}

	if err := app.initializeHTTPLayer(ctx); err != nil {
		app.Close(ctx)
		return nil, err
	}

	return app, nil
}

// initializeInfrastructure sets up database, metrics, caches, Redis and signing keys
func (app *Application) initializeInfrastructure(ctx context.Context) error {
	var err error

	// Database
	app.DB, err = initializeDatabase(ctx, app.Config)
	if err != nil {
		return err
	}

	// Metrics
	app.MetricsRecorder = initializeMetrics(app.Config)
	app.GaugeCache, err = initializeGaugeCache(ctx, app.Config)
	if err != nil {
		return err
	}

	// Client lookups
	app.ClientCache, err = initializeClientCache(ctx, app.Config)
	if err != nil {
		return err
	}

	// Redis (for rate limiting)
	app.RateLimitRedisClient, err = initializeRateLimitRedisClient(ctx, app.Config)
	if err != nil {
		return err
	}

	// Signing keys
	app.KeyManager, err = initializeKeyManager(ctx, app.Config, app.MetricsRecorder)
	if err != nil {
		return err
	}

	return nil
}

// initializeBusinessLayer sets up services
func (app *Application) initializeBusinessLayer(ctx context.Context) error {
	// Audit service (required by other services)
	app.AuditService = services.NewAuditService(
		app.DB,
		app.Config.EnableAuditLogging,
		app.Config.AuditLogBufferSize,
	)

	var err error
	app.UserDirectory, err = initializeUserDirectory(app.Config, app.MetricsRecorder)
	if err != nil {
		return err
	}

	return app.initializeServices(ctx)
}

// initializeHTTPLayer sets up handlers, router, and server
func (app *Application) initializeHTTPLayer(ctx context.Context) error {
	scopes, err := advertisedScopes(ctx, app.DB)
	if err != nil {
		return err
	}

	app.HandlerSet = app.initializeHandlers(scopes)

	app.Router, err = setupRouter(
		app.Config,
		app.DB,
		app.HandlerSet,
		app.JWTProvider,
		app.MetricsRecorder,
		app.AuditService,
		app.RateLimitRedisClient,
	)
	if err != nil {
		return err
	}

	app.Server = createHTTPServer(app.Config, app.Router)
	return nil
}

// startWithGracefulShutdown starts the server and handles graceful shutdown
func (app *Application) startWithGracefulShutdown() {
	m := graceful.NewManager()

	// Add jobs
	addServerRunningJob(m, app.Server)
	addServerShutdownJob(m, app.Config, app.Server)
	addRedisClientShutdownJob(m, app.RateLimitRedisClient)
	addAuditServiceShutdownJob(m, app.Config, app.AuditService)
	addAuditLogCleanupJob(m, app.Config, app.AuditService)
	addMetricsGaugeUpdateJob(m, app.Config, app.DB, app.MetricsRecorder, app.GaugeCache)
	addKeyRotationJob(m, app.Config, app.KeyManager, app.MetricsRecorder, app.AuditService)
	addExpiredRecordCleanupJob(m, app.Config, app.DB)
	addCacheCleanupJob(m, "Client cache", app.ClientCache)
	addCacheCleanupJob(m, "Metrics cache", app.GaugeCache)
	addDatabaseCloseJob(m, app.DB)

	// Wait for graceful shutdown
	<-m.Done()
}

// Close releases what New acquired. Run relies on shutdown jobs instead.
func (app *Application) Close(ctx context.Context) {
	if app.AuditService != nil {
		if err := app.AuditService.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down audit service: %v", err)
		}
	}
	if app.RateLimitRedisClient != nil {
		_ = app.RateLimitRedisClient.Close()
	}
	if app.ClientCache != nil {
		_ = app.ClientCache.Close()
	}
	if app.GaugeCache != nil {
		_ = app.GaugeCache.Close()
	}
	if app.DB != nil {
		_ = app.DB.Close()
	}
}
