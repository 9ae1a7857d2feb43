package bootstrap

import (
	"log"
	"net/http"

	"github.com/go-authgate/grantd/internal/config"
	"github.com/go-authgate/grantd/internal/core"
	"github.com/go-authgate/grantd/internal/handlers"
	"github.com/go-authgate/grantd/internal/metrics"
	"github.com/go-authgate/grantd/internal/middleware"
	"github.com/go-authgate/grantd/internal/services"
	"github.com/go-authgate/grantd/internal/store"
	"github.com/go-authgate/grantd/internal/token"
	"github.com/go-authgate/grantd/internal/util"
	"github.com/go-authgate/grantd/internal/version"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

const sessionCookieName = "grantd_session"

// setupRouter configures the Gin router with all routes and middleware
func setupRouter(
	cfg *config.Config,
	db *store.Store,
	h handlerSet,
	jwtProvider *token.JWTProvider,
	prometheusMetrics core.Recorder,
	auditService *services.AuditService,
	rateLimitRedisClient *redis.Client,
) (*gin.Engine, error) {
	// Setup Gin mode
	setupGinMode(cfg)
	r := gin.New()

	// Setup middleware
	r.Use(metrics.HTTPMetricsMiddleware(prometheusMetrics))
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(util.IPMiddleware())
	r.Use(middleware.CORS(cfg))

	// Setup session middleware
	setupSessionMiddleware(r, cfg)
	r.Use(middleware.CSRFMiddleware(cfg.CSRFExemptPaths))

	// Health check endpoint
	r.GET("/health", handlers.Health(db))

	// Setup metrics endpoint
	setupMetricsEndpoint(r, cfg)

	// Setup rate limiting
	rateLimiters, err := setupRateLimiting(cfg, auditService, rateLimitRedisClient)
	if err != nil {
		return nil, err
	}

	// Setup all routes
	setupAllRoutes(r, h, jwtProvider, rateLimiters)

	// Log server startup info
	logServerStartup(cfg)

	return r, nil
}

// setupSessionMiddleware configures session handling middleware
func setupSessionMiddleware(r *gin.Engine, cfg *config.Config) {
	sessionStore := cookie.NewStore([]byte(cfg.SessionSecret))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   cfg.SessionMaxAge,
		HttpOnly: true,
		Secure:   cfg.IsProduction,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionCookieName, sessionStore))
}

// setupMetricsEndpoint configures the Prometheus metrics endpoint
func setupMetricsEndpoint(r *gin.Engine, cfg *config.Config) {
	switch {
	case !cfg.MetricsEnabled:
		log.Printf("Prometheus metrics disabled")
	case cfg.MetricsToken != "":
		log.Printf("Prometheus metrics enabled at /metrics with Bearer token authentication")
		r.GET(
			"/metrics",
			middleware.MetricsAuthMiddleware(cfg.MetricsToken),
			gin.WrapH(promhttp.Handler()),
		)
	default:
		log.Printf("Prometheus metrics enabled at /metrics (no authentication)")
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
}

// setupAllRoutes configures all application routes
func setupAllRoutes(
	r *gin.Engine,
	h handlerSet,
	jwtProvider *token.JWTProvider,
	rateLimiters rateLimitMiddlewares,
) {
	// Discovery (public)
	r.GET("/.well-known/oauth-authorization-server", h.discovery.Metadata)
	r.GET("/.well-known/openid-configuration", h.discovery.Metadata)
	r.GET("/.well-known/jwks.json", h.discovery.JWKS)

	// Login routes
	r.GET("/login", h.session.LoginForm)
	r.POST("/login", rateLimiters.login, h.session.Login)
	r.POST("/logout", h.session.Logout)

	// OAuth API routes (public, client authenticated per request)
	oauth := r.Group("/oauth2")
	{
		oauth.POST("/token", rateLimiters.token, h.token.Token)
		oauth.GET("/jwks", h.discovery.JWKS)
		oauth.GET("/consent", h.authorization.Consent)
	}

	// OAuth Authorization Code Flow (browser, requires login + CSRF)
	oauthProtected := r.Group("/oauth2")
	oauthProtected.Use(middleware.RequireLogin(), rateLimiters.authorize)
	{
		oauthProtected.GET("/authorize", h.authorization.ShowAuthorize)
		oauthProtected.POST("/authorize", h.authorization.HandleAuthorize)
	}

	// JSON API
	api := r.Group("/api")
	{
		api.GET("/auth/check-username/:username", h.session.CheckUsername)
		api.GET("/me", middleware.RequireBearerToken(jwtProvider), handlers.Me)
	}
}

// setupGinMode sets Gin mode based on environment configuration
func setupGinMode(cfg *config.Config) {
	if gin.Mode() == gin.TestMode {
		return
	}
	mode := ginModeMap[cfg.IsProduction]
	gin.SetMode(mode)
	log.Printf("Gin mode: %s", ginModeLogMessage[cfg.IsProduction])
}

var ginModeMap = map[bool]string{
	true:  gin.ReleaseMode,
	false: gin.DebugMode,
}

var ginModeLogMessage = map[bool]string{
	true:  "Release (production)",
	false: "Debug (development)",
}

// logServerStartup logs server startup information
func logServerStartup(cfg *config.Config) {
	log.Printf("Starting %s", version.String())
	log.Printf("User directory mode: %s", cfg.UserDirectoryMode)
	log.Printf("Authorization server starting on %s", cfg.ServerAddr)
	log.Printf("Issuer: %s", cfg.Issuer())
	log.Printf("Metadata: %s/.well-known/oauth-authorization-server", cfg.BaseURL)
	if cfg.SeedDefaultClients {
		log.Printf("Development clients seeded: test-client, web-client")
	}
}
