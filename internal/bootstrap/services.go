package bootstrap

import (
	"context"
	"log"

	"github.com/go-authgate/grantd/internal/services"
	"github.com/go-authgate/grantd/internal/store"
	"github.com/go-authgate/grantd/internal/token"
)

// initializeServices wires the grant pipeline: registry, codes, issuer, processor
func (app *Application) initializeServices(_ context.Context) error {
	cfg := app.Config

	app.JWTProvider = token.NewJWTProvider(app.KeyManager, cfg.Issuer(), cfg.TokenAudience)

	clients := store.NewCachedClientStore(app.DB, app.ClientCache, cfg.ClientCacheTTL, app.MetricsRecorder)
	app.ClientRegistry = services.NewClientRegistry(clients, app.MetricsRecorder, app.AuditService)

	app.CodeService = services.NewAuthorizationCodeService(
		app.DB,
		app.ClientRegistry,
		cfg.AuthCodeTTL,
		app.MetricsRecorder,
		app.AuditService,
	)

	app.TokenIssuer = services.NewTokenIssuer(
		app.JWTProvider,
		app.DB,
		cfg.AccessTokenDefaultTTL,
		cfg.RefreshTokenDefaultTTL,
		app.MetricsRecorder,
		app.AuditService,
	)

	app.GrantProcessor = services.NewGrantProcessor(
		app.ClientRegistry,
		app.CodeService,
		app.TokenIssuer,
		app.MetricsRecorder,
		cfg.LogGrantTransitions,
	)

	log.Printf("Token issuer: %s (audience=%s)", cfg.Issuer(), cfg.TokenAudience)
	return nil
}
