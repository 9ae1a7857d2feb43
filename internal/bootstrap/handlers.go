package bootstrap

import (
	"github.com/go-authgate/grantd/internal/handlers"
)

// handlerSet holds all HTTP handlers
type handlerSet struct {
	token         *handlers.TokenHandler
	discovery     *handlers.DiscoveryHandler
	authorization *handlers.AuthorizationHandler
	session       *handlers.SessionHandler
}

// initializeHandlers creates all HTTP handler instances
func (app *Application) initializeHandlers(scopes []string) handlerSet {
	return handlerSet{
		token:         handlers.NewTokenHandler(app.GrantProcessor),
		discovery:     handlers.NewDiscoveryHandler(app.KeyManager, app.Config.BaseURL, scopes),
		authorization: handlers.NewAuthorizationHandler(app.CodeService, app.AuditService),
		session: handlers.NewSessionHandler(
			app.UserDirectory,
			app.MetricsRecorder,
			app.AuditService,
			app.Config.BaseURL,
		),
	}
}
