package handlers

import (
	"context"
	"net/http"

	"github.com/go-authgate/grantd/internal/middleware"
	"github.com/go-authgate/grantd/internal/token"

	"github.com/gin-gonic/gin"
)

// Me handles GET /api/me behind RequireBearerToken.
func Me(c *gin.Context) {
	claims, ok := middleware.GetTokenClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
		return
	}
	scopes := token.ParseScope(claims.Scope)
	if scopes == nil {
		scopes = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"sub":       claims.Subject,
		"client_id": claims.ClientID,
		"scopes":    scopes,
	})
}

// HealthChecker reports whether a dependency is usable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Health handles GET /health. The database is the only required dependency.
func Health(db HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "disconnected",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"database": "connected",
		})
	}
}
