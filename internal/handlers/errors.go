package handlers

import (
	"log"
	"net/http"

	"github.com/go-authgate/grantd/internal/services"

	"github.com/gin-gonic/gin"
)

// writeOAuthError renders err as an RFC 6749 §5.2 error response.
// server_error details are logged and never returned.
func writeOAuthError(c *gin.Context, err error) {
	code, status, description := services.OAuthError(err)
	if status == http.StatusInternalServerError {
		log.Printf("[Handler] %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	if status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", `Basic realm="grantd"`)
	}
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.AbortWithStatusJSON(status, gin.H{
		"error":             code,
		"error_description": description,
	})
}
