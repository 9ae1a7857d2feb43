package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/go-authgate/grantd/internal/core"
	"github.com/go-authgate/grantd/internal/middleware"
	"github.com/go-authgate/grantd/internal/models"
	"github.com/go-authgate/grantd/internal/services"
	"github.com/go-authgate/grantd/internal/util"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// SessionHandler signs resource owners in and out of the browser session.
type SessionHandler struct {
	directory core.UserDirectory
	metrics   core.Recorder
	audit     *services.AuditService
	baseURL   string
}

func NewSessionHandler(
	directory core.UserDirectory,
	metrics core.Recorder,
	audit *services.AuditService,
	baseURL string,
) *SessionHandler {
	return &SessionHandler{
		directory: directory,
		metrics:   metrics,
		audit:     audit,
		baseURL:   baseURL,
	}
}

// LoginForm handles GET /login. It hands out what a login form needs.
func (h *SessionHandler) LoginForm(c *gin.Context) {
	next := c.Query("next")
	if !util.IsRedirectSafe(next, h.baseURL) {
		next = ""
	}
	c.JSON(http.StatusOK, gin.H{
		"csrf_token": middleware.GetCSRFToken(c),
		"next":       next,
		"directory":  h.directory.Name(),
	})
}

// Login handles POST /login.
func (h *SessionHandler) Login(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	next := c.PostForm("next")
	if !util.IsRedirectSafe(next, h.baseURL) {
		next = ""
	}

	if username == "" || password == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             services.CodeInvalidRequest,
			"error_description": "username and password are required",
		})
		return
	}

	identity, err := h.directory.Authenticate(c.Request.Context(), username, password)
	h.metrics.RecordLogin(h.directory.Name(), err == nil)
	if err != nil {
		log.Printf("[Login] Failed login for %q via %s: %v", username, h.directory.Name(), err)
		h.audit.Log(c.Request.Context(), services.AuditLogEntry{
			EventType:    models.EventLoginFailure,
			Severity:     models.SeverityWarning,
			ActorID:      username,
			ResourceType: models.ResourceUser,
			ResourceID:   username,
			Action:       "Login failed",
			Details:      models.AuditDetails{"directory": h.directory.Name()},
			Success:      false,
			RequestPath:  c.Request.URL.Path,
		})
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":             "access_denied",
			"error_description": "Invalid username or password",
		})
		return
	}

	session := sessions.Default(c)
	session.Set(middleware.SessionSubject, identity.Subject)
	session.Set(middleware.SessionUsername, identity.Username)
	if err := session.Save(); err != nil {
		log.Printf("[Login] Failed to save session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":             services.CodeServerError,
			"error_description": "Failed to create session",
		})
		return
	}

	h.audit.Log(c.Request.Context(), services.AuditLogEntry{
		EventType:    models.EventLoginSuccess,
		Severity:     models.SeverityInfo,
		ActorID:      identity.Subject,
		ResourceType: models.ResourceUser,
		ResourceID:   identity.Subject,
		Action:       "Login succeeded",
		Details:      models.AuditDetails{"directory": h.directory.Name()},
		Success:      true,
		RequestPath:  c.Request.URL.Path,
	})

	if next != "" {
		c.Redirect(http.StatusFound, next)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"subject":  identity.Subject,
		"username": identity.Username,
	})
}

// Logout handles POST /logout.
func (h *SessionHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	subject, _ := session.Get(middleware.SessionSubject).(string)
	session.Clear()
	if err := session.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":             services.CodeServerError,
			"error_description": "Failed to save session",
		})
		return
	}

	if subject != "" {
		h.audit.Log(c.Request.Context(), services.AuditLogEntry{
			EventType:    models.EventLogout,
			Severity:     models.SeverityInfo,
			ActorID:      subject,
			ResourceType: models.ResourceUser,
			ResourceID:   subject,
			Action:       "Logout",
			Success:      true,
			RequestPath:  c.Request.URL.Path,
		})
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}

// CheckUsername handles GET /api/auth/check-username/:username.
// available is true when the directory does not know the name.
func (h *SessionHandler) CheckUsername(c *gin.Context) {
	username := c.Param("username")
	available, err := h.isAvailable(c.Request.Context(), username)
	if err != nil {
		log.Printf("[Login] Username lookup via %s failed: %v", h.directory.Name(), err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":             "temporarily_unavailable",
			"error_description": "User directory unavailable",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"username": username, "available": available})
}

func (h *SessionHandler) isAvailable(ctx context.Context, username string) (bool, error) {
	_, err := h.directory.ResolveSubject(ctx, username)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, core.ErrUserNotFound):
		return true, nil
	default:
		return false, err
	}
}
