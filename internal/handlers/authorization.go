package handlers

import (
	"errors"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/go-authgate/grantd/internal/middleware"
	"github.com/go-authgate/grantd/internal/models"
	"github.com/go-authgate/grantd/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// Session keys owned by the authorization endpoint
const (
	sessionPendingAuthorization = "pending_authorization"
	sessionConsent              = "consent"
)

const maxStateLength = 1024

// AuthorizationHandler drives the consent step of the authorization-code flow.
// Rendering is left to the caller; every response is JSON or a redirect.
type AuthorizationHandler struct {
	codes *services.AuthorizationCodeService
	audit *services.AuditService
}

func NewAuthorizationHandler(
	codes *services.AuthorizationCodeService,
	audit *services.AuditService,
) *AuthorizationHandler {
	return &AuthorizationHandler{codes: codes, audit: audit}
}

type pendingAuthorizationResponse struct {
	*services.PendingAuthorization
	Subject   string `json:"subject"`
	CSRFToken string `json:"csrf_token"`
}

// ShowAuthorize handles GET /oauth2/authorize. RequireLogin runs first.
// The validated request is parked in the session until the owner decides.
func (h *AuthorizationHandler) ShowAuthorize(c *gin.Context) {
	state := c.Query("state")

	if len(state) > maxStateLength {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             services.CodeInvalidRequest,
			"error_description": "state parameter exceeds maximum length",
		})
		return
	}

	req, err := h.codes.ValidateAuthorizationRequest(
		c.Request.Context(),
		c.Query("client_id"),
		c.Query("redirect_uri"),
		c.Query("response_type"),
		c.Query("scope"),
		state,
		c.Query("code_challenge"),
		c.Query("code_challenge_method"),
	)
	if err != nil {
		code, status, description := services.OAuthError(err)
		// Only a verified redirect_uri receives the error
		var redirectable *services.RedirectableError
		if errors.As(err, &redirectable) {
			redirectWithError(c, redirectable.RedirectURI, state, code, description)
			return
		}
		if status == http.StatusInternalServerError {
			log.Printf("[Authorize] Failed to validate request for client=%s: %v", c.Query("client_id"), err)
		}
		c.JSON(status, gin.H{"error": code, "error_description": description})
		return
	}

	pending := services.NewPendingAuthorization(req)
	encoded, err := services.EncodeSessionValue(pending)
	if err != nil {
		writeOAuthError(c, err)
		return
	}

	session := sessions.Default(c)
	session.Set(sessionPendingAuthorization, encoded)
	if err := session.Save(); err != nil {
		writeOAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, pendingAuthorizationResponse{
		PendingAuthorization: pending,
		Subject:              c.GetString(middleware.ContextSubject),
		CSRFToken:            middleware.GetCSRFToken(c),
	})
}

// HandleAuthorize handles POST /oauth2/authorize with action=approve|deny.
// CSRF is checked by middleware.
func (h *AuthorizationHandler) HandleAuthorize(c *gin.Context) {
	session := sessions.Default(c)

	var pending services.PendingAuthorization
	if err := services.DecodeSessionValue(session.Get(sessionPendingAuthorization), &pending); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             services.CodeInvalidRequest,
			"error_description": "No pending authorization request",
		})
		return
	}
	if clientID := c.PostForm("client_id"); clientID != "" && clientID != pending.ClientID {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             services.CodeInvalidRequest,
			"error_description": "client_id does not match the pending request",
		})
		return
	}

	session.Delete(sessionPendingAuthorization)
	subject := c.GetString(middleware.ContextSubject)

	if c.PostForm("action") != "approve" {
		if err := session.Save(); err != nil {
			log.Printf("[Authorize] Failed to save session: %v", err)
		}
		h.audit.Log(c.Request.Context(), services.AuditLogEntry{
			EventType:     models.EventAuthorizationDenied,
			Severity:      models.SeverityInfo,
			ActorID:       subject,
			ActorClientID: pending.ClientID,
			ResourceType:  models.ResourceClient,
			ResourceID:    pending.ClientID,
			Action:        "Authorization denied by resource owner",
			Success:       true,
			RequestPath:   c.Request.URL.Path,
		})
		redirectWithError(c, pending.RedirectURI, pending.State,
			services.CodeAccessDenied, "The resource owner denied the request")
		return
	}

	encoded, err := services.EncodeSessionValue(pending.Approve(subject, time.Now()))
	if err != nil {
		log.Printf("[Authorize] Failed to encode consent for client=%s: %v", pending.ClientID, err)
		redirectWithError(c, pending.RedirectURI, pending.State,
			services.CodeServerError, "Failed to record consent")
		return
	}
	session.Set(sessionConsent, encoded)
	if err := session.Save(); err != nil {
		log.Printf("[Authorize] Failed to save session: %v", err)
	}

	// The code carries exactly what the session consent covers.
	var consent services.Consent
	if err := services.DecodeSessionValue(session.Get(sessionConsent), &consent); err != nil ||
		!consent.Covers(pending.ClientID, subject, pending.Scopes) {
		redirectWithError(c, pending.RedirectURI, pending.State,
			services.CodeAccessDenied, "No consent covers the requested scopes")
		return
	}

	plainCode, err := h.codes.Issue(c.Request.Context(), services.IssueCodeRequest{
		ClientID:            consent.ClientID,
		RedirectURI:         pending.RedirectURI,
		Scopes:              consent.Scopes,
		Subject:             consent.Subject,
		CodeChallenge:       pending.CodeChallenge,
		CodeChallengeMethod: pending.CodeChallengeMethod,
	})
	if err != nil {
		log.Printf("[Authorize] Failed to issue code for client=%s: %v", pending.ClientID, err)
		redirectWithError(c, pending.RedirectURI, pending.State,
			services.CodeServerError, "Failed to generate authorization code")
		return
	}

	redirectWithParams(c, pending.RedirectURI, url.Values{"code": {plainCode}}, pending.State)
}

// Consent handles GET /oauth2/consent and returns the last approval made in
// this session.
func (h *AuthorizationHandler) Consent(c *gin.Context) {
	var consent services.Consent
	if err := services.DecodeSessionValue(sessions.Default(c).Get(sessionConsent), &consent); err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":             "not_found",
			"error_description": "No consent recorded in this session",
		})
		return
	}
	c.JSON(http.StatusOK, consent)
}

// redirectWithError sends an OAuth error to the client's registered redirect_uri.
func redirectWithError(c *gin.Context, redirectURI, state, code, description string) {
	redirectWithParams(c, redirectURI, url.Values{
		"error":             {code},
		"error_description": {description},
	}, state)
}

func redirectWithParams(c *gin.Context, redirectURI string, params url.Values, state string) {
	u, err := url.Parse(redirectURI)
	if err != nil || redirectURI == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             services.CodeInvalidRequest,
			"error_description": "invalid redirect_uri",
		})
		return
	}
	q := u.Query()
	for k, v := range params {
		q[k] = v
	}
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	c.Redirect(http.StatusFound, u.String())
}
