package handlers

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-authgate/grantd/internal/services"

	"github.com/gin-gonic/gin"
)

type TokenHandler struct {
	processor *services.GrantProcessor
}

func NewTokenHandler(processor *services.GrantProcessor) *TokenHandler {
	return &TokenHandler{processor: processor}
}

// tokenResponse is the RFC 6749 §5.1 success body.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Token handles POST /oauth2/token. Client credentials are taken from HTTP
// Basic auth when present, otherwise from the client_id and client_secret
// form fields.
func (h *TokenHandler) Token(c *gin.Context) {
	clientID, clientSecret, fromHeader, err := clientCredentials(c)
	if err != nil {
		writeOAuthError(c, err)
		return
	}
	if !fromHeader {
		clientID = c.PostForm("client_id")
		clientSecret = c.PostForm("client_secret")
	} else if formID := c.PostForm("client_id"); formID != "" && formID != clientID {
		writeOAuthError(c, services.ErrInvalidRequest)
		return
	}

	set, err := h.processor.Process(c.Request.Context(), services.GrantRequest{
		GrantType:    c.PostForm("grant_type"),
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scope:        c.PostForm("scope"),
		Code:         c.PostForm("code"),
		RedirectURI:  c.PostForm("redirect_uri"),
		CodeVerifier: c.PostForm("code_verifier"),
		RefreshToken: c.PostForm("refresh_token"),
	})
	if err != nil {
		writeOAuthError(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(http.StatusOK, tokenResponse{
		AccessToken:  set.AccessToken,
		TokenType:    set.TokenType,
		ExpiresIn:    set.ExpiresIn,
		Scope:        set.Scope(),
		RefreshToken: set.RefreshToken,
	})
}

// clientCredentials reads HTTP Basic credentials. Both parts are
// form-urlencoded by the client (RFC 6749 §2.3.1).
func clientCredentials(c *gin.Context) (clientID, secret string, ok bool, err error) {
	rawID, rawSecret, ok := c.Request.BasicAuth()
	if !ok {
		return "", "", false, nil
	}
	if clientID, err = url.QueryUnescape(rawID); err != nil {
		return "", "", true, fmt.Errorf("%w: malformed client_id in Authorization header", services.ErrInvalidClient)
	}
	if secret, err = url.QueryUnescape(rawSecret); err != nil {
		return "", "", true, fmt.Errorf("%w: malformed client_secret in Authorization header", services.ErrInvalidClient)
	}
	return clientID, secret, true, nil
}
