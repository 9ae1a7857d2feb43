package middleware

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-authgate/grantd/internal/token"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// Session keys
const (
	SessionSubject  = "subject"
	SessionUsername = "username"
)

// Context keys
const (
	ContextSubject     = "subject"
	ContextTokenClaims = "token_claims"
)

// RequireLogin redirects anonymous visitors to /login, preserving the
// requested URL in next.
func RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		subject, _ := session.Get(SessionSubject).(string)

		if subject == "" {
			c.Redirect(http.StatusFound, "/login?next="+url.QueryEscape(c.Request.URL.RequestURI()))
			c.Abort()
			return
		}

		c.Set(ContextSubject, subject)
		c.Next()
	}
}

// AccessTokenValidator is satisfied by *token.JWTProvider.
type AccessTokenValidator interface {
	ValidateAccessToken(tokenString string) (*token.AccessClaims, error)
}

// RequireBearerToken verifies the RS256 access token in the Authorization
// header and checks it carries every scope in required.
func RequireBearerToken(validator AccessTokenValidator, required ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Header("WWW-Authenticate", `Bearer realm="grantd"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":             "invalid_token",
				"error_description": "Bearer token required",
			})
			return
		}

		claims, err := validator.ValidateAccessToken(raw)
		if err != nil {
			description := "Invalid access token"
			if errors.Is(err, token.ErrExpiredToken) {
				description = "Access token expired"
			}
			c.Header("WWW-Authenticate", `Bearer realm="grantd", error="invalid_token"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":             "invalid_token",
				"error_description": description,
			})
			return
		}

		if len(required) > 0 && !token.IsSubset(required, claims.Scope) {
			c.Header(
				"WWW-Authenticate",
				`Bearer realm="grantd", error="insufficient_scope", scope="`+
					token.JoinScope(required)+`"`,
			)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":             "insufficient_scope",
				"error_description": "Token lacks the required scope",
			})
			return
		}

		c.Set(ContextSubject, claims.Subject)
		c.Set(ContextTokenClaims, claims)
		c.Next()
	}
}

// GetTokenClaims returns the claims stored by RequireBearerToken.
func GetTokenClaims(c *gin.Context) (*token.AccessClaims, bool) {
	v, ok := c.Get(ContextTokenClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*token.AccessClaims)
	return claims, ok
}

func bearerToken(header string) (string, bool) {
	scheme, value, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}
