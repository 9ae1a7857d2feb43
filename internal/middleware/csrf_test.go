package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func csrfRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(sessions.Sessions("grantd_session", cookie.NewStore([]byte("test-secret"))))
	r.Use(CSRFMiddleware([]string{"/oauth2/token", "/api/auth/"}))
	r.GET("/form", func(c *gin.Context) {
		c.String(http.StatusOK, GetCSRFToken(c))
	})
	r.POST("/oauth2/authorize", func(c *gin.Context) {
		c.String(http.StatusOK, "accepted")
	})
	r.POST("/oauth2/token", func(c *gin.Context) {
		c.String(http.StatusOK, "token")
	})
	return r
}

func TestCSRFMiddleware(t *testing.T) {
	r := csrfRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/form", nil))
	require.Equal(t, http.StatusOK, w.Code)
	csrfToken := w.Body.String()
	require.Len(t, csrfToken, 64)
	cookies := w.Result().Cookies()

	post := func(body string, header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/oauth2/authorize", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if header != "" {
			req.Header.Set("X-CSRF-Token", header)
		}
		for _, ck := range cookies {
			req.AddCookie(ck)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, post(url.Values{"csrf_token": {csrfToken}}.Encode(), "").Code)
	assert.Equal(t, http.StatusOK, post("", csrfToken).Code)

	rejected := post(url.Values{"csrf_token": {"forged"}}.Encode(), "")
	assert.Equal(t, http.StatusForbidden, rejected.Code)
	assert.Contains(t, rejected.Body.String(), "CSRF token validation failed")

	assert.Equal(t, http.StatusForbidden, post("", "").Code)
}

func TestCSRFMiddleware_ExemptPrefix(t *testing.T) {
	r := csrfRouter()

	req := httptest.NewRequest(http.MethodPost, "/oauth2/token", strings.NewReader("grant_type=client_credentials"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "token", w.Body.String())
}
