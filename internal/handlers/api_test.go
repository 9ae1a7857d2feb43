package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMe(t *testing.T) {
	ts := newTestServer(t)

	w := ts.postToken(t, url.Values{
		"grant_type": {"client_credentials"},
		"scope":      {"read"},
	}, &[2]string{"test-client", "test-secret"})
	require.Equal(t, http.StatusOK, w.Code)
	var tokens tokenBody
	decodeJSON(t, w, &tokens)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	w = httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var me struct {
		Sub      string   `json:"sub"`
		ClientID string   `json:"client_id"`
		Scopes   []string `json:"scopes"`
	}
	decodeJSON(t, w, &me)
	assert.Equal(t, "test-client", me.Sub)
	assert.Equal(t, "test-client", me.ClientID)
	assert.Equal(t, []string{"read"}, me.Scopes)

	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	w = httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_token")
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")

	require.NoError(t, ts.store.Close())
	w = httptest.NewRecorder()
	ts.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
