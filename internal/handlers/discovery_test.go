package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-authgate/grantd/internal/keys"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWKS(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/oauth2/jwks", "/.well-known/jwks.json"} {
		t.Run(path, func(t *testing.T) {
			w := httptest.NewRecorder()
			ts.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
			require.Equal(t, http.StatusOK, w.Code)

			var set keys.JWKS
			decodeJSON(t, w, &set)
			require.Len(t, set.Keys, 1)
			assert.Equal(t, "test-kid", set.Keys[0].Kid)
			assert.Equal(t, "RSA", set.Keys[0].Kty)
			assert.Equal(t, "RS256", set.Keys[0].Alg)
			assert.Equal(t, "AQAB", set.Keys[0].E)
		})
	}
}

func TestMetadata(t *testing.T) {
	ts := newTestServer(t)

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/.well-known/oauth-authorization-server", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var meta discoveryMetadata
	decodeJSON(t, w, &meta)
	assert.Equal(t, testBaseURL, meta.Issuer)
	assert.Equal(t, testBaseURL+"/oauth2/token", meta.TokenEndpoint)
	assert.Equal(t, testBaseURL+"/oauth2/jwks", meta.JWKSURI)
	assert.ElementsMatch(t,
		[]string{"authorization_code", "client_credentials", "refresh_token"},
		meta.GrantTypesSupported)
	assert.Contains(t, meta.CodeChallengeMethodsSupported, "S256")
	assert.Contains(t, meta.TokenEndpointAuthMethods, "client_secret_basic")
}
