package handlers

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-authgate/grantd/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokenBody struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int64  `json:"expires_in"`
	Scope            string `json:"scope"`
	RefreshToken     string `json:"refresh_token"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func TestToken_ClientCredentials(t *testing.T) {
	ts := newTestServer(t)

	w := ts.postToken(t, url.Values{
		"grant_type": {"client_credentials"},
		"scope":      {"read"},
	}, &[2]string{"test-client", "test-secret"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body tokenBody
	decodeJSON(t, w, &body)
	assert.Equal(t, "Bearer", body.TokenType)
	assert.Equal(t, "read", body.Scope)
	assert.Equal(t, int64(3600), body.ExpiresIn)
	assert.Empty(t, body.RefreshToken)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	claims, err := ts.jwt.ValidateAccessToken(body.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "test-client", claims.Subject)
	assert.Equal(t, "read", claims.Scope)
}

func TestToken_ClientCredentialsPostAuth(t *testing.T) {
	ts := newTestServer(t)

	w := ts.postToken(t, url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {"test-client"},
		"client_secret": {"test-secret"},
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body tokenBody
	decodeJSON(t, w, &body)
	assert.Equal(t, "read write", body.Scope)
}

func TestToken_Errors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name       string
		form       url.Values
		basic      *[2]string
		wantStatus int
		wantError  string
	}{
		{
			name:       "unknown client",
			form:       url.Values{"grant_type": {"client_credentials"}},
			basic:      &[2]string{"nobody", "secret"},
			wantStatus: http.StatusUnauthorized,
			wantError:  "invalid_client",
		},
		{
			name:       "wrong secret",
			form:       url.Values{"grant_type": {"client_credentials"}},
			basic:      &[2]string{"test-client", "wrong"},
			wantStatus: http.StatusUnauthorized,
			wantError:  "invalid_client",
		},
		{
			name:       "missing grant type",
			form:       url.Values{},
			basic:      &[2]string{"test-client", "test-secret"},
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_request",
		},
		{
			name:       "unsupported grant type",
			form:       url.Values{"grant_type": {"password"}},
			basic:      &[2]string{"test-client", "test-secret"},
			wantStatus: http.StatusBadRequest,
			wantError:  "unsupported_grant_type",
		},
		{
			name:       "grant not allowed for client",
			form:       url.Values{"grant_type": {"client_credentials"}},
			basic:      &[2]string{"web-client", "web-secret"},
			wantStatus: http.StatusBadRequest,
			wantError:  "unauthorized_client",
		},
		{
			name:       "scope outside allowed set",
			form:       url.Values{"grant_type": {"client_credentials"}, "scope": {"admin"}},
			basic:      &[2]string{"test-client", "test-secret"},
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_scope",
		},
		{
			name: "basic and form client ids differ",
			form: url.Values{
				"grant_type": {"client_credentials"},
				"client_id":  {"web-client"},
			},
			basic:      &[2]string{"test-client", "test-secret"},
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_request",
		},
		{
			name: "unknown authorization code",
			form: url.Values{
				"grant_type":   {"authorization_code"},
				"code":         {"deadbeef"},
				"redirect_uri": {webRedirect},
			},
			basic:      &[2]string{"web-client", "web-secret"},
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_grant",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.postToken(t, tt.form, tt.basic)
			assert.Equal(t, tt.wantStatus, w.Code)

			var body tokenBody
			decodeJSON(t, w, &body)
			assert.Equal(t, tt.wantError, body.Error)
			assert.NotEmpty(t, body.ErrorDescription)
			assert.Empty(t, body.AccessToken)
			assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

			if tt.wantStatus == http.StatusUnauthorized {
				assert.Equal(t, `Basic realm="grantd"`, w.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestToken_BasicAuthFormEncoded(t *testing.T) {
	ts := newTestServer(t)
	const secret = "p@ss+w:rd/=%&"

	client := &models.RegisteredClient{
		ClientID:   "batch:worker",
		Name:       "Batch Worker",
		ClientType: models.ClientTypeConfidential,
		GrantTypes: models.GrantTypeClientCredentials,
		Scopes:     "read",
		IsActive:   true,
	}
	require.NoError(t, client.SetSecret(secret))
	require.NoError(t, ts.store.CreateClient(context.Background(), client))

	send := func(id, secret string) *httptest.ResponseRecorder {
		form := url.Values{"grant_type": {"client_credentials"}}
		req := httptest.NewRequest(http.MethodPost, "/oauth2/token", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		creds := base64.StdEncoding.EncodeToString([]byte(id + ":" + secret))
		req.Header.Set("Authorization", "Basic "+creds)
		w := httptest.NewRecorder()
		ts.router.ServeHTTP(w, req)
		return w
	}

	w := send(url.QueryEscape(client.ClientID), url.QueryEscape(secret))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body tokenBody
	decodeJSON(t, w, &body)
	assert.Equal(t, "read", body.Scope)

	// A bare % is not valid form encoding.
	w = send("test-client", "test%zz")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	decodeJSON(t, w, &body)
	assert.Equal(t, "invalid_client", body.Error)
}
