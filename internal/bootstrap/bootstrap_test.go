package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-authgate/grantd/internal/config"
	"github.com/go-authgate/grantd/internal/keys"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const webRedirect = "http://localhost:3000/authorized"

func testConfig() *config.Config {
	return &config.Config{
		ServerAddr:     ":0",
		BaseURL:        "http://localhost:8080",
		TokenAudience:  "grantd",
		DatabaseDriver: config.DatabaseDriverSQLite,
		DatabaseDSN:    ":memory:",
		DBInitTimeout:  10 * time.Second,
		SigningKeyBits: 2048,
		AuthCodeTTL:    5 * time.Minute,
		SessionSecret:  "bootstrap-test-secret",
		SessionMaxAge:  3600,

		CORSAllowedOrigins: []string{"http://localhost:3000"},
		CORSAllowedMethods: []string{"GET", "POST"},
		CORSAllowedHeaders: []string{"Authorization", "Content-Type"},
		CSRFExemptPaths:    []string{"/oauth2/token", "/oauth2/jwks", "/api/auth/"},

		EnableRateLimit:          true,
		RateLimitStore:           config.RateLimitStoreMemory,
		TokenRateLimit:           100,
		LoginRateLimit:           10,
		AuthorizeRateLimit:       100,
		RateLimitCleanupInterval: time.Minute,

		ClientCacheType:  config.ClientCacheTypeMemory,
		ClientCacheTTL:   time.Minute,
		CacheInitTimeout: time.Second,

		EnableAuditLogging:   true,
		AuditLogBufferSize:   100,
		AuditShutdownTimeout: 5 * time.Second,

		UserDirectoryMode: config.UserDirectoryModeStatic,
		StaticUsers:       []string{"alice:wonderland"},

		AccessTokenDefaultTTL:  time.Hour,
		RefreshTokenDefaultTTL: 24 * time.Hour,
		SeedDefaultClients:     true,
	}
}

func newTestApp(t *testing.T) (*Application, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	require.NoError(t, validateAllConfiguration(cfg))

	app, err := New(context.Background(), cfg)
	require.NoError(t, err)

	srv := httptest.NewServer(app.Router)
	t.Cleanup(func() {
		srv.Close()
		app.Close(context.Background())
	})
	return app, srv
}

func getJSON(t *testing.T, client *http.Client, target string, v any) *http.Response {
	t.Helper()
	resp, err := client.Get(target)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp
}

func TestNew_InvalidConfiguration(t *testing.T) {
	cfg := testConfig()
	cfg.AuthCodeTTL = time.Hour
	assert.Error(t, validateAllConfiguration(cfg))

	cfg = testConfig()
	cfg.StaticUsers = []string{"no-colon"}
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestEndToEnd_ClientCredentials(t *testing.T) {
	_, srv := newTestApp(t)
	ctx := context.Background()

	cc := clientcredentials.Config{
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		TokenURL:     srv.URL + "/oauth2/token",
		Scopes:       []string{"read"},
	}
	tok, err := cc.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", tok.Type())
	assert.Empty(t, tok.RefreshToken)

	var me struct {
		Sub      string   `json:"sub"`
		ClientID string   `json:"client_id"`
		Scopes   []string `json:"scopes"`
	}
	resp := getJSON(t, cc.Client(ctx), srv.URL+"/api/me", &me)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "test-client", me.ClientID)
	assert.Equal(t, []string{"read"}, me.Scopes)

	// Wrong secret
	bad := cc
	bad.ClientSecret = "wrong"
	_, err = bad.Token(ctx)
	var retrieveErr *oauth2.RetrieveError
	require.ErrorAs(t, err, &retrieveErr)
	assert.Equal(t, "invalid_client", retrieveErr.ErrorCode)

	// Scope the client was never granted
	wide := cc
	wide.Scopes = []string{"admin"}
	_, err = wide.Token(ctx)
	require.ErrorAs(t, err, &retrieveErr)
	assert.Equal(t, "invalid_scope", retrieveErr.ErrorCode)
}

// browserClient keeps cookies and stops at the first redirect.
func browserClient(t *testing.T) *http.Client {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func postForm(t *testing.T, client *http.Client, target string, form url.Values) *http.Response {
	t.Helper()
	resp, err := client.Post(target, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// authorize logs alice in, approves authURL and returns the code.
func authorize(t *testing.T, srv *httptest.Server, authURL string) string {
	t.Helper()
	browser := browserClient(t)

	var loginForm struct {
		CSRFToken string `json:"csrf_token"`
	}
	getJSON(t, browser, srv.URL+"/login", &loginForm)
	resp := postForm(t, browser, srv.URL+"/login", url.Values{
		"username":   {"alice"},
		"password":   {"wonderland"},
		"csrf_token": {loginForm.CSRFToken},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var pending struct {
		ClientID  string `json:"client_id"`
		CSRFToken string `json:"csrf_token"`
	}
	resp = getJSON(t, browser, authURL, &pending)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "web-client", pending.ClientID)

	resp = postForm(t, browser, srv.URL+"/oauth2/authorize", url.Values{
		"action":     {"approve"},
		"csrf_token": {pending.CSRFToken},
	})
	require.Equal(t, http.StatusFound, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "state-123", loc.Query().Get("state"))
	return loc.Query().Get("code")
}

func TestEndToEnd_AuthorizationCodeWithPKCE(t *testing.T) {
	_, srv := newTestApp(t)
	ctx := context.Background()

	conf := oauth2.Config{
		ClientID:     "web-client",
		ClientSecret: "web-secret",
		RedirectURL:  webRedirect,
		Scopes:       []string{"openid", "read"},
		Endpoint: oauth2.Endpoint{
			AuthURL:   srv.URL + "/oauth2/authorize",
			TokenURL:  srv.URL + "/oauth2/token",
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}

	verifier := oauth2.GenerateVerifier()
	code := authorize(t, srv, conf.AuthCodeURL("state-123", oauth2.S256ChallengeOption(verifier)))
	require.NotEmpty(t, code)

	// Wrong verifier fails and burns nothing
	_, err := conf.Exchange(ctx, code, oauth2.VerifierOption(oauth2.GenerateVerifier()))
	var retrieveErr *oauth2.RetrieveError
	require.ErrorAs(t, err, &retrieveErr)
	assert.Equal(t, "invalid_grant", retrieveErr.ErrorCode)

	tok, err := conf.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	require.NoError(t, err)
	require.NotEmpty(t, tok.RefreshToken)
	assert.Equal(t, "openid read", tok.Extra("scope"))

	// Force a refresh through the token source
	stale := *tok
	stale.Expiry = time.Now().Add(-time.Minute)
	refreshed, err := conf.TokenSource(ctx, &stale).Token()
	require.NoError(t, err)
	assert.NotEqual(t, tok.AccessToken, refreshed.AccessToken)
	assert.NotEqual(t, tok.RefreshToken, refreshed.RefreshToken)

	// Presenting the rotated-out refresh token revokes the family
	_, err = conf.TokenSource(ctx, &stale).Token()
	require.ErrorAs(t, err, &retrieveErr)
	assert.Equal(t, "invalid_grant", retrieveErr.ErrorCode)

	stale = *refreshed
	stale.Expiry = time.Now().Add(-time.Minute)
	_, err = conf.TokenSource(ctx, &stale).Token()
	require.ErrorAs(t, err, &retrieveErr)
	assert.Equal(t, "invalid_grant", retrieveErr.ErrorCode)

	// Second exchange of the same code fails
	_, err = conf.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	require.ErrorAs(t, err, &retrieveErr)
	assert.Equal(t, "invalid_grant", retrieveErr.ErrorCode)
}

func TestEndToEnd_DiscoveryAndRotation(t *testing.T) {
	app, srv := newTestApp(t)
	ctx := context.Background()

	var metadata struct {
		Issuer        string `json:"issuer"`
		TokenEndpoint string `json:"token_endpoint"`
		JWKSURI       string `json:"jwks_uri"`
	}
	resp := getJSON(t, http.DefaultClient, srv.URL+"/.well-known/oauth-authorization-server", &metadata)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "http://localhost:8080", metadata.Issuer)
	assert.Equal(t, "http://localhost:8080/oauth2/token", metadata.TokenEndpoint)

	cc := clientcredentials.Config{
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		TokenURL:     srv.URL + "/oauth2/token",
	}
	before, err := cc.Token(ctx)
	require.NoError(t, err)

	require.NoError(t, rotateSigningKey(ctx, app.Config, app.KeyManager, app.MetricsRecorder, app.AuditService))

	var set keys.JWKS
	getJSON(t, http.DefaultClient, srv.URL+"/.well-known/jwks.json", &set)
	assert.Len(t, set.Keys, 2)

	// A token signed before the rotation still verifies
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(before))
	resp = getJSON(t, client, srv.URL+"/api/me", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	after, err := cc.Token(ctx)
	require.NoError(t, err)
	client = oauth2.NewClient(ctx, oauth2.StaticTokenSource(after))
	resp = getJSON(t, client, srv.URL+"/api/me", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestEndToEnd_HealthAndUnknownRoutes(t *testing.T) {
	_, srv := newTestApp(t)

	var health map[string]string
	resp := getJSON(t, http.DefaultClient, srv.URL+"/health", &health)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", health["status"])

	// Metrics are disabled in this configuration
	resp = getJSON(t, http.DefaultClient, srv.URL+"/metrics", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = getJSON(t, http.DefaultClient, srv.URL+"/api/me", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdvertisedScopes(t *testing.T) {
	app, _ := newTestApp(t)
	scopes, err := advertisedScopes(context.Background(), app.DB)
	require.NoError(t, err)
	assert.Equal(t, []string{"email", "openid", "profile", "read", "write"}, scopes)
}

func TestPurgeExpiredRecords(t *testing.T) {
	app, srv := newTestApp(t)
	ctx := context.Background()

	conf := oauth2.Config{
		ClientID:     "web-client",
		ClientSecret: "web-secret",
		RedirectURL:  webRedirect,
		Scopes:       []string{"read"},
		Endpoint: oauth2.Endpoint{
			AuthURL:   srv.URL + "/oauth2/authorize",
			TokenURL:  srv.URL + "/oauth2/token",
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
	code := authorize(t, srv, conf.AuthCodeURL("state-123"))
	_, err := conf.Exchange(ctx, code)
	require.NoError(t, err)

	active, err := app.DB.CountActiveRefreshTokens(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), active)

	// Nothing has expired yet
	purgeExpiredRecords(ctx, app.DB, time.Now())
	active, err = app.DB.CountActiveRefreshTokens(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), active)

	// web-client refresh tokens live 30 days
	purgeExpiredRecords(ctx, app.DB, time.Now().Add(60*24*time.Hour))
	active, err = app.DB.CountActiveRefreshTokens(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(0), active)
}

func TestErrorLogger(t *testing.T) {
	l := newErrorLogger()
	err := errors.New("boom")

	assert.True(t, l.logIfNeeded("op", err))
	assert.False(t, l.logIfNeeded("op", err))
	assert.True(t, l.logIfNeeded("other", err))

	l.lastErrorTimes["op"] = time.Now().Add(-10 * time.Minute)
	assert.True(t, l.logIfNeeded("op", err))
}
