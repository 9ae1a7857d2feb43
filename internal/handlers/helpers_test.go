package handlers

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-authgate/grantd/internal/auth"
	"github.com/go-authgate/grantd/internal/keys"
	"github.com/go-authgate/grantd/internal/metrics"
	"github.com/go-authgate/grantd/internal/middleware"
	"github.com/go-authgate/grantd/internal/models"
	"github.com/go-authgate/grantd/internal/services"
	"github.com/go-authgate/grantd/internal/store"
	"github.com/go-authgate/grantd/internal/token"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const (
	testBaseURL = "http://localhost:8080"
	webRedirect = "http://localhost:3000/authorized"
	spaRedirect = "http://localhost:5173/callback"
)

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
)

type testServer struct {
	router *gin.Engine
	store  *store.Store
	jwt    *token.JWTProvider
}

// newTestServer wires handlers the way the server does, over sqlite with
// the default clients, a public spa-client and the static user alice.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	s, err := store.New(ctx, "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	clients, err := store.DefaultClients()
	require.NoError(t, err)
	clients = append(clients, &models.RegisteredClient{
		ClientID:        "spa-client",
		Name:            "Single Page App",
		ClientType:      models.ClientTypePublic,
		GrantTypes:      "authorization_code refresh_token",
		Scopes:          "openid profile read",
		RedirectURIs:    models.StringArray{spaRedirect},
		RequirePKCE:     true,
		AccessTokenTTL:  5 * time.Minute,
		RefreshTokenTTL: time.Hour,
		IsActive:        true,
	})
	require.NoError(t, s.SeedClients(ctx, clients))

	testKeyOnce.Do(func() {
		testKey, err = keys.GenerateRSAKey(2048)
		if err != nil {
			panic(err)
		}
	})
	km, err := keys.NewManagerWithKey("test-kid", testKey)
	require.NoError(t, err)

	directory, err := auth.NewStaticUserDirectory([]string{"alice:wonderland"})
	require.NoError(t, err)

	rec := metrics.NewNoopMetrics()
	jwtProvider := token.NewJWTProvider(km, testBaseURL, "grantd")
	registry := services.NewClientRegistry(s, rec, nil)
	codes := services.NewAuthorizationCodeService(s, registry, 10*time.Minute, rec, nil)
	issuer := services.NewTokenIssuer(jwtProvider, s, time.Hour, 720*time.Hour, rec, nil)
	processor := services.NewGrantProcessor(registry, codes, issuer, rec, false)

	tokenHandler := NewTokenHandler(processor)
	discovery := NewDiscoveryHandler(km, testBaseURL, []string{"openid", "read"})
	authz := NewAuthorizationHandler(codes, nil)
	sessionHandler := NewSessionHandler(directory, rec, nil, testBaseURL)

	r := gin.New()
	r.Use(sessions.Sessions("grantd_session", cookie.NewStore([]byte("test-session-secret"))))
	r.Use(middleware.CSRFMiddleware([]string{"/oauth2/token", "/oauth2/jwks", "/api/"}))

	r.POST("/oauth2/token", tokenHandler.Token)
	r.GET("/oauth2/jwks", discovery.JWKS)
	r.GET("/.well-known/jwks.json", discovery.JWKS)
	r.GET("/.well-known/oauth-authorization-server", discovery.Metadata)
	r.GET("/oauth2/authorize", middleware.RequireLogin(), authz.ShowAuthorize)
	r.POST("/oauth2/authorize", middleware.RequireLogin(), authz.HandleAuthorize)
	r.GET("/oauth2/consent", authz.Consent)
	r.GET("/login", sessionHandler.LoginForm)
	r.POST("/login", sessionHandler.Login)
	r.POST("/logout", sessionHandler.Logout)
	r.GET("/api/auth/check-username/:username", sessionHandler.CheckUsername)
	r.GET("/api/me", middleware.RequireBearerToken(jwtProvider), Me)
	r.GET("/health", Health(s))

	return &testServer{router: r, store: s, jwt: jwtProvider}
}

// postToken sends a form to /oauth2/token. basic is {client_id, secret} or nil.
func (ts *testServer) postToken(t *testing.T, form url.Values, basic *[2]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/oauth2/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if basic != nil {
		creds := base64.StdEncoding.EncodeToString([]byte(basic[0] + ":" + basic[1]))
		req.Header.Set("Authorization", "Basic "+creds)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

// browser carries the session cookie across requests.
type browser struct {
	t       *testing.T
	server  *testServer
	cookies map[string]*http.Cookie
}

func (ts *testServer) newBrowser(t *testing.T) *browser {
	return &browser{t: t, server: ts, cookies: map[string]*http.Cookie{}}
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	for _, ck := range b.cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	b.server.router.ServeHTTP(w, req)
	for _, ck := range w.Result().Cookies() {
		b.cookies[ck.Name] = ck
	}
	return w
}

func (b *browser) get(target string) *httptest.ResponseRecorder {
	return b.do(httptest.NewRequest(http.MethodGet, target, nil))
}

func (b *browser) post(target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

// login signs alice in and returns the session's CSRF token.
func (b *browser) login() string {
	b.t.Helper()
	w := b.get("/login")
	require.Equal(b.t, http.StatusOK, w.Code)
	var form struct {
		CSRFToken string `json:"csrf_token"`
	}
	decodeJSON(b.t, w, &form)

	w = b.post("/login", url.Values{
		"username":   {"alice"},
		"password":   {"wonderland"},
		"csrf_token": {form.CSRFToken},
	})
	require.Equal(b.t, http.StatusOK, w.Code, w.Body.String())
	return form.CSRFToken
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}
