package services

import (
	"context"
	"crypto/rsa"
	"sync"
	"testing"
	"time"

	"github.com/go-authgate/grantd/internal/keys"
	"github.com/go-authgate/grantd/internal/metrics"
	"github.com/go-authgate/grantd/internal/models"
	"github.com/go-authgate/grantd/internal/store"
	"github.com/go-authgate/grantd/internal/token"

	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "http://localhost:8080"
	testAudience = "grantd"
	webRedirect  = "http://localhost:3000/authorized"
	spaRedirect  = "http://localhost:5173/callback"
)

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
)

func signingKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	testKeyOnce.Do(func() {
		var err error
		testKey, err = keys.GenerateRSAKey(2048)
		if err != nil {
			panic(err)
		}
	})
	return testKey
}

type testEnv struct {
	store     *store.Store
	keys      *keys.Manager
	jwt       *token.JWTProvider
	registry  *ClientRegistry
	codes     *AuthorizationCodeService
	issuer    *TokenIssuer
	processor *GrantProcessor
}

// newTestEnv wires the services over a fresh sqlite database seeded with
// test-client, web-client and the public spa-client.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
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

	km, err := keys.NewManagerWithKey("test-kid", signingKey(t))
	require.NoError(t, err)

	rec := metrics.NewNoopMetrics()
	jwtProvider := token.NewJWTProvider(km, testIssuer, testAudience)
	registry := NewClientRegistry(s, rec, nil)
	codes := NewAuthorizationCodeService(s, registry, 10*time.Minute, rec, nil)
	issuer := NewTokenIssuer(jwtProvider, s, time.Hour, 720*time.Hour, rec, nil)

	return &testEnv{
		store:     s,
		keys:      km,
		jwt:       jwtProvider,
		registry:  registry,
		codes:     codes,
		issuer:    issuer,
		processor: NewGrantProcessor(registry, codes, issuer, rec, true),
	}
}

func (e *testEnv) client(t *testing.T, clientID string) *models.RegisteredClient {
	t.Helper()
	c, err := e.store.Load(context.Background(), clientID)
	require.NoError(t, err)
	return c
}

// issueWebCode issues a code for alice at web-client's first redirect URI.
func (e *testEnv) issueWebCode(t *testing.T, scopes ...string) string {
	t.Helper()
	if len(scopes) == 0 {
		scopes = []string{"openid", "read"}
	}
	code, err := e.codes.Issue(context.Background(), IssueCodeRequest{
		ClientID:    "web-client",
		RedirectURI: webRedirect,
		Scopes:      scopes,
		Subject:     "alice",
	})
	require.NoError(t, err)
	return code
}

// webTokens runs the code flow for web-client and returns the token set.
func (e *testEnv) webTokens(t *testing.T, scopes ...string) *TokenSet {
	t.Helper()
	set, err := e.processor.Process(context.Background(), GrantRequest{
		GrantType:    models.GrantTypeAuthorizationCode,
		ClientID:     "web-client",
		ClientSecret: "web-secret",
		Code:         e.issueWebCode(t, scopes...),
		RedirectURI:  webRedirect,
	})
	require.NoError(t, err)
	require.NotEmpty(t, set.RefreshToken)
	return set
}
