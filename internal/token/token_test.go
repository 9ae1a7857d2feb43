package token

import (
	"crypto/rsa"
	"sync"
	"testing"
	"time"

	"github.com/go-authgate/grantd/internal/keys"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	keyOnce sync.Once
	rsaKey  *rsa.PrivateKey
)

func newTestProvider(t *testing.T) (*JWTProvider, *keys.Manager) {
	t.Helper()
	keyOnce.Do(func() {
		var err error
		rsaKey, err = keys.GenerateRSAKey(2048)
		if err != nil {
			panic(err)
		}
	})
	m, err := keys.NewManagerWithKey("test-kid", rsaKey)
	require.NoError(t, err)
	return NewJWTProvider(m, "http://localhost:8080", "grantd"), m
}

func TestJWTProvider_GenerateAccessToken(t *testing.T) {
	p, _ := newTestProvider(t)

	result, err := p.GenerateAccessToken("test-client", "test-client", []string{"read"}, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, TokenTypeBearer, result.TokenType)
	assert.Equal(t, int64(3600), result.ExpiresIn())
	assert.Equal(t, result.IssuedAt.Add(time.Hour), result.ExpiresAt)
	assert.NotEmpty(t, result.ID)

	claims, err := p.ValidateAccessToken(result.TokenString)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", claims.Issuer)
	assert.Equal(t, "test-client", claims.Subject)
	assert.Equal(t, "test-client", claims.ClientID)
	assert.Equal(t, "read", claims.Scope)
	assert.Equal(t, result.ID, claims.ID)
	assert.Contains(t, claims.Audience, "grantd")
	assert.Equal(t, result.ExpiresAt.Unix(), claims.ExpiresAt.Unix())
	assert.Equal(t, result.IssuedAt.Unix(), claims.IssuedAt.Unix())
}

func TestJWTProvider_UniqueJTI(t *testing.T) {
	p, _ := newTestProvider(t)

	a, err := p.GenerateAccessToken("user-1", "web-client", []string{"openid"}, time.Minute)
	require.NoError(t, err)
	b, err := p.GenerateAccessToken("user-1", "web-client", []string{"openid"}, time.Minute)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestJWTProvider_RejectsNonPositiveTTL(t *testing.T) {
	p, _ := newTestProvider(t)
	_, err := p.GenerateAccessToken("x", "x", nil, 0)
	assert.ErrorIs(t, err, ErrTokenGeneration)
}

func TestJWTProvider_ValidateFailures(t *testing.T) {
	p, m := newTestProvider(t)

	t.Run("expired", func(t *testing.T) {
		expired := NewJWTProvider(m, "http://localhost:8080", "grantd")
		expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		result, err := expired.GenerateAccessToken("u", "c", []string{"read"}, time.Hour)
		require.NoError(t, err)

		_, err = p.ValidateAccessToken(result.TokenString)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("wrong audience", func(t *testing.T) {
		other := NewJWTProvider(m, "http://localhost:8080", "another-api")
		result, err := other.GenerateAccessToken("u", "c", []string{"read"}, time.Hour)
		require.NoError(t, err)

		_, err = p.ValidateAccessToken(result.TokenString)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewJWTProvider(m, "https://evil.example.com", "grantd")
		result, err := other.GenerateAccessToken("u", "c", []string{"read"}, time.Hour)
		require.NoError(t, err)

		_, err = p.ValidateAccessToken(result.TokenString)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := p.ValidateAccessToken("garbage")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestParseScope(t *testing.T) {
	assert.Equal(t, []string{"read", "write"}, ParseScope("  read write read "))
	assert.Nil(t, ParseScope(""))
}

func TestIsSubset(t *testing.T) {
	assert.True(t, IsSubset([]string{"read"}, "read write"))
	assert.True(t, IsSubset(nil, "read"))
	assert.False(t, IsSubset([]string{"read", "admin"}, "read write"))
}

func TestIntersect(t *testing.T) {
	allowed := []string{"openid", "profile", "read"}
	assert.Equal(t, []string{"read", "openid"}, Intersect([]string{"read", "admin", "openid", "read"}, allowed))
	assert.Nil(t, Intersect([]string{"admin"}, allowed))
}

func TestJoinScope(t *testing.T) {
	assert.Equal(t, "read write", JoinScope([]string{"read", "write"}))
	assert.Empty(t, JoinScope(nil))
}
